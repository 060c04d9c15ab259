// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package localconfig defines a configuration provider named
// "local" for the executor key. It runs tasks and actors in the
// current process.
package localconfig

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/grailbio/remote"
	"github.com/grailbio/remote/config"
	"github.com/grailbio/remote/errors"
	"github.com/grailbio/remote/local"
)

func init() {
	config.Register(config.Executor, "local", "concurrency[,mailbox]",
		"run tasks and actors in process, at most concurrency tasks at a time (default: number of CPUs)",
		func(cfg config.Config, arg string) (config.Config, error) {
			c := &executor{Config: cfg}
			if arg == "" {
				return c, nil
			}
			parts := strings.Split(arg, ",")
			if len(parts) > 2 {
				return nil, errors.E(errors.Invalid, fmt.Errorf("local: too many arguments %q", arg))
			}
			var err error
			if c.concurrency, err = strconv.Atoi(parts[0]); err != nil || c.concurrency < 0 {
				return nil, errors.E(errors.Invalid, fmt.Errorf("local: invalid concurrency %q", parts[0]))
			}
			if len(parts) == 2 {
				if c.mailbox, err = strconv.Atoi(parts[1]); err != nil || c.mailbox < 0 {
					return nil, errors.E(errors.Invalid, fmt.Errorf("local: invalid mailbox size %q", parts[1]))
				}
			}
			return c, nil
		},
	)
}

type executor struct {
	config.Config
	concurrency, mailbox int
}

// Executor returns a started local executor which logs to the
// configured logger and reports to the configured metrics client.
func (c *executor) Executor() (remote.Executor, error) {
	log, err := c.Logger()
	if err != nil {
		return nil, err
	}
	m, err := c.Metrics()
	if err != nil {
		return nil, err
	}
	e := &local.Executor{
		Concurrency: c.concurrency,
		Mailbox:     c.mailbox,
		Log:         log.Tee(nil, "local: "),
		Metrics:     m,
	}
	if err := e.Start(); err != nil {
		return nil, err
	}
	return e, nil
}
