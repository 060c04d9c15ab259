// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package nodeconfig defines a configuration provider named "node"
// for the executor key. It dispatches tasks and actors to a remote
// node (see cmd/remotelet).
package nodeconfig

import (
	"github.com/grailbio/remote"
	"github.com/grailbio/remote/client"
	"github.com/grailbio/remote/config"
	"github.com/grailbio/remote/errors"
)

func init() {
	config.Register(config.Executor, "node", "url",
		"dispatch tasks and actors to the node serving at url",
		func(cfg config.Config, arg string) (config.Config, error) {
			if arg == "" {
				return nil, errors.E(errors.Invalid, errors.New("node: a URL must be provided"))
			}
			return &executor{cfg, arg}, nil
		},
	)
}

type executor struct {
	config.Config
	url string
}

// Executor returns a client to the configured node.
func (c *executor) Executor() (remote.Executor, error) {
	log, err := c.Logger()
	if err != nil {
		return nil, err
	}
	return client.New(c.url, nil, log.Tee(nil, "client: "))
}
