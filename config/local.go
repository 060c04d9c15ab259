// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package config

import (
	golog "log"
	"os"

	"github.com/grailbio/remote/log"
)

func init() {
	Register(Logger, "stderr", "level", "log to standard error at the given level (off, error, info, debug)",
		func(cfg Config, arg string) (Config, error) {
			level := log.InfoLevel
			if arg != "" {
				var err error
				if level, err = log.ParseLevel(arg); err != nil {
					return nil, err
				}
			}
			flags := golog.LstdFlags
			if level == log.DebugLevel {
				flags |= golog.Lmicroseconds
			}
			return &stderrLogger{cfg, log.New(golog.New(os.Stderr, "", flags), level)}, nil
		},
	)
}

type stderrLogger struct {
	Config
	log *log.Logger
}

func (c *stderrLogger) Logger() (*log.Logger, error) {
	return c.log, nil
}
