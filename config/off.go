// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package config

import (
	"context"

	"github.com/grailbio/remote/metrics"
)

func init() {
	Register(Metrics, "off", "", "turn metrics off",
		func(cfg Config, arg string) (Config, error) {
			return &metricsOff{cfg}, nil
		},
	)
	Register(Tracing, "off", "", "turn tracing off",
		func(cfg Config, arg string) (Config, error) {
			return &tracingOff{cfg}, nil
		},
	)
}

type metricsOff struct {
	Config
}

func (c *metricsOff) Metrics() (metrics.Client, error) {
	// A nil client is just an off client.
	return nil, nil
}

type tracingOff struct {
	Config
}

func (c *tracingOff) Tracing(ctx context.Context) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}
