// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package config

import (
	"context"

	"github.com/grailbio/base/sync/once"
	"github.com/grailbio/remote"
	"github.com/grailbio/remote/metrics"
)

// OnceConfig memoizes the first call of the following methods to the
// underlying config: Metrics, Tracing, and Executor.
type OnceConfig struct {
	Config

	metricsOnce once.Task
	metrics     metrics.Client

	tracingOnce once.Task
	shutdown    func(context.Context) error

	executorOnce once.Task
	executor     remote.Executor
}

// Once constructs a new OnceConfig using the provided
// underlying configuration.
func Once(cfg Config) *OnceConfig {
	return &OnceConfig{Config: cfg}
}

// Metrics returns the result of the first call to the underlying
// configuration's Metrics.
func (o *OnceConfig) Metrics() (metrics.Client, error) {
	err := o.metricsOnce.Do(func() (err error) {
		o.metrics, err = o.Config.Metrics()
		return
	})
	return o.metrics, err
}

// Tracing returns the result of the first call to the underlying
// configuration's Tracing.
func (o *OnceConfig) Tracing(ctx context.Context) (func(context.Context) error, error) {
	err := o.tracingOnce.Do(func() (err error) {
		o.shutdown, err = o.Config.Tracing(ctx)
		return
	})
	return o.shutdown, err
}

// Executor returns the result of the first call to the underlying
// configuration's Executor.
func (o *OnceConfig) Executor() (remote.Executor, error) {
	err := o.executorOnce.Do(func() (err error) {
		o.executor, err = o.Config.Executor()
		return
	})
	return o.executor, err
}
