// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package promconfig defines a configuration provider named
// "prometheus" for the metrics key. Metrics are recorded into a
// fresh Prometheus registry which the returned client serves
// through its Handler.
package promconfig

import (
	"github.com/grailbio/base/sync/once"
	"github.com/grailbio/remote/config"
	"github.com/grailbio/remote/metrics"
	"github.com/grailbio/remote/metrics/prometrics"
)

// DefaultNamespace prefixes metrics names when no namespace is
// configured.
const DefaultNamespace = "remote"

func init() {
	config.Register(config.Metrics, "prometheus", "namespace",
		"record metrics into a Prometheus registry; metrics names are prefixed by namespace (default: remote)",
		func(cfg config.Config, arg string) (config.Config, error) {
			if arg == "" {
				arg = DefaultNamespace
			}
			return &prom{Config: cfg, namespace: arg}, nil
		},
	)
}

type prom struct {
	config.Config
	namespace string

	once   once.Task
	client *prometrics.Client
}

// Metrics returns the configuration's Prometheus client. Providers
// layered above this one (e.g., the executor) share the client, and
// thus its registry.
func (c *prom) Metrics() (metrics.Client, error) {
	err := c.once.Do(func() (err error) {
		c.client, err = prometrics.New(c.namespace)
		return
	})
	if err != nil {
		return nil, err
	}
	return c.client, nil
}
