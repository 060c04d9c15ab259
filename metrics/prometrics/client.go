// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package prometrics implements a metrics.Client backed by a
// Prometheus registry.
package prometrics

import (
	"net/http"

	"github.com/grailbio/remote/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Client is a metrics.Client that records into a Prometheus
// registry. All metrics declared by package metrics are registered
// when the client is created.
type Client struct {
	// Namespace is given as a prefix to all prometheus metrics.
	Namespace string

	reg        *prometheus.Registry
	gauges     map[string]*prometheus.GaugeVec
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
}

// New returns a client with a fresh registry whose metrics are
// prefixed by namespace.
func New(namespace string) (*Client, error) {
	return NewWithRegistry(prometheus.NewRegistry(), namespace)
}

// NewWithRegistry returns a client that registers its collectors
// with reg.
func NewWithRegistry(reg *prometheus.Registry, namespace string) (*Client, error) {
	c := &Client{
		Namespace:  namespace,
		reg:        reg,
		gauges:     make(map[string]*prometheus.GaugeVec),
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
	if err := c.initCollectors(); err != nil {
		return nil, err
	}
	return c, nil
}

// Registry returns the client's registry.
func (c *Client) Registry() *prometheus.Registry {
	return c.reg
}

// Handler returns an HTTP handler that serves the client's metrics in
// the Prometheus exposition format.
func (c *Client) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

// initCollectors inspects the counters/gauges/histograms declared by
// package metrics and registers their backing vectors.
func (c *Client) initCollectors() error {
	for name, opts := range metrics.Gauges {
		gv := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: c.Namespace,
			Name:      name,
			Help:      opts.Help,
		}, opts.Labels)
		if err := c.reg.Register(gv); err != nil {
			return err
		}
		c.gauges[name] = gv
	}
	for name, opts := range metrics.Counters {
		cv := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: c.Namespace,
			Name:      name,
			Help:      opts.Help,
		}, opts.Labels)
		if err := c.reg.Register(cv); err != nil {
			return err
		}
		c.counters[name] = cv
	}
	for name, opts := range metrics.Histograms {
		hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: c.Namespace,
			Name:      name,
			Buckets:   opts.Buckets,
			Help:      opts.Help,
		}, opts.Labels)
		if err := c.reg.Register(hv); err != nil {
			return err
		}
		c.histograms[name] = hv
	}
	return nil
}

// GetGauge implements metrics.Client.
func (c *Client) GetGauge(name string, labels map[string]string) metrics.Gauge {
	return c.gauges[name].With(labels)
}

// GetCounter implements metrics.Client.
func (c *Client) GetCounter(name string, labels map[string]string) metrics.Counter {
	return c.counters[name].With(labels)
}

// GetHistogram implements metrics.Client.
func (c *Client) GetHistogram(name string, labels map[string]string) metrics.Histogram {
	return c.histograms[name].With(labels)
}
