// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package metrics declares the runtime's metrics and provides typed
// accessors for them. Metrics are emitted to a Client carried by the
// context; if no client is present, accessors return no-op
// instruments, so instrumented code never needs to check whether
// metrics are enabled.
package metrics

import (
	"context"
	"fmt"
)

// Gauge wraps prometheus.Gauge. Gauges can be set to arbitrary values.
type Gauge interface {
	// Set updates the value of the gauge
	Set(float64)
	// Inc increments the Gauge by 1.
	Inc()
	// Dec decrements the Gauge by 1.
	Dec()
	// Add adds the given value to the Gauge.
	Add(float64)
	// Sub subtracts the given value from the Gauge.
	Sub(float64)
}

// Counter wraps prometheus.Counter. Counters can only increase in value.
type Counter interface {
	// Inc adds one to the counter
	Inc()
	// Add adds the given value to the counter. It panics if the value is <
	// 0.
	Add(float64)
}

// Histogram wraps prometheus.Histogram. Histograms record observations of events and discretize
// them into preconfigured buckets.
type Histogram interface {
	// Observe adds a sample observation to the histogram
	Observe(float64)
}

// Client is a sink for metrics.
type Client interface {
	GetGauge(name string, labels map[string]string) Gauge
	GetCounter(name string, labels map[string]string) Counter
	GetHistogram(name string, labels map[string]string) Histogram
}

// NopClient is a metrics client that does nothing.
var NopClient Client = nopClient{}

type labelSet []string

type gaugeOpts struct {
	Labels labelSet
	Help   string
}

type counterOpts struct {
	Labels labelSet
	Help   string
}

type histogramOpts struct {
	Labels  labelSet
	Help    string
	Buckets []float64
}

type contextKey struct{}

// WithClient returns a context that emits metrics to the provided
// Client.
func WithClient(ctx context.Context, client Client) context.Context {
	if client == nil {
		return ctx
	}
	return context.WithValue(ctx, contextKey{}, client)
}

// On returns true if there is a current Client associated with the
// provided context.
func On(ctx context.Context) bool {
	_, ok := ctx.Value(contextKey{}).(Client)
	return ok
}

// ClientFrom returns the Client associated with the provided context,
// or NopClient.
func ClientFrom(ctx context.Context) Client {
	if c, ok := ctx.Value(contextKey{}).(Client); ok {
		return c
	}
	return NopClient
}

// mustCompleteLabels confirms that all of the labels in the given labelSet are satisfied by labels.
func mustCompleteLabels(labelSet labelSet, labels map[string]string) bool {
	if len(labels) != len(labelSet) {
		return false
	}
	for _, label := range labelSet {
		if _, ok := labels[label]; !ok {
			return false
		}
	}
	return true
}

func getGauge(ctx context.Context, name string, labels map[string]string) Gauge {
	if !On(ctx) {
		return nopGauge{}
	}
	opts, ok := Gauges[name]
	if !ok {
		panic(fmt.Sprintf("attempted to get undeclared gauge %s", name))
	}
	if !mustCompleteLabels(opts.Labels, labels) {
		panic(fmt.Sprintf("attempted to get gauge %s with invalid labels, expected %v but got %v",
			name, opts.Labels, labels))
	}
	return ClientFrom(ctx).GetGauge(name, labels)
}

func getCounter(ctx context.Context, name string, labels map[string]string) Counter {
	if !On(ctx) {
		return nopCounter{}
	}
	opts, ok := Counters[name]
	if !ok {
		panic(fmt.Sprintf("attempted to get undeclared counter %s", name))
	}
	if !mustCompleteLabels(opts.Labels, labels) {
		panic(fmt.Sprintf("attempted to set counter %s with invalid labels, expected %v but got %v",
			name, opts.Labels, labels))
	}
	return ClientFrom(ctx).GetCounter(name, labels)
}

func getHistogram(ctx context.Context, name string, labels map[string]string) Histogram {
	if !On(ctx) {
		return nopHistogram{}
	}
	opts, ok := Histograms[name]
	if !ok {
		panic(fmt.Sprintf("attempted to get undeclared histogram %s", name))
	}
	if !mustCompleteLabels(opts.Labels, labels) {
		panic(fmt.Sprintf("attempted to set histogram %s with invalid labels, expected %v but got %v",
			name, opts.Labels, labels))
	}
	return ClientFrom(ctx).GetHistogram(name, labels)
}

type nopGauge struct{}

func (nopGauge) Set(float64) {}
func (nopGauge) Inc()        {}
func (nopGauge) Dec()        {}
func (nopGauge) Add(float64) {}
func (nopGauge) Sub(float64) {}

type nopCounter struct{}

func (nopCounter) Inc()        {}
func (nopCounter) Add(float64) {}

type nopHistogram struct{}

func (nopHistogram) Observe(float64) {}

type nopClient struct{}

func (nopClient) GetGauge(string, map[string]string) Gauge         { return nopGauge{} }
func (nopClient) GetCounter(string, map[string]string) Counter     { return nopCounter{} }
func (nopClient) GetHistogram(string, map[string]string) Histogram { return nopHistogram{} }
