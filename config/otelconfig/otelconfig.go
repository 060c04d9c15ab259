// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package otelconfig defines configuration providers named "otlp"
// and "otlpgrpc" for the tracing key. Spans are exported over
// OTLP/HTTP and OTLP/gRPC respectively.
package otelconfig

import (
	"context"

	"github.com/grailbio/remote/config"
	"github.com/grailbio/remote/trace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Service is the service name attached to exported spans, unless
// the "service" key is set.
const Service = "remote"

func init() {
	config.Register(config.Tracing, "otlp", "endpoint",
		"export spans over OTLP/HTTP to endpoint (default: from OTEL_EXPORTER_OTLP_ENDPOINT)",
		func(cfg config.Config, arg string) (config.Config, error) {
			return &otlp{cfg, arg, trace.HTTPExporter}, nil
		},
	)
	config.Register(config.Tracing, "otlpgrpc", "endpoint",
		"export spans over OTLP/gRPC to endpoint (default: from OTEL_EXPORTER_OTLP_ENDPOINT)",
		func(cfg config.Config, arg string) (config.Config, error) {
			return &otlp{cfg, arg, trace.GRPCExporter}, nil
		},
	)
}

type otlp struct {
	config.Config
	endpoint string
	exporter func(context.Context, string) (sdktrace.SpanExporter, error)
}

// Tracing installs a global OTLP tracer provider.
func (c *otlp) Tracing(ctx context.Context) (func(context.Context) error, error) {
	service := Service
	if s, ok := c.Value("service").(string); ok && s != "" {
		service = s
	}
	exporter, err := c.exporter(ctx, c.endpoint)
	if err != nil {
		return nil, err
	}
	return trace.Init(ctx, service, exporter)
}
