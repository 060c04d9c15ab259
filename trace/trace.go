// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package trace provides tracing for runtime events. Following
// Dapper [1], events are named by spans, and spans form a tree: a
// driver's call to an actor method is the parent of the span in which
// the actor executes the method, which in turn parents any task the
// method submits.
//
// Spans are recorded through OpenTelemetry's global tracer provider.
// Without a configured provider (see Init) all operations are no-ops.
// Span context is propagated through Go's context mechanism, and
// across processes by the HTTP transport (see package client).
//
// [1] https://research.google.com/pubs/pub36356.html
package trace

import (
	"context"
	"fmt"

	"github.com/grailbio/base/digest"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const instrumentation = "github.com/grailbio/remote"

// Kind is the type of spans.
type Kind int

const (
	// Task is the span type for a task execution.
	Task Kind = iota
	// Spawn is the span type for actor construction.
	Spawn
	// Call is the span type for a single actor method call.
	Call
	// Wait is the span type for waiting on an object.
	Wait
)

func (k Kind) String() string {
	switch k {
	case Task:
		return "task"
	case Spawn:
		return "spawn"
	case Call:
		return "call"
	case Wait:
		return "wait"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Start traces the beginning of a span of the indicated kind, for
// the object or actor with the given ID. Start returns a new context
// for this span; new spans become children of this span. The
// returned function ends the span.
func Start(ctx context.Context, kind Kind, id digest.Digest, name string) (outctx context.Context, done func()) {
	attrs := []attribute.KeyValue{attribute.String("remote.kind", kind.String())}
	if !id.IsZero() {
		attrs = append(attrs, attribute.String("remote.id", id.Short()))
	}
	ctx, span := otel.Tracer(instrumentation).Start(ctx, kind.String()+" "+name,
		oteltrace.WithAttributes(attrs...))
	return ctx, func() { span.End() }
}

// On tells whether the span of the provided context is being
// recorded.
func On(ctx context.Context) bool {
	return oteltrace.SpanFromContext(ctx).IsRecording()
}

// Note attaches the provided key and value to the span of the
// provided context.
func Note(ctx context.Context, key string, value interface{}) {
	span := oteltrace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.SetAttributes(attribute.String(key, fmt.Sprint(value)))
}

// Error marks the span of the provided context as failed with err.
func Error(ctx context.Context, err error) {
	span := oteltrace.SpanFromContext(ctx)
	if err == nil || !span.IsRecording() {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// Detach returns a context derived from base that carries the span
// of ctx. Work that outlives the submitting request, such as a task
// submitted to an executor, runs under base but is traced as a child
// of the submission.
func Detach(ctx, base context.Context) context.Context {
	return oteltrace.ContextWithSpan(base, oteltrace.SpanFromContext(ctx))
}
