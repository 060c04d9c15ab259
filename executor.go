// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/grailbio/base/digest"
	"github.com/grailbio/remote/errors"
)

// Arg is a single argument to a task, actor constructor, or actor
// method. Exactly one of Value and Ref is set: Value holds a JSON
// encoded argument; Ref names an object whose value is substituted
// for the argument once it is available.
type Arg struct {
	Value json.RawMessage `json:",omitempty"`
	Ref   string          `json:",omitempty"`
}

// TaskSpec describes the invocation of a registered function.
type TaskSpec struct {
	// Func is the name under which the function was registered.
	Func string
	// Args are the function's arguments, excluding any leading context.
	Args []Arg
}

// ActorSpec describes the construction of an actor.
type ActorSpec struct {
	// Class is the name under which the actor class was registered.
	Class string
	// Args are the arguments to the class constructor.
	Args []Arg
}

// CallSpec describes a method call on an actor.
type CallSpec struct {
	Method string
	Args   []Arg
}

// Result is the outcome of a task or actor method call. Err is set if
// the call failed; otherwise Value holds the JSON encoded result,
// which is null for calls that return no value.
type Result struct {
	Value json.RawMessage `json:",omitempty"`
	Err   *errors.Error   `json:",omitempty"`
}

// ActorState is the lifecycle state of an actor.
type ActorState string

const (
	// ActorAlive is the state of an actor that accepts calls.
	ActorAlive ActorState = "alive"
	// ActorDead is the state of an actor that has been killed.
	ActorDead ActorState = "dead"
)

// ActorInspect describes the current state of an actor.
type ActorInspect struct {
	ID    string
	Class string
	State ActorState
	// Pending is the number of calls queued or running.
	Pending int
	// Calls is the number of calls the actor has completed.
	Calls int
	// Created is the time the actor was spawned.
	Created time.Time
}

func (a ActorInspect) String() string {
	return fmt.Sprintf("actor %s (%s) %s pending:%d calls:%d", a.ID, a.Class, a.State, a.Pending, a.Calls)
}

// Executor is the interface implemented by runtimes that execute
// remote code. Submissions return immediately with the ID of the
// object that will hold the submission's result; Result blocks until
// that object is available.
//
// All of an executor's methods are safe to call concurrently.
type Executor interface {
	// Submit submits a task for asynchronous execution.
	Submit(ctx context.Context, task TaskSpec) (digest.Digest, error)

	// Spawn constructs a new actor and returns its ID. Construction
	// errors are reported by Spawn.
	Spawn(ctx context.Context, actor ActorSpec) (string, error)

	// Call enqueues a method call on the actor with the given ID.
	// Calls on an actor are executed one at a time, in the order
	// they were enqueued.
	Call(ctx context.Context, actor string, call CallSpec) (digest.Digest, error)

	// Result blocks until the object with the given ID is available
	// and returns it. A failed call is reported through Result.Err;
	// the returned error is reserved for failures to obtain the
	// result.
	Result(ctx context.Context, id digest.Digest) (Result, error)

	// Kill stops the actor with the given ID. Calls that are queued
	// but not yet running fail with errors.Canceled.
	Kill(ctx context.Context, actor string) error

	// Inspect returns the state of the actor with the given ID.
	Inspect(ctx context.Context, actor string) (ActorInspect, error)

	// Actors lists the actors known to the executor.
	Actors(ctx context.Context) ([]ActorInspect, error)
}

type executorKey struct{}

// WithExecutor returns a context that carries the provided executor.
// Remote submissions made with the returned context are handled by
// the executor.
func WithExecutor(ctx context.Context, e Executor) context.Context {
	return context.WithValue(ctx, executorKey{}, e)
}

// ExecutorFrom returns the executor carried by the context.
func ExecutorFrom(ctx context.Context) (Executor, error) {
	e, ok := ctx.Value(executorKey{}).(Executor)
	if !ok || e == nil {
		return nil, errors.E("executor", errors.NotExist, errors.New("no executor in context"))
	}
	return e, nil
}
