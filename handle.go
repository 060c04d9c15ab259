// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package remote

import (
	"context"

	"github.com/grailbio/remote/errors"
)

// An ActorHandle refers to a live actor. Handles are obtained by
// spawning actors with ClassValue.Remote.
type ActorHandle struct {
	exec  Executor
	class *ClassValue
	id    string
}

// ID returns the actor's ID.
func (a *ActorHandle) ID() string { return a.id }

// Class returns the actor's class.
func (a *ActorHandle) Class() *ClassValue { return a.class }

func (a *ActorHandle) String() string {
	return a.class.name + "(" + a.id + ")"
}

// Call submits a call of the named method to the actor and returns a
// reference to its result. The method's existence and arity are
// checked before submission; errors are returned by the Ref's Get
// method.
func (a *ActorHandle) Call(ctx context.Context, method string, args ...interface{}) *Ref {
	op := a.class.name + "." + method
	m, ok := a.class.methods[method]
	if !ok {
		return errRef(errors.E("call", op, errors.NotExist, errors.New("no such method")))
	}
	enc, err := m.sig.encode(args)
	if err != nil {
		return errRef(errors.E("call", op, err))
	}
	id, err := a.exec.Call(ctx, a.id, CallSpec{Method: method, Args: enc})
	if err != nil {
		return errRef(errors.E("call", op, err))
	}
	return &Ref{exec: a.exec, id: id}
}

// Kill stops the actor. Calls that have not yet started fail with
// errors.Canceled.
func (a *ActorHandle) Kill(ctx context.Context) error {
	if err := a.exec.Kill(ctx, a.id); err != nil {
		return errors.E("kill", a.String(), err)
	}
	return nil
}

// Inspect returns the actor's current state.
func (a *ActorHandle) Inspect(ctx context.Context) (ActorInspect, error) {
	return a.exec.Inspect(ctx, a.id)
}
