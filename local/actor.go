// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package local

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/grailbio/base/digest"
	"github.com/grailbio/remote"
	"github.com/grailbio/remote/errors"
	"github.com/grailbio/remote/metrics"
	"github.com/grailbio/remote/trace"
)

var (
	errKilled      = errors.New("actor was killed")
	errActorDead   = errors.New("actor is dead")
	errMailboxFull = errors.New("mailbox full")
)

// actor is a live instance of an actor class. Calls are delivered
// through the mailbox and served in order by a single goroutine.
type actor struct {
	id      string
	seq     int
	inst    *remote.Instance
	e       *Executor
	created time.Time

	// ctx is canceled when the actor is killed.
	ctx    context.Context
	cancel context.CancelFunc

	mailbox chan *call

	mu      sync.Mutex
	dead    bool
	pending int
	calls   int
}

type call struct {
	ctx       context.Context
	id        digest.Digest
	spec      remote.CallSpec
	obj       *object
	submitted time.Time
}

// Spawn implements remote.Executor. The actor is constructed before
// Spawn returns, so that construction errors are returned directly.
func (e *Executor) Spawn(ctx context.Context, spec remote.ActorSpec) (string, error) {
	class, err := remote.LookupClass(spec.Class)
	if err != nil {
		return "", errors.E("spawn", spec.Class, err)
	}
	e.mu.Lock()
	dead := e.dead
	e.mu.Unlock()
	if dead {
		return "", errors.E("spawn", spec.Class, errors.Unavailable, errDead)
	}
	id := uuid.New().String()
	actx, cancel := context.WithCancel(e.ctx)
	ctx, done := trace.Start(trace.Detach(ctx, actx), trace.Spawn, digest.Digest{}, class.Name())
	defer done()
	trace.Note(ctx, "remote.actor", id)
	args, err := remote.Resolve(ctx, e, spec.Args)
	if err != nil {
		cancel()
		return "", errors.E("spawn", spec.Class, err)
	}
	inst, err := class.New(ctx, args)
	if err != nil {
		cancel()
		trace.Error(ctx, err)
		return "", errors.E("spawn", spec.Class, err)
	}
	a := &actor{
		id:      id,
		inst:    inst,
		e:       e,
		ctx:     actx,
		cancel:  cancel,
		mailbox: make(chan *call, e.Mailbox),
		created: time.Now(),
	}
	e.mu.Lock()
	if e.dead {
		e.mu.Unlock()
		cancel()
		return "", errors.E("spawn", spec.Class, errors.Unavailable, errDead)
	}
	a.seq = len(e.actors)
	e.actors[id] = a
	e.mu.Unlock()
	metrics.GetActorsSpawnedCountCounter(e.ctx, class.Name()).Inc()
	metrics.GetActorsLiveGauge(e.ctx).Inc()
	e.Log.Debugf("spawn actor %s %s", id, class.Name())
	go a.serve()
	return id, nil
}

// Call implements remote.Executor.
func (e *Executor) Call(ctx context.Context, id string, spec remote.CallSpec) (digest.Digest, error) {
	a, err := e.actor(id)
	if err != nil {
		return digest.Digest{}, errors.E("call", id, spec.Method, err)
	}
	oid := remote.NewObjectID()
	obj, err := e.newObject(oid)
	if err != nil {
		return digest.Digest{}, errors.E("call", id, spec.Method, err)
	}
	c := &call{
		ctx:       ctx,
		id:        oid,
		spec:      spec,
		obj:       obj,
		submitted: time.Now(),
	}
	e.active.Add(1)
	metrics.GetCallsInflightGauge(e.ctx).Inc()
	// Enqueue under the actor's lock so that no call is accepted
	// after the actor is killed.
	a.mu.Lock()
	if a.dead {
		err = errors.E(errors.NotExist, errActorDead)
	} else {
		select {
		case a.mailbox <- c:
			a.pending++
		default:
			err = errors.E(errors.Temporary, errMailboxFull)
		}
	}
	a.mu.Unlock()
	if err != nil {
		e.active.Done()
		metrics.GetCallsInflightGauge(e.ctx).Dec()
		e.complete(obj, nil, err)
		return digest.Digest{}, errors.E("call", id, spec.Method, err)
	}
	e.Log.Debugf("call %s %s.%s -> %s", id, a.inst.Class().Name(), spec.Method, oid.Short())
	return oid, nil
}

// Kill implements remote.Executor. Killing a dead actor is a no-op.
func (e *Executor) Kill(ctx context.Context, id string) error {
	a, err := e.actor(id)
	if err != nil {
		return errors.E("kill", id, err)
	}
	a.kill()
	e.Log.Debugf("kill actor %s", id)
	return nil
}

func (a *actor) kill() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.dead {
		return
	}
	a.dead = true
	a.cancel()
}

// serve runs the actor's calls in order until the actor is killed,
// then fails the calls remaining in the mailbox.
func (a *actor) serve() {
	defer metrics.GetActorsLiveGauge(a.e.ctx).Dec()
	for {
		select {
		case c := <-a.mailbox:
			if a.ctx.Err() != nil {
				a.finish(c, nil, errors.E(errors.Canceled, errKilled))
				continue
			}
			value, err := a.invoke(c)
			a.finish(c, value, err)
		case <-a.ctx.Done():
			for {
				select {
				case c := <-a.mailbox:
					a.finish(c, nil, errors.E(errors.Canceled, errKilled))
				default:
					return
				}
			}
		}
	}
}

func (a *actor) invoke(c *call) (value json.RawMessage, err error) {
	name := a.inst.Class().Name() + "." + c.spec.Method
	ctx, done := trace.Start(trace.Detach(c.ctx, a.ctx), trace.Call, c.id, name)
	defer done()
	trace.Note(ctx, "remote.actor", a.id)
	args, err := remote.Resolve(ctx, a.e, c.spec.Args)
	if err != nil {
		trace.Error(ctx, err)
		return nil, err
	}
	value, err = a.inst.Invoke(ctx, c.spec.Method, args)
	trace.Error(ctx, err)
	return value, err
}

func (a *actor) finish(c *call, value json.RawMessage, err error) {
	class := a.inst.Class().Name()
	if err != nil {
		err = errors.E("call", c.id, err)
		a.e.Log.Debugf("call %s %s.%s failed: %v", c.id.Short(), class, c.spec.Method, err)
	}
	metrics.GetActorCallsCountCounter(a.e.ctx, class, c.spec.Method, status(err)).Inc()
	metrics.GetCallsInflightGauge(a.e.ctx).Dec()
	metrics.GetCallLatencySecondsHistogram(a.e.ctx, "call").Observe(time.Since(c.submitted).Seconds())
	a.mu.Lock()
	a.pending--
	a.calls++
	a.mu.Unlock()
	a.e.complete(c.obj, value, err)
	a.e.active.Done()
}

func (a *actor) inspect() remote.ActorInspect {
	a.mu.Lock()
	defer a.mu.Unlock()
	state := remote.ActorAlive
	if a.dead {
		state = remote.ActorDead
	}
	return remote.ActorInspect{
		ID:      a.id,
		Class:   a.inst.Class().Name(),
		State:   state,
		Pending: a.pending,
		Calls:   a.calls,
		Created: a.created,
	}
}
