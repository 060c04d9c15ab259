// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package local implements an in-process remote.Executor. Tasks run on
// goroutines, bounded by a fixed number of slots; each actor runs on
// its own goroutine and serves calls from a bounded mailbox.
package local

import (
	"context"
	"encoding/json"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/grailbio/base/digest"
	"github.com/grailbio/base/limiter"
	"github.com/grailbio/remote"
	"github.com/grailbio/remote/errors"
	"github.com/grailbio/remote/log"
	"github.com/grailbio/remote/metrics"
	"github.com/grailbio/remote/trace"
	"github.com/grailbio/remote/wg"
)

// DefaultMailbox is the default number of calls that may be queued
// on an actor.
const DefaultMailbox = 1024

var errDead = errors.New("executor is dead")

// Executor is an in-process implementation of remote.Executor.
//
// Tasks run concurrently, at most Concurrency at a time. A task
// that blocks waiting on a result gives up its slot while waiting,
// so that nested remote calls make progress regardless of
// Concurrency. Actors do not occupy task slots.
//
// Objects produced by tasks and calls are retained for the lifetime
// of the executor.
type Executor struct {
	// Concurrency is the number of tasks that may run at once. It
	// defaults to runtime.NumCPU().
	Concurrency int
	// Mailbox is the number of calls that may be queued on a single
	// actor. Calls submitted to an actor with a full mailbox fail
	// with errors.Temporary. It defaults to DefaultMailbox.
	Mailbox int
	// Log is this executor's logger where operational status is
	// printed.
	Log *log.Logger
	// Metrics is the client to which the executor reports. If nil,
	// the executor does not report metrics.
	Metrics metrics.Client

	limiter *limiter.Limiter
	// The executor's context. This is used to propagate
	// cancellation to tasks and actors.
	ctx    context.Context
	cancel context.CancelFunc

	// active counts in-flight tasks and calls.
	active wg.WaitGroup

	mu      sync.Mutex
	dead    bool
	objects map[digest.Digest]*object
	actors  map[string]*actor
}

// object is the eventual result of a task or call.
type object struct {
	done   chan struct{}
	result remote.Result
}

// Start initializes the executor. It must be called before the
// executor is used.
func (e *Executor) Start() error {
	if e.Concurrency <= 0 {
		e.Concurrency = runtime.NumCPU()
	}
	if e.Mailbox <= 0 {
		e.Mailbox = DefaultMailbox
	}
	e.limiter = limiter.New()
	e.limiter.Release(e.Concurrency)
	e.ctx, e.cancel = context.WithCancel(context.Background())
	if e.Metrics != nil {
		e.ctx = metrics.WithClient(e.ctx, e.Metrics)
	}
	e.ctx = remote.WithExecutor(e.ctx, e)
	e.objects = make(map[digest.Digest]*object)
	e.actors = make(map[string]*actor)
	e.active.Idle()
	return nil
}

// Stop kills all of the executor's actors and cancels running
// tasks. Subsequent submissions fail with errors.Unavailable.
func (e *Executor) Stop() {
	e.mu.Lock()
	if e.dead {
		e.mu.Unlock()
		return
	}
	e.dead = true
	actors := make([]*actor, 0, len(e.actors))
	for _, a := range e.actors {
		actors = append(actors, a)
	}
	e.mu.Unlock()
	for _, a := range actors {
		a.kill()
	}
	e.cancel()
}

// Submit implements remote.Executor.
func (e *Executor) Submit(ctx context.Context, task remote.TaskSpec) (digest.Digest, error) {
	f, err := remote.Lookup(task.Func)
	if err != nil {
		return digest.Digest{}, errors.E("submit", task.Func, err)
	}
	id := remote.NewObjectID()
	obj, err := e.newObject(id)
	if err != nil {
		return digest.Digest{}, errors.E("submit", task.Func, err)
	}
	e.active.Add(1)
	metrics.GetTasksSubmittedCountCounter(e.ctx, f.Name()).Inc()
	metrics.GetCallsInflightGauge(e.ctx).Inc()
	e.Log.Debugf("submit task %s %s", id.Short(), f.Name())
	go e.runTask(trace.Detach(ctx, e.ctx), id, f, task.Args, obj)
	return id, nil
}

func (e *Executor) runTask(ctx context.Context, id digest.Digest, f *remote.FuncValue, args []remote.Arg, obj *object) {
	defer e.active.Done()
	start := time.Now()
	ctx, done := trace.Start(ctx, trace.Task, id, f.Name())
	defer done()
	var (
		value json.RawMessage
		err   error
	)
	if vals, rerr := remote.Resolve(ctx, e, args); rerr != nil {
		err = rerr
	} else if err = e.limiter.Acquire(ctx, 1); err == nil {
		s := &slot{e: e, held: true}
		value, err = f.Invoke(withSlot(ctx, s), vals)
		s.done()
	}
	if err != nil {
		err = errors.E("task", id, err)
		trace.Error(ctx, err)
		e.Log.Debugf("task %s %s failed: %v", id.Short(), f.Name(), err)
	}
	e.complete(obj, value, err)
	metrics.GetTasksCompletedCountCounter(e.ctx, f.Name(), status(err)).Inc()
	metrics.GetCallsInflightGauge(e.ctx).Dec()
	metrics.GetCallLatencySecondsHistogram(e.ctx, "task").Observe(time.Since(start).Seconds())
}

// Result implements remote.Executor. If called from within a task
// running on this executor, the task's slot is released while
// waiting.
func (e *Executor) Result(ctx context.Context, id digest.Digest) (remote.Result, error) {
	e.mu.Lock()
	obj := e.objects[id]
	e.mu.Unlock()
	if obj == nil {
		return remote.Result{}, errors.E("result", id, errors.NotExist, errors.New("no such object"))
	}
	select {
	case <-obj.done:
		return obj.result, nil
	default:
	}
	if s := slotFrom(ctx, e); s != nil {
		s.wait()
		defer s.resume(ctx)
	}
	ctx, done := trace.Start(ctx, trace.Wait, id, "object")
	defer done()
	select {
	case <-obj.done:
		return obj.result, nil
	case <-ctx.Done():
		return remote.Result{}, errors.E("result", id, ctx.Err())
	}
}

// IdleFor tells whether the executor has had no tasks or calls in
// flight for at least the given duration.
func (e *Executor) IdleFor(d time.Duration) bool {
	idle := e.active.Idle()
	return idle > 0 && idle >= d
}

// Drain waits until no tasks or calls are in flight.
func (e *Executor) Drain(ctx context.Context) error {
	return e.active.Wait(ctx)
}

func (e *Executor) newObject(id digest.Digest) (*object, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dead {
		return nil, errors.E(errors.Unavailable, errDead)
	}
	obj := &object{done: make(chan struct{})}
	e.objects[id] = obj
	return obj, nil
}

func (e *Executor) complete(obj *object, value json.RawMessage, err error) {
	if err != nil {
		obj.result.Err = errors.Recover(err)
	} else {
		obj.result.Value = value
	}
	close(obj.done)
}

// Inspect implements remote.Executor.
func (e *Executor) Inspect(ctx context.Context, id string) (remote.ActorInspect, error) {
	a, err := e.actor(id)
	if err != nil {
		return remote.ActorInspect{}, errors.E("inspect", id, err)
	}
	return a.inspect(), nil
}

// Actors implements remote.Executor. Actors are returned in the
// order they were spawned.
func (e *Executor) Actors(ctx context.Context) ([]remote.ActorInspect, error) {
	e.mu.Lock()
	actors := make([]*actor, 0, len(e.actors))
	for _, a := range e.actors {
		actors = append(actors, a)
	}
	e.mu.Unlock()
	sort.Slice(actors, func(i, j int) bool { return actors[i].seq < actors[j].seq })
	inspects := make([]remote.ActorInspect, len(actors))
	for i, a := range actors {
		inspects[i] = a.inspect()
	}
	return inspects, nil
}

func (e *Executor) actor(id string) (*actor, error) {
	e.mu.Lock()
	a := e.actors[id]
	e.mu.Unlock()
	if a == nil {
		return nil, errors.E(errors.NotExist, errors.New("no such actor"))
	}
	return a, nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
