// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package local

import (
	"context"
	"fmt"
	"math/big"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/grailbio/remote"
	"github.com/grailbio/remote/errors"
	"github.com/grailbio/remote/metrics/prometrics"
	"github.com/grailbio/testutil/expect"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
)

var (
	square = remote.Func("local.square", func(i *big.Int) *big.Int {
		return new(big.Int).Mul(i, i)
	})
	sum = remote.Func("local.sum", func(a, b *big.Int) *big.Int {
		return new(big.Int).Add(a, b)
	})
	// nested squares i by submitting a task and waiting for it.
	nested = remote.Func("local.nested", func(ctx context.Context, i *big.Int) (*big.Int, error) {
		var n big.Int
		err := square.Remote(ctx, i).Get(ctx, &n)
		return &n, err
	})
	fail = remote.Func("local.fail", func(msg string) error {
		return errors.New(msg)
	})
	crash = remote.Func("local.crash", func() int {
		panic("crash")
	})

	counterClass = remote.Class("local.Counter", newCounter)

	// gate blocks calls to counter.Block until closed.
	gate chan struct{}
	// started is signaled when counter.Block begins.
	started chan struct{}
)

type counter struct {
	n int
}

func newCounter(n int) (*counter, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative start %d", n)
	}
	return &counter{n: n}, nil
}

func (c *counter) Incr(d int) int {
	c.n += d
	return c.n
}

func (c *counter) Get() int { return c.n }

func (c *counter) Crash() int {
	panic("counter crash")
}

func (c *counter) Block(ctx context.Context) error {
	select {
	case started <- struct{}{}:
	default:
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func newExecutor(t *testing.T, concurrency int) (*Executor, context.Context) {
	t.Helper()
	e := &Executor{Concurrency: concurrency}
	if err := e.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(e.Stop)
	return e, remote.WithExecutor(context.Background(), e)
}

// waitMailbox waits until the actor's mailbox holds n calls.
func waitMailbox(t *testing.T, e *Executor, id string, n int) {
	t.Helper()
	a, err := e.actor(id)
	if err != nil {
		t.Fatal(err)
	}
	for len(a.mailbox) != n {
		time.Sleep(time.Millisecond)
	}
}

func TestTask(t *testing.T) {
	_, ctx := newExecutor(t, 2)
	var n big.Int
	if err := square.Remote(ctx, big.NewInt(3)).Get(ctx, &n); err != nil {
		t.Fatal(err)
	}
	if got, want := n.String(), "9"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestBigInt(t *testing.T) {
	_, ctx := newExecutor(t, 2)
	i, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	var n big.Int
	if err := square.Remote(ctx, i).Get(ctx, &n); err != nil {
		t.Fatal(err)
	}
	if got, want := n.String(), "15241578753238836750495351562536198787501905199875019052100"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestRefArgs(t *testing.T) {
	_, ctx := newExecutor(t, 4)
	a := square.Remote(ctx, big.NewInt(3))
	b := square.Remote(ctx, big.NewInt(4))
	var n big.Int
	if err := sum.Remote(ctx, a, b).Get(ctx, &n); err != nil {
		t.Fatal(err)
	}
	if got, want := n.String(), "25"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestNestedSingleSlot(t *testing.T) {
	_, ctx := newExecutor(t, 1)
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	refs := make([]*remote.Ref, 8)
	for i := range refs {
		refs[i] = nested.Remote(ctx, big.NewInt(int64(i)))
	}
	for i, ref := range refs {
		var n big.Int
		if err := ref.Get(ctx, &n); err != nil {
			t.Fatal(err)
		}
		if got, want := n.Int64(), int64(i*i); got != want {
			t.Errorf("got %v, want %v", got, want)
		}
	}
}

func TestTaskErrors(t *testing.T) {
	_, ctx := newExecutor(t, 2)
	err := fail.Remote(ctx, "boom").Get(ctx, nil)
	if !errors.Is(errors.Task, err) {
		t.Errorf("expected task error, got %v", err)
	}
	expect.HasSubstr(t, err.Error(), "boom")

	err = crash.Remote(ctx).Get(ctx, nil)
	if !errors.Is(errors.Task, err) {
		t.Errorf("expected task error, got %v", err)
	}
	expect.HasSubstr(t, err.Error(), "panic: crash")

	// A failed dependency fails the dependent task.
	var n big.Int
	err = sum.Remote(ctx, big.NewInt(1), crash.Remote(ctx)).Get(ctx, &n)
	if !errors.Is(errors.Task, err) {
		t.Errorf("expected task error, got %v", err)
	}
	expect.HasSubstr(t, err.Error(), "panic: crash")

	// Arguments that do not decode are invalid.
	err = square.Remote(ctx, "three").Get(ctx, &n)
	if !errors.Is(errors.Invalid, err) {
		t.Errorf("expected invalid error, got %v", err)
	}
}

func TestSubmitErrors(t *testing.T) {
	e, ctx := newExecutor(t, 1)
	if _, err := e.Submit(ctx, remote.TaskSpec{Func: "local.nonexistent"}); !errors.Is(errors.NotExist, err) {
		t.Errorf("expected NotExist, got %v", err)
	}
	err := square.Remote(ctx, 1, 2).Get(ctx, nil)
	if !errors.Is(errors.Invalid, err) {
		t.Errorf("expected Invalid, got %v", err)
	}
	if _, err := e.Result(ctx, remote.NewObjectID()); !errors.Is(errors.NotExist, err) {
		t.Errorf("expected NotExist, got %v", err)
	}
	err = square.Remote(context.Background(), 1).Get(ctx, nil)
	if !errors.Is(errors.NotExist, err) {
		t.Errorf("expected NotExist without executor, got %v", err)
	}
}

func TestActorOrder(t *testing.T) {
	e, ctx := newExecutor(t, 2)
	actor, err := counterClass.Remote(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	const N = 100
	refs := make([]*remote.Ref, N)
	for i := range refs {
		refs[i] = actor.Call(ctx, "Incr", 1)
	}
	for i, ref := range refs {
		var n int
		if err := ref.Get(ctx, &n); err != nil {
			t.Fatal(err)
		}
		if got, want := n, 10+i+1; got != want {
			t.Errorf("got %v, want %v", got, want)
		}
	}
	inspect, err := e.Inspect(ctx, actor.ID())
	if err != nil {
		t.Fatal(err)
	}
	expect.EQ(t, inspect.Class, "local.Counter")
	expect.EQ(t, inspect.State, remote.ActorAlive)
	expect.EQ(t, inspect.Calls, N)
	expect.EQ(t, inspect.Pending, 0)
}

func TestActorRefArg(t *testing.T) {
	_, ctx := newExecutor(t, 2)
	actor, err := counterClass.Remote(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	var n int
	if err := actor.Call(ctx, "Incr", actor.Call(ctx, "Incr", 2)).Get(ctx, &n); err != nil {
		t.Fatal(err)
	}
	if got, want := n, 4; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestActorPanic(t *testing.T) {
	_, ctx := newExecutor(t, 2)
	actor, err := counterClass.Remote(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := actor.Call(ctx, "Crash").Get(ctx, nil); !errors.Is(errors.Task, err) {
		t.Errorf("expected task error, got %v", err)
	}
	var n int
	if err := actor.Call(ctx, "Get").Get(ctx, &n); err != nil {
		t.Fatal(err)
	}
	if got, want := n, 1; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestActorErrors(t *testing.T) {
	e, ctx := newExecutor(t, 2)
	if _, err := counterClass.Remote(ctx, -1); !errors.Is(errors.Task, err) {
		t.Errorf("expected task error, got %v", err)
	}
	if _, err := e.Spawn(ctx, remote.ActorSpec{Class: "local.Nonexistent"}); !errors.Is(errors.NotExist, err) {
		t.Errorf("expected NotExist, got %v", err)
	}
	actor, err := counterClass.Remote(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := actor.Call(ctx, "Decr", 1).Get(ctx, nil); !errors.Is(errors.NotExist, err) {
		t.Errorf("expected NotExist, got %v", err)
	}
	if err := actor.Call(ctx, "Incr").Get(ctx, nil); !errors.Is(errors.Invalid, err) {
		t.Errorf("expected Invalid, got %v", err)
	}
	if _, err := e.Call(ctx, "nonexistent", remote.CallSpec{Method: "Get"}); !errors.Is(errors.NotExist, err) {
		t.Errorf("expected NotExist, got %v", err)
	}
}

func TestKill(t *testing.T) {
	gate = make(chan struct{})
	started = make(chan struct{}, 1)
	e, ctx := newExecutor(t, 2)
	actor, err := counterClass.Remote(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	blocked := actor.Call(ctx, "Block")
	queued := actor.Call(ctx, "Incr", 1)
	<-started
	if err := actor.Kill(ctx); err != nil {
		t.Fatal(err)
	}
	if err := blocked.Get(ctx, nil); !errors.Is(errors.Task, err) {
		t.Errorf("expected task error, got %v", err)
	}
	if err := queued.Get(ctx, nil); !errors.Is(errors.Canceled, err) {
		t.Errorf("expected Canceled, got %v", err)
	}
	if err := actor.Call(ctx, "Get").Get(ctx, nil); !errors.Is(errors.NotExist, err) {
		t.Errorf("expected NotExist, got %v", err)
	}
	// Killing twice is fine.
	if err := actor.Kill(ctx); err != nil {
		t.Fatal(err)
	}
	inspect, err := actor.Inspect(ctx)
	if err != nil {
		t.Fatal(err)
	}
	expect.EQ(t, inspect.State, remote.ActorDead)
	expect.EQ(t, inspect.Calls, 2)
	if err := e.Drain(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestMailboxFull(t *testing.T) {
	gate = make(chan struct{})
	e := &Executor{Mailbox: 1}
	if err := e.Start(); err != nil {
		t.Fatal(err)
	}
	defer e.Stop()
	ctx := remote.WithExecutor(context.Background(), e)
	actor, err := counterClass.Remote(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	blocked := actor.Call(ctx, "Block")
	waitMailbox(t, e, actor.ID(), 0)
	queued := actor.Call(ctx, "Incr", 1)
	if err := queued.Err(); err != nil {
		t.Fatal(err)
	}
	if err := actor.Call(ctx, "Incr", 1).Err(); !errors.Is(errors.Temporary, err) {
		t.Errorf("expected Temporary, got %v", err)
	}
	close(gate)
	if err := blocked.Get(ctx, nil); err != nil {
		t.Fatal(err)
	}
	var n int
	if err := queued.Get(ctx, &n); err != nil {
		t.Fatal(err)
	}
	expect.EQ(t, n, 1)
}

func TestIdleDrain(t *testing.T) {
	gate = make(chan struct{})
	e, ctx := newExecutor(t, 2)
	actor, err := counterClass.Remote(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	ref := actor.Call(ctx, "Block")
	if e.IdleFor(0) {
		t.Error("busy executor reported idle")
	}
	dctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	if err := e.Drain(dctx); err != context.DeadlineExceeded {
		t.Errorf("got %v, want %v", err, context.DeadlineExceeded)
	}
	cancel()
	close(gate)
	if err := e.Drain(ctx); err != nil {
		t.Fatal(err)
	}
	if err := ref.Get(ctx, nil); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	if !e.IdleFor(5 * time.Millisecond) {
		t.Error("drained executor not idle")
	}
}

func TestStop(t *testing.T) {
	e, ctx := newExecutor(t, 1)
	actor, err := counterClass.Remote(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	e.Stop()
	if err := square.Remote(ctx, 2).Err(); !errors.Is(errors.Unavailable, err) {
		t.Errorf("expected Unavailable, got %v", err)
	}
	if _, err := counterClass.Remote(ctx, 0); !errors.Is(errors.Unavailable, err) {
		t.Errorf("expected Unavailable, got %v", err)
	}
	actors, err := e.Actors(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := len(actors), 1; got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
	expect.EQ(t, actors[0].ID, actor.ID())
	expect.EQ(t, actors[0].State, remote.ActorDead)
}

func TestMetrics(t *testing.T) {
	client, err := prometrics.New("test")
	if err != nil {
		t.Fatal(err)
	}
	e := &Executor{Concurrency: 2, Metrics: client}
	if err := e.Start(); err != nil {
		t.Fatal(err)
	}
	defer e.Stop()
	ctx := remote.WithExecutor(context.Background(), e)
	for i := 0; i < 3; i++ {
		if err := square.Remote(ctx, i).Get(ctx, nil); err != nil {
			t.Fatal(err)
		}
	}
	actor, err := counterClass.Remote(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := actor.Call(ctx, "Incr", 1).Get(ctx, nil); err != nil {
		t.Fatal(err)
	}
	if err := e.Drain(ctx); err != nil {
		t.Fatal(err)
	}
	w := httptest.NewRecorder()
	client.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	body := w.Body.String()
	for _, metric := range []string{
		`test_tasks_submitted_count{func="local.square"} 3`,
		`test_tasks_completed_count{func="local.square",status="ok"} 3`,
		`test_actors_spawned_count{class="local.Counter"} 1`,
		`test_actor_calls_count{class="local.Counter",method="Incr",status="ok"} 1`,
		`test_actors_live 1`,
		`test_calls_inflight 0`,
	} {
		if !strings.Contains(body, metric) {
			t.Errorf("missing %s in exposition:\n%s", metric, body)
		}
	}
	n, err := promtestutil.GatherAndCount(client.Registry(), "test_call_latency_seconds")
	if err != nil {
		t.Fatal(err)
	}
	expect.EQ(t, n, 2)
}
