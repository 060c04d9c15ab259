// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package local

import (
	"context"
	"sync"
)

// A slot is a task's hold on one unit of its executor's limiter.
// While any of the task's goroutines waits on a result, the slot is
// released to other tasks.
type slot struct {
	e *Executor

	mu      sync.Mutex
	held    bool
	waiters int
}

type slotKey struct{}

func withSlot(ctx context.Context, s *slot) context.Context {
	return context.WithValue(ctx, slotKey{}, s)
}

// slotFrom returns the slot held in ctx on executor e, if any.
func slotFrom(ctx context.Context, e *Executor) *slot {
	s, _ := ctx.Value(slotKey{}).(*slot)
	if s == nil || s.e != e {
		return nil
	}
	return s
}

// wait releases the slot if this is the first waiter.
func (s *slot) wait() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waiters++
	if s.waiters == 1 && s.held {
		s.held = false
		s.e.limiter.Release(1)
	}
}

// resume reacquires the slot once the last waiter is done. If the
// context is canceled first, the task continues without a slot.
func (s *slot) resume(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waiters--
	if s.waiters > 0 || s.held {
		return
	}
	if err := s.e.limiter.Acquire(ctx, 1); err == nil {
		s.held = true
	}
}

// done releases the slot for good.
func (s *slot) done() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.held {
		s.held = false
		s.e.limiter.Release(1)
	}
}
