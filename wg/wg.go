// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package wg implements a channel-enabled WaitGroup that also keeps
// track of how long it has been idle. Executors use it to count
// in-flight work, so that a node can drain before exiting and shut
// itself down after a period of inactivity.
package wg

import (
	"context"
	"sync"
	"time"
)

// A WaitGroup waits for a collection of goroutines to finish. Add
// increments the number of outstanding goroutines and Done
// decrements it. C returns a channel that is closed when the count
// drops to zero, and Wait blocks on it.
//
// A WaitGroup is idle while its count is zero. The zero WaitGroup
// is idle from the first time it is observed.
//
// A WaitGroup must not be copied after first use.
type WaitGroup struct {
	mu    sync.Mutex
	n     int
	waitc chan struct{}
	since time.Time
}

// Add adds delta, which may be negative, to the WaitGroup counter. If
// the counter becomes zero, all goroutines blocked on Wait are
// released and the group becomes idle. If the counter goes negative,
// Add panics.
func (w *WaitGroup) Add(delta int) {
	w.mu.Lock()
	w.n += delta
	if w.n < 0 {
		panic("negative waitgroup count")
	}
	var c chan struct{}
	if w.n == 0 {
		c = w.waitc
		w.waitc = nil
		w.since = time.Now()
	}
	w.mu.Unlock()
	if c != nil {
		close(c)
	}
}

// Done decrements the WaitGroup counter.
func (w *WaitGroup) Done() {
	w.Add(-1)
}

// C returns a channel that is closed when the waitgroup count is 0.
func (w *WaitGroup) C() <-chan struct{} {
	w.mu.Lock()
	if w.n == 0 {
		w.mu.Unlock()
		c := make(chan struct{})
		close(c)
		return c
	}
	c := w.waitc
	if c == nil {
		c = make(chan struct{})
		w.waitc = c
	}
	w.mu.Unlock()
	return c
}

// Wait blocks until the waitgroup count is 0 or the context is done.
func (w *WaitGroup) Wait(ctx context.Context) error {
	select {
	case <-w.C():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// N returns the current count.
func (w *WaitGroup) N() int {
	w.mu.Lock()
	n := w.n
	w.mu.Unlock()
	return n
}

// Idle returns the duration for which the count has been 0, or 0 if
// the count is nonzero.
func (w *WaitGroup) Idle() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.n > 0 {
		return 0
	}
	if w.since.IsZero() {
		w.since = time.Now()
	}
	return time.Since(w.since)
}
