// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package wg

import (
	"context"
	"testing"
	"time"
)

const N = 16

func testInterlocked(t *testing.T, w1, w2 *WaitGroup) {
	w1.Add(N)
	w2.Add(N)
	done := make(chan bool)
	for i := 0; i < N; i++ {
		go func(i int) {
			w1.Done()
			<-w2.C()
			done <- true
		}(i)
	}
	<-w1.C()
	for i := 0; i < N; i++ {
		select {
		case <-done:
			t.Fatal("WaitGroup released too soon")
		default:
		}
		w2.Done()
	}
	for i := 0; i < N; i++ {
		<-done
	}
}

func TestWaitGroup(t *testing.T) {
	var w1, w2 WaitGroup
	testInterlocked(t, &w1, &w2)
}

func TestWait(t *testing.T) {
	var w WaitGroup
	w.Add(1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if got, want := w.Wait(ctx), context.DeadlineExceeded; got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
	w.Done()
	if err := w.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestIdle(t *testing.T) {
	var w WaitGroup
	w.Add(1)
	if got, want := w.Idle(), time.Duration(0); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := w.N(), 1; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	w.Done()
	time.Sleep(5 * time.Millisecond)
	if got, want := w.Idle(), 5*time.Millisecond; got < want {
		t.Errorf("got %v, want at least %v", got, want)
	}
	w.Add(1)
	if w.Idle() != 0 {
		t.Error("busy group reported idle")
	}
	w.Done()
}
