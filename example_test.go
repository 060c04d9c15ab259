// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package remote_test

import (
	"context"
	"fmt"
	"log"

	"github.com/grailbio/remote"
	"github.com/grailbio/remote/local"
)

var (
	exampleSquare = remote.Func("example.square", func(i int) int { return i * i })
	exampleTally  = remote.Class("example.Tally", func() *tally { return new(tally) })
)

type tally struct{ total int }

// Add adds the square of i to the tally, computing it remotely.
func (t *tally) Add(ctx context.Context, i int) (int, error) {
	var sq int
	if err := exampleSquare.Remote(ctx, i).Get(ctx, &sq); err != nil {
		return 0, err
	}
	t.total += sq
	return t.total, nil
}

func Example() {
	e := &local.Executor{}
	if err := e.Start(); err != nil {
		log.Fatal(err)
	}
	defer e.Stop()
	ctx := remote.WithExecutor(context.Background(), e)

	var n int
	if err := exampleSquare.Remote(ctx, 7).Get(ctx, &n); err != nil {
		log.Fatal(err)
	}
	fmt.Println(n)

	actor, err := exampleTally.Remote(ctx)
	if err != nil {
		log.Fatal(err)
	}
	actor.Call(ctx, "Add", 1)
	actor.Call(ctx, "Add", exampleSquare.Remote(ctx, 2))
	if err := actor.Call(ctx, "Add", 3).Get(ctx, &n); err != nil {
		log.Fatal(err)
	}
	fmt.Println(n)
	// Output:
	// 49
	// 26
}
