// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package squarer computes and labels squares remotely: a Squarer
// actor labels a number by submitting the Label function and waiting
// for its result.
package squarer

import (
	"context"
	"fmt"
	"math/big"

	"github.com/grailbio/remote"
	"github.com/grailbio/remote/errors"
	"github.com/grailbio/remote/log"
)

// Square returns i*i. Integers are unbounded, so Square never
// overflows.
func Square(i *big.Int) *big.Int {
	return new(big.Int).Mul(i, i)
}

// Label is the remote function that labels an integer with its
// square: "The square of 3 is 9".
var Label = remote.Func("squarer.Label", label)

func label(i *big.Int) string {
	return fmt.Sprintf("The square of %s is %s", i, Square(i))
}

// Class is the Squarer actor class.
var Class = remote.Class("squarer.Squarer", New)

// A Squarer is a remote actor that squares and labels integers.
type Squarer struct{}

// New returns a new Squarer.
func New() *Squarer {
	return new(Squarer)
}

// SquareMe returns the square of i.
func (s *Squarer) SquareMe(i *big.Int) *big.Int {
	return Square(i)
}

// LabelMe submits Label(i) to the executor and waits for its result.
func (s *Squarer) LabelMe(ctx context.Context, i *big.Int) (string, error) {
	var label string
	if err := Label.Remote(ctx, i).Get(ctx, &label); err != nil {
		return "", err
	}
	return label, nil
}

// Run squares arg locally, then spawns a Squarer on the executor in
// ctx and has it label the square. The actor is killed before Run
// returns.
func Run(ctx context.Context, arg *big.Int) (string, error) {
	if arg == nil {
		return "", errors.E("squarer", errors.Invalid, errors.New("nil argument"))
	}
	n := Square(arg)
	actor, err := Class.Remote(ctx)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := actor.Kill(ctx); err != nil {
			log.Errorf("kill %s: %v", actor, err)
		}
	}()
	var label string
	if err := actor.Call(ctx, "LabelMe", n).Get(ctx, &label); err != nil {
		return "", err
	}
	return label, nil
}
