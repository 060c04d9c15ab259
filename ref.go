// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package remote

import (
	"context"
	"encoding/json"

	"github.com/grailbio/base/digest"
	"github.com/grailbio/remote/errors"
)

// A Ref is a reference to the eventual result of a task or actor
// method call. Refs may be passed as arguments to further remote
// calls.
type Ref struct {
	exec Executor
	id   digest.Digest
	err  error
}

func errRef(err error) *Ref {
	return &Ref{err: err}
}

// NewRef returns a reference to the object with the given ID on the
// provided executor.
func NewRef(exec Executor, id digest.Digest) *Ref {
	return &Ref{exec: exec, id: id}
}

// ID returns the ID of the referenced object. The ID is zero if
// submission failed.
func (r *Ref) ID() digest.Digest { return r.id }

// Err returns the error, if any, that occurred while submitting the
// call that produces the referenced object.
func (r *Ref) Err() error { return r.err }

func (r *Ref) String() string {
	if r.err != nil {
		return "ref(error)"
	}
	return "ref(" + r.id.Short() + ")"
}

// Get blocks until the referenced object is available and decodes it
// into out, which must be a pointer (or nil, to discard the value).
// If the producing call failed, Get returns its error.
func (r *Ref) Get(ctx context.Context, out interface{}) error {
	if r.err != nil {
		return r.err
	}
	res, err := r.exec.Result(ctx, r.id)
	if err != nil {
		return errors.E("get", r.id, err)
	}
	if res.Err != nil {
		return errors.E("get", r.id, res.Err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(res.Value, out); err != nil {
		return errors.E("get", r.id, errors.Invalid, err)
	}
	return nil
}
