// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/grailbio/remote/errors"
)

var registry = struct {
	sync.Mutex
	funcs   map[string]*FuncValue
	classes map[string]*ClassValue
}{
	funcs:   make(map[string]*FuncValue),
	classes: make(map[string]*ClassValue),
}

// A FuncValue is a registered function that may be invoked remotely.
type FuncValue struct {
	name string
	fn   reflect.Value
	sig  *signature
}

// Func registers the function fn under the provided name and returns
// a FuncValue through which it is invoked remotely. Func must be
// called before any remote invocations are made, and in the same
// order in every process; this is guaranteed if FuncValues are
// declared as package-level variables.
//
// Fn's arguments and result must be JSON encodable. Fn may take a
// leading context.Context, which carries the executor that runs it,
// and may return (), (T), (error), or (T, error).
//
// Func panics if fn is not a valid remote function, or if a function
// is already registered under name.
func Func(name string, fn interface{}) *FuncValue {
	v := reflect.ValueOf(fn)
	if !v.IsValid() {
		panic(fmt.Sprintf("remote.Func %s: nil function", name))
	}
	sig, err := newSignature(v.Type(), 0)
	if err != nil {
		panic(fmt.Sprintf("remote.Func %s: %v", name, err))
	}
	f := &FuncValue{name: name, fn: v, sig: sig}
	registry.Lock()
	defer registry.Unlock()
	if _, ok := registry.funcs[name]; ok {
		panic(fmt.Sprintf("remote.Func: function %s already registered", name))
	}
	registry.funcs[name] = f
	return f
}

// Name returns the name under which the function was registered.
func (f *FuncValue) Name() string { return f.name }

// Remote submits the function with the provided arguments to the
// executor carried by ctx, returning a reference to its eventual
// result. Arguments may be Refs, in which case the function is
// invoked with the referenced objects' values. Submission errors are
// returned by the Ref's Get method.
func (f *FuncValue) Remote(ctx context.Context, args ...interface{}) *Ref {
	exec, err := ExecutorFrom(ctx)
	if err != nil {
		return errRef(errors.E("remote", f.name, err))
	}
	enc, err := f.sig.encode(args)
	if err != nil {
		return errRef(errors.E("remote", f.name, err))
	}
	id, err := exec.Submit(ctx, TaskSpec{Func: f.name, Args: enc})
	if err != nil {
		return errRef(errors.E("remote", f.name, err))
	}
	return &Ref{exec: exec, id: id}
}

// Invoke calls the function with the provided JSON encoded arguments
// and returns its JSON encoded result. Invoke is used by executors.
func (f *FuncValue) Invoke(ctx context.Context, args []json.RawMessage) (json.RawMessage, error) {
	v, err := f.sig.call(ctx, f.fn, args)
	if err != nil {
		return nil, errors.E("invoke", f.name, err)
	}
	return v, nil
}

// Lookup returns the function registered under name.
func Lookup(name string) (*FuncValue, error) {
	registry.Lock()
	f := registry.funcs[name]
	registry.Unlock()
	if f == nil {
		return nil, errors.E("lookup", name, errors.NotExist, errors.New("no such function"))
	}
	return f, nil
}

// Funcs returns the sorted names of all registered functions.
func Funcs() []string {
	registry.Lock()
	defer registry.Unlock()
	names := make([]string, 0, len(registry.funcs))
	for name := range registry.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
