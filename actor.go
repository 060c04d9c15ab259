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

	"github.com/grailbio/remote/errors"
)

// A ClassValue is a registered actor class. Actors are instances of a
// class: each is constructed by the class constructor on the executor
// and lives there until it is killed. Calls on an actor run one at a
// time in the order they were submitted.
type ClassValue struct {
	name    string
	ctor    reflect.Value
	sig     *signature
	typ     reflect.Type
	methods map[string]method
}

type method struct {
	index int
	sig   *signature
}

// Class registers an actor class under the provided name. The
// constructor ctor must return a pointer, optionally with an error;
// its arguments follow the same rules as those of Func. Every
// exported method of the constructed type whose signature is valid
// for Func becomes callable on the class's actors.
//
// Like Func, Class must be called at program initialization, and it
// panics if the constructor is invalid or the name is taken.
func Class(name string, ctor interface{}) *ClassValue {
	v := reflect.ValueOf(ctor)
	if !v.IsValid() {
		panic(fmt.Sprintf("remote.Class %s: nil constructor", name))
	}
	sig, err := newSignature(v.Type(), 0)
	if err != nil {
		panic(fmt.Sprintf("remote.Class %s: %v", name, err))
	}
	if sig.out == nil || sig.out.Kind() != reflect.Ptr {
		panic(fmt.Sprintf("remote.Class %s: constructor %v must return a pointer", name, v.Type()))
	}
	c := &ClassValue{
		name:    name,
		ctor:    v,
		sig:     sig,
		typ:     sig.out,
		methods: make(map[string]method),
	}
	for i := 0; i < c.typ.NumMethod(); i++ {
		m := c.typ.Method(i)
		msig, err := newSignature(m.Type, 1)
		if err != nil {
			continue
		}
		c.methods[m.Name] = method{index: m.Index, sig: msig}
	}
	if len(c.methods) == 0 {
		panic(fmt.Sprintf("remote.Class %s: type %v has no remotely callable methods", name, c.typ))
	}
	registry.Lock()
	defer registry.Unlock()
	if _, ok := registry.classes[name]; ok {
		panic(fmt.Sprintf("remote.Class: class %s already registered", name))
	}
	registry.classes[name] = c
	return c
}

// Name returns the name under which the class was registered.
func (c *ClassValue) Name() string { return c.name }

// Methods returns the sorted names of the class's remotely callable
// methods.
func (c *ClassValue) Methods() []string {
	names := make([]string, 0, len(c.methods))
	for name := range c.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Remote spawns a new actor of this class on the executor carried by
// ctx, constructed with the provided arguments.
func (c *ClassValue) Remote(ctx context.Context, args ...interface{}) (*ActorHandle, error) {
	exec, err := ExecutorFrom(ctx)
	if err != nil {
		return nil, errors.E("spawn", c.name, err)
	}
	enc, err := c.sig.encode(args)
	if err != nil {
		return nil, errors.E("spawn", c.name, err)
	}
	id, err := exec.Spawn(ctx, ActorSpec{Class: c.name, Args: enc})
	if err != nil {
		return nil, errors.E("spawn", c.name, err)
	}
	return &ActorHandle{exec: exec, class: c, id: id}, nil
}

// Handle returns a handle to an existing actor of this class.
func (c *ClassValue) Handle(exec Executor, id string) *ActorHandle {
	return &ActorHandle{exec: exec, class: c, id: id}
}

// New constructs an instance of the class from the provided JSON
// encoded constructor arguments. New is used by executors.
func (c *ClassValue) New(ctx context.Context, args []json.RawMessage) (*Instance, error) {
	v, err := c.sig.invoke(ctx, c.ctor, args)
	if err != nil {
		return nil, errors.E("new", c.name, err)
	}
	if v.IsNil() {
		return nil, errors.E("new", c.name, errors.Invalid, errors.New("constructor returned nil"))
	}
	return &Instance{class: c, v: v}, nil
}

// An Instance is a constructed actor, as held by an executor.
type Instance struct {
	class *ClassValue
	v     reflect.Value
}

// Class returns the instance's class.
func (inst *Instance) Class() *ClassValue { return inst.class }

// Invoke calls the named method with the provided JSON encoded
// arguments and returns its JSON encoded result. Invoke is not safe
// for concurrent use: executors serialize calls on an instance.
func (inst *Instance) Invoke(ctx context.Context, name string, args []json.RawMessage) (json.RawMessage, error) {
	m, ok := inst.class.methods[name]
	if !ok {
		return nil, errors.E("invoke", inst.class.name+"."+name, errors.NotExist, errors.New("no such method"))
	}
	b, err := m.sig.call(ctx, inst.v.Method(m.index), args)
	if err != nil {
		return nil, errors.E("invoke", inst.class.name+"."+name, err)
	}
	return b, nil
}

// LookupClass returns the class registered under name.
func LookupClass(name string) (*ClassValue, error) {
	registry.Lock()
	c := registry.classes[name]
	registry.Unlock()
	if c == nil {
		return nil, errors.E("lookup", name, errors.NotExist, errors.New("no such class"))
	}
	return c, nil
}

// Classes returns the sorted names of all registered actor classes.
func Classes() []string {
	registry.Lock()
	defer registry.Unlock()
	names := make([]string, 0, len(registry.classes))
	for name := range registry.classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
