// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/grailbio/remote/errors"
)

var (
	typeOfContext = reflect.TypeOf((*context.Context)(nil)).Elem()
	typeOfError   = reflect.TypeOf((*error)(nil)).Elem()
)

// A signature describes the remotely callable shape of a function or
// method: an optional leading context, a list of JSON encodable
// arguments, and an optional result and error.
type signature struct {
	ctx bool
	in  []reflect.Type
	out reflect.Type
	err bool
}

// newSignature checks that type t is remotely callable and returns
// its signature. The first recv arguments of t are skipped.
func newSignature(t reflect.Type, recv int) (*signature, error) {
	if t.Kind() != reflect.Func {
		return nil, fmt.Errorf("expected func, got %v", t)
	}
	if t.IsVariadic() {
		return nil, fmt.Errorf("variadic function %v is not supported", t)
	}
	s := new(signature)
	i := recv
	if i < t.NumIn() && t.In(i) == typeOfContext {
		s.ctx = true
		i++
	}
	for ; i < t.NumIn(); i++ {
		arg := t.In(i)
		switch arg.Kind() {
		case reflect.Chan, reflect.Func, reflect.UnsafePointer:
			return nil, fmt.Errorf("argument %d of %v: type %v cannot be encoded", i-recv, t, arg)
		}
		if arg == typeOfContext {
			return nil, fmt.Errorf("%v: context must be the first argument", t)
		}
		s.in = append(s.in, arg)
	}
	switch t.NumOut() {
	case 0:
	case 1:
		if t.Out(0) == typeOfError {
			s.err = true
		} else {
			s.out = t.Out(0)
		}
	case 2:
		if t.Out(0) == typeOfError || t.Out(1) != typeOfError {
			return nil, fmt.Errorf("%v: two results must be (T, error)", t)
		}
		s.out, s.err = t.Out(0), true
	default:
		return nil, fmt.Errorf("%v: too many results", t)
	}
	return s, nil
}

// encode checks args against the signature and encodes them into wire
// arguments. Refs are passed by ID.
func (s *signature) encode(args []interface{}) ([]Arg, error) {
	if got, want := len(args), len(s.in); got != want {
		return nil, errors.E(errors.Invalid, errors.Errorf("got %d arguments, want %d", got, want))
	}
	enc := make([]Arg, len(args))
	for i, arg := range args {
		if ref, ok := arg.(*Ref); ok {
			if ref.err != nil {
				return nil, errors.E(fmt.Sprintf("argument %d", i), ref.err)
			}
			enc[i].Ref = ref.id.String()
			continue
		}
		b, err := json.Marshal(arg)
		if err != nil {
			return nil, errors.E(fmt.Sprintf("argument %d", i), errors.Invalid, err)
		}
		enc[i].Value = b
	}
	return enc, nil
}

var null = json.RawMessage("null")

// call invokes fn and returns its JSON encoded result, or null if
// fn returns no value.
func (s *signature) call(ctx context.Context, fn reflect.Value, args []json.RawMessage) (json.RawMessage, error) {
	v, err := s.invoke(ctx, fn, args)
	if err != nil {
		return nil, err
	}
	if !v.IsValid() {
		return null, nil
	}
	b, err := json.Marshal(v.Interface())
	if err != nil {
		return nil, errors.E("result", errors.Invalid, err)
	}
	return b, nil
}

// invoke decodes args into the signature's argument types, invokes
// fn, and returns its result value, which is invalid if fn returns no
// value. Panics raised by fn are recovered and returned as errors of
// kind errors.Task, as are errors returned by fn itself.
func (s *signature) invoke(ctx context.Context, fn reflect.Value, args []json.RawMessage) (result reflect.Value, err error) {
	if got, want := len(args), len(s.in); got != want {
		return reflect.Value{}, errors.E(errors.Invalid, errors.Errorf("got %d arguments, want %d", got, want))
	}
	in := make([]reflect.Value, 0, len(args)+1)
	if s.ctx {
		in = append(in, reflect.ValueOf(ctx))
	}
	for i, arg := range args {
		v := reflect.New(s.in[i])
		if len(arg) == 0 {
			arg = null
		}
		if err := json.Unmarshal(arg, v.Interface()); err != nil {
			return reflect.Value{}, errors.E(fmt.Sprintf("argument %d", i), errors.Invalid, err)
		}
		in = append(in, v.Elem())
	}
	defer func() {
		if e := recover(); e != nil {
			result, err = reflect.Value{}, errors.E(errors.Task, errors.Errorf("panic: %v", e))
		}
	}()
	out := fn.Call(in)
	if s.err {
		if e := out[len(out)-1]; !e.IsNil() {
			return reflect.Value{}, errors.E(errors.Task, e.Interface().(error))
		}
	}
	if s.out == nil {
		return reflect.Value{}, nil
	}
	return out[0], nil
}
