// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package errors provides the error type used throughout the remote
// runtime. Each error carries a kind, an operation with optional
// arguments, and an optional underlying cause. Errors are chained to
// annotate upstream failures, and they serialize to and from JSON so
// that a failure raised by a task on one node is reported faithfully
// by the process that waits on the task's result.
//
// The package also provides Errorf and New so that users need import
// only one error package.
package errors

import (
	"bytes"
	"context"
	"encoding/json"
	goerrors "errors"
	"fmt"
	"net/http"
	"os"
	"runtime"

	"github.com/grailbio/base/digest"
	"github.com/grailbio/remote/log"
)

// Separator is inserted between chained errors while rendering.
// The default value (":\n\t") is intended for interactive tools. A
// server can set this to a different value to be more log friendly.
var Separator = ":\n\t"

// Kind denotes the type of the error.
type Kind int

const (
	// Other denotes an unknown error.
	Other Kind = iota
	// Canceled denotes a cancellation error.
	Canceled
	// Timeout denotes a timeout error.
	Timeout
	// Temporary denotes a transient error.
	Temporary
	// NotExist denotes a missing object, actor, function or class.
	NotExist
	// NotAllowed denotes a method or operation that is not permitted.
	NotAllowed
	// Invalid denotes invalid arguments or data.
	Invalid
	// TooManyTries indicates that an operation was retried too many times.
	TooManyTries
	// Unavailable denotes that a resource is temporarily unavailable.
	Unavailable
	// Fatal denotes an unrecoverable error.
	Fatal
	// Net denotes a network error.
	Net
	// Task denotes an error raised by user code running as a task or
	// actor method.
	Task

	maxKind
)

var kinds = [maxKind]struct{ name, desc string }{
	Other:        {"Other", "unknown error"},
	Canceled:     {"Canceled", "canceled"},
	Timeout:      {"Timeout", "timeout"},
	Temporary:    {"Temporary", "temporary"},
	NotExist:     {"NotExist", "resource does not exist"},
	NotAllowed:   {"NotAllowed", "access denied"},
	Invalid:      {"Invalid", "invalid"},
	TooManyTries: {"TooManyTries", "too many tries"},
	Unavailable:  {"Unavailable", "unavailable"},
	Fatal:        {"Fatal", "fatal"},
	Net:          {"Net", "network error"},
	Task:         {"Task", "task failed"},
}

var string2kind = func() map[string]Kind {
	m := make(map[string]Kind)
	for k := Other; k < maxKind; k++ {
		m[kinds[k].name] = k
	}
	return m
}()

// String renders a human-readable description of kind k.
func (k Kind) String() string {
	if k < 0 || k >= maxKind {
		return kinds[Other].desc
	}
	return kinds[k].desc
}

// Error is the error type of the runtime. It describes a failed
// operation (with arguments), and may wrap another error.
//
// Errors should be constructed by errors.E.
type Error struct {
	// Kind is the error's type.
	Kind Kind
	// Op is a one-word description of the operation that errored.
	Op string
	// Arg is an (optional) list of arguments to the operation.
	Arg []string
	// Err is this error's underlying error: this error is caused
	// by Err.
	Err error
}

// E constructs an error from a set of arguments; each of which must
// be one of the following types:
//
//	string
//		The first string argument is taken as the error's Op; subsequent
//		arguments are taken as the error's Arg.
//	digest.Digest
//		Taken as an Arg, rendered in its short form.
//	Kind
//		Taken as the error's Kind.
//	error
//		Taken as the error's underlying error.
//
// If no Kind is given, E infers one from the underlying error: the
// kind of an underlying *Error is inherited; errors with a Timeout()
// or Temporary() method map to Timeout and Temporary; context errors
// map to Canceled and Timeout; os.IsNotExist errors map to NotExist.
func E(args ...interface{}) error {
	if len(args) == 0 {
		panic("no args")
	}
	e := new(Error)
	for _, arg := range args {
		switch arg := arg.(type) {
		case string:
			if e.Op == "" {
				e.Op = arg
			} else {
				e.Arg = append(e.Arg, arg)
			}
		case digest.Digest:
			e.Arg = append(e.Arg, arg.Short())
		case Kind:
			e.Kind = arg
		case *Error:
			copy := *arg
			e.Err = &copy
		case error:
			e.Err = arg
		default:
			_, file, line, _ := runtime.Caller(1)
			log.Printf("errors.E: bad call (type %T) from %s:%d: %v", arg, file, line, args)
			return Errorf("unknown type %T, value %v in error call", arg, arg)
		}
	}
	if e.Err == nil {
		return e
	}
	switch prev := e.Err.(type) {
	case *Error:
		if prev.Kind == e.Kind || e.Kind == Other {
			e.Kind = prev.Kind
			prev.Kind = Other
		}
		if prev.Op == "" && prev.Kind == Other {
			e.Err = prev.Err
		}
	default:
		if e.Kind != Other {
			break
		}
		switch err := e.Err.(type) {
		case interface{ Timeout() bool }:
			if err.Timeout() {
				e.Kind = Timeout
			}
		case interface{ Temporary() bool }:
			if err.Temporary() {
				e.Kind = Temporary
			}
		default:
			switch {
			case err == context.Canceled:
				e.Kind = Canceled
			case err == context.DeadlineExceeded:
				e.Kind = Timeout
			case os.IsNotExist(err):
				e.Kind = NotExist
			}
		}
	}
	return e
}

func pad(b *bytes.Buffer, s string) {
	if b.Len() == 0 {
		return
	}
	b.WriteString(s)
}

// Error renders this error and its chain of underlying errors,
// separated by Separator.
func (e *Error) Error() string {
	return e.ErrorSeparator(Separator)
}

// ErrorSeparator renders this errors and its chain of underlying
// errors, separated by sep.
func (e *Error) ErrorSeparator(sep string) string {
	if e == nil {
		return "<nil>"
	}
	b := new(bytes.Buffer)
	if e.Op != "" {
		b.WriteString(e.Op)
		for i := range e.Arg {
			b.WriteString(" " + e.Arg[i])
		}
	}
	if e.Kind != Other {
		pad(b, ": ")
		b.WriteString(e.Kind.String())
	}
	if e.Err != nil {
		if err, ok := e.Err.(*Error); ok {
			pad(b, sep)
			b.WriteString(err.ErrorSeparator(sep))
		} else {
			pad(b, ": ")
			b.WriteString(e.Err.Error())
		}
	}
	return b.String()
}

// Unwrap returns the underlying error, so that the standard library's
// errors.Is and errors.As see through the chain.
func (e *Error) Unwrap() error {
	return e.Err
}

// Timeout tells whether this error is a timeout error.
func (e *Error) Timeout() bool {
	return e.Kind == Timeout
}

// Temporary tells whether this error is temporary.
func (e *Error) Temporary() bool {
	return e.Kind == Temporary || e.Kind == Unavailable
}

// HTTPStatus indicates the HTTP status that should be presented
// in conjunction with this error.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case NotExist:
		return http.StatusNotFound
	case NotAllowed:
		return http.StatusMethodNotAllowed
	case Invalid:
		return http.StatusBadRequest
	case Temporary, Unavailable:
		return http.StatusServiceUnavailable
	case Timeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Errorf is an alternate spelling of fmt.Errorf.
var Errorf = fmt.Errorf

// New is an alternate spelling of errors.New.
var New = goerrors.New

// Recover recovers any error into an *Error. If the passed-in Error
// is already an error, it is simply returned; otherwise it is wrapped.
func Recover(err error) *Error {
	if err == nil {
		return nil
	}
	if err, ok := err.(*Error); ok {
		return err
	}
	return E(err).(*Error)
}

// Is tells whether err is of the given kind.
func Is(kind Kind, err error) bool {
	if err == nil {
		return false
	}
	return Recover(err).Kind == kind
}

// Match compares err1 with err2. If err1 has type Kind, Match
// reports whether err2's Kind is the same, otherwise, Match checks
// that every nonempty field in err1 has the same value in err2. If
// err1 is an *Error with a non-nil Err field, Match recurs to check
// that the two errors chain of underlying errors also match.
func Match(err1 interface{}, err2 error) bool {
	e2 := Recover(err2)
	if e2 == nil {
		return false
	}
	switch e1 := err1.(type) {
	default:
		return false
	case Kind:
		return e1 == e2.Kind
	case *Error:
		if e1.Op != "" && e2.Op != e1.Op {
			return false
		}
		if len(e1.Arg) != len(e2.Arg) {
			return false
		}
		for i := range e1.Arg {
			if e1.Arg[i] != e2.Arg[i] {
				return false
			}
		}
		if e1.Kind != Other && e2.Kind != e1.Kind {
			return false
		}
		if e1.Err != nil {
			if _, ok := e1.Err.(*Error); ok {
				return Match(e1.Err, e2.Err)
			}
			if e2.Err == nil || e2.Err.Error() != e1.Err.Error() {
				return false
			}
		}
		return true
	}
}

// Transient tells whether error err is likely transient, and thus may
// be usefully retried.
func Transient(err error) bool {
	switch Recover(err).Kind {
	case Timeout, Temporary, Unavailable, Net:
		return true
	default:
		return false
	}
}

type jsonError struct {
	Op    string
	Arg   []string
	Kind  string
	Cause *jsonError `json:",omitempty"`
	Error string     `json:",omitempty"`
}

func (j *jsonError) toError() error {
	if j == nil {
		return nil
	}
	if j.Error != "" {
		return New(j.Error)
	}
	args := []interface{}{j.Op}
	for _, arg := range j.Arg {
		args = append(args, arg)
	}
	args = append(args, string2kind[j.Kind])
	if j.Cause != nil {
		args = append(args, j.Cause.toError())
	}
	return E(args...)
}

func toJSON(err error) *jsonError {
	switch e := err.(type) {
	case *Error:
		j := &jsonError{
			Op:   e.Op,
			Arg:  e.Arg,
			Kind: kinds[e.Kind].name,
		}
		if e.Err != nil {
			j.Cause = toJSON(e.Err)
		}
		return j
	default:
		return &jsonError{Error: err.Error()}
	}
}

// MarshalJSON implements JSON marshalling for Error.
func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(toJSON(e))
}

// UnmarshalJSON implements JSON unmarshalling for Error.
func (e *Error) UnmarshalJSON(b []byte) error {
	var ej jsonError
	if err := json.Unmarshal(b, &ej); err != nil {
		return err
	}
	e2, ok := ej.toError().(*Error)
	if !ok {
		return Errorf("expected *Error, got %T", e2)
	}
	*e = *e2
	return nil
}
