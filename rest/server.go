// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package rest implements a small REST framework: servers are trees
// of Nodes walked one path component at a time, and clients issue
// JSON calls against them. Errors are replied as serialized
// *errors.Error values so that clients recover the original kind.
package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/grailbio/remote/errors"
	"github.com/grailbio/remote/log"
)

// A Node is a node in a REST resource tree. Walk returns the child
// named by the next path component, or nil if none exists. Do
// serves a call addressed to the node itself. Walk may reply to the
// call directly (e.g., with an error), in which case the walk stops.
type Node interface {
	Walk(ctx context.Context, call *Call, path string) Node
	Do(ctx context.Context, call *Call)
}

// Mux is a Node that dispatches on a fixed set of names.
type Mux map[string]Node

// Walk returns the child with the given name.
func (m Mux) Walk(ctx context.Context, call *Call, path string) Node {
	return m[path]
}

// Do replies with the set of names served by the mux.
func (m Mux) Do(ctx context.Context, call *Call) {
	if !call.Allow("GET") {
		return
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	call.Reply(http.StatusOK, names)
}

// DoFunc is a leaf Node implemented by a function.
type DoFunc func(ctx context.Context, call *Call)

// Walk implements Node; leaves have no children.
func (f DoFunc) Walk(ctx context.Context, call *Call, path string) Node {
	return nil
}

// Do invokes the function.
func (f DoFunc) Do(ctx context.Context, call *Call) {
	f(ctx, call)
}

// WalkFunc is a Node whose children are computed from their names.
// Calls addressed to the node itself are not found.
type WalkFunc func(path string) Node

// Walk invokes the function.
func (f WalkFunc) Walk(ctx context.Context, call *Call, path string) Node {
	return f(path)
}

// Do implements Node.
func (f WalkFunc) Do(ctx context.Context, call *Call) {
	call.NotFound()
}

// Call is a single server-side call.
type Call struct {
	Writer  http.ResponseWriter
	Request *http.Request

	log     *log.Logger
	code    int
	replied bool
}

// Method returns the call's HTTP method.
func (c *Call) Method() string {
	return c.Request.Method
}

// Allow tells whether the call's method is among the provided
// methods. If not, the call is replied with a 405 and Allow returns
// false.
func (c *Call) Allow(methods ...string) bool {
	for _, m := range methods {
		if c.Request.Method == m {
			return true
		}
	}
	c.Writer.Header().Set("Allow", strings.Join(methods, ", "))
	c.Error(errors.E(c.Request.Method, c.Request.URL.Path, errors.NotAllowed))
	return false
}

// Unmarshal decodes the call's JSON body into v. Malformed bodies
// are replied with a 400 and the decoding error is returned.
func (c *Call) Unmarshal(v interface{}) error {
	if err := json.NewDecoder(c.Request.Body).Decode(v); err != nil {
		c.Error(errors.E("unmarshal", c.Request.URL.Path, errors.Invalid, err))
		return err
	}
	return nil
}

// Reply replies to the call with the given status code and a JSON
// encoding of reply.
func (c *Call) Reply(code int, reply interface{}) {
	if c.replied {
		c.log.Errorf("%s %s: multiple replies", c.Request.Method, c.Request.URL)
		return
	}
	c.replied = true
	c.code = code
	c.Writer.Header().Set("Content-Type", "application/json")
	c.Writer.WriteHeader(code)
	if err := json.NewEncoder(c.Writer).Encode(reply); err != nil {
		c.log.Errorf("%s %s: encode reply: %v", c.Request.Method, c.Request.URL, err)
	}
}

// Error replies to the call with the provided error. The status code
// is derived from the error's kind.
func (c *Call) Error(err error) {
	e := errors.Recover(err)
	c.Reply(e.HTTPStatus(), e)
}

// NotFound replies to the call with a 404.
func (c *Call) NotFound() {
	c.Error(errors.E(c.Request.Method, c.Request.URL.Path, errors.NotExist))
}

// Replied tells whether a reply has been written.
func (c *Call) Replied() bool {
	return c.replied
}

// Handler returns an http.Handler that serves the tree rooted at
// node. Calls are logged at debug level to the provided logger.
func Handler(node Node, log *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := &Call{Writer: w, Request: r, log: log}
		ctx := r.Context()
		n := node
		for _, part := range split(r.URL.Path) {
			n = n.Walk(ctx, call, part)
			if call.replied {
				logCall(log, call)
				return
			}
			if n == nil {
				call.NotFound()
				logCall(log, call)
				return
			}
		}
		n.Do(ctx, call)
		if !call.replied {
			call.Reply(http.StatusOK, nil)
		}
		logCall(log, call)
	})
}

// DoFuncHandler returns an http.Handler that serves node directly,
// without walking the request path.
func DoFuncHandler(node Node, log *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := &Call{Writer: w, Request: r, log: log}
		node.Do(r.Context(), call)
		logCall(log, call)
	})
}

func logCall(l *log.Logger, call *Call) {
	if l.At(log.DebugLevel) {
		l.Debugf("%s %s: %d", call.Request.Method, call.Request.URL, call.code)
	}
}

func split(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}
