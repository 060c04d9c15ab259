// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package server exposes a remote.Executor for remote access. The
// REST API it implements is consumed by package client:
//
//	POST   v1/tasks                submit a TaskSpec
//	GET    v1/objects/<id>         wait for and return a Result
//	GET    v1/actors               list actors
//	POST   v1/actors               spawn an actor from an ActorSpec
//	GET    v1/actors/<id>          inspect an actor
//	DELETE v1/actors/<id>          kill an actor
//	POST   v1/actors/<id>/calls    submit a CallSpec to an actor
//	GET    v1/registry             list registered funcs and classes
//
// Submissions return an IDReply naming the submitted object or
// spawned actor.
package server

import (
	"context"
	"net/http"

	"github.com/grailbio/remote"
	"github.com/grailbio/remote/errors"
	"github.com/grailbio/remote/metrics"
	"github.com/grailbio/remote/rest"
	"golang.org/x/time/rate"
)

// IDReply is the reply to a submission.
type IDReply struct {
	ID string
}

// Registry is the reply to a registry listing.
type Registry struct {
	Funcs   []string
	Classes []string
}

var errRate = errors.New("submission rate exceeded")

// NewNode returns a rest.Node that implements the executor REST API
// on top of e. If admit is non-nil, submissions (tasks, spawns, and
// calls) are admitted at its rate; rejected submissions are replied
// with errors.Temporary so that clients back off and retry. Rejections
// are counted through client m, which may be nil.
func NewNode(e remote.Executor, admit *rate.Limiter, m metrics.Client) rest.Node {
	a := admission{admit, m}
	v1 := rest.Mux{
		"tasks":    tasksNode{e, a},
		"objects":  objectsNode{e},
		"actors":   actorsNode{e, a},
		"registry": rest.DoFunc(registry),
	}
	return rest.Mux{"v1": v1}
}

type admission struct {
	limiter *rate.Limiter
	metrics metrics.Client
}

// admit tells whether the call may proceed. Rejected calls are
// replied to.
func (a admission) admit(ctx context.Context, call *rest.Call) bool {
	if a.limiter == nil || a.limiter.Allow() {
		return true
	}
	if a.metrics != nil {
		ctx = metrics.WithClient(ctx, a.metrics)
	}
	metrics.GetSubmissionsRejectedCountCounter(ctx).Inc()
	call.Writer.Header().Set("Retry-After", "1")
	call.Error(errors.E("admit", call.Request.URL.Path, errors.Temporary, errRate))
	return false
}

func registry(ctx context.Context, call *rest.Call) {
	if !call.Allow("GET") {
		return
	}
	call.Reply(http.StatusOK, Registry{Funcs: remote.Funcs(), Classes: remote.Classes()})
}

type tasksNode struct {
	e remote.Executor
	a admission
}

func (n tasksNode) Walk(ctx context.Context, call *rest.Call, path string) rest.Node {
	return nil
}

func (n tasksNode) Do(ctx context.Context, call *rest.Call) {
	if !call.Allow("POST") {
		return
	}
	var task remote.TaskSpec
	if call.Unmarshal(&task) != nil {
		return
	}
	if !n.a.admit(ctx, call) {
		return
	}
	id, err := n.e.Submit(ctx, task)
	if err != nil {
		call.Error(err)
		return
	}
	call.Reply(http.StatusOK, IDReply{id.String()})
}

type objectsNode struct {
	e remote.Executor
}

func (n objectsNode) Walk(ctx context.Context, call *rest.Call, path string) rest.Node {
	id, err := remote.ParseObjectID(path)
	if err != nil {
		call.Error(errors.E("walk", path, errors.Invalid, err))
		return nil
	}
	return rest.DoFunc(func(ctx context.Context, call *rest.Call) {
		if !call.Allow("GET") {
			return
		}
		res, err := n.e.Result(ctx, id)
		if err != nil {
			call.Error(err)
			return
		}
		call.Reply(http.StatusOK, res)
	})
}

func (n objectsNode) Do(ctx context.Context, call *rest.Call) {
	call.NotFound()
}

type actorsNode struct {
	e remote.Executor
	a admission
}

func (n actorsNode) Walk(ctx context.Context, call *rest.Call, path string) rest.Node {
	return actorNode{n.e, n.a, path}
}

func (n actorsNode) Do(ctx context.Context, call *rest.Call) {
	if !call.Allow("GET", "POST") {
		return
	}
	switch call.Method() {
	case "GET":
		actors, err := n.e.Actors(ctx)
		if err != nil {
			call.Error(err)
			return
		}
		call.Reply(http.StatusOK, actors)
	case "POST":
		var spec remote.ActorSpec
		if call.Unmarshal(&spec) != nil {
			return
		}
		if !n.a.admit(ctx, call) {
			return
		}
		id, err := n.e.Spawn(ctx, spec)
		if err != nil {
			call.Error(err)
			return
		}
		call.Reply(http.StatusOK, IDReply{id})
	}
}

type actorNode struct {
	e  remote.Executor
	a  admission
	id string
}

func (n actorNode) Walk(ctx context.Context, call *rest.Call, path string) rest.Node {
	switch path {
	case "calls":
		return rest.DoFunc(func(ctx context.Context, call *rest.Call) {
			if !call.Allow("POST") {
				return
			}
			var spec remote.CallSpec
			if call.Unmarshal(&spec) != nil {
				return
			}
			if !n.a.admit(ctx, call) {
				return
			}
			id, err := n.e.Call(ctx, n.id, spec)
			if err != nil {
				call.Error(err)
				return
			}
			call.Reply(http.StatusOK, IDReply{id.String()})
		})
	default:
		return nil
	}
}

func (n actorNode) Do(ctx context.Context, call *rest.Call) {
	if !call.Allow("GET", "DELETE") {
		return
	}
	switch call.Method() {
	case "GET":
		inspect, err := n.e.Inspect(ctx, n.id)
		if err != nil {
			call.Error(err)
			return
		}
		call.Reply(http.StatusOK, inspect)
	case "DELETE":
		if err := n.e.Kill(ctx, n.id); err != nil {
			call.Error(err)
			return
		}
		call.Reply(http.StatusOK, "actor killed")
	}
}
