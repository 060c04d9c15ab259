// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package client implements a remote.Executor that dispatches to a
// node serving the REST API of package server.
package client

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/grailbio/base/digest"
	"github.com/grailbio/base/retry"
	"github.com/grailbio/remote"
	"github.com/grailbio/remote/errors"
	"github.com/grailbio/remote/log"
	"github.com/grailbio/remote/rest"
	"github.com/grailbio/remote/server"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/singleflight"
)

// DefaultMaxRetries is the default number of times a call is retried.
const DefaultMaxRetries = 8

// DefaultPolicy is the default retry policy.
var DefaultPolicy = retry.Jitter(retry.Backoff(100*time.Millisecond, 5*time.Second, 2), 0.25)

// Client implements remote.Executor by dispatching calls to a remote
// node.
//
// Calls that fail transiently are retried according to Policy, up to
// MaxRetries times. Submissions (tasks, spawns, and calls) are
// retried only when the node rejected them, so that a submission is
// never executed twice. Waits on results are always retried.
type Client struct {
	// Policy is the retry policy for transient failures.
	Policy retry.Policy
	// MaxRetries is the maximum number of retries per call.
	MaxRetries int

	rest  *rest.Client
	host  string
	log   *log.Logger
	group singleflight.Group
}

// New creates a new Client which connects to the node at baseurl using
// the provided http.Client. If client is nil, the default client is
// used. The client's transport is instrumented so that trace context
// propagates to the node. If logger is not nil, Client logs detailed
// request/response information to it.
func New(baseurl string, client *http.Client, log *log.Logger) (*Client, error) {
	u, err := url.Parse(baseurl)
	if err != nil {
		return nil, errors.E("client", baseurl, errors.Invalid, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.E("client", baseurl, errors.Invalid, errors.New("expected absolute URL"))
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	u = u.ResolveReference(&url.URL{Path: "v1/"})
	hc := &http.Client{}
	if client != nil {
		*hc = *client
	}
	hc.Transport = otelhttp.NewTransport(hc.Transport)
	return &Client{
		rest:       rest.NewClient(hc, u, log),
		Policy:     DefaultPolicy,
		MaxRetries: DefaultMaxRetries,
		host:       u.Host,
		log:        log,
	}, nil
}

// ID returns the client's host name.
func (c *Client) ID() string { return c.host }

// URL returns the root URL of the node's API.
func (c *Client) URL() *url.URL { return c.rest.URL() }

// Submit implements remote.Executor.
func (c *Client) Submit(ctx context.Context, task remote.TaskSpec) (digest.Digest, error) {
	var reply server.IDReply
	if err := c.do(ctx, false, "POST", "tasks", task, &reply); err != nil {
		return digest.Digest{}, errors.E("submit", task.Func, err)
	}
	id, err := remote.ParseObjectID(reply.ID)
	if err != nil {
		return digest.Digest{}, errors.E("submit", task.Func, errors.Invalid, err)
	}
	return id, nil
}

// Spawn implements remote.Executor.
func (c *Client) Spawn(ctx context.Context, actor remote.ActorSpec) (string, error) {
	var reply server.IDReply
	if err := c.do(ctx, false, "POST", "actors", actor, &reply); err != nil {
		return "", errors.E("spawn", actor.Class, err)
	}
	return reply.ID, nil
}

// Call implements remote.Executor.
func (c *Client) Call(ctx context.Context, actor string, call remote.CallSpec) (digest.Digest, error) {
	var reply server.IDReply
	if err := c.do(ctx, false, "POST", "actors/"+url.PathEscape(actor)+"/calls", call, &reply); err != nil {
		return digest.Digest{}, errors.E("call", actor, call.Method, err)
	}
	id, err := remote.ParseObjectID(reply.ID)
	if err != nil {
		return digest.Digest{}, errors.E("call", actor, call.Method, errors.Invalid, err)
	}
	return id, nil
}

// Result implements remote.Executor. Concurrent waits for the same
// object share a single request to the node.
func (c *Client) Result(ctx context.Context, id digest.Digest) (remote.Result, error) {
	v, err, _ := c.group.Do(id.String(), func() (interface{}, error) {
		var res remote.Result
		err := c.do(ctx, true, "GET", "objects/"+id.String(), nil, &res)
		return res, err
	})
	if err != nil {
		return remote.Result{}, errors.E("result", id, err)
	}
	return v.(remote.Result), nil
}

// Kill implements remote.Executor.
func (c *Client) Kill(ctx context.Context, actor string) error {
	if err := c.do(ctx, true, "DELETE", "actors/"+url.PathEscape(actor), nil, nil); err != nil {
		return errors.E("kill", actor, err)
	}
	return nil
}

// Inspect implements remote.Executor.
func (c *Client) Inspect(ctx context.Context, actor string) (remote.ActorInspect, error) {
	var inspect remote.ActorInspect
	if err := c.do(ctx, true, "GET", "actors/"+url.PathEscape(actor), nil, &inspect); err != nil {
		return remote.ActorInspect{}, errors.E("inspect", actor, err)
	}
	return inspect, nil
}

// Actors implements remote.Executor.
func (c *Client) Actors(ctx context.Context) ([]remote.ActorInspect, error) {
	var actors []remote.ActorInspect
	if err := c.do(ctx, true, "GET", "actors", nil, &actors); err != nil {
		return nil, errors.E("actors", err)
	}
	return actors, nil
}

// Registry returns the funcs and classes registered on the node.
func (c *Client) Registry(ctx context.Context) (server.Registry, error) {
	var reg server.Registry
	if err := c.do(ctx, true, "GET", "registry", nil, &reg); err != nil {
		return server.Registry{}, errors.E("registry", err)
	}
	return reg, nil
}

// do performs a JSON call, retrying failures as permitted, and
// decodes the reply into reply.
func (c *Client) do(ctx context.Context, idempotent bool, method, path string, req, reply interface{}) error {
	for retries := 0; ; retries++ {
		err := c.once(ctx, method, path, req, reply)
		if err == nil || !retryable(err, idempotent) {
			return err
		}
		if retries >= c.MaxRetries {
			return errors.E(errors.TooManyTries, err)
		}
		c.log.Debugf("%s %s: retrying after error: %v", method, path, err)
		if err := retry.Wait(ctx, c.Policy, retries); err != nil {
			return errors.E(method, path, err)
		}
	}
}

func (c *Client) once(ctx context.Context, method, path string, req, reply interface{}) error {
	call := c.rest.Call(method, path)
	defer call.Close()
	code, err := call.DoJSON(ctx, req)
	if err != nil {
		return err
	}
	if code != http.StatusOK {
		return call.Error()
	}
	return call.Unmarshal(reply)
}

// retryable tells whether a call that failed with err may be retried.
// Non-idempotent calls are retried only if the node refused them.
func retryable(err error, idempotent bool) bool {
	if errors.Is(errors.Canceled, err) {
		return false
	}
	if idempotent {
		return errors.Transient(err)
	}
	return errors.Is(errors.Temporary, err) || errors.Is(errors.Unavailable, err)
}
