// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/grailbio/remote"
	"github.com/grailbio/remote/errors"
	"github.com/grailbio/remote/local"
	"github.com/grailbio/remote/log"
	"github.com/grailbio/remote/metrics"
	"github.com/grailbio/remote/metrics/prometrics"
	"github.com/grailbio/remote/rest"
	"github.com/grailbio/testutil/expect"
	"golang.org/x/time/rate"
)

var (
	_ = remote.Func("server.echo", func(s string) string { return s })
	_ = remote.Class("server.Adder", func(n int) *acc { return &acc{n} })
)

type acc struct{ n int }

func (a *acc) Add(d int) int {
	a.n += d
	return a.n
}

func ioArgs(vals ...interface{}) []remote.Arg {
	args := make([]remote.Arg, len(vals))
	for i, v := range vals {
		b, err := json.Marshal(v)
		if err != nil {
			panic(err)
		}
		args[i].Value = b
	}
	return args
}

func newHandler(t *testing.T, admit *rate.Limiter, m metrics.Client) http.Handler {
	t.Helper()
	e := &local.Executor{Concurrency: 2}
	if err := e.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(e.Stop)
	return rest.Handler(NewNode(e, admit, m), log.Std)
}

// do performs a request against h, decoding the reply into reply if
// the request succeeded, or returning the replied error otherwise.
func do(t *testing.T, h http.Handler, method, path string, body, reply interface{}) (int, error) {
	t.Helper()
	var r *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = httptest.NewRequest(method, path, bytes.NewReader(b))
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		e := new(errors.Error)
		if err := json.NewDecoder(w.Body).Decode(e); err != nil {
			t.Fatalf("%s %s: decode error reply: %v", method, path, err)
		}
		return w.Code, e
	}
	if reply != nil {
		if err := json.NewDecoder(w.Body).Decode(reply); err != nil {
			t.Fatalf("%s %s: decode reply: %v", method, path, err)
		}
	}
	return w.Code, nil
}

func TestTasks(t *testing.T) {
	h := newHandler(t, nil, nil)
	var id IDReply
	if _, err := do(t, h, "POST", "/v1/tasks", remote.TaskSpec{Func: "server.echo", Args: ioArgs("hello")}, &id); err != nil {
		t.Fatal(err)
	}
	var res remote.Result
	if _, err := do(t, h, "GET", "/v1/objects/"+id.ID, nil, &res); err != nil {
		t.Fatal(err)
	}
	if res.Err != nil {
		t.Fatal(res.Err)
	}
	expect.EQ(t, string(res.Value), `"hello"`)

	code, err := do(t, h, "POST", "/v1/tasks", remote.TaskSpec{Func: "server.nonexistent"}, nil)
	expect.EQ(t, code, http.StatusNotFound)
	expect.True(t, errors.Is(errors.NotExist, err))

	code, err = do(t, h, "GET", "/v1/tasks", nil, nil)
	expect.EQ(t, code, http.StatusMethodNotAllowed)
	expect.True(t, errors.Is(errors.NotAllowed, err))

	// A task that fails replies with the failure in the result.
	if _, err := do(t, h, "POST", "/v1/tasks", remote.TaskSpec{Func: "server.echo", Args: ioArgs(1)}, &id); err != nil {
		t.Fatal(err)
	}
	if _, err := do(t, h, "GET", "/v1/objects/"+id.ID, nil, &res); err != nil {
		t.Fatal(err)
	}
	if res.Err == nil || res.Err.Kind != errors.Invalid {
		t.Errorf("expected invalid result, got %v", res.Err)
	}
}

func TestObjects(t *testing.T) {
	h := newHandler(t, nil, nil)
	code, err := do(t, h, "GET", "/v1/objects/notadigest", nil, nil)
	expect.EQ(t, code, http.StatusBadRequest)
	expect.True(t, errors.Is(errors.Invalid, err))

	code, err = do(t, h, "GET", "/v1/objects/"+remote.NewObjectID().String(), nil, nil)
	expect.EQ(t, code, http.StatusNotFound)
	expect.True(t, errors.Is(errors.NotExist, err))
}

func TestActors(t *testing.T) {
	h := newHandler(t, nil, nil)
	var id IDReply
	if _, err := do(t, h, "POST", "/v1/actors", remote.ActorSpec{Class: "server.Adder", Args: ioArgs(10)}, &id); err != nil {
		t.Fatal(err)
	}
	var call IDReply
	if _, err := do(t, h, "POST", "/v1/actors/"+id.ID+"/calls", remote.CallSpec{Method: "Add", Args: ioArgs(5)}, &call); err != nil {
		t.Fatal(err)
	}
	var res remote.Result
	if _, err := do(t, h, "GET", "/v1/objects/"+call.ID, nil, &res); err != nil {
		t.Fatal(err)
	}
	expect.EQ(t, string(res.Value), "15")

	var inspect remote.ActorInspect
	if _, err := do(t, h, "GET", "/v1/actors/"+id.ID, nil, &inspect); err != nil {
		t.Fatal(err)
	}
	expect.EQ(t, inspect.ID, id.ID)
	expect.EQ(t, inspect.Class, "server.Adder")
	expect.EQ(t, inspect.State, remote.ActorAlive)
	expect.EQ(t, inspect.Calls, 1)

	var actors []remote.ActorInspect
	if _, err := do(t, h, "GET", "/v1/actors", nil, &actors); err != nil {
		t.Fatal(err)
	}
	expect.EQ(t, len(actors), 1)

	var killed string
	if _, err := do(t, h, "DELETE", "/v1/actors/"+id.ID, nil, &killed); err != nil {
		t.Fatal(err)
	}
	expect.EQ(t, killed, "actor killed")
	code, err := do(t, h, "POST", "/v1/actors/"+id.ID+"/calls", remote.CallSpec{Method: "Add", Args: ioArgs(1)}, nil)
	expect.EQ(t, code, http.StatusNotFound)
	expect.True(t, errors.Is(errors.NotExist, err))

	code, _ = do(t, h, "GET", "/v1/actors/nonexistent", nil, nil)
	expect.EQ(t, code, http.StatusNotFound)
	code, _ = do(t, h, "GET", "/v1/actors/"+id.ID+"/other", nil, nil)
	expect.EQ(t, code, http.StatusNotFound)
	code, _ = do(t, h, "POST", "/v1/actors", remote.ActorSpec{Class: "server.Nonexistent"}, nil)
	expect.EQ(t, code, http.StatusNotFound)
}

func TestRegistry(t *testing.T) {
	h := newHandler(t, nil, nil)
	var reg Registry
	if _, err := do(t, h, "GET", "/v1/registry", nil, &reg); err != nil {
		t.Fatal(err)
	}
	expect.EQ(t, reg.Funcs, remote.Funcs())
	expect.EQ(t, reg.Classes, remote.Classes())
}

func TestAdmission(t *testing.T) {
	m, err := prometrics.New("server")
	if err != nil {
		t.Fatal(err)
	}
	h := newHandler(t, rate.NewLimiter(0, 1), m)
	spec := remote.TaskSpec{Func: "server.echo", Args: ioArgs("x")}
	if _, err := do(t, h, "POST", "/v1/tasks", spec, nil); err != nil {
		t.Fatal(err)
	}
	code, err := do(t, h, "POST", "/v1/tasks", spec, nil)
	expect.EQ(t, code, http.StatusServiceUnavailable)
	expect.True(t, errors.Is(errors.Temporary, err))
	code, _ = do(t, h, "POST", "/v1/actors", remote.ActorSpec{Class: "server.Adder", Args: ioArgs(0)}, nil)
	expect.EQ(t, code, http.StatusServiceUnavailable)
	// Reads are not subject to admission.
	if _, err := do(t, h, "GET", "/v1/actors", nil, nil); err != nil {
		t.Fatal(err)
	}

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(w.Body.String(), "server_submissions_rejected_count 2") {
		t.Errorf("missing rejection count:\n%s", w.Body.String())
	}
}
