// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/grailbio/remote/errors"
)

func TestEndToEnd(t *testing.T) {
	mux := Mux{
		"foo": WalkFunc(func(path string) Node {
			return DoFunc(func(ctx context.Context, call *Call) {
				if !call.Allow("GET") {
					return
				}
				call.Reply(http.StatusOK, path)
			})
		}),
		"bar": DoFunc(func(ctx context.Context, call *Call) {
			if !call.Allow("POST") {
				return
			}
			var m string
			if call.Unmarshal(&m) != nil {
				return
			}
			call.Reply(http.StatusOK, m)
		}),
	}

	srv := httptest.NewServer(Handler(mux, nil))
	defer srv.Close()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	client := NewClient(nil, u, nil)
	ctx := context.Background()

	call := client.Call("GET", "foo/bar")
	code, err := call.Do(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := code, http.StatusOK; got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
	var m string
	if err := call.Unmarshal(&m); err != nil {
		t.Fatal(err)
	}
	if got, want := m, "bar"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	call.Close()

	call = client.Call("GET", "foos/bar")
	code, err = call.Do(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := code, http.StatusNotFound; got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
	if !errors.Is(errors.NotExist, call.Error()) {
		t.Error("expected NotExist")
	}
	call.Close()

	call = client.Call("POST", "bar")
	code, err = call.DoJSON(ctx, "hello, world!")
	if err != nil {
		t.Fatal(err)
	}
	if got, want := code, http.StatusOK; got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
	if err := call.Unmarshal(&m); err != nil {
		t.Fatal(err)
	}
	if got, want := m, "hello, world!"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	call.Close()

	call = client.Call("GET", "bar")
	code, err = call.Do(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := code, http.StatusMethodNotAllowed; got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
	if !errors.Is(errors.NotAllowed, call.Error()) {
		t.Error("expected NotAllowed")
	}
	call.Close()
}

type errorNode struct {
	err error
}

func (errorNode) Walk(context.Context, *Call, string) Node {
	return nil
}

func (n errorNode) Do(_ context.Context, call *Call) {
	call.Error(n.err)
}

func TestError(t *testing.T) {
	err2 := errors.E("op1", errors.NotExist)
	mux := Mux{
		"err1": errorNode{errors.New("random error")},
		"err2": errorNode{err2},
	}
	h := Handler(mux, nil)

	r := httptest.NewRequest("GET", "/err1", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if got, want := w.Result().StatusCode, http.StatusInternalServerError; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	e := new(errors.Error)
	if err := json.NewDecoder(w.Result().Body).Decode(e); err != nil {
		t.Fatal(err)
	}

	r = httptest.NewRequest("GET", "/err2", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if got, want := w.Result().StatusCode, http.StatusNotFound; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if err := json.NewDecoder(w.Result().Body).Decode(e); err != nil {
		t.Fatal(err)
	}
	if !errors.Is(errors.NotExist, e) {
		t.Errorf("expected %v to be NotExist", e)
	}
	if got, want := e.Error(), "op1: resource does not exist"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestMalformedBody(t *testing.T) {
	h := Handler(Mux{
		"echo": DoFunc(func(ctx context.Context, call *Call) {
			var v struct{ N int }
			if call.Unmarshal(&v) != nil {
				return
			}
			call.Reply(http.StatusOK, v.N)
		}),
	}, nil)
	r := httptest.NewRequest("POST", "/echo", nil)
	r.Body = http.NoBody
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if got, want := w.Result().StatusCode, http.StatusBadRequest; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}
