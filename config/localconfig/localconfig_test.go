// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package localconfig

import (
	"testing"

	"github.com/grailbio/remote/config"
	_ "github.com/grailbio/remote/config/promconfig"
	"github.com/grailbio/remote/errors"
	"github.com/grailbio/remote/local"
	"github.com/grailbio/testutil/expect"
)

func TestLocal(t *testing.T) {
	cfg, err := config.Parse([]byte("metrics: prometheus,test\nexecutor: local,2,8\n"))
	if err != nil {
		t.Fatal(err)
	}
	exec, err := config.Once(cfg).Executor()
	if err != nil {
		t.Fatal(err)
	}
	e, ok := exec.(*local.Executor)
	if !ok {
		t.Fatalf("expected *local.Executor, got %T", exec)
	}
	defer e.Stop()
	expect.EQ(t, e.Concurrency, 2)
	expect.EQ(t, e.Mailbox, 8)
	expect.True(t, e.Metrics != nil)
}

func TestLocalDefaults(t *testing.T) {
	cfg, err := config.Parse([]byte("executor: local\n"))
	if err != nil {
		t.Fatal(err)
	}
	exec, err := cfg.Executor()
	if err != nil {
		t.Fatal(err)
	}
	e := exec.(*local.Executor)
	defer e.Stop()
	expect.True(t, e.Concurrency > 0)
	expect.EQ(t, e.Mailbox, local.DefaultMailbox)
}

func TestLocalInvalid(t *testing.T) {
	for _, arg := range []string{"x", "-1", "1,2,3", "1,y"} {
		_, err := config.Parse([]byte("executor: local," + arg + "\n"))
		if !errors.Is(errors.Invalid, err) {
			t.Errorf("%s: expected invalid error, got %v", arg, err)
		}
	}
}
