// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package tool

import (
	"bytes"
	"context"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/remote"
	"github.com/grailbio/remote/config"
	_ "github.com/grailbio/remote/config/localconfig"
	"github.com/grailbio/remote/local"
	"github.com/grailbio/testutil/expect"
)

type probe struct{}

func (*probe) Ping() string { return "pong" }

var (
	probeClass = remote.Class("tool.probe", func() *probe { return new(probe) })
	_          = remote.Func("tool.ping", func() string { return "pong" })
)

func newCmd(t *testing.T, args ...string) (*Cmd, *bytes.Buffer) {
	t.Helper()
	var stdout bytes.Buffer
	c := &Cmd{
		Name:   "test",
		Config: config.Base{config.Executor: "local,2"},
		Stdout: &stdout,
		Stderr: ioutil.Discard,
	}
	if err := c.Flags().Parse(args); err != nil {
		t.Fatal(err)
	}
	return c, &stdout
}

func concurrency(t *testing.T, c *Cmd) int {
	t.Helper()
	if err := c.makeConfig(); err != nil {
		t.Fatal(err)
	}
	e := c.Executor().(*local.Executor)
	defer e.Stop()
	return e.Concurrency
}

func TestConfigLayers(t *testing.T) {
	t.Setenv(config.EnvVar(config.Executor), "")
	c, _ := newCmd(t)
	expect.EQ(t, concurrency(t, c), 2)

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := ioutil.WriteFile(path, []byte("executor: local,3\n"), 0644); err != nil {
		t.Fatal(err)
	}
	c, _ = newCmd(t, "-config", path)
	expect.EQ(t, concurrency(t, c), 3)

	t.Setenv(config.EnvVar(config.Executor), "local,4")
	c, _ = newCmd(t, "-config", path)
	expect.EQ(t, concurrency(t, c), 4)

	c, _ = newCmd(t, "-config", path, "-executor", "local,5")
	expect.EQ(t, concurrency(t, c), 5)
}

func TestMissingConfigFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.yaml")
	c, _ := newCmd(t, "-config", missing)
	if err := c.makeConfig(); err == nil {
		t.Error("expected error")
	}
	c, _ = newCmd(t)
	c.DefaultConfigFile = missing
	c.ConfigFile = missing
	expect.NoError(t, c.makeConfig())
}

func TestActors(t *testing.T) {
	t.Setenv(config.EnvVar(config.Executor), "")
	c, stdout := newCmd(t)
	if err := c.makeConfig(); err != nil {
		t.Fatal(err)
	}
	exec := c.Executor()
	defer exec.(*local.Executor).Stop()
	ctx := remote.WithExecutor(context.Background(), exec)
	live, err := probeClass.Remote(ctx)
	if err != nil {
		t.Fatal(err)
	}
	dead, err := probeClass.Remote(ctx)
	if err != nil {
		t.Fatal(err)
	}
	expect.NoError(t, dead.Kill(ctx))

	c.actors(ctx)
	out := stdout.String()
	expect.HasSubstr(t, out, live.ID())
	expect.HasSubstr(t, out, "second")
	expect.True(t, !strings.Contains(out, dead.ID()))

	stdout.Reset()
	c.actors(ctx, "-a")
	expect.HasSubstr(t, stdout.String(), dead.ID())

	stdout.Reset()
	c.kill(ctx, live.ID())
	c.inspect(ctx, live.ID())
	expect.HasSubstr(t, stdout.String(), "dead")
}

func TestRegistry(t *testing.T) {
	c, stdout := newCmd(t)
	if err := c.makeConfig(); err != nil {
		t.Fatal(err)
	}
	c.registry(context.Background())
	expect.HasSubstr(t, stdout.String(), "func tool.ping\n")
	expect.HasSubstr(t, stdout.String(), "class tool.probe\n\tPing\n")
}

func TestPrintConfig(t *testing.T) {
	c, stdout := newCmd(t, "-executor", "local,7")
	if err := c.makeConfig(); err != nil {
		t.Fatal(err)
	}
	c.config(context.Background())
	expect.HasSubstr(t, stdout.String(), "executor: local,7")
}

func TestRunFlags(t *testing.T) {
	for _, c := range []struct {
		args []string
		want []string
		log  string
	}{
		{[]string{"3"}, []string{"3"}, "info"},
		{[]string{"-3"}, []string{"-3"}, "info"},
		{[]string{"-log", "debug", "-3"}, []string{"-3"}, "debug"},
		{[]string{"-3", "-log", "debug"}, []string{"-3", "-log", "debug"}, "info"},
		{[]string{"--", "-3"}, []string{"-3"}, "info"},
		{[]string{"-executor", "local,2", "-12", "4"}, []string{"-12", "4"}, "info"},
	} {
		cmd := &Cmd{
			Name:   "test",
			Config: config.Base{config.Executor: "local,2"},
			Run:    func(*Cmd, context.Context, ...string) {},
			Stdout: ioutil.Discard,
			Stderr: ioutil.Discard,
		}
		cmd.ParseFlags(c.args)
		expect.EQ(t, cmd.Flags().Args(), c.want)
		expect.EQ(t, cmd.logFlag, c.log)
	}
}

func TestNumericOperands(t *testing.T) {
	for _, c := range []struct {
		args, want []string
	}{
		{nil, nil},
		{[]string{"-log", "debug"}, []string{"-log", "debug"}},
		{[]string{"-3"}, []string{"--", "-3"}},
		{[]string{"-log", "debug", "-3", "-4"}, []string{"-log", "debug", "--", "-3", "-4"}},
		{[]string{"--", "-3"}, []string{"--", "-3"}},
		{[]string{"-"}, []string{"-"}},
	} {
		expect.EQ(t, numericOperands(c.args), c.want)
	}
}
