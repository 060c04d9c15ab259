// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Squarer squares its integer argument and has a remote Squarer
// actor label the result:
//
//	$ squarer 3
//	The square of 9 is 81
//
// By default, the actor and the functions it calls run in process.
// Configure the executor key to run them on a remotelet:
//
//	$ squarer -executor node,http://localhost:9000 3
//
// Negative arguments need no "--": squarer -3 also prints
// "The square of 9 is 81".
package main

import (
	"context"
	"os"

	"github.com/grailbio/remote"
	"github.com/grailbio/remote/config"
	_ "github.com/grailbio/remote/config/all"
	"github.com/grailbio/remote/squarer"
	"github.com/grailbio/remote/tool"
)

var configFile = os.ExpandEnv("$HOME/.remote/config.yaml")

func main() {
	cmd := &tool.Cmd{
		Name:              "squarer",
		Config:            config.Base{config.Executor: "local"},
		DefaultConfigFile: configFile,
		EnvFiles:          []string{".env"},
		Usage:             "<n>",
		Run:               run,
	}
	cmd.ParseFlags(os.Args[1:])
	cmd.Main()
}

func run(c *tool.Cmd, ctx context.Context, args ...string) {
	if len(args) == 0 {
		c.Flags().Usage()
	}
	// Arguments after the first are ignored.
	n, err := squarer.ParseArg(args[0])
	if err != nil {
		c.Fatal(err)
	}
	ctx = remote.WithExecutor(ctx, c.Executor())
	label, err := squarer.Run(ctx, n)
	if err != nil {
		c.Fatal(err)
	}
	c.Println(label)
}
