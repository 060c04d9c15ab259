// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package tool

import (
	"context"
	"flag"
	"strings"

	"github.com/grailbio/remote"
	"github.com/grailbio/remote/server"
)

func (c *Cmd) registry(ctx context.Context, args ...string) {
	flags := flag.NewFlagSet("registry", flag.ExitOnError)
	help := `Registry lists the functions and actor classes that may be invoked
on the configured executor. Remote nodes report their own registry;
the local executor serves the functions linked into this binary.`
	c.Parse(flags, args, help, "registry")
	if flags.NArg() != 0 {
		flags.Usage()
	}
	reg := server.Registry{Funcs: remote.Funcs(), Classes: remote.Classes()}
	if r, ok := c.Executor().(interface {
		Registry(context.Context) (server.Registry, error)
	}); ok {
		var err error
		reg, err = r.Registry(ctx)
		c.must(err)
	}
	for _, name := range reg.Funcs {
		c.Println("func", name)
	}
	for _, name := range reg.Classes {
		c.Printf("class %s\n", name)
		class, err := remote.LookupClass(name)
		if err == nil {
			c.Printf("\t%s\n", strings.Join(class.Methods(), " "))
		}
	}
}
