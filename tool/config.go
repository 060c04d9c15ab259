// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package tool

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"sort"

	"github.com/grailbio/remote/config"
)

func (c *Cmd) config(ctx context.Context, args ...string) {
	var (
		flags  = flag.NewFlagSet("config", flag.ExitOnError)
		header = `Config writes the current configuration to standard output.

The configuration is a YAML file with the following toplevel keys:

`
		footer = `Each key may be overridden by the environment variable
REMOTE_<KEY> (e.g., REMOTE_EXECUTOR=node,http://worker:9000), which
may also be set in a .env file, and by the flag -<key>.`
	)
	// Construct a help string from the available providers.
	b := new(bytes.Buffer)
	b.WriteString(header)
	help := config.Help()
	for _, key := range config.AllKeys {
		usages := help[key]
		sort.Slice(usages, func(i, j int) bool { return usages[i].Kind < usages[j].Kind })
		fmt.Fprintf(b, "%s:\n", key)
		for _, u := range usages {
			kind := u.Kind
			if u.Arg != "" {
				kind += "," + u.Arg
			}
			fmt.Fprintf(b, "\t%s\n\t\t%s\n", kind, u.Usage)
		}
		b.WriteString("\n")
	}
	b.WriteString(footer)
	c.Parse(flags, args, b.String(), "config")
	if flags.NArg() != 0 {
		flags.Usage()
	}
	data, err := config.Marshal(c.Config)
	c.must(err)
	c.Stdout.Write(data)
}
