// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package tool

import (
	"context"
	"flag"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/docker/go-units"
	"github.com/grailbio/remote"
)

func (c *Cmd) actors(ctx context.Context, args ...string) {
	flags := flag.NewFlagSet("actors", flag.ExitOnError)
	allFlag := flags.Bool("a", false, "list dead actors")
	help := `Actors lists the actors on the configured executor.

The columns displayed by actors are:

	id       the actor's identifier
	class    the actor's class
	state    alive or dead
	pending  the number of calls queued on the actor
	calls    the number of calls the actor has completed
	age      the time since the actor was spawned

Actors lists only live actors; flag -a lists all known actors.`
	c.Parse(flags, args, help, "actors [-a]")
	if flags.NArg() != 0 {
		flags.Usage()
	}
	inspects, err := c.Executor().Actors(ctx)
	c.must(err)
	var tw tabwriter.Writer
	tw.Init(c.Stdout, 4, 4, 1, ' ', 0)
	defer tw.Flush()
	for _, inspect := range inspects {
		if !*allFlag && inspect.State != remote.ActorAlive {
			continue
		}
		fmt.Fprintf(&tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			inspect.ID, inspect.Class, inspect.State, inspect.Pending, inspect.Calls,
			units.HumanDuration(time.Since(inspect.Created)))
	}
}

func (c *Cmd) inspect(ctx context.Context, args ...string) {
	flags := flag.NewFlagSet("inspect", flag.ExitOnError)
	help := "Inspect prints the state of the named actors."
	c.Parse(flags, args, help, "inspect actors...")
	if flags.NArg() == 0 {
		flags.Usage()
	}
	exec := c.Executor()
	for _, id := range flags.Args() {
		inspect, err := exec.Inspect(ctx, id)
		if err != nil {
			c.Errorf("%s: %s\n", id, err)
			continue
		}
		c.Println(inspect)
	}
}

func (c *Cmd) kill(ctx context.Context, args ...string) {
	flags := flag.NewFlagSet("kill", flag.ExitOnError)
	help := `Kill kills the named actors. Calls queued on a killed actor fail.`
	c.Parse(flags, args, help, "kill actors...")
	if flags.NArg() == 0 {
		flags.Usage()
	}
	exec := c.Executor()
	for _, id := range flags.Args() {
		if err := exec.Kill(ctx, id); err != nil {
			c.Errorf("%s: %s\n", id, err)
		}
	}
}
