// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Remotelet is the agent process that runs remote tasks and actors.
// It instantiates a local executor and exposes it via the standard
// REST API; clients reach it by configuring the executor key as
// node,<url>. Remotelet runs the functions and actor classes linked
// into its binary: it must be built with the same registrations as
// its clients.
package main

import (
	"context"
	_ "expvar"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/grailbio/remote/config"
	_ "github.com/grailbio/remote/config/otelconfig"
	_ "github.com/grailbio/remote/config/promconfig"
	"github.com/grailbio/remote/log"
	"github.com/grailbio/remote/node"
	_ "github.com/grailbio/remote/squarer"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: remotelet [flags]

Remotelet is the agent process of the remote runtime. It exposes a
local executor through a REST API. A single remotelet can serve
multiple clients at any given time.

Remotelet reads the logger, metrics, and tracing keys from its
configuration file (-config) and from REMOTE_<KEY> environment
variables. Metrics are served at /metrics when configured.
`)
	flag.PrintDefaults()
	os.Exit(2)
}

func main() {
	var server node.Server
	server.AddFlags(flag.CommandLine)
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() != 0 {
		flag.Usage()
	}
	server.Config = config.Base{config.Metrics: "prometheus"}
	go node.IgnoreSigpipe()
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := server.ListenAndServe(ctx); err != nil {
		log.Fatal(err)
	}
}
