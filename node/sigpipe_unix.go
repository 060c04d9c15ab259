// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

//go:build unix

package node

import (
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

// IgnoreSigpipe consumes (and ignores) SIGPIPE signals. As of Go
// 1.6, these are generated only for stdout and stderr.
//
// This is useful where a node's standard output is closed while
// running, as can happen when journald restarts on systemd managed
// systems.
func IgnoreSigpipe() {
	c := make(chan os.Signal, 1024)
	signal.Notify(c, unix.SIGPIPE)
	for {
		<-c
	}
}
