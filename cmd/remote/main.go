// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Remote inspects the configured executor: it lists and kills
// actors, and prints the executor's registry and configuration.
package main

import (
	"os"

	"github.com/grailbio/remote/config"
	_ "github.com/grailbio/remote/config/all"
	_ "github.com/grailbio/remote/squarer"
	"github.com/grailbio/remote/tool"
)

var configFile = os.ExpandEnv("$HOME/.remote/config.yaml")

const intro = `To inspect a remotelet, configure the node executor:

	remote -executor node,http://localhost:9000 actors`

func main() {
	cmd := &tool.Cmd{
		Name:              "remote",
		Config:            config.Base{config.Executor: "local"},
		DefaultConfigFile: configFile,
		EnvFiles:          []string{".env"},
		Intro:             intro,
	}
	cmd.ParseFlags(os.Args[1:])
	cmd.Main()
}
