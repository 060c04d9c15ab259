// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package tool implements the command line driver shared by the
// remote runtime's commands. A Cmd layers configuration from its
// builtin defaults, a YAML file, the environment, and flags; sets up
// logging, tracing and metrics; and invokes the requested command
// with a context that carries the configured executor.
package tool

import (
	"context"
	"flag"
	"fmt"
	"io"
	"io/ioutil"
	golog "log"
	"net/http"
	_ "net/http/pprof" // Global pprof handlers for all instantiations of the tool.
	"os"
	"os/signal"
	"sort"
	"time"

	"github.com/grailbio/remote"
	"github.com/grailbio/remote/config"
	"github.com/grailbio/remote/log"
	"github.com/grailbio/remote/metrics"
)

// Func is the type of a command function.
type Func func(*Cmd, context.Context, ...string)

// Cmd holds the configuration, flag definitions, and runtime objects
// required for tool invocations.
type Cmd struct {
	// Name is the command's name, as used in usage messages.
	Name string

	// Config must be specified. It provides the builtin defaults
	// that are overridden by the configuration file, the
	// environment, and flags.
	Config            config.Config
	DefaultConfigFile string

	// EnvFiles are dotenv files loaded into the environment before
	// configuration is evaluated. Missing files are ignored.
	EnvFiles []string

	// Run, if set, makes this a single-command tool: Run is invoked
	// with all of the tool's arguments, and subcommands are not
	// available.
	Run Func
	// Usage is the argument synopsis printed in the usage message of
	// single-command tools.
	Usage string

	// Commands contains the additional set of invocable commands.
	Commands map[string]Func

	// Intro is an additional introduction printed after the standard one.
	Intro string

	// The standard output and error as defined by this command.
	Stdout, Stderr io.Writer

	// ConfigFile stores the path of the active configuration file.
	// May be overriden by the -config flag.
	ConfigFile string

	Log *log.Logger

	configFlag config.Flag
	httpFlag   string
	logFlag    string

	onexits []func()

	flags *flag.FlagSet
}

var commands = map[string]Func{
	"config":   (*Cmd).config,
	"actors":   (*Cmd).actors,
	"inspect":  (*Cmd).inspect,
	"kill":     (*Cmd).kill,
	"registry": (*Cmd).registry,
}

var intro = `The %[1]s command runs and inspects remote functions and actors.

The command comprises a set of subcommands; the list of supported
commands can be obtained by running

	%[1]s -help

Each subcommand can in turn be invoked with -help, displaying its
usage and help text.

The executor on which functions and actors run is configured by the
executor key; it may run them in process (local) or on a remote node
(node). The configuration is read from a YAML file (-config) and may
be overridden by environment variables (REMOTE_<KEY>, also read from
a .env file) and by flags. The current configuration is printed by

	%[1]s config`

func (c *Cmd) usage(flags *flag.FlagSet) {
	if c.Run != nil {
		fmt.Fprintf(c.Stderr, "usage: %s [flags] %s\n", c.Name, c.Usage)
		fmt.Fprintln(c.Stderr, "Flags:")
		flags.PrintDefaults()
		c.Exit(2)
	}
	fmt.Fprintf(c.Stderr, "usage: %s [flags] <command> [args]\n", c.Name)
	fmt.Fprintf(c.Stderr, "%s commands:\n", c.Name)
	var cmds []string
	for name := range c.commands() {
		cmds = append(cmds, name)
	}
	sort.Strings(cmds)
	for _, name := range cmds {
		fmt.Fprintln(c.Stderr, "\t"+name)
	}
	fmt.Fprintln(c.Stderr, "Global flags:")
	flags.PrintDefaults()
	c.Exit(2)
}

// Main evaluates the configuration and then invokes the requested
// command. The caller is expected to have parsed the flagset before
// calling Main:
//
//	cmd.Flags().Parse(os.Args[1:])
//
// Main should only be called once.
func (c *Cmd) Main() {
	flags := c.Flags()
	var (
		fn   Func
		args []string
	)
	if c.Run != nil {
		fn, args = c.Run, flags.Args()
	} else {
		if flags.NArg() == 0 {
			fmt.Fprintf(c.Stderr, intro, c.Name)
			fmt.Fprintln(c.Stderr)
			if c.Intro != "" {
				fmt.Fprintln(c.Stderr)
				fmt.Fprintln(c.Stderr, c.Intro)
			}
			c.Exit(2)
		}
		fn, args = c.commands()[flags.Arg(0)], flags.Args()[1:]
		if fn == nil {
			flags.Usage()
		}
	}
	level, err := log.ParseLevel(c.logFlag)
	if err != nil {
		c.Fatal(err)
	}
	logflags := golog.LstdFlags
	if level == log.DebugLevel {
		logflags |= golog.Lmicroseconds
	}
	// Set the system wide logger with the same level and output
	// as the one that's threaded through Cmd.
	log.Std = log.New(golog.New(c.Stderr, c.Name+": ", logflags), level)
	c.Log = log.Std

	if err := c.makeConfig(); err != nil {
		c.Fatal(err)
	}
	if c.Log, err = c.Config.Logger(); err != nil {
		c.Fatal(err)
	}

	// Create a context and cancel it if we receive an interrupt.
	// The second interrupt we receive results in a hard exit.
	ctx, cancel := context.WithCancel(context.Background())
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt)
	go func() {
		<-sigc
		cancel()
		c.Errorln("cleaning up...")
		<-sigc
		c.Exit(1)
	}()

	shutdown, err := c.Config.Tracing(ctx)
	if err != nil {
		c.Fatal(err)
	}
	c.onexit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			c.Log.Errorf("trace shutdown: %v", err)
		}
	})
	m, err := c.Config.Metrics()
	if err != nil {
		c.Fatal(err)
	}
	if m != nil {
		ctx = metrics.WithClient(ctx, m)
	}
	if c.httpFlag != "" {
		if h, ok := m.(interface{ Handler() http.Handler }); ok {
			http.Handle("/metrics", h.Handler())
		}
		go func() {
			c.Fatal(http.ListenAndServe(c.httpFlag, nil))
		}()
	}
	fn(c, ctx, args...)
	c.Exit(0)
}

// makeConfig layers the configuration sources, later sources taking
// precedence: c.Config's builtin keys, the configuration file, the
// environment, and flags. The resulting configuration is memoized.
func (c *Cmd) makeConfig() error {
	if err := config.LoadEnv(c.EnvFiles...); err != nil {
		return err
	}
	if c.ConfigFile != "" {
		b, err := ioutil.ReadFile(c.ConfigFile)
		switch {
		case err == nil:
			if err := config.Unmarshal(b, c.Config.Keys()); err != nil {
				return err
			}
		case !os.IsNotExist(err) || c.ConfigFile != c.DefaultConfigFile:
			return err
		}
	}
	var cfg config.Config = &logConfig{c.Config, c.Log}
	cfg = &config.Env{Config: cfg}
	c.configFlag.Config = cfg
	cfg, err := config.Make(&c.configFlag)
	if err != nil {
		return err
	}
	c.Config = config.Once(cfg)
	return nil
}

// Executor returns the configured executor. Executors that need
// stopping are stopped when the command exits.
func (c *Cmd) Executor() remote.Executor {
	exec, err := c.Config.Executor()
	if err != nil {
		c.Fatal(err)
	}
	if s, ok := exec.(interface{ Stop() }); ok {
		c.onexit(s.Stop)
	}
	return exec
}

// Fatal formats a message in the manner of fmt.Print, prints it to
// stderr, and then exits the tool.
func (c *Cmd) Fatal(v ...interface{}) {
	fmt.Fprintln(c.Stderr, v...)
	c.Exit(1)
}

// Fatalf formats a message in the manner of fmt.Printf, prints it to
// stderr, and then exits the tool.
func (c *Cmd) Fatalf(format string, v ...interface{}) {
	fmt.Fprintf(c.Stderr, format, v...)
	fmt.Fprintln(c.Stderr)
	c.Exit(1)
}

// Errorln formats a message in the manner of fmt.Println and prints it
// to stderr.
func (c *Cmd) Errorln(v ...interface{}) {
	fmt.Fprintln(c.Stderr, v...)
}

// Errorf formats a message in the manner of fmt.Printf and prints it
// to stderr.
func (c *Cmd) Errorf(format string, v ...interface{}) {
	fmt.Fprintf(c.Stderr, format, v...)
}

// Println formats a message in the manner of fmt.Println and prints
// it to stdout.
func (c *Cmd) Println(v ...interface{}) {
	fmt.Fprintln(c.Stdout, v...)
}

// Printf formats a message in the manner of fmt.Printf and prints it
// to stdout.
func (c *Cmd) Printf(format string, v ...interface{}) {
	fmt.Fprintf(c.Stdout, format, v...)
}

// Exit causes the command to exit with the provided status code.
// Exit ensures that command teardown is properly handled: exit
// functions run in the reverse order of their registration.
func (c *Cmd) Exit(code int) {
	for i := len(c.onexits) - 1; i >= 0; i-- {
		c.onexits[i]()
	}
	os.Exit(code)
}

// Flags initializes and returns the FlagSet used by this Cmd instance.
// The user should parse this flagset before invoking (*Cmd).Main, e.g.:
//
//	cmd.Flags().Parse(os.Args[1:])
func (c *Cmd) Flags() *flag.FlagSet {
	if c.flags == nil {
		if c.Stdout == nil {
			c.Stdout = os.Stdout
		}
		if c.Stderr == nil {
			c.Stderr = os.Stderr
		}
		if c.Name == "" {
			c.Name = "remote"
		}
		c.flags = flag.NewFlagSet(c.Name, flag.ExitOnError)
		c.flags.SetOutput(c.Stderr)
		c.flags.Usage = func() { c.usage(c.flags) }
		c.flags.StringVar(&c.ConfigFile, "config", c.DefaultConfigFile, "path to configuration file; otherwise use default (builtin) config")
		c.flags.StringVar(&c.httpFlag, "http", "", "run a diagnostic HTTP server on this address")
		c.flags.StringVar(&c.logFlag, "log", "info", "set the log level: off, error, info, debug")
		// Add flags to override configuration.
		c.configFlag.Init(c.flags)
	}
	return c.flags
}

// ParseFlags parses the command's flags from args. For single-command
// tools, an argument that reads as a negative number ends the flags
// and is passed to Run, so that "squarer -3" runs with -3.
func (c *Cmd) ParseFlags(args []string) {
	flags := c.Flags()
	if c.Run != nil {
		args = numericOperands(args)
	}
	// The flagset exits on error.
	_ = flags.Parse(args)
}

// numericOperands inserts "--" in front of the first negative number
// in args that precedes any existing "--".
func numericOperands(args []string) []string {
	for i, arg := range args {
		if arg == "--" {
			break
		}
		if len(arg) > 1 && arg[0] == '-' && '0' <= arg[1] && arg[1] <= '9' {
			out := make([]string, 0, len(args)+1)
			out = append(out, args[:i]...)
			out = append(out, "--")
			return append(out, args[i:]...)
		}
	}
	return args
}

func (c *Cmd) commands() map[string]Func {
	m := make(map[string]Func)
	for name, f := range commands {
		m[name] = f
	}
	for name, f := range c.Commands {
		m[name] = f
	}
	return m
}

func (c *Cmd) onexit(fn func()) {
	c.onexits = append(c.onexits, fn)
}

type logConfig struct {
	config.Config
	logger *log.Logger
}

func (c *logConfig) Logger() (*log.Logger, error) {
	return c.logger, nil
}
