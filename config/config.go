// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package config defines an interface for configuring a remote
// runtime. This interface can be composed in multiple ways, allowing
// for layered configuration: builtin defaults, a YAML file, the
// process environment, and command line flags.
//
// A configuration is a set of keys (corresponding to toplevel keys
// in a YAML document). The keys in AllKeys correspond to objects
// that are configured by the Config interface. These keys are
// provisioned by globally registered providers; the keys must be
// string formatted, and contain the (registered) name of the
// provider, followed by an optional comma and string argument. For
// example:
//
//	executor: node,http://worker:9000
//
// configures the executor key (corresponding to Config.Executor)
// using the node provider; the argument "http://worker:9000" is
// used to configure it.
//
// Providers are registered globally by the packages under config/;
// importing config/all makes every standard provider available.
package config

import (
	"context"
	"fmt"
	"io/ioutil"
	golog "log"
	"os"
	"strings"
	"sync"

	"github.com/grailbio/remote"
	"github.com/grailbio/remote/errors"
	"github.com/grailbio/remote/log"
	"github.com/grailbio/remote/metrics"
	yaml "gopkg.in/yaml.v2"
)

// The following are the set of keys provisioned by Config.
const (
	Logger   = "logger"
	Metrics  = "metrics"
	Tracing  = "tracing"
	Executor = "executor"
)

// AllKeys defines the order in which configuration keys are
// provisioned. Thus, providers for keys later in the list may use
// configuration provided by providers for keys earlier in the list.
var AllKeys = []string{
	Logger,
	Metrics,
	Tracing,
	Executor,
}

// Keys is a map of string keys to configuration values.
type Keys map[string]interface{}

// A Config provides a number of methods to mint new objects that
// are used by the remote runtime. It is safe to call each method
// multiple times, but they should not be called concurrently.
type Config interface {
	// Logger returns the configured logger.
	Logger() (*log.Logger, error)

	// Metrics returns the configured metrics client. A nil client
	// turns metrics off.
	Metrics() (metrics.Client, error)

	// Tracing installs the configured tracer and returns a function
	// that flushes and shuts it down.
	Tracing(ctx context.Context) (shutdown func(context.Context) error, err error)

	// Executor returns the configured executor.
	Executor() (remote.Executor, error)

	// Value returns the value of the given key.
	Value(key string) interface{}

	// Marshal marshals the current configuration into keys.
	Marshal(keys Keys) error

	// Keys returns all the keys as defined by this config.
	Keys() Keys
}

// Base defines a base configuration with reasonable defaults
// where they apply.
type Base Keys

// Logger returns a logger that outputs to standard error.
func (b Base) Logger() (*log.Logger, error) {
	return log.New(golog.New(os.Stderr, "", golog.LstdFlags), log.InfoLevel), nil
}

// Metrics returns a nil client: metrics are off.
func (b Base) Metrics() (metrics.Client, error) {
	return nil, nil
}

// Tracing installs nothing.
func (b Base) Tracing(ctx context.Context) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}

// Executor returns an error indicating no executor was configured.
func (b Base) Executor() (remote.Executor, error) {
	return nil, errors.E(errors.NotExist, errors.New("executor not configured"))
}

// Keys returns the configured keys.
func (b Base) Keys() Keys {
	return Keys(b)
}

// Value returns the value for the provided key.
func (b Base) Value(key string) interface{} {
	return b[key]
}

// Marshal populates the provided key dictionary with the keys
// present in this configuration.
func (b Base) Marshal(keys Keys) error {
	for k, v := range b {
		keys[k] = v
	}
	return nil
}

// Unmarshal unmarshals the (YAML-configured) configuration in b into
// keys.
func Unmarshal(b []byte, keys Keys) error {
	return yaml.Unmarshal(b, keys)
}

// Marshal marshals the given keys into YAML-formatted bytes.
func Marshal(cfg Config) ([]byte, error) {
	keys := make(Keys)
	if err := cfg.Marshal(keys); err != nil {
		return nil, err
	}
	return yaml.Marshal(keys)
}

// Make evaluates a config's keys: for each key in AllKeys (and in
// the order defined by AllKeys), Make parses its provider, and
// provisions the key accordingly. Make returns errors if a provider
// cannot be found or if the provider fails to configure the given
// key.
func Make(cfg Config) (Config, error) {
	for _, key := range AllKeys {
		v := cfg.Value(key)
		if v == nil {
			continue
		}
		vstr, ok := v.(string)
		if !ok {
			return nil, errors.E("config", key, errors.Invalid, fmt.Errorf("expected string, got %T", v))
		}
		name, arg := peel(vstr, ",")
		provider, ok := Lookup(key, name)
		if !ok {
			return nil, errors.E("config", key, errors.NotExist, fmt.Errorf("provider %s not defined", name))
		}
		var err error
		cfg, err = provider.Configure(cfg, arg)
		if err != nil {
			return nil, errors.E("config", key, name, err)
		}
	}
	return cfg, nil
}

// Parse parses and provisions a configuration from the
// YAML-formatted bytes b.
func Parse(b []byte) (Config, error) {
	base := make(Base)
	if err := Unmarshal(b, Keys(base)); err != nil {
		return nil, errors.E("config", errors.Invalid, err)
	}
	return Make(base)
}

// ParseFile reads and then parses the configuration from the
// provided filename.
func ParseFile(filename string) (Config, error) {
	b, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// A Provider provisions a single key in a configuration. Providers
// must be registered via the package's Register function.
type Provider struct {
	Configure        func(cfg Config, arg string) (Config, error)
	Kind, Arg, Usage string
}

var (
	providers = make(map[string]map[string]Provider)
	mu        sync.Mutex
)

// Register the configuration provider kind for the given key. The
// arg and usage string should describe the provider's argument.
// Register panics if key is not one of AllKeys or if kind is
// already registered for key.
func Register(key, kind, arg, usage string, configure func(Config, string) (Config, error)) {
	if !isKey(key) {
		panic(fmt.Sprintf("config.Register: unknown key %s", key))
	}
	mu.Lock()
	defer mu.Unlock()
	kindmap := providers[key]
	if kindmap == nil {
		kindmap = make(map[string]Provider)
		providers[key] = kindmap
	}
	if _, ok := kindmap[kind]; ok {
		panic(fmt.Sprintf("provider %s already registered for key %s", kind, key))
	}
	kindmap[kind] = Provider{
		Configure: configure,
		Kind:      kind,
		Arg:       arg,
		Usage:     usage,
	}
}

// Lookup returns the Provider of kind for key.
func Lookup(key, kind string) (Provider, bool) {
	mu.Lock()
	defer mu.Unlock()
	p, ok := providers[key][kind]
	return p, ok
}

// Usage contains usage information for a provider.
type Usage struct {
	Kind, Arg, Usage string
}

// Help returns Usages, organized by key.
func Help() map[string][]Usage {
	mu.Lock()
	defer mu.Unlock()
	help := make(map[string][]Usage)
	for key, keyProviders := range providers {
		var usages []Usage
		for name, provider := range keyProviders {
			usages = append(usages, Usage{
				Kind:  name,
				Arg:   provider.Arg,
				Usage: provider.Usage,
			})
		}
		help[key] = usages
	}
	return help
}

func isKey(key string) bool {
	for _, k := range AllKeys {
		if k == key {
			return true
		}
	}
	return false
}

func peel(s, sep string) (head, tail string) {
	switch parts := strings.SplitN(s, sep, 2); len(parts) {
	case 1:
		return parts[0], ""
	case 2:
		return parts[0], parts[1]
	default:
		panic("bug")
	}
}
