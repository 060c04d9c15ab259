// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes the environment variables that override
// configuration keys: the key executor is overridden by
// REMOTE_EXECUTOR.
const EnvPrefix = "REMOTE_"

// Env overrides a set of config keys from the process environment.
type Env struct {
	Config

	// Getenv looks up environment variables. It defaults to
	// os.Getenv.
	Getenv func(string) string
}

// EnvVar returns the name of the environment variable that
// overrides key.
func EnvVar(key string) string {
	return EnvPrefix + strings.ToUpper(key)
}

// Value returns the environment's override value for key key, or
// else the value from the layered configuration.
func (e *Env) Value(key string) interface{} {
	if v := e.lookup(key); v != "" {
		return v
	}
	return e.Config.Value(key)
}

// Marshal adds the environment's overrides to the keys marshaled by
// the underlying configuration.
func (e *Env) Marshal(keys Keys) error {
	if err := e.Config.Marshal(keys); err != nil {
		return err
	}
	for _, key := range AllKeys {
		if v := e.lookup(key); v != "" {
			keys[key] = v
		}
	}
	return nil
}

func (e *Env) lookup(key string) string {
	getenv := e.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	return getenv(EnvVar(key))
}

// LoadEnv loads the provided dotenv files into the process
// environment. Files that do not exist are skipped; variables
// already set in the environment are not overwritten.
func LoadEnv(filenames ...string) error {
	for _, filename := range filenames {
		if _, err := os.Stat(filename); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(filename); err != nil {
			return err
		}
	}
	return nil
}
