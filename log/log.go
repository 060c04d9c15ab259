// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package log implements leveled, teeing loggers on top of Go's
// standard log package. Executors, servers and clients each take a
// *Logger; a nil *Logger discards everything, so components may be
// used without any logging configured. As with the standard log
// package, a standard logger is available as a package global and via
// package functions.
package log

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// Level defines the level of logging. Higher levels are more
// verbose.
type Level int

const (
	// OffLevel turns logging off.
	OffLevel Level = iota
	// ErrorLevel outputs only error messages.
	ErrorLevel
	// InfoLevel is the standard log level.
	InfoLevel
	// DebugLevel outputs per-call detail: submissions, completions
	// and REST requests.
	DebugLevel
)

var levels = []string{
	OffLevel:   "off",
	ErrorLevel: "error",
	InfoLevel:  "info",
	DebugLevel: "debug",
}

// String returns the flag spelling of level l.
func (l Level) String() string {
	if l < OffLevel || l > DebugLevel {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return levels[l]
}

// ParseLevel parses a level as spelled by Level.String.
func ParseLevel(s string) (Level, error) {
	for l, name := range levels {
		if strings.EqualFold(s, name) {
			return Level(l), nil
		}
	}
	return OffLevel, fmt.Errorf("unrecognized log level %q", s)
}

// An Outputter receives published log messages. Go's
// *log.Logger implements Outputter.
type Outputter interface {
	Output(calldepth int, s string) error
}

// A Logger receives log messages at multiple levels, and publishes
// those messages to its outputter if the level (or logger) is
// active. Nil Loggers ignore all log messages.
type Logger struct {
	// Outputter receives all log messages at or below the Logger's
	// current level.
	Outputter
	// Level defines the publishing level of this Logger.
	Level Level

	parent *Logger
	prefix string
}

// New creates a new Logger that publishes messsages at or below the
// provided level to the provided outputter.
func New(out Outputter, level Level) *Logger {
	if level == OffLevel {
		return nil
	}
	return &Logger{Outputter: out, Level: level}
}

// Print formats a message in the manner of fmt.Print and publishes
// it to the logger at InfoLevel.
func (l *Logger) Print(v ...interface{}) {
	l.print(2, InfoLevel, "", fmt.Sprint(v...))
}

// Printf formats a message in the manner of fmt.Printf and publishes
// it to the logger at InfoLevel.
func (l *Logger) Printf(format string, args ...interface{}) {
	l.print(2, InfoLevel, "", fmt.Sprintf(format, args...))
}

// Error formats a message in the manner of fmt.Print and publishes
// it to the logger at ErrorLevel.
func (l *Logger) Error(v ...interface{}) {
	l.print(2, ErrorLevel, "", fmt.Sprint(v...))
}

// Errorf formats a message in the manner of fmt.Printf and publishes
// it to the logger at ErrorLevel.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.print(2, ErrorLevel, "", fmt.Sprintf(format, args...))
}

// Debug formats a message in the manner of fmt.Print and publishes
// it to the logger at DebugLevel.
func (l *Logger) Debug(v ...interface{}) {
	l.print(2, DebugLevel, "", fmt.Sprint(v...))
}

// Debugf formats a message in the manner of fmt.Printf and publishes
// it to the logger at DebugLevel.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.print(2, DebugLevel, "", fmt.Sprintf(format, args...))
}

// At tells whether the logger is at or below the provided level.
func (l *Logger) At(level Level) bool {
	return l != nil && level <= l.Level
}

// print publishes an already formatted message, walking up the
// chain of parents and accumulating prefixes along the way.
func (l *Logger) print(calldepth int, level Level, prefix, msg string) {
	for ; l != nil; l = l.parent {
		if l.Outputter != nil && level <= l.Level {
			l.Output(calldepth+1, prefix+msg)
		}
		prefix += l.prefix
	}
}

// Tee constructs a new logger that tees its output to the provided
// outputter and parent logger. Messages sent to the parent are
// prefixed with the provided prefix string. Out may be nil, in which
// cases messages are published to the parent only.
func (l *Logger) Tee(out Outputter, prefix string) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{
		Outputter: out,
		Level:     l.Level,
		parent:    l,
		prefix:    prefix,
	}
}

// Std is the standard logger.
var Std = New(log.New(os.Stderr, "", log.LstdFlags), InfoLevel)

// Printf formats a message in the manner of fmt.Printf and publishes
// it to the standard logger at InfoLevel.
func Printf(format string, args ...interface{}) {
	Std.print(2, InfoLevel, "", fmt.Sprintf(format, args...))
}

// Errorf formats a message in the manner of fmt.Printf and publishes
// it to the standard logger at ErrorLevel.
func Errorf(format string, args ...interface{}) {
	Std.print(2, ErrorLevel, "", fmt.Sprintf(format, args...))
}

// Debugf formats a message in the manner of fmt.Printf and publishes
// it to the standard logger at DebugLevel.
func Debugf(format string, args ...interface{}) {
	Std.print(2, DebugLevel, "", fmt.Sprintf(format, args...))
}

// Fatal formats a message in the manner of fmt.Print, outputs it to
// standard error (always), and then calls os.Exit(1).
func Fatal(v ...interface{}) {
	log.Output(2, fmt.Sprint(v...))
	os.Exit(1)
}

// Fatalf formats a message in the manner of fmt.Printf, outputs it to
// standard error (always), and then calls os.Exit(1).
func Fatalf(format string, v ...interface{}) {
	log.Output(2, fmt.Sprintf(format, v...))
	os.Exit(1)
}
