// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package logging provides the logging mechanism used by the driver, the
// engine service and the command line tool.
//
// Logs are sent via context.Context. A Logger attached to a context with
// AttachLogger consumes every log emitted through that context and its
// descendants.
package logging

import (
	"io"
	"sync"
	"time"
)

// Level is the importance of a log.
type Level int

const (
	// LevelDebug is for details of the driver and engine internals.
	LevelDebug Level = iota
	// LevelInfo is for messages a user of the command line tool should see.
	LevelInfo
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	default:
		return "UNKNOWN"
	}
}

// Logger consumes logs sent via context.Context.
type Logger interface {
	Log(level Level, ts time.Time, msg string)
}

// multiLogger copies logs to every logger in it, in order.
type multiLogger []Logger

func (ml multiLogger) Log(level Level, ts time.Time, msg string) {
	for _, l := range ml {
		l.Log(level, ts, msg)
	}
}

// NewMultiLogger returns a Logger copying logs to all of loggers.
func NewMultiLogger(loggers ...Logger) Logger {
	return multiLogger(append([]Logger(nil), loggers...))
}

// FuncLogger is a Logger calling a function. Calls are serialized.
type FuncLogger struct {
	mu sync.Mutex
	f  func(level Level, ts time.Time, msg string)
}

// NewFuncLogger returns a FuncLogger calling f.
func NewFuncLogger(f func(level Level, ts time.Time, msg string)) *FuncLogger {
	return &FuncLogger{f: f}
}

func (l *FuncLogger) Log(level Level, ts time.Time, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.f(level, ts, msg)
}

// WriterLogger writes logs at or above a level to an io.Writer, one line
// per log.
type WriterLogger struct {
	level     Level
	timestamp bool

	mu sync.Mutex
	w  io.Writer
}

// NewWriterLogger returns a WriterLogger writing logs at level or above to
// w. If timestamp is true, each line starts with the UTC time of the log.
func NewWriterLogger(w io.Writer, level Level, timestamp bool) *WriterLogger {
	return &WriterLogger{level: level, timestamp: timestamp, w: w}
}

func (l *WriterLogger) Log(level Level, ts time.Time, msg string) {
	if level < l.level {
		return
	}
	if l.timestamp {
		msg = ts.UTC().Format("2006-01-02T15:04:05.000000Z ") + msg
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	io.WriteString(l.w, msg+"\n")
}
