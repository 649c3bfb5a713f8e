// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package loggingtest provides a logging.Logger for unit tests.
package loggingtest

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nunit/v2driver/internal/logging"
)

// Logger records logs at or above a level and echoes every log to the test
// log.
type Logger struct {
	t     *testing.T
	level logging.Level

	mu   sync.Mutex
	msgs []string
}

// NewLogger returns a Logger recording logs at level or above.
func NewLogger(t *testing.T, level logging.Level) *Logger {
	return &Logger{t: t, level: level}
}

func (l *Logger) Log(level logging.Level, ts time.Time, msg string) {
	l.t.Helper()
	l.t.Logf("[%v] %s", level, msg)
	if level < l.level {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, msg)
}

// Logs returns the recorded messages in order.
func (l *Logger) Logs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.msgs...)
}

// String returns the recorded messages, one per line.
func (l *Logger) String() string {
	return strings.Join(l.Logs(), "\n")
}
