// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package loggingtest provides logging utilities for unit tests.
package loggingtest

import (
	"strings"
	"sync"
	"testing"
	"time"

	"go.chromium.org/hwsession/internal/logging"
)

// Entry is a log entry captured by Logger.
type Entry struct {
	Level logging.Level
	Msg   string
}

// Logger records entries for inspection and echoes every entry to the test
// log.
type Logger struct {
	t   *testing.T
	min logging.Level

	mu      sync.Mutex
	entries []Entry
}

// NewLogger returns a Logger recording entries at level or above.
func NewLogger(t *testing.T, level logging.Level) *Logger {
	return &Logger{t: t, min: level}
}

func (l *Logger) Log(level logging.Level, ts time.Time, msg string) {
	l.t.Helper()
	l.t.Logf("[%v] %s", level, msg)
	if level < l.min {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{Level: level, Msg: msg})
}

// Entries returns a copy of the recorded entries.
func (l *Logger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...)
}

// Logs returns the messages of the recorded entries.
func (l *Logger) Logs() []string {
	return l.filter(func(Entry) bool { return true })
}

// LogsAt returns the messages of recorded entries at exactly level.
func (l *Logger) LogsAt(level logging.Level) []string {
	return l.filter(func(e Entry) bool { return e.Level == level })
}

func (l *Logger) filter(keep func(Entry) bool) []string {
	var msgs []string
	for _, e := range l.Entries() {
		if keep(e) {
			msgs = append(msgs, e.Msg)
		}
	}
	return msgs
}

// String returns the recorded messages joined by newlines.
func (l *Logger) String() string {
	return strings.Join(l.Logs(), "\n")
}
