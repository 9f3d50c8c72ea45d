// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package logging

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.chromium.org/hwsession/internal/errors"
)

// TimestampFormat is the layout of timestamps prepended by SinkLogger.
const TimestampFormat = "2006-01-02T15:04:05.000000Z"

// SinkLogger formats entries at or above a minimum level and hands them to a
// Sink. Entries at LevelNotice and above are tagged with their level name.
type SinkLogger struct {
	min   Level
	stamp bool
	sink  Sink
}

// NewSinkLogger returns a SinkLogger sending entries at level or above to
// sink, prefixed with a UTC timestamp if timestamp is true.
func NewSinkLogger(level Level, timestamp bool, sink Sink) *SinkLogger {
	return &SinkLogger{min: level, stamp: timestamp, sink: sink}
}

func (l *SinkLogger) Log(level Level, ts time.Time, msg string) {
	if level < l.min {
		return
	}
	if level >= LevelNotice {
		msg = "[" + level.String() + "] " + msg
	}
	if l.stamp {
		msg = ts.UTC().Format(TimestampFormat) + " " + msg
	}
	l.sink.Log(msg)
}

// Sink is a destination of formatted log lines.
type Sink interface {
	Log(msg string)
}

// WriterSink writes one line per entry to an io.Writer, serializing writes.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterSink(w io.Writer) *WriterSink { return &WriterSink{w: w} }

func (s *WriterSink) Log(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	io.WriteString(s.w, msg+"\n")
}

// FileLogger is a SinkLogger writing to a file it owns.
type FileLogger struct {
	*SinkLogger
	f *os.File
}

// NewFileLogger creates the file at path, along with missing parent
// directories, and returns a timestamped Logger writing logs at level or above
// to it. Close must be called once logging is done.
func NewFileLogger(path string, level Level) (*FileLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create log directory")
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create log file")
	}
	return &FileLogger{
		SinkLogger: NewSinkLogger(level, true, NewWriterSink(f)),
		f:          f,
	}, nil
}

// Path returns the path of the log file.
func (l *FileLogger) Path() string { return l.f.Name() }

// Close closes the log file.
func (l *FileLogger) Close() error { return l.f.Close() }
