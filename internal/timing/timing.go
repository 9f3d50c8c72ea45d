// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package timing records nested stage timing of a session.
package timing

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"code.cloudfoundry.org/clock"

	"go.chromium.org/hwsession/internal/errors"
)

// Filename is the name of the timing file written to the session result
// directory.
const Filename = "timing.json"

// Log is a tree of timed stages.
type Log struct {
	// root holds the top-level stages. It is never ended.
	root *Stage
}

// NewLog returns an empty Log reading time from clk.
func NewLog(clk clock.Clock) *Log {
	return &Log{root: &Stage{clk: clk}}
}

// StartTop starts a new top-level stage.
func (l *Log) StartTop(name string) *Stage {
	return l.root.StartChild(name)
}

// MarshalJSON encodes l as {"stages": [...]}.
func (l *Log) MarshalJSON() ([]byte, error) {
	l.root.mu.Lock()
	defer l.root.mu.Unlock()
	return json.Marshal(struct {
		Stages []*Stage `json:"stages"`
	}{l.root.Children})
}

// WriteFile writes l as indented JSON to path.
func (l *Log) WriteFile(path string) error {
	b, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal timing log")
	}
	if err := os.WriteFile(path, append(b, '\n'), 0644); err != nil {
		return errors.Wrap(err, "failed to write timing log")
	}
	return nil
}

// Summary renders l as one line per stage with its duration, children
// indented below their parent:
//
//	4.000s session
//	  3.000s decode/vp9.py:test_basic
//	  1.000s decode/vp9.py:test_seek
//
// Stages still running are measured up to now.
func (l *Log) Summary() string {
	var sb strings.Builder
	l.root.mu.Lock()
	children := append([]*Stage(nil), l.root.Children...)
	l.root.mu.Unlock()
	for _, s := range children {
		s.summarize(&sb, 0)
	}
	return sb.String()
}

// Stage is a timed unit of work.
type Stage struct {
	Name      string    `json:"name"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Children  []*Stage  `json:"children,omitempty"`

	clk clock.Clock
	mu  sync.Mutex // guards EndTime and Children
}

// StartChild starts a child stage of s. It returns nil if s is nil or has
// ended, and all Stage methods accept a nil receiver.
func (s *Stage) StartChild(name string) *Stage {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.EndTime.IsZero() {
		return nil
	}
	c := &Stage{Name: name, StartTime: s.clk.Now(), clk: s.clk}
	s.Children = append(s.Children, c)
	return c
}

// End ends s and any of its descendants still running. Ending a stage twice
// keeps the first end time.
func (s *Stage) End() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.EndTime.IsZero() {
		return
	}
	for _, c := range s.Children {
		c.End()
	}
	s.EndTime = s.clk.Now()
}

func (s *Stage) summarize(sb *strings.Builder, depth int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	end := s.EndTime
	if end.IsZero() {
		end = s.clk.Now()
	}
	fmt.Fprintf(sb, "%s%.3fs %s\n", strings.Repeat("  ", depth), end.Sub(s.StartTime).Seconds(), s.Name)
	for _, c := range s.Children {
		c.summarize(sb, depth+1)
	}
}
