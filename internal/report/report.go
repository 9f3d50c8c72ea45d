// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package report aggregates test results into a JUnit-compatible XML report.
package report

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"go.chromium.org/hwsession/internal/errors"
	"go.chromium.org/hwsession/internal/logging"
	"go.chromium.org/hwsession/internal/result"
)

// Options describes the session a report is built for.
type Options struct {
	// SuiteName is the top-level suite name used as the suite element name and
	// as the prefix of class names.
	SuiteName string
	// Start is the session start time.
	Start time.Time
	// Elapsed is the session duration.
	Elapsed time.Duration
	// Hostname is the name of the machine the session ran on.
	Hostname string
	// Platform holds platform-descriptive attributes of the suite element.
	Platform map[string]string
}

// ClassName derives the class name of a test defined in the file at
// suitePath (relative to the suite root): path separators become dots, the
// file extension is dropped and suite is prepended.
// For example, suite "media" and path "a/b/c.py" give "media.a.b.c".
func ClassName(suite, suitePath string) string {
	mod := result.ID{SuitePath: suitePath}.Module()
	mod = strings.Trim(strings.ReplaceAll(mod, "/", "."), ".")
	if mod == "" {
		return suite
	}
	if suite == "" {
		return mod
	}
	return suite + "." + mod
}

// formatSeconds formats d as seconds. Unknown durations are rendered as "0".
func formatSeconds(d time.Duration, known bool) string {
	if !known {
		return "0"
	}
	return fmt.Sprintf("%.3f", d.Seconds())
}

// Build constructs the report tree from results, in the order given.
//
// Building is best-effort per result: a result that cannot be converted is
// logged and left out, and the remaining results are still aggregated.
func Build(ctx context.Context, results []*result.Result, opts Options) *Suite {
	s := &Suite{
		Name:      opts.SuiteName,
		Tests:     len(results),
		Time:      formatSeconds(opts.Elapsed, true),
		Timestamp: opts.Start.UTC().Format(time.RFC3339),
		Hostname:  opts.Hostname,
	}
	keys := maps.Keys(opts.Platform)
	slices.Sort(keys)
	for _, k := range keys {
		s.Platform = append(s.Platform, xml.Attr{Name: xml.Name{Local: attrName(k)}, Value: opts.Platform[k]})
	}

	for _, r := range results {
		if len(r.Errors) > 0 {
			s.Errors++
		}
		if len(r.Failures) > 0 {
			s.Failures++
		}
		if len(r.Skips) > 0 {
			s.Skipped++
		}
		if tc, err := buildTestCase(ctx, r, opts.SuiteName); err != nil {
			logging.Errorf(ctx, "Failed to add %v to report: %v", r.ID, err)
		} else {
			s.TestCases = append(s.TestCases, tc)
		}
	}
	return s
}

// buildTestCase converts a single result. A panic while converting is
// returned as an error.
func buildTestCase(ctx context.Context, r *result.Result, suite string) (tc *TestCase, err error) {
	defer func() {
		if v := recover(); v != nil {
			tc, err = nil, errors.Errorf("panic: %v", v)
		}
	}()

	el, ok := r.Elapsed()
	tc = &TestCase{
		Name:      r.ID.Name(),
		ClassName: ClassName(suite, r.ID.SuitePath),
		Time:      formatSeconds(el, ok),
	}

	if r.LogPath != "" {
		b, err := os.ReadFile(r.LogPath)
		if err == nil {
			tc.SystemOut = &Text{Data: sanitizeXML(logging.StripANSI(string(b)))}
		} else if !os.IsNotExist(err) {
			logging.Debugf(ctx, "Failed to read log of %v: %v", r.ID, err)
		}
	}

	for _, e := range r.Errors {
		tc.Errors = append(tc.Errors, newRecord(e))
	}
	for _, f := range r.Failures {
		tc.Failures = append(tc.Failures, newRecord(f))
	}
	for _, reason := range r.Skips {
		tc.Skipped = append(tc.Skipped, &Skipped{Message: sanitizeXML(reason)})
	}
	for _, d := range r.Details {
		tc.Details = append(tc.Details, &Detail{Name: d.Name, Value: sanitizeXML(fmt.Sprint(d.Value))})
	}
	return tc, nil
}

func newRecord(rec result.Record) *Record {
	msg := rec.Message
	if msg == "" && rec.Err != nil {
		msg = rec.Err.Error()
	}
	trace := rec.Trace
	if rec.Err != nil {
		trace = errors.Trace(rec.Err)
	}
	return &Record{Message: sanitizeXML(msg), Trace: sanitizeXML(trace)}
}

// Duplicate describes test cases sharing a class name and name.
type Duplicate struct {
	ClassName string
	Name      string
	Count     int
}

// Duplicates returns every (class name, name) pair shared by more than one
// test case of s, once per pair, in order of first occurrence. s is not
// modified.
func (s *Suite) Duplicates() []Duplicate {
	type key struct{ class, name string }
	counts := make(map[key]int)
	var order []key
	for _, tc := range s.TestCases {
		k := key{tc.ClassName, tc.Name}
		if counts[k] == 0 {
			order = append(order, k)
		}
		counts[k]++
	}
	var dups []Duplicate
	for _, k := range order {
		if n := counts[k]; n > 1 {
			dups = append(dups, Duplicate{ClassName: k.class, Name: k.name, Count: n})
		}
	}
	return dups
}

// Write builds the report for results, logs a warning for every duplicated
// test case and writes the report to path.
func Write(ctx context.Context, path string, results []*result.Result, opts Options) (*Suite, error) {
	s := Build(ctx, results, opts)
	for _, d := range s.Duplicates() {
		logging.Warningf(ctx, "Found %d duplicate test cases: classname=%q name=%q", d.Count, d.ClassName, d.Name)
	}
	if err := s.Write(path); err != nil {
		return s, err
	}
	logging.Infof(ctx, "Wrote report with %d test case(s) to %s", len(s.TestCases), path)
	return s, nil
}
