// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package result defines the per-test result records shared by the session
// controller, the artifact manager and the report aggregator.
//
// A Result is owned by the runner that executes the test. The lifecycle code
// in this module only reads it and annotates it with details, artifacts and
// timing.
package result

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// ID identifies a test.
type ID struct {
	// SuitePath is the path of the file defining the test, relative to the
	// suite root and slash-separated, e.g. "gst/encode/avc.py".
	SuitePath string `json:"suitePath"`
	// Class is the name of the class grouping the test. It may be empty.
	Class string `json:"class,omitempty"`
	// Function is the name of the test function.
	Function string `json:"function"`
	// Variation describes the parameters of a parametrized test, e.g.
	// "case=1080p,rcmode=cqp". It is empty for plain tests.
	Variation string `json:"variation,omitempty"`
}

// Name returns the test case name used in reports: the function name,
// qualified by the class if any, followed by the variation in parentheses.
func (id ID) Name() string {
	n := id.Function
	if id.Class != "" {
		n = id.Class + "." + n
	}
	if id.Variation != "" {
		n += "(" + id.Variation + ")"
	}
	return n
}

// Module returns SuitePath without its file extension.
func (id ID) Module() string {
	p := path.Clean(strings.ReplaceAll(id.SuitePath, "\\", "/"))
	return strings.TrimSuffix(p, path.Ext(p))
}

// String returns a human-readable representation of id.
func (id ID) String() string {
	return fmt.Sprintf("%s:%s", id.SuitePath, id.Name())
}

// Outcome is the overall outcome of a test.
type Outcome int

const (
	// Success means the test neither failed, errored nor was skipped.
	Success Outcome = iota
	// Failure means the test recorded at least one assertion-style failure.
	Failure
	// Error means the test recorded at least one unexpected error.
	Error
	// Skip means the test was skipped.
	Skip
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Failure:
		return "failure"
	case Error:
		return "error"
	case Skip:
		return "skip"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Record is a failure or error recorded on a result.
type Record struct {
	// Message is a human-readable description.
	Message string
	// Err is the underlying error, if any. Its traceback is rendered into
	// reports.
	Err error
	// Trace is a preformatted traceback, used when Err is nil, e.g. for
	// records received from another process.
	Trace string
}

// Detail is a named value annotated on a result.
type Detail struct {
	Name  string
	Value interface{}
}

// Result holds the outcome and metadata of a single test.
type Result struct {
	ID ID

	// Start and End are the times at which the test started and ended. They
	// are zero if unknown.
	Start time.Time
	End   time.Time

	// Details contains annotated key/value pairs in insertion order.
	Details []Detail
	// Artifacts contains paths of files registered as test artifacts.
	Artifacts []string

	Errors   []Record
	Failures []Record
	// Skips contains skip reasons; the test is skipped if it is non-empty.
	// A reason may be empty.
	Skips []string

	// LogPath is the path of the per-test log file. It may be empty.
	LogPath string
}

// New returns an empty Result for id.
func New(id ID) *Result {
	return &Result{ID: id}
}

// Outcome derives the outcome of r. Errors take precedence over failures,
// and failures over skips.
func (r *Result) Outcome() Outcome {
	switch {
	case len(r.Errors) > 0:
		return Error
	case len(r.Failures) > 0:
		return Failure
	case len(r.Skips) > 0:
		return Skip
	default:
		return Success
	}
}

// Succeeded reports whether r's outcome is Success.
func (r *Result) Succeeded() bool {
	return r.Outcome() == Success
}

// Elapsed returns the duration of the test and whether it is known.
func (r *Result) Elapsed() (time.Duration, bool) {
	if r.Start.IsZero() || r.End.IsZero() || r.End.Before(r.Start) {
		return 0, false
	}
	return r.End.Sub(r.Start), true
}

// SetDetail sets the detail named name to value. An existing detail keeps its
// position.
func (r *Result) SetDetail(name string, value interface{}) {
	for i := range r.Details {
		if r.Details[i].Name == name {
			r.Details[i].Value = value
			return
		}
	}
	r.Details = append(r.Details, Detail{Name: name, Value: value})
}

// Detail returns the value of the detail named name.
func (r *Result) Detail(name string) (interface{}, bool) {
	for _, d := range r.Details {
		if d.Name == name {
			return d.Value, true
		}
	}
	return nil, false
}

// AddArtifact records path as an artifact of r unless it is already recorded.
// It returns true if path was newly added.
func (r *Result) AddArtifact(path string) bool {
	for _, p := range r.Artifacts {
		if p == path {
			return false
		}
	}
	r.Artifacts = append(r.Artifacts, path)
	return true
}

// AddError records an unexpected error.
func (r *Result) AddError(msg string, err error) {
	r.Errors = append(r.Errors, Record{Message: msg, Err: err})
}

// AddFailure records an assertion-style failure.
func (r *Result) AddFailure(msg string, err error) {
	r.Failures = append(r.Failures, Record{Message: msg, Err: err})
}

// AddSkip records that the test was skipped for reason.
func (r *Result) AddSkip(reason string) {
	r.Skips = append(r.Skips, reason)
}
