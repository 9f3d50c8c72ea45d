// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package admission decides whether a test may keep retrying calls that have
// timed out.
//
// Tests report call timeouts while they run. The Tracker counts them per test
// function and per run, and answers whether one more timeout is still within
// the configured quotas. Outside of an open window, i.e. outside of a running
// test, every operation is a no-op.
package admission

import (
	"context"

	"go.chromium.org/hwsession/internal/logging"
)

// Unlimited is the quota value meaning that no limit applies.
const Unlimited = -1

// Key identifies a test function.
type Key struct {
	File     string
	Function string
}

// Limits holds the timeout quotas. Each is Unlimited or a non-negative count.
type Limits struct {
	PerFunction int
	PerRun      int
}

// Tracker holds the timeout counters of a session.
//
// Tracker is not safe for concurrent use; it is driven by the lifecycle of a
// single test at a time.
type Tracker struct {
	limits Limits

	open bool
	cur  Key

	perFunction map[Key]int
	perRun      int
}

// NewTracker returns a Tracker enforcing limits. Counters start at zero and
// are never reset; a new session needs a new Tracker.
func NewTracker(limits Limits) *Tracker {
	return &Tracker{
		limits:      limits,
		perFunction: make(map[Key]int),
	}
}

// Limits returns the quotas enforced by t.
func (t *Tracker) Limits() Limits { return t.limits }

// Open opens the admission window for the test function identified by k.
func (t *Tracker) Open(k Key) {
	t.open = true
	t.cur = k
}

// Close closes the admission window.
func (t *Tracker) Close() {
	t.open = false
	t.cur = Key{}
}

// IsOpen reports whether the admission window is open.
func (t *Tracker) IsOpen() bool { return t.open }

// IsAllowed reports whether another call timeout is permitted for the running
// test. It returns false if the run-wide count or the count of the running
// test function has already reached its quota, and logs a notice via ctx in
// that case. It always returns true while the window is closed.
func (t *Tracker) IsAllowed(ctx context.Context) bool {
	if !t.open {
		return true
	}
	if t.limits.PerRun != Unlimited && t.perRun >= t.limits.PerRun {
		logging.Noticef(ctx, "Call timeout limit reached: %d per run (run total %d)", t.limits.PerRun, t.perRun)
		return false
	}
	if n := t.perFunction[t.cur]; t.limits.PerFunction != Unlimited && n >= t.limits.PerFunction {
		logging.Noticef(ctx, "Call timeout limit reached: %d per test function (%s:%s has %d)",
			t.limits.PerFunction, t.cur.File, t.cur.Function, n)
		return false
	}
	return true
}

// ReportTimeout records a call timeout of the running test. It is a no-op
// while the window is closed.
func (t *Tracker) ReportTimeout(ctx context.Context) {
	if !t.open {
		return
	}
	t.perRun++
	t.perFunction[t.cur]++
	logging.Debugf(ctx, "Call timeout reported for %s:%s (function %d, run %d)",
		t.cur.File, t.cur.Function, t.perFunction[t.cur], t.perRun)
}

// RunCount returns the number of timeouts reported in the run so far.
func (t *Tracker) RunCount() int { return t.perRun }

// FunctionCount returns the number of timeouts reported for k so far.
func (t *Tracker) FunctionCount(k Key) int { return t.perFunction[k] }
