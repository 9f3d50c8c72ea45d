// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package session

import (
	"context"
	"time"

	"go.chromium.org/hwsession/internal/artifact"
	"go.chromium.org/hwsession/internal/errors"
	"go.chromium.org/hwsession/internal/logging"
	"go.chromium.org/hwsession/internal/result"
	"go.chromium.org/hwsession/internal/timing"
)

// State is the lifecycle state of a test.
type State int

const (
	// Idle is the state of a test that has not started.
	Idle State = iota
	// Running is the state between TestStart and TestEnd.
	Running
	// Completed is the state after TestEnd.
	Completed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Completed:
		return "completed"
	default:
		return "unknown"
	}
}

// Test is the handle of a single test in a session. Test code uses it while
// the test is Running.
type Test struct {
	c     *Controller
	res   *result.Result
	state State

	logger    *logging.FileLogger
	artifacts *artifact.Manager
	stage     *timing.Stage
}

// Result returns the result of t. Test code records errors, failures, skips
// and details on it.
func (t *Test) Result() *result.Result { return t.res }

// State returns the lifecycle state of t.
func (t *Test) State() State { return t.state }

// Context returns ctx with t's log attached while t is Running. Logs are
// propagated to loggers already attached to ctx.
func (t *Test) Context(ctx context.Context) context.Context {
	if t.state != Running {
		return ctx
	}
	return logging.AttachLogger(ctx, t.logger)
}

func (t *Test) checkRunning() error {
	if t.state != Running {
		return errors.Errorf("test %v is %v", t.res.ID, t.state)
	}
	return nil
}

// CallTimeout returns the default timeout of a single hardware call.
func (t *Test) CallTimeout() time.Duration { return t.c.cfg.CallTimeout() }

// IsCallAllowed reports whether the test may make another call that can
// time out. It is always true when t is not Running.
func (t *Test) IsCallAllowed(ctx context.Context) bool {
	if t.state != Running {
		return true
	}
	ctx = t.Context(t.c.Context(ctx))
	if t.c.tracker.IsAllowed(ctx) {
		return true
	}
	t.c.stats.RecordDenial()
	return false
}

// ReportCallTimeout records that a call made by the test timed out.
func (t *Test) ReportCallTimeout(ctx context.Context) {
	if t.state != Running {
		return
	}
	t.c.tracker.ReportTimeout(t.Context(t.c.Context(ctx)))
	t.c.stats.RecordCallTimeout()
}

// Artifact returns the path of the artifact named filename in the test's
// log directory. See artifact.Manager.Register.
func (t *Test) Artifact(ctx context.Context, filename string) (string, error) {
	if err := t.checkRunning(); err != nil {
		return "", err
	}
	return t.artifacts.Register(t.Context(t.c.Context(ctx)), filename)
}

// PurgeArtifact removes the artifact named filename now if the retention
// policy would remove it given the outcome so far.
func (t *Test) PurgeArtifact(ctx context.Context, filename string) error {
	if err := t.checkRunning(); err != nil {
		return err
	}
	t.artifacts.Purge(t.Context(t.c.Context(ctx)), filename)
	return nil
}

// Expect compares value with the baseline value for key. A mismatch is
// recorded as a failure of the test and returned. In rebase mode value is
// recorded instead.
func (t *Test) Expect(ctx context.Context, key string, value interface{}) error {
	if err := t.checkRunning(); err != nil {
		return err
	}
	if t.c.baseline == nil {
		return errors.New("no baseline is configured")
	}
	if err := t.c.baseline.Expect(key, value); err != nil {
		logging.Infof(t.Context(t.c.Context(ctx)), "Baseline check failed: %v", err)
		t.res.AddFailure("", err)
		return err
	}
	return nil
}
