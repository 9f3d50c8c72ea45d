// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package session implements the lifecycle controller of a test session.
//
// A runner creates a Controller once per session and calls its lifecycle
// entry points in order:
//
//	c.SessionStart(ctx)
//	for each test {
//		t := c.NewTest(id)
//		c.TestStart(ctx, t)
//		... test body uses t ...
//		c.TestEnd(ctx, t)
//	}
//	c.SessionEnd(ctx)
package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/google/uuid"

	"go.chromium.org/hwsession/internal/admission"
	"go.chromium.org/hwsession/internal/artifact"
	"go.chromium.org/hwsession/internal/config"
	"go.chromium.org/hwsession/internal/errors"
	"go.chromium.org/hwsession/internal/logging"
	"go.chromium.org/hwsession/internal/metrics"
	"go.chromium.org/hwsession/internal/platform"
	"go.chromium.org/hwsession/internal/report"
	"go.chromium.org/hwsession/internal/result"
	"go.chromium.org/hwsession/internal/syslog"
	"go.chromium.org/hwsession/internal/timing"
)

// Names of session-level files in the result directory.
const (
	SessionLogFilename    = "session.log"
	HighlightsLogFilename = "highlights.log"

	latestLogLink        = "latest.log"
	latestHighlightsLink = "latest-highlights.log"
)

// Baseline is the baseline comparison collaborator.
type Baseline interface {
	// Expect compares value with the reference value for key.
	Expect(key string, value interface{}) error
	// Finalize completes comparison or rebasing at session end.
	Finalize(ctx context.Context) error
}

// Params holds the collaborators of a Controller. Only Config is required.
type Params struct {
	Config *config.Config

	// Clock defaults to the real clock.
	Clock clock.Clock
	// Platform defaults to querying the local host.
	Platform platform.Querier
	// Baseline may be nil if no baseline comparison is done.
	Baseline Baseline
	// NewID returns a session ID. It defaults to a random UUID.
	NewID func() string
	// Started is called at the end of SessionStart, after the metrics pool
	// has been created. It may be nil.
	Started func(ctx context.Context, c *Controller)
}

type sessionState int

const (
	sessionIdle sessionState = iota
	sessionRunning
	sessionEnded
)

// Controller orchestrates a test session. It is driven by a single runner
// goroutine and is not safe for concurrent use.
type Controller struct {
	cfg      *config.Config
	clk      clock.Clock
	platform platform.Querier
	baseline Baseline
	newID    func() string
	started  func(ctx context.Context, c *Controller)

	state     sessionState
	id        string
	startTime time.Time
	resDir    string

	logger     *logging.MultiLogger
	sessionLog *logging.FileLogger
	highlights *logging.FileLogger

	tracker *admission.Tracker
	monitor *syslog.Monitor
	stats   *metrics.Session
	pool    *metrics.Pool
	timing  *timing.Log
	stage   *timing.Stage

	results []*result.Result
	cur     *Test
}

// New validates the configuration and returns a Controller. A
// *config.ConfigurationError is returned for an invalid configuration.
func New(p Params) (*Controller, error) {
	if p.Config == nil {
		return nil, errors.New("configuration is missing")
	}
	if err := p.Config.Validate(); err != nil {
		return nil, err
	}
	c := &Controller{
		cfg:      p.Config,
		clk:      p.Clock,
		platform: p.Platform,
		baseline: p.Baseline,
		newID:    p.NewID,
		started:  p.Started,
		logger:   logging.NewMultiLogger(),
	}
	if c.clk == nil {
		c.clk = clock.NewClock()
	}
	if c.platform == nil {
		c.platform = platform.NewHostQuerier(p.Config.Platform())
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}
	return c, nil
}

// ID returns the session ID. It is empty before SessionStart.
func (c *Controller) ID() string { return c.id }

// StartTime returns the time SessionStart was called.
func (c *Controller) StartTime() time.Time { return c.startTime }

// WorkerID returns the worker identity. It is empty for the primary worker.
func (c *Controller) WorkerID() string { return c.cfg.WorkerID() }

// ResultDir returns the directory session files are written to.
func (c *Controller) ResultDir() string { return c.resDir }

// Results returns the results of completed tests in completion order.
func (c *Controller) Results() []*result.Result {
	return append([]*result.Result(nil), c.results...)
}

// Tracker returns the call timeout tracker of the session.
func (c *Controller) Tracker() *admission.Tracker { return c.tracker }

// Context returns ctx with the session loggers attached.
func (c *Controller) Context(ctx context.Context) context.Context {
	return logging.AttachLogger(ctx, c.logger)
}

// SessionStart starts the session: it creates the result directory and the
// session logs, and sets up admission tracking, system log monitoring and
// metrics.
func (c *Controller) SessionStart(ctx context.Context) error {
	if c.state != sessionIdle {
		return errors.New("session already started")
	}

	c.startTime = c.clk.Now()
	c.id = c.newID()
	c.resDir = filepath.Join(c.cfg.LogDir(), c.id)
	if err := os.MkdirAll(c.resDir, 0755); err != nil {
		return errors.Wrap(err, "failed to create result directory")
	}

	var err error
	if c.sessionLog, err = logging.NewFileLogger(filepath.Join(c.resDir, SessionLogFilename), logging.LevelDebug); err != nil {
		return err
	}
	if c.highlights, err = logging.NewFileLogger(filepath.Join(c.resDir, HighlightsLogFilename), logging.LevelWarning); err != nil {
		c.sessionLog.Close()
		return err
	}
	c.logger.AddLogger(c.sessionLog)
	c.logger.AddLogger(c.highlights)
	ctx = c.Context(ctx)

	c.updateLatestLinks(ctx)

	logging.Infof(ctx, "Starting session %s on platform %s", c.id, c.cfg.Platform())
	if id := c.cfg.WorkerID(); id != "" {
		logging.Infof(ctx, "Running as worker %s of %d", id, c.cfg.Workers())
	}
	logging.Debugf(ctx, "Artifact retention: %v; call timeout: %v; limits: %+v",
		c.cfg.ArtifactRetention(), c.cfg.CallTimeout(), c.cfg.Limits())

	c.tracker = admission.NewTracker(c.cfg.Limits())
	c.stats = metrics.NewSession(c.cfg.Platform())
	c.timing = timing.NewLog(c.clk)
	c.stage = c.timing.StartTop("session")

	if c.cfg.MonitorSyslog() {
		c.monitor = c.openMonitor(ctx)
	} else {
		logging.Debug(ctx, "System log monitoring is disabled")
	}

	if c.cfg.ParallelMetrics() {
		c.pool = metrics.NewPool(ctx, runtime.NumCPU())
	}

	c.state = sessionRunning
	if c.started != nil {
		c.started(ctx, c)
	}
	return nil
}

// openMonitor starts monitoring the configured system log. It returns nil
// if the log cannot be opened.
func (c *Controller) openMonitor(ctx context.Context) *syslog.Monitor {
	var src syslog.Source
	switch kind, path := c.cfg.Syslog(); kind {
	case config.SyslogKmsg:
		ks, err := syslog.NewKmsgSource(syslog.KmsgPath)
		if err != nil {
			logging.Warningf(ctx, "System log monitoring is unavailable: %v", err)
			return nil
		}
		src = ks
	case config.SyslogFile:
		src = syslog.NewFileSource(path)
	default:
		return nil
	}
	m, err := syslog.New(ctx, src)
	if err != nil {
		src.Close()
		logging.Warningf(ctx, "System log monitoring is unavailable: %v", err)
		return nil
	}
	return m
}

// updateLatestLinks points convenience symlinks in the log directory at
// this session's logs.
func (c *Controller) updateLatestLinks(ctx context.Context) {
	for link, name := range map[string]string{
		latestLogLink:        SessionLogFilename,
		latestHighlightsLink: HighlightsLogFilename,
	} {
		p := filepath.Join(c.cfg.LogDir(), link)
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			logging.Debugf(ctx, "Failed to remove %s: %v", p, err)
			continue
		}
		if err := os.Symlink(filepath.Join(c.id, name), p); err != nil {
			logging.Debugf(ctx, "Failed to create %s: %v", p, err)
		}
	}
}

// logPath returns the per-test log path of id:
// <result dir>/<module>/<class>/<function>/<variation>.log. Artifacts of the
// test are kept in the directory of the same name without the extension.
func (c *Controller) logPath(id result.ID) string {
	elems := []string{c.resDir, id.Module()}
	if id.Class != "" {
		elems = append(elems, id.Class)
	}
	v := id.Variation
	if v == "" {
		v = "default"
	}
	elems = append(elems, id.Function, sanitizeFilename(v)+".log")
	return filepath.Join(elems...)
}

// sanitizeFilename replaces path separators in s.
func sanitizeFilename(s string) string {
	b := []byte(s)
	for i, ch := range b {
		if ch == '/' || ch == '\\' || ch == 0 {
			b[i] = '_'
		}
	}
	return string(b)
}

// NewTest returns a Test in the Idle state for id.
func (c *Controller) NewTest(id result.ID) *Test {
	return &Test{c: c, res: result.New(id)}
}

// TestStart moves t to the Running state. It opens the admission window,
// creates the per-test log and marks the start of the system log window.
func (c *Controller) TestStart(ctx context.Context, t *Test) error {
	if c.state != sessionRunning {
		return errors.New("session is not running")
	}
	if t.c != c {
		return errors.New("test belongs to another session")
	}
	if t.state != Idle {
		return errors.Errorf("cannot start %v test %v", t.state, t.res.ID)
	}
	if c.cur != nil {
		return errors.Errorf("cannot start %v while %v is running", t.res.ID, c.cur.res.ID)
	}
	ctx = c.Context(ctx)

	id := t.res.ID
	lp := c.logPath(id)
	logger, err := logging.NewFileLogger(lp, logging.LevelDebug)
	if err != nil {
		return err
	}
	t.logger = logger
	t.res.LogPath = lp
	t.res.Start = c.clk.Now()
	t.artifacts = artifact.NewManager(c.cfg.ArtifactRetention(), strings.TrimSuffix(lp, ".log"), t.res)
	t.stage = c.stage.StartChild(id.String())
	t.state = Running
	c.cur = t

	ctx = t.Context(ctx)
	logging.Infof(ctx, "Started test %v", id)

	c.tracker.Open(admission.Key{File: id.SuitePath, Function: functionName(id)})
	if c.monitor != nil {
		if _, err := c.monitor.Checkpoint(ctx); err != nil {
			logging.Warningf(ctx, "Failed to checkpoint system log: %v", err)
		}
	}
	return nil
}

// functionName returns the name of the test function of id, qualified by
// its class. Variations of a function share it.
func functionName(id result.ID) string {
	if id.Class == "" {
		return id.Function
	}
	return id.Class + "." + id.Function
}

// TestEnd moves t to the Completed state. It closes the admission window,
// applies the artifact retention policy, scans the system log written during
// the test for hang signatures and records the elapsed time.
func (c *Controller) TestEnd(ctx context.Context, t *Test) error {
	if t.c != c {
		return errors.New("test belongs to another session")
	}
	if t.state != Running {
		return errors.Errorf("cannot end %v test %v", t.state, t.res.ID)
	}
	c.endTest(c.Context(ctx), t)
	return nil
}

// endTest ends the running test t. ctx must carry the session loggers.
func (c *Controller) endTest(ctx context.Context, t *Test) {
	ctx = t.Context(ctx)
	res := t.res

	c.tracker.Close()
	res.End = c.clk.Now()

	removed := t.artifacts.Dispose(ctx)
	if n := len(removed); n > 0 {
		logging.Debugf(ctx, "Removed %d artifact(s)", n)
	}

	if c.monitor != nil {
		delta, err := c.monitor.Checkpoint(ctx)
		if err != nil {
			logging.Warningf(ctx, "Failed to checkpoint system log: %v", err)
		}
		if sigs := syslog.Report(ctx, delta); len(sigs) > 0 {
			var names []string
			for _, s := range sigs {
				names = append(names, s.Name)
				c.stats.RecordHang(s.Name)
			}
			res.SetDetail("hang_signatures", strings.Join(names, ", "))
		}
	}

	if el, ok := res.Elapsed(); ok {
		res.SetDetail("elapsed", fmt.Sprintf("%.3f", el.Seconds()))
	}
	c.stats.RecordResult(res)
	if len(res.Artifacts) > 0 && !artifact.ShouldRemove(c.cfg.ArtifactRetention(), res.Outcome()) {
		c.measureArtifacts(ctx, res.Artifacts)
	}

	logging.Infof(ctx, "Completed test %v: %v", res.ID, res.Outcome())
	t.stage.End()
	if err := t.logger.Close(); err != nil {
		logging.Debugf(ctx, "Failed to close test log: %v", err)
	}
	t.state = Completed
	c.cur = nil
	c.results = append(c.results, res)
}

// measureArtifacts records the total size of retained artifacts, on the
// metrics pool if there is one.
func (c *Controller) measureArtifacts(ctx context.Context, paths []string) {
	paths = append([]string(nil), paths...)
	task := func(ctx context.Context) error {
		var total int64
		for _, p := range paths {
			if fi, err := os.Stat(p); err == nil && fi.Mode().IsRegular() {
				total += fi.Size()
			}
		}
		c.stats.RecordArtifactBytes(total)
		return nil
	}
	if c.pool == nil {
		task(ctx)
		return
	}
	if err := c.pool.Submit(task); err != nil {
		logging.Debugf(ctx, "Failed to submit metric computation: %v", err)
	}
}

// SessionEnd ends the session. A test still running is ended with an error.
// On the primary worker the baseline collaborator is finalized and the
// report is written. The first error encountered is returned after every
// step has run.
func (c *Controller) SessionEnd(ctx context.Context) error {
	if c.state != sessionRunning {
		return errors.New("session is not running")
	}
	ctx = c.Context(ctx)

	var firstErr error
	setErr := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}

	if t := c.cur; t != nil {
		logging.Warningf(ctx, "Test %v did not end before the session", t.res.ID)
		t.res.AddError("test did not end before the session", nil)
		c.endTest(ctx, t)
	}

	if c.pool != nil {
		if err := c.pool.Close(); err != nil {
			logging.Warningf(ctx, "Metric computation failed: %v", err)
		}
		c.pool = nil
	}

	elapsed := c.clk.Since(c.startTime)
	if c.cfg.Primary() {
		if c.baseline != nil {
			if err := c.baseline.Finalize(ctx); err != nil {
				logging.Errorf(ctx, "Failed to finalize baseline: %v", err)
				setErr(err)
			}
		}
		info := c.platform.Query(ctx)
		suite, err := report.Write(ctx, filepath.Join(c.resDir, report.Filename), c.results, report.Options{
			SuiteName: c.cfg.Suite(),
			Start:     c.startTime,
			Elapsed:   elapsed,
			Hostname:  info.Hostname,
			Platform:  info.Attributes,
		})
		if err != nil {
			logging.Errorf(ctx, "Failed to write report: %v", err)
			setErr(err)
		}
		logging.Infof(ctx, "Results:\n%s", suite.Table())
	}

	if err := c.stats.WriteFile(filepath.Join(c.resDir, metrics.Filename)); err != nil {
		logging.Warningf(ctx, "%v", err)
	}
	c.stage.End()
	if err := c.timing.WriteFile(filepath.Join(c.resDir, timing.Filename)); err != nil {
		logging.Warningf(ctx, "%v", err)
	}
	logging.Debugf(ctx, "Timing:\n%s", c.timing.Summary())

	if c.monitor != nil {
		if err := c.monitor.Close(); err != nil {
			logging.Debugf(ctx, "Failed to close system log: %v", err)
		}
		c.monitor = nil
	}

	logging.Infof(ctx, "Finished session %s: %d test(s) in %.3fs", c.id, len(c.results), elapsed.Seconds())
	c.closeLogs()
	c.state = sessionEnded
	return firstErr
}

// Interrupt ends the session early because of cause, typically a
// termination signal. A test still running is ended with an error, and the
// session is then ended as by SessionEnd so completed results are reported.
func (c *Controller) Interrupt(ctx context.Context, cause error) error {
	if c.state != sessionRunning {
		return errors.New("session is not running")
	}
	// The console has already been told about cause.
	nctx := logging.AttachLoggerNoPropagation(ctx, c.logger)
	if t := c.cur; t != nil {
		nctx = t.Context(nctx)
	}
	logging.Noticef(nctx, "Session interrupted: %v", cause)
	if t := c.cur; t != nil {
		t.res.AddError(fmt.Sprintf("interrupted: %v", cause), nil)
		c.endTest(c.Context(ctx), t)
	}
	return c.SessionEnd(ctx)
}

func (c *Controller) closeLogs() {
	for _, l := range []*logging.FileLogger{c.sessionLog, c.highlights} {
		c.logger.RemoveLogger(l)
		l.Close()
	}
}
