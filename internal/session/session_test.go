// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package session_test

import (
	"context"
	"encoding/xml"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"
	"github.com/google/go-cmp/cmp"

	"go.chromium.org/hwsession/internal/config"
	"go.chromium.org/hwsession/internal/logging"
	"go.chromium.org/hwsession/internal/logging/loggingtest"
	"go.chromium.org/hwsession/internal/platform"
	"go.chromium.org/hwsession/internal/report"
	"go.chromium.org/hwsession/internal/result"
	"go.chromium.org/hwsession/internal/session"
	"go.chromium.org/hwsession/testutil"
)

const sessionID = "0123-abcd"

var epoch = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

type env struct {
	logDir string
	syslog string
	clock  *fakeclock.FakeClock
}

// newConfig returns a configuration logging to a temporary directory and
// monitoring a temporary system log file. args are applied as flags.
func newConfig(t *testing.T, args ...string) (*config.Config, *env) {
	t.Helper()
	dir := t.TempDir()
	e := &env{
		logDir: filepath.Join(dir, "results"),
		syslog: filepath.Join(dir, "messages"),
		clock:  fakeclock.NewFakeClock(epoch),
	}
	if err := testutil.WriteFiles(dir, map[string]string{"messages": "boot\n"}); err != nil {
		t.Fatal(err)
	}
	cfg := config.NewMutableConfig(dir)
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	cfg.SetFlags(flags)
	args = append([]string{"-platform=tgl", "-logdir=" + e.logDir, "-syslog=file:" + e.syslog}, args...)
	if err := flags.Parse(args); err != nil {
		t.Fatal(err)
	}
	return cfg.Freeze(), e
}

type fakeBaseline struct {
	ref       map[string]interface{}
	finalized bool
}

func (b *fakeBaseline) Expect(key string, value interface{}) error {
	if b.ref[key] != value {
		return errors.New("mismatch for " + key)
	}
	return nil
}

func (b *fakeBaseline) Finalize(ctx context.Context) error {
	b.finalized = true
	return nil
}

func newController(t *testing.T, cfg *config.Config, e *env, bl session.Baseline) *session.Controller {
	t.Helper()
	c, err := session.New(session.Params{
		Config:   cfg,
		Clock:    e.clock,
		Platform: &platform.Static{Hostname: "dut1", Attributes: map[string]string{"platform": "tgl"}},
		Baseline: bl,
		NewID:    func() string { return sessionID },
	})
	if err != nil {
		t.Fatal("New: ", err)
	}
	return c
}

func readReport(t *testing.T, path string) *report.Suite {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal("Failed to read report: ", err)
	}
	var s report.Suite
	if err := xml.Unmarshal(b, &s); err != nil {
		t.Fatal("Failed to parse report: ", err)
	}
	return &s
}

func TestSessionRetainsArtifactsOfFailedTest(t *testing.T) {
	cfg, e := newConfig(t, "-artifact-retention=1")
	bl := &fakeBaseline{}
	c := newController(t, cfg, e, bl)
	ctx := context.Background()

	if err := c.SessionStart(ctx); err != nil {
		t.Fatal("SessionStart: ", err)
	}

	pass := c.NewTest(result.ID{SuitePath: "decode/vp9.py", Function: "test_basic"})
	if err := c.TestStart(ctx, pass); err != nil {
		t.Fatal("TestStart: ", err)
	}
	e.clock.Increment(2 * time.Second)
	if err := c.TestEnd(ctx, pass); err != nil {
		t.Fatal("TestEnd: ", err)
	}

	fail := c.NewTest(result.ID{SuitePath: "encode/avc.py", Class: "TestAVC", Function: "test_cqp", Variation: "1080p"})
	if err := c.TestStart(ctx, fail); err != nil {
		t.Fatal("TestStart: ", err)
	}
	art, err := fail.Artifact(ctx, "out.h264")
	if err != nil {
		t.Fatal("Artifact: ", err)
	}
	if err := os.WriteFile(art, []byte("nal units"), 0644); err != nil {
		t.Fatal(err)
	}
	fail.Result().AddFailure("psnr below threshold", nil)
	e.clock.Increment(time.Second)
	if err := c.TestEnd(ctx, fail); err != nil {
		t.Fatal("TestEnd: ", err)
	}

	if err := c.SessionEnd(ctx); err != nil {
		t.Fatal("SessionEnd: ", err)
	}

	resDir := filepath.Join(e.logDir, sessionID)
	if got := c.ResultDir(); got != resDir {
		t.Errorf("ResultDir() = %q; want %q", got, resDir)
	}
	wantLog := filepath.Join(resDir, "encode/avc/TestAVC/test_cqp/1080p.log")
	if got := fail.Result().LogPath; got != wantLog {
		t.Errorf("LogPath = %q; want %q", got, wantLog)
	}
	if got, want := art, filepath.Join(resDir, "encode/avc/TestAVC/test_cqp/1080p/out.h264"); got != want {
		t.Errorf("Artifact() = %q; want %q", got, want)
	}
	if !testutil.Exists(t, art) {
		t.Errorf("Artifact of failed test %s was removed", art)
	}
	if got, want := pass.Result().LogPath, filepath.Join(resDir, "decode/vp9/test_basic/default.log"); got != want {
		t.Errorf("LogPath = %q; want %q", got, want)
	}
	if !bl.finalized {
		t.Error("Baseline was not finalized")
	}

	s := readReport(t, filepath.Join(resDir, report.Filename))
	if s.Tests != 2 || s.Failures != 1 || s.Errors != 0 {
		t.Errorf("report counts = tests=%d failures=%d errors=%d; want 2, 1, 0", s.Tests, s.Failures, s.Errors)
	}
	if s.Hostname != "dut1" || s.Time != "3.000" || s.Timestamp != "2026-03-01T09:30:00Z" {
		t.Errorf("suite attributes = hostname=%q time=%q timestamp=%q", s.Hostname, s.Time, s.Timestamp)
	}
	if len(s.TestCases) != 2 {
		t.Fatalf("report has %d test cases; want 2", len(s.TestCases))
	}
	if tc := s.TestCases[0]; tc.ClassName != "media.decode.vp9" || tc.Name != "test_basic" || tc.Time != "2.000" {
		t.Errorf("TestCases[0] = %+v", tc)
	}
	if tc := s.TestCases[0]; tc.SystemOut == nil || !strings.Contains(tc.SystemOut.Data, "Started test") {
		t.Errorf("TestCases[0] lacks the test log: %+v", tc.SystemOut)
	}
	if diff := cmp.Diff(s.TestCases[1].Details, []*report.Detail{{Name: "elapsed", Value: "1.000"}}); diff != "" {
		t.Errorf("TestCases[1].Details mismatch (-got +want):\n%s", diff)
	}

	for _, name := range []string{session.SessionLogFilename, session.HighlightsLogFilename, "timing.json", "metrics.prom"} {
		if !testutil.Exists(t, filepath.Join(resDir, name)) {
			t.Errorf("%s was not written", name)
		}
	}
	if target, err := os.Readlink(filepath.Join(e.logDir, "latest.log")); err != nil || target != filepath.Join(sessionID, session.SessionLogFilename) {
		t.Errorf("latest.log points to %q (%v)", target, err)
	}
}

func TestSessionRemovesArtifacts(t *testing.T) {
	cfg, e := newConfig(t, "-artifact-retention=0")
	c := newController(t, cfg, e, nil)
	ctx := context.Background()
	if err := c.SessionStart(ctx); err != nil {
		t.Fatal("SessionStart: ", err)
	}

	tst := c.NewTest(result.ID{SuitePath: "a.py", Function: "test_x"})
	if err := c.TestStart(ctx, tst); err != nil {
		t.Fatal("TestStart: ", err)
	}
	art, err := tst.Artifact(ctx, "frames/0.yuv")
	if err != nil {
		t.Fatal("Artifact: ", err)
	}
	if err := testutil.WriteFiles(filepath.Dir(art), map[string]string{"0.yuv": "y"}); err != nil {
		t.Fatal(err)
	}
	tst.Result().AddError("crashed", nil)
	if err := c.TestEnd(ctx, tst); err != nil {
		t.Fatal("TestEnd: ", err)
	}
	if testutil.Exists(t, art) {
		t.Errorf("%s was retained with retention None", art)
	}
	if err := c.SessionEnd(ctx); err != nil {
		t.Fatal("SessionEnd: ", err)
	}
}

func TestVariationsKeepSeparateArtifacts(t *testing.T) {
	cfg, e := newConfig(t, "-artifact-retention=1")
	c := newController(t, cfg, e, nil)
	ctx := context.Background()
	if err := c.SessionStart(ctx); err != nil {
		t.Fatal("SessionStart: ", err)
	}

	run := func(variation string, fail bool) string {
		t.Helper()
		tst := c.NewTest(result.ID{SuitePath: "encode/avc.py", Function: "test_cqp", Variation: variation})
		if err := c.TestStart(ctx, tst); err != nil {
			t.Fatal("TestStart: ", err)
		}
		art, err := tst.Artifact(ctx, "out.h264")
		if err != nil {
			t.Fatal("Artifact: ", err)
		}
		if err := os.WriteFile(art, []byte(variation), 0644); err != nil {
			t.Fatal(err)
		}
		if fail {
			tst.Result().AddFailure("bitrate out of range", nil)
		}
		if err := c.TestEnd(ctx, tst); err != nil {
			t.Fatal("TestEnd: ", err)
		}
		return art
	}
	failed := run("720p", true)
	passed := run("1080p", false)

	if failed == passed {
		t.Fatalf("Both variations got artifact path %s", failed)
	}
	if b, err := os.ReadFile(failed); err != nil {
		t.Errorf("Artifact of failed variation was removed: %v", err)
	} else if string(b) != "720p" {
		t.Errorf("%s = %q; want %q", failed, b, "720p")
	}
	if testutil.Exists(t, passed) {
		t.Errorf("Artifact of passing variation %s was retained", passed)
	}
	if err := c.SessionEnd(ctx); err != nil {
		t.Fatal("SessionEnd: ", err)
	}
}

func TestCallTimeoutLimitPerTest(t *testing.T) {
	cfg, e := newConfig(t, "-ctapt=2")
	c := newController(t, cfg, e, nil)
	logger := loggingtest.NewLogger(t, logging.LevelNotice)
	ctx := logging.AttachLogger(context.Background(), logger)

	if err := c.SessionStart(ctx); err != nil {
		t.Fatal("SessionStart: ", err)
	}
	tst := c.NewTest(result.ID{SuitePath: "a.py", Function: "test_x"})
	if tst.IsCallAllowed(ctx) != true {
		t.Error("IsCallAllowed() = false before the test started")
	}
	if err := c.TestStart(ctx, tst); err != nil {
		t.Fatal("TestStart: ", err)
	}

	var got []bool
	for i := 0; i < 4; i++ {
		ok := tst.IsCallAllowed(ctx)
		got = append(got, ok)
		if ok {
			tst.ReportCallTimeout(ctx)
		}
	}
	if diff := cmp.Diff(got, []bool{true, true, false, false}); diff != "" {
		t.Errorf("IsCallAllowed() results mismatch (-got +want):\n%s", diff)
	}
	notices := logger.LogsAt(logging.LevelNotice)
	if len(notices) != 2 {
		t.Errorf("got %d notices; want one per denial: %q", len(notices), notices)
	}
	for _, n := range notices {
		if !strings.Contains(n, "limit reached") {
			t.Errorf("notice %q does not mention the limit", n)
		}
	}
	if n := c.Tracker().RunCount(); n != 2 {
		t.Errorf("RunCount() = %d; want 2", n)
	}

	if err := c.TestEnd(ctx, tst); err != nil {
		t.Fatal("TestEnd: ", err)
	}
	if !tst.IsCallAllowed(ctx) {
		t.Error("IsCallAllowed() = false after the test ended")
	}
	if err := c.SessionEnd(ctx); err != nil {
		t.Fatal("SessionEnd: ", err)
	}
}

func TestCallTimeoutLimitPerRun(t *testing.T) {
	cfg, e := newConfig(t, "-ctapr=1")
	c := newController(t, cfg, e, nil)
	ctx := context.Background()
	if err := c.SessionStart(ctx); err != nil {
		t.Fatal("SessionStart: ", err)
	}

	first := c.NewTest(result.ID{SuitePath: "a.py", Function: "test_x"})
	c.TestStart(ctx, first)
	first.ReportCallTimeout(ctx)
	c.TestEnd(ctx, first)

	second := c.NewTest(result.ID{SuitePath: "b.py", Function: "test_y"})
	c.TestStart(ctx, second)
	if second.IsCallAllowed(ctx) {
		t.Error("IsCallAllowed() = true after the run-wide limit was reached")
	}
	c.TestEnd(ctx, second)
	c.SessionEnd(ctx)
}

func TestMultiWorkerLimitIsFatal(t *testing.T) {
	cfg, e := newConfig(t, "-workers=2", "-ctapr=5")
	_, err := session.New(session.Params{Config: cfg, Clock: e.clock})
	var ce *config.ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("New() = %v; want ConfigurationError", err)
	}
	if testutil.Exists(t, e.logDir) {
		t.Error("Result directory created despite the configuration error")
	}
}

func TestHangSignature(t *testing.T) {
	cfg, e := newConfig(t)
	c := newController(t, cfg, e, nil)
	logger := loggingtest.NewLogger(t, logging.LevelInfo)
	ctx := logging.AttachLogger(context.Background(), logger)
	if err := c.SessionStart(ctx); err != nil {
		t.Fatal("SessionStart: ", err)
	}
	if err := testutil.AppendToFile(e.syslog, "before session start\n"); err != nil {
		t.Fatal(err)
	}

	tst := c.NewTest(result.ID{SuitePath: "a.py", Function: "test_x"})
	if err := c.TestStart(ctx, tst); err != nil {
		t.Fatal("TestStart: ", err)
	}
	if err := testutil.AppendToFile(e.syslog, "i915 0000:00:02.0: [drm] GPU HANG: ecode 12:1:85dffffb\n\x1b[1mdone\x1b[0m\n"); err != nil {
		t.Fatal(err)
	}
	if err := c.TestEnd(ctx, tst); err != nil {
		t.Fatal("TestEnd: ", err)
	}

	if v, ok := tst.Result().Detail("hang_signatures"); !ok || v != "gpu hang" {
		t.Errorf("hang_signatures detail = %v, %v; want gpu hang", v, ok)
	}
	if !tst.Result().Succeeded() {
		t.Errorf("outcome = %v; a hang must not change it", tst.Result().Outcome())
	}
	if errs := logger.LogsAt(logging.LevelError); len(errs) != 1 {
		t.Errorf("got error logs %q; want one", errs)
	}
	infos := strings.Join(logger.LogsAt(logging.LevelInfo), "\n")
	if strings.Contains(infos, "before session start") {
		t.Error("system log from before the test was reported")
	}
	if !strings.Contains(infos, "\ndone") {
		t.Errorf("ANSI-stripped system log line missing from logs:\n%s", infos)
	}
	if err := c.SessionEnd(ctx); err != nil {
		t.Fatal("SessionEnd: ", err)
	}
}

func TestSecondaryWorker(t *testing.T) {
	cfg, e := newConfig(t, "-worker-id=gw1", "-workers=2")
	bl := &fakeBaseline{}
	c := newController(t, cfg, e, bl)
	ctx := context.Background()
	if err := c.SessionStart(ctx); err != nil {
		t.Fatal("SessionStart: ", err)
	}
	tst := c.NewTest(result.ID{SuitePath: "a.py", Function: "test_x"})
	c.TestStart(ctx, tst)
	testutil.AppendToFile(e.syslog, "[drm] GPU HANG\n")
	c.TestEnd(ctx, tst)
	if err := c.SessionEnd(ctx); err != nil {
		t.Fatal("SessionEnd: ", err)
	}

	if _, ok := tst.Result().Detail("hang_signatures"); ok {
		t.Error("system log was monitored on a secondary worker")
	}
	if testutil.Exists(t, filepath.Join(c.ResultDir(), report.Filename)) {
		t.Error("report was written on a secondary worker")
	}
	if bl.finalized {
		t.Error("baseline was finalized on a secondary worker")
	}
	if c.WorkerID() != "gw1" {
		t.Errorf("WorkerID() = %q; want gw1", c.WorkerID())
	}
}

func TestTestStateMachine(t *testing.T) {
	cfg, e := newConfig(t)
	c := newController(t, cfg, e, nil)
	ctx := context.Background()

	a := c.NewTest(result.ID{SuitePath: "a.py", Function: "test_a"})
	if err := c.TestStart(ctx, a); err == nil {
		t.Error("TestStart before SessionStart succeeded")
	}
	if err := c.SessionStart(ctx); err != nil {
		t.Fatal("SessionStart: ", err)
	}
	if err := c.SessionStart(ctx); err == nil {
		t.Error("second SessionStart succeeded")
	}
	if a.State() != session.Idle {
		t.Errorf("State() = %v; want idle", a.State())
	}
	if err := c.TestEnd(ctx, a); err == nil {
		t.Error("TestEnd of an idle test succeeded")
	}
	if _, err := a.Artifact(ctx, "x"); err == nil {
		t.Error("Artifact of an idle test succeeded")
	}
	if err := c.TestStart(ctx, a); err != nil {
		t.Fatal("TestStart: ", err)
	}
	if err := c.TestStart(ctx, a); err == nil {
		t.Error("TestStart of a running test succeeded")
	}
	b := c.NewTest(result.ID{SuitePath: "a.py", Function: "test_b"})
	if err := c.TestStart(ctx, b); err == nil {
		t.Error("TestStart while another test is running succeeded")
	}
	if err := c.TestEnd(ctx, a); err != nil {
		t.Fatal("TestEnd: ", err)
	}
	if a.State() != session.Completed {
		t.Errorf("State() = %v; want completed", a.State())
	}
	if err := c.TestEnd(ctx, a); err == nil {
		t.Error("TestEnd of a completed test succeeded")
	}
	if err := c.SessionEnd(ctx); err != nil {
		t.Fatal("SessionEnd: ", err)
	}
	if err := c.SessionEnd(ctx); err == nil {
		t.Error("second SessionEnd succeeded")
	}
}

func TestSessionEndEndsRunningTest(t *testing.T) {
	cfg, e := newConfig(t)
	c := newController(t, cfg, e, nil)
	ctx := context.Background()
	c.SessionStart(ctx)
	tst := c.NewTest(result.ID{SuitePath: "a.py", Function: "test_x"})
	c.TestStart(ctx, tst)
	if err := c.SessionEnd(ctx); err != nil {
		t.Fatal("SessionEnd: ", err)
	}
	if tst.State() != session.Completed || tst.Result().Outcome() != result.Error {
		t.Errorf("unfinished test has state %v and outcome %v; want completed, error", tst.State(), tst.Result().Outcome())
	}
	if n := len(c.Results()); n != 1 {
		t.Errorf("Results() has %d results; want 1", n)
	}
}

func TestExpect(t *testing.T) {
	cfg, e := newConfig(t)
	c := newController(t, cfg, e, &fakeBaseline{ref: map[string]interface{}{"md5": "abc"}})
	ctx := context.Background()
	c.SessionStart(ctx)
	tst := c.NewTest(result.ID{SuitePath: "a.py", Function: "test_x"})
	c.TestStart(ctx, tst)
	if err := tst.Expect(ctx, "md5", "abc"); err != nil {
		t.Error("Expect with matching value: ", err)
	}
	if err := tst.Expect(ctx, "md5", "def"); err == nil {
		t.Error("Expect with mismatching value succeeded")
	}
	c.TestEnd(ctx, tst)
	if tst.Result().Outcome() != result.Failure {
		t.Errorf("outcome = %v; want failure", tst.Result().Outcome())
	}
	c.SessionEnd(ctx)
}

func TestParallelMetrics(t *testing.T) {
	cfg, e := newConfig(t, "-parallel-metrics", "-artifact-retention=2")
	c := newController(t, cfg, e, nil)
	ctx := context.Background()
	if err := c.SessionStart(ctx); err != nil {
		t.Fatal("SessionStart: ", err)
	}
	tst := c.NewTest(result.ID{SuitePath: "a.py", Function: "test_x"})
	c.TestStart(ctx, tst)
	p, err := tst.Artifact(ctx, "out.bin")
	if err != nil {
		t.Fatal("Artifact: ", err)
	}
	os.WriteFile(p, []byte("12345"), 0644)
	c.TestEnd(ctx, tst)
	if err := c.SessionEnd(ctx); err != nil {
		t.Fatal("SessionEnd: ", err)
	}

	b, err := os.ReadFile(filepath.Join(c.ResultDir(), "metrics.prom"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `hwsession_artifact_bytes_total{platform="tgl"} 5`) {
		t.Errorf("metrics do not include the artifact size:\n%s", b)
	}
}

func TestInterrupt(t *testing.T) {
	cfg, e := newConfig(t)
	c := newController(t, cfg, e, nil)
	console := loggingtest.NewLogger(t, logging.LevelDebug)
	ctx := logging.AttachLogger(context.Background(), console)

	if err := c.SessionStart(ctx); err != nil {
		t.Fatal("SessionStart: ", err)
	}
	done := c.NewTest(result.ID{SuitePath: "decode/vp9.py", Function: "test_basic"})
	if err := c.TestStart(ctx, done); err != nil {
		t.Fatal("TestStart: ", err)
	}
	if err := c.TestEnd(ctx, done); err != nil {
		t.Fatal("TestEnd: ", err)
	}
	tst := c.NewTest(result.ID{SuitePath: "decode/vp9.py", Function: "test_seek"})
	if err := c.TestStart(ctx, tst); err != nil {
		t.Fatal("TestStart: ", err)
	}
	if err := c.Interrupt(ctx, errors.New("interrupted by interrupt signal")); err != nil {
		t.Fatal("Interrupt: ", err)
	}

	if st := tst.State(); st != session.Completed {
		t.Errorf("Running test is %v after Interrupt; want %v", st, session.Completed)
	}
	s := readReport(t, filepath.Join(c.ResultDir(), report.Filename))
	if s.Tests != 2 || s.Errors != 1 || s.Failures != 0 {
		t.Errorf("report counts = tests=%d failures=%d errors=%d; want 2, 0, 1", s.Tests, s.Failures, s.Errors)
	}

	const notice = "Session interrupted: interrupted by interrupt signal"
	for _, msg := range console.Logs() {
		if strings.Contains(msg, notice) {
			t.Errorf("Interrupt notice was sent to the console: %q", msg)
		}
	}
	for _, p := range []string{
		filepath.Join(c.ResultDir(), session.SessionLogFilename),
		tst.Result().LogPath,
	} {
		b, err := os.ReadFile(p)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(b), notice) {
			t.Errorf("%s lacks the interrupt notice:\n%s", p, b)
		}
	}
	if err := c.SessionEnd(ctx); err == nil {
		t.Error("SessionEnd succeeded after Interrupt")
	}
	if err := c.Interrupt(ctx, errors.New("again")); err == nil {
		t.Error("Interrupt succeeded after the session ended")
	}
}
