// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/subcommands"

	"go.chromium.org/hwsession/internal/config"
	"go.chromium.org/hwsession/internal/logging"
	"go.chromium.org/hwsession/internal/logging/loggingtest"
	"go.chromium.org/hwsession/testutil"
)

// writeConfig writes a configuration file into a new install directory and
// returns the directory.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := testutil.WriteFiles(dir, map[string]string{"config/default": content}); err != nil {
		t.Fatal(err)
	}
	return dir
}

func noEnv(string) string { return "" }

// executeRunCmd runs the run command in installDir with args, feeding it
// input. It returns the exit status and the protocol output.
func executeRunCmd(t *testing.T, installDir string, args []string, input string, logger logging.Logger) (subcommands.ExitStatus, string) {
	t.Helper()
	var out bytes.Buffer
	cmd := &runCmd{
		installDir: installDir,
		cfg:        config.NewMutableConfig(installDir),
		stdin:      strings.NewReader(input),
		stdout:     &out,
		getenv:     noEnv,
	}
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	cmd.SetFlags(flags)
	if err := flags.Parse(args); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if logger != nil {
		ctx = logging.AttachLogger(ctx, logger)
	}
	return cmd.Execute(ctx, flags), out.String()
}

func TestRunSession(t *testing.T) {
	dir := writeConfig(t, "platform: tgl\nsyslog: none\n")
	input := strings.Join([]string{
		`{"op":"session_start"}`,
		`{"op":"test_start","id":{"suitePath":"decode/vp9.py","function":"test_seek"}}`,
		`{"op":"test_end"}`,
		`{"op":"session_end"}`,
	}, "\n") + "\n"

	status, out := executeRunCmd(t, dir, nil, input, nil)
	if status != subcommands.ExitSuccess {
		t.Fatalf("Execute returned %v; want %v", status, subcommands.ExitSuccess)
	}
	if n := strings.Count(out, "\n"); n != 4 {
		t.Errorf("Got %d response lines; want 4:\n%s", n, out)
	}
	if !strings.Contains(out, `"outcome":"success"`) {
		t.Errorf("Output lacks passing outcome:\n%s", out)
	}
	if !testutil.Exists(t, filepath.Join(dir, "results", "latest.log")) {
		t.Error("latest.log was not created")
	}
}

func TestRunFlagOverridesConfigFile(t *testing.T) {
	dir := writeConfig(t, "platform: tgl\nsyslog: none\n")
	logdir := filepath.Join(t.TempDir(), "out")
	input := `{"op":"session_start"}` + "\n" + `{"op":"session_end"}` + "\n"

	if status, _ := executeRunCmd(t, dir, []string{"-logdir=" + logdir}, input, nil); status != subcommands.ExitSuccess {
		t.Fatalf("Execute returned %v; want %v", status, subcommands.ExitSuccess)
	}
	if !testutil.Exists(t, filepath.Join(logdir, "latest.log")) {
		t.Errorf("Session logs were not written to %s", logdir)
	}
}

func TestRunUnterminated(t *testing.T) {
	dir := writeConfig(t, "platform: tgl\nsyslog: none\n")
	logger := loggingtest.NewLogger(t, logging.LevelInfo)
	status, _ := executeRunCmd(t, dir, nil, `{"op":"session_start"}`+"\n", logger)
	if status != subcommands.ExitFailure {
		t.Fatalf("Execute returned %v; want %v", status, subcommands.ExitFailure)
	}
	if logs := logger.String(); !strings.Contains(logs, "session_end") {
		t.Errorf("Logs don't mention the missing session_end:\n%s", logs)
	}
}

func TestRunMissingConfig(t *testing.T) {
	logger := loggingtest.NewLogger(t, logging.LevelInfo)
	status, _ := executeRunCmd(t, t.TempDir(), nil, "", logger)
	if status != subcommands.ExitFailure {
		t.Fatalf("Execute returned %v; want %v", status, subcommands.ExitFailure)
	}
	if logs := logger.String(); !strings.Contains(logs, "configuration error") {
		t.Errorf("Logs don't report a configuration error:\n%s", logs)
	}
}

func TestRunInvalidConfig(t *testing.T) {
	dir := writeConfig(t, "workers: 2\nrebase: true\nplatform: tgl\n")
	if status, _ := executeRunCmd(t, dir, nil, "", nil); status != subcommands.ExitFailure {
		t.Fatalf("Execute returned %v; want %v", status, subcommands.ExitFailure)
	}
}

func TestRunExtraArgs(t *testing.T) {
	dir := writeConfig(t, "platform: tgl\n")
	if status, _ := executeRunCmd(t, dir, []string{"foo"}, "", nil); status != subcommands.ExitUsageError {
		t.Fatalf("Execute returned %v; want %v", status, subcommands.ExitUsageError)
	}
}

func TestRunConfigFromEnv(t *testing.T) {
	p := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(p, []byte("platform: adl\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cmd := newRunCmd(t.TempDir(), strings.NewReader(""), &bytes.Buffer{})
	cmd.getenv = func(k string) string {
		if k == config.EnvConfigFile {
			return p
		}
		return ""
	}
	cmd.SetFlags(flag.NewFlagSet("", flag.ContinueOnError))
	if cmd.loadErr != nil {
		t.Fatal("SetFlags failed to load config: ", cmd.loadErr)
	}
	if cmd.cfg.Platform != "adl" {
		t.Errorf("Platform = %q; want %q", cmd.cfg.Platform, "adl")
	}
}
