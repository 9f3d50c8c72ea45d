// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"io"
	"os"

	"github.com/google/subcommands"

	"go.chromium.org/hwsession/internal/baseline"
	"go.chromium.org/hwsession/internal/command"
	"go.chromium.org/hwsession/internal/config"
	"go.chromium.org/hwsession/internal/errors"
	"go.chromium.org/hwsession/internal/hookproto"
	"go.chromium.org/hwsession/internal/logging"
	"go.chromium.org/hwsession/internal/session"
)

// runCmd implements subcommands.Command to serve a session over the hook
// protocol.
type runCmd struct {
	installDir string
	cfg        *config.MutableConfig
	loadErr    error // error loading the configuration file
	stdin      io.Reader
	stdout     io.Writer

	getenv        func(string) string // can be replaced by tests
	signalHandler bool                // install a signal handler once the session starts
}

var _ = subcommands.Command(&runCmd{})

func newRunCmd(installDir string, stdin io.Reader, stdout io.Writer) *runCmd {
	return &runCmd{
		installDir:    installDir,
		cfg:           config.NewMutableConfig(installDir),
		stdin:         stdin,
		stdout:        stdout,
		getenv:        os.Getenv,
		signalHandler: true,
	}
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "serve a test session to a runner" }
func (*runCmd) Usage() string {
	return `Usage: run [flag]...

Description:
    Reads lifecycle requests from stdin, one JSON object per line, and writes
    one JSON response per request to stdout. The session ends with a
    "session_end" request, after which results.xml and the session logs are
    available in the session result directory under -logdir.

    Defaults for all flags are read from the YAML file named by the
    HWSESSION_CONFIG environment variable (default: <install>/config/default).

Flag:
`
}

func (r *runCmd) SetFlags(f *flag.FlagSet) {
	r.loadErr = r.cfg.LoadFile(config.FilePath(r.installDir, r.getenv))
	r.cfg.SetFlags(f)
}

func (r *runCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 0 {
		logging.Info(ctx, "Unexpected arguments.\n\n"+r.Usage())
		return subcommands.ExitUsageError
	}
	if r.loadErr != nil {
		logging.Errorf(ctx, "%v", r.loadErr)
		return subcommands.ExitFailure
	}

	cfg := r.cfg.Freeze()
	bl, err := baseline.Open(cfg.BaselineFile(), cfg.Rebase())
	if err != nil {
		logging.Errorf(ctx, "%v", err)
		return subcommands.ExitFailure
	}

	// A signal cancels ctx so that the serving goroutine interrupts the
	// session. The handler waits for it before exiting.
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	served := make(chan struct{})

	var stopSignals func()
	c, err := session.New(session.Params{
		Config:   cfg,
		Baseline: bl,
		Started: func(ctx context.Context, c *session.Controller) {
			if !r.signalHandler {
				return
			}
			stopSignals = command.InstallSignalHandler(os.Stderr, func(sig os.Signal) {
				cancel(errors.Errorf("interrupted by %v signal", sig))
				<-served
			})
		},
	})
	if err != nil {
		logging.Errorf(ctx, "%v", err)
		return subcommands.ExitFailure
	}
	defer func() {
		if stopSignals != nil {
			stopSignals()
		}
	}()
	defer close(served)

	if err := hookproto.Serve(ctx, c, r.stdin, r.stdout); err != nil {
		logging.Errorf(ctx, "Session failed: %v", err)
		return subcommands.ExitFailure
	}
	if dir := c.ResultDir(); dir != "" {
		logging.Infof(ctx, "Results are in %s", dir)
	}
	return subcommands.ExitSuccess
}
