// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"

	"go.chromium.org/hwsession/internal/casetree"
	"go.chromium.org/hwsession/internal/command"
	"go.chromium.org/hwsession/internal/config"
)

// checkCmd implements subcommands.Command to validate a configuration
// without running a session.
type checkCmd struct {
	installDir string
	cfg        *config.MutableConfig
	loadErr    error
	cases      string // path to a case tree file
	out        io.Writer

	getenv func(string) string // can be replaced by tests
}

var _ = subcommands.Command(&checkCmd{})

func newCheckCmd(installDir string, out io.Writer) *checkCmd {
	return &checkCmd{
		installDir: installDir,
		cfg:        config.NewMutableConfig(installDir),
		out:        out,
		getenv:     os.Getenv,
	}
}

func (*checkCmd) Name() string     { return "check" }
func (*checkCmd) Synopsis() string { return "validate configuration and case trees" }
func (*checkCmd) Usage() string {
	return `Usage: check [flag]...

Description:
    Runs every startup validation of "run" without executing tests.
    Exits with 0 if the configuration (and the case tree given by -cases) is
    valid, 1 on a fatal configuration or validation error and 2 on usage
    errors.

Flag:
`
}

func (c *checkCmd) SetFlags(f *flag.FlagSet) {
	c.loadErr = c.cfg.LoadFile(config.FilePath(c.installDir, c.getenv))
	c.cfg.SetFlags(f)
	f.StringVar(&c.cases, "cases", "", "path to a YAML case tree to validate")
}

func (c *checkCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return subcommands.ExitStatus(c.check(f))
}

func (c *checkCmd) check(f *flag.FlagSet) int {
	if f.NArg() != 0 {
		return command.WriteError(c.out, command.NewStatusErrorf(command.StatusUsage, "unexpected arguments %q\n\n%s", f.Args(), c.Usage()))
	}
	if c.loadErr != nil {
		return command.WriteError(c.out, c.loadErr)
	}
	if err := c.cfg.Validate(); err != nil {
		return command.WriteError(c.out, err)
	}

	msg := fmt.Sprintf("Configuration for platform %s is valid", c.cfg.Platform)
	if c.cases != "" {
		tree, err := casetree.Load(c.cases)
		if err != nil {
			return command.WriteError(c.out, err)
		}
		msg += fmt.Sprintf("; %s has %d case(s)", c.cases, len(tree.Cases()))
	}
	fmt.Fprintln(c.out, msg)
	return command.StatusOK
}
