// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package main implements the hwsession executable, which governs the
// lifecycle of hardware test sessions driven by an external runner.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"go.chromium.org/hwsession/internal/logging"
)

// Version is the version info of this command. It is filled in at build time.
var Version = "<unknown>"

// doMain implements the main body of the program. It's a separate function so
// that its deferred functions will run before os.Exit makes the program exit
// immediately.
func doMain() int {
	dir := installDir()
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(newRunCmd(dir, os.Stdin, os.Stdout), "")
	subcommands.Register(newCheckCmd(dir, os.Stdout), "")

	version := flag.Bool("version", false, "print version and exit")
	verbose := flag.Bool("verbose", false, "write debug logs to stderr")
	flag.Parse()

	if *version {
		fmt.Printf("hwsession version %s\n", Version)
		return 0
	}

	level := logging.LevelInfo
	if *verbose {
		level = logging.LevelDebug
	}
	// Stdout carries the hook protocol, so console logs go to stderr.
	logger := logging.NewSinkLogger(level, true, logging.NewWriterSink(os.Stderr))
	ctx := logging.AttachLogger(context.Background(), logger)

	return int(subcommands.Execute(ctx))
}

func main() {
	os.Exit(doMain())
}
