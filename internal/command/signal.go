// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package command

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sys/unix"

	"go.chromium.org/hwsession/internal/shutil"
)

var selfName = filepath.Base(os.Args[0])

// InstallSignalHandler installs a handler for SIGINT and SIGTERM that calls
// callback, terminates child processes and exits. out is the output stream
// to write messages to (typically stderr). The returned function uninstalls
// the handler.
func InstallSignalHandler(out io.Writer, callback func(sig os.Signal)) (stop func()) {
	ch := make(chan os.Signal, 1)
	done := make(chan struct{})
	go func() {
		select {
		case sig := <-ch:
			fmt.Fprintf(out, "\n%s: Caught %v signal; exiting\n", selfName, sig)
			callback(sig)
			TerminateChildren(out)
			os.Exit(1)
		case <-done:
		}
	}()
	signal.Notify(ch, unix.SIGINT, unix.SIGTERM)
	return func() {
		signal.Stop(ch)
		close(done)
	}
}

// TerminateChildren sends SIGTERM to all direct child processes of the
// current process. It returns the number of processes signaled.
func TerminateChildren(out io.Writer) int {
	procs, err := process.Processes()
	if err != nil {
		fmt.Fprintf(out, "Failed to terminate subprocesses: %v\n", err)
		return 0
	}

	selfPid := int32(os.Getpid())

	n := 0
	for _, proc := range procs {
		ppid, err := proc.Ppid()
		if err != nil {
			continue
		}
		if ppid != selfPid {
			continue
		}
		cmd, err := proc.CmdlineSlice()
		if err != nil || len(cmd) == 0 {
			cmd = []string{"?"}
		}
		if err := proc.Terminate(); err != nil {
			fmt.Fprintf(out, "Failed to terminate %d (%s): %v\n", proc.Pid, shutil.Join(cmd), err)
			continue
		}
		fmt.Fprintf(out, "Terminated %d: %s\n", proc.Pid, shutil.Join(cmd))
		n++
	}
	return n
}
