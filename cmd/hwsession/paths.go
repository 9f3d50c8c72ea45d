// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"os"
	"path/filepath"
)

// defaultInstallDir is used when the executable path cannot be determined.
const defaultInstallDir = "/usr/local/hwsession"

// installDir returns the installation root, i.e. the parent of the directory
// containing the executable (<root>/bin/hwsession).
func installDir() string {
	exe, err := os.Executable()
	if err != nil {
		return defaultInstallDir
	}
	if p, err := filepath.EvalSymlinks(exe); err == nil {
		exe = p
	}
	return filepath.Dir(filepath.Dir(exe))
}
