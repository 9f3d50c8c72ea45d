// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package shutil formats command lines for logs.
package shutil

import (
	"regexp"
	"strings"
)

// plainRE matches words that a POSIX shell reads literally. A leading equals
// sign is excluded since zsh expands it.
var plainRE = regexp.MustCompile(`^[-\w@%+:,./][-\w@%+:,./=]*$`)

// Quote returns s quoted for a shell command line, or s itself if it needs
// no quoting.
func Quote(s string) string {
	if plainRE.MatchString(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// Join quotes each of args and joins them with spaces.
func Join(args []string) string {
	var sb strings.Builder
	for i, a := range args {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(Quote(a))
	}
	return sb.String()
}
