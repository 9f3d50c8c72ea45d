// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package logging

import "github.com/acarl005/stripansi"

// StripANSI removes ANSI/CSI terminal control sequences from s.
//
// Removing a sequence can splice a stray ESC byte onto the following text and
// form a new sequence, so stripping repeats until nothing changes. The result
// contains no sequence, which makes StripANSI idempotent.
func StripANSI(s string) string {
	for {
		t := stripansi.Strip(s)
		if t == s {
			return s
		}
		s = t
	}
}
