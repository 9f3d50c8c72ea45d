// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package syslog

import (
	"context"
	"regexp"
	"strings"

	"go.chromium.org/hwsession/internal/logging"
)

// Signature is a pattern of a diagnostic message indicating a hardware reset
// or hang.
type Signature struct {
	Name string
	re   *regexp.Regexp
}

// Match reports whether line contains the signature.
func (s *Signature) Match(line string) bool {
	return s.re.MatchString(line)
}

// HangSignatures is the fixed set of signatures Scan looks for, in reporting
// order.
var HangSignatures = []*Signature{
	{"gpu hang", regexp.MustCompile(`\[drm\] GPU HANG`)},
	{"chip reset", regexp.MustCompile(`\[drm\].*[Rr]esetting chip`)},
	{"crash dump", regexp.MustCompile(`\[drm\].*GPU crash dump saved`)},
	{"engine reset", regexp.MustCompile(`i915 .*[Rr]esetting .* for (hang|preemption time out)`)},
	{"guc failure", regexp.MustCompile(`\[drm\].*GuC.*(failed|reset)`)},
}

// Scan returns the signatures found in text. Each signature is returned at
// most once regardless of how many lines match it.
func Scan(text string) []*Signature {
	var found []*Signature
	lines := splitLines(text)
	for _, sig := range HangSignatures {
		for _, line := range lines {
			if sig.Match(line) {
				found = append(found, sig)
				break
			}
		}
	}
	return found
}

// Report scans delta for hang signatures and logs each one found as an error
// event, then logs every non-empty line of delta at info level in order. It
// returns the signatures found.
//
// Detection is advisory: the caller decides what to attach to the test
// result, and a hang never changes a test outcome by itself.
func Report(ctx context.Context, delta string) []*Signature {
	found := Scan(delta)
	for _, sig := range found {
		logging.Errorf(ctx, "Hang signature detected in system log: %s", sig.Name)
	}
	for _, line := range splitLines(delta) {
		if strings.TrimSpace(line) == "" {
			continue
		}
		logging.Info(ctx, line)
	}
	return found
}

// splitLines splits text into ANSI-stripped lines.
func splitLines(text string) []string {
	return strings.Split(logging.StripANSI(strings.TrimRight(text, "\n")), "\n")
}
