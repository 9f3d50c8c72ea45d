// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package artifact manages files that tests produce as artifacts and removes
// them after the test according to a retention policy.
package artifact

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"go.chromium.org/hwsession/internal/errors"
	"go.chromium.org/hwsession/internal/logging"
	"go.chromium.org/hwsession/internal/result"
)

// Policy controls which artifacts survive a test.
type Policy int

const (
	// None removes every artifact after the test.
	None Policy = iota
	// OnFailureKeep keeps the artifacts of tests that did not succeed.
	OnFailureKeep
	// All keeps every artifact.
	All
)

// Policies maps the names accepted on the command line to policies.
var Policies = map[string]int{
	"0": int(None),
	"1": int(OnFailureKeep),
	"2": int(All),
}

func (p Policy) String() string {
	switch p {
	case None:
		return "none"
	case OnFailureKeep:
		return "on-failure-keep"
	case All:
		return "all"
	default:
		return "unknown"
	}
}

// ShouldRemove reports whether an artifact of a test with outcome o is
// removed under policy p.
func ShouldRemove(p Policy, o result.Outcome) bool {
	switch p {
	case All:
		return false
	case OnFailureKeep:
		return o == result.Success
	default:
		return true
	}
}

// Manager tracks the artifacts of a single running test.
type Manager struct {
	policy Policy
	dir    string
	res    *result.Result
}

// NewManager returns a Manager placing artifacts of res under dir and
// recording them in res.Artifacts.
func NewManager(policy Policy, dir string, res *result.Result) *Manager {
	return &Manager{policy: policy, dir: dir, res: res}
}

// Dir returns the directory artifacts are placed in.
func (m *Manager) Dir() string { return m.dir }

// Register returns the path for the artifact named filename and records it on
// the result. The first time a filename is registered, a stale file left at
// the path, e.g. by an interrupted earlier run, is removed.
func (m *Manager) Register(ctx context.Context, filename string) (string, error) {
	p, err := m.path(filename)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return "", errors.Wrap(err, "failed to create artifact directory")
	}
	if m.res.AddArtifact(p) {
		if removeIfExists(ctx, p) {
			logging.Debugf(ctx, "Removed stale artifact %s", p)
		}
	}
	return p, nil
}

// Purge removes the artifact named filename now if the retention policy would
// remove it given the test's outcome so far.
func (m *Manager) Purge(ctx context.Context, filename string) {
	p, err := m.path(filename)
	if err != nil {
		logging.Debugf(ctx, "Not purging %q: %v", filename, err)
		return
	}
	if !ShouldRemove(m.policy, m.res.Outcome()) {
		return
	}
	removeIfExists(ctx, p)
}

// Dispose applies the retention policy to every registered artifact. It is
// called once, when the test ends. It returns the paths it removed.
func (m *Manager) Dispose(ctx context.Context) []string {
	if !ShouldRemove(m.policy, m.res.Outcome()) {
		if len(m.res.Artifacts) > 0 {
			logging.Debugf(ctx, "Keeping %d artifact(s) (retention %v, outcome %v)", len(m.res.Artifacts), m.policy, m.res.Outcome())
		}
		return nil
	}
	var removed []string
	for _, p := range m.res.Artifacts {
		if removeIfExists(ctx, p) {
			removed = append(removed, p)
		}
	}
	return removed
}

func (m *Manager) path(filename string) (string, error) {
	if filename == "" || filepath.IsAbs(filename) {
		return "", errors.Errorf("invalid artifact name %q", filename)
	}
	p := filepath.Join(m.dir, filename)
	if !strings.HasPrefix(p, filepath.Clean(m.dir)+string(filepath.Separator)) {
		return "", errors.Errorf("artifact name %q escapes %s", filename, m.dir)
	}
	return p, nil
}

// removeIfExists removes the file at p if it exists. Failures are logged and
// otherwise ignored. It returns true if the file was removed.
func removeIfExists(ctx context.Context, p string) bool {
	if _, err := os.Lstat(p); err != nil {
		return false
	}
	if err := os.Remove(p); err != nil {
		logging.Debugf(ctx, "Failed to remove artifact %s: %v", p, err)
		return false
	}
	return true
}
