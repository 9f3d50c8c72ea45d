// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package syslog captures system diagnostic log output produced while a test
// runs and scans it for hardware hang signatures.
package syslog

import (
	"context"

	"go.chromium.org/hwsession/internal/errors"
)

// Source is a system log stream with a read cursor.
type Source interface {
	// Read returns the log content produced since the previous call. The
	// first call returns whatever the source considers its current content.
	Read(ctx context.Context) (string, error)
	// Close releases resources held by the source.
	Close() error
}

// Monitor takes checkpoints of a Source.
type Monitor struct {
	src Source
}

// New creates a Monitor over src. The content src holds at this point is
// discarded, so the first Checkpoint returns only content produced after New.
func New(ctx context.Context, src Source) (*Monitor, error) {
	if _, err := src.Read(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to establish system log baseline")
	}
	return &Monitor{src: src}, nil
}

// Checkpoint returns the log content produced since the previous checkpoint,
// or since New for the first call.
func (m *Monitor) Checkpoint(ctx context.Context) (string, error) {
	s, err := m.src.Read(ctx)
	if err != nil {
		return "", errors.Wrap(err, "failed to read system log")
	}
	return s, nil
}

// Close closes the underlying source.
func (m *Monitor) Close() error {
	return m.src.Close()
}
