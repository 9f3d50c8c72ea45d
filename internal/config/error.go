// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package config

import (
	"go.chromium.org/hwsession/internal/errors"
)

// ConfigurationError is returned for a configuration that must abort the
// session before any test runs.
type ConfigurationError struct {
	err error
}

func newConfigError(format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{err: errors.Errorf(format, args...)}
}

func (e *ConfigurationError) Error() string { return "configuration error: " + e.err.Error() }

func (e *ConfigurationError) Unwrap() error { return e.err }
