// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package config provides the configuration of a test session.
package config

import (
	"flag"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.chromium.org/hwsession/internal/admission"
	"go.chromium.org/hwsession/internal/artifact"
	"go.chromium.org/hwsession/internal/command"
	"go.chromium.org/hwsession/internal/errors"
)

const (
	defaultCallTimeout = 300 * time.Second
	defaultSuite       = "media"
	defaultBaseline    = "baseline/default"
	defaultLogDir      = "results"
)

// SyslogKind identifies the system log source to monitor.
type SyslogKind int

const (
	// SyslogKmsg reads kernel log records from /dev/kmsg.
	SyslogKmsg SyslogKind = iota
	// SyslogFile reads an append-only log file.
	SyslogFile
	// SyslogNone disables system log monitoring.
	SyslogNone
)

// ParseSyslog parses a system log source specification: "kmsg", "none" or
// "file:<path>".
func ParseSyslog(s string) (kind SyslogKind, path string, err error) {
	switch {
	case s == "kmsg":
		return SyslogKmsg, "", nil
	case s == "none":
		return SyslogNone, "", nil
	case strings.HasPrefix(s, "file:") && len(s) > len("file:"):
		return SyslogFile, strings.TrimPrefix(s, "file:"), nil
	}
	return 0, "", errors.Errorf(`invalid system log source %q; want "kmsg", "none" or "file:<path>"`, s)
}

// MutableConfig contains session configuration. It is mutable while flags
// and the configuration file are applied.
// Call Freeze to obtain a Config from MutableConfig.
type MutableConfig struct {
	// InstallDir is the installation root that relative defaults are derived from.
	InstallDir string

	// Rebase makes the baseline collaborator record reference values instead
	// of comparing against them.
	Rebase bool
	// BaselineFile is the path of the baseline reference store.
	BaselineFile string
	// ArtifactRetention controls which test artifacts survive a test.
	ArtifactRetention artifact.Policy
	// CallTimeout is the default timeout for a single hardware call.
	CallTimeout time.Duration
	// CallTimeoutsPerTest is the number of call timeouts allowed per test
	// function, or admission.Unlimited.
	CallTimeoutsPerTest int
	// CallTimeoutsPerRun is the number of call timeouts allowed per run, or
	// admission.Unlimited.
	CallTimeoutsPerRun int
	// ParallelMetrics enables the metrics worker pool.
	ParallelMetrics bool
	// Platform is the name of the hardware platform under test.
	Platform string
	// Workers is the number of concurrent workers the runner uses.
	Workers int
	// WorkerID identifies this worker. It is empty for the primary worker.
	WorkerID string
	// Suite is the top-level suite name used in reports.
	Suite string
	// LogDir is the directory under which session result directories are created.
	LogDir string
	// Syslog is the system log source specification. See ParseSyslog.
	Syslog string
}

// Config contains session configuration.
// It is a read-only view of MutableConfig.
type Config struct {
	m *MutableConfig
}

// InstallDir returns the installation root.
func (c *Config) InstallDir() string { return c.m.InstallDir }

// Rebase returns whether baseline values are recorded rather than compared.
func (c *Config) Rebase() bool { return c.m.Rebase }

// BaselineFile returns the path of the baseline reference store.
func (c *Config) BaselineFile() string { return c.m.BaselineFile }

// ArtifactRetention returns the artifact retention policy.
func (c *Config) ArtifactRetention() artifact.Policy { return c.m.ArtifactRetention }

// CallTimeout returns the default timeout for a single hardware call.
func (c *Config) CallTimeout() time.Duration { return c.m.CallTimeout }

// Limits returns the call timeout quotas.
func (c *Config) Limits() admission.Limits {
	return admission.Limits{PerFunction: c.m.CallTimeoutsPerTest, PerRun: c.m.CallTimeoutsPerRun}
}

// ParallelMetrics returns whether the metrics worker pool is enabled.
func (c *Config) ParallelMetrics() bool { return c.m.ParallelMetrics }

// Platform returns the name of the hardware platform under test.
func (c *Config) Platform() string { return c.m.Platform }

// Workers returns the number of concurrent workers.
func (c *Config) Workers() int { return c.m.Workers }

// WorkerID returns the identity of this worker.
func (c *Config) WorkerID() string { return c.m.WorkerID }

// Primary returns whether this is the primary worker.
func (c *Config) Primary() bool { return c.m.WorkerID == "" }

// MonitorSyslog returns whether system log monitoring is performed. Logs
// written by concurrent workers cannot be attributed to a single test, so
// monitoring is off for secondary workers and multi-worker runs.
func (c *Config) MonitorSyslog() bool {
	kind, _, _ := ParseSyslog(c.m.Syslog)
	return c.Primary() && c.m.Workers <= 1 && kind != SyslogNone
}

// Suite returns the top-level suite name.
func (c *Config) Suite() string { return c.m.Suite }

// LogDir returns the directory under which session result directories are created.
func (c *Config) LogDir() string { return c.m.LogDir }

// Syslog returns the system log source. path is set for SyslogFile.
func (c *Config) Syslog() (kind SyslogKind, path string) {
	kind, path, _ = ParseSyslog(c.m.Syslog)
	return kind, path
}

// NewMutableConfig returns a new configuration with defaults derived from
// installDir.
func NewMutableConfig(installDir string) *MutableConfig {
	return &MutableConfig{
		InstallDir:          installDir,
		BaselineFile:        filepath.Join(installDir, defaultBaseline),
		ArtifactRetention:   artifact.None,
		CallTimeout:         defaultCallTimeout,
		CallTimeoutsPerTest: admission.Unlimited,
		CallTimeoutsPerRun:  admission.Unlimited,
		Workers:             1,
		Suite:               defaultSuite,
		LogDir:              filepath.Join(installDir, defaultLogDir),
		Syslog:              "kmsg",
	}
}

// SetFlags adds session flags to f that store values in c. Current values
// of c, typically read from the configuration file, become flag defaults.
func (c *MutableConfig) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.Rebase, "rebase", c.Rebase, "record baseline values instead of comparing against them")
	f.StringVar(&c.BaselineFile, "baseline-file", c.BaselineFile, "path to the baseline reference file")
	arf := command.NewEnumFlag(artifact.Policies, func(v int) { c.ArtifactRetention = artifact.Policy(v) },
		strconv.Itoa(int(c.ArtifactRetention)))
	f.Var(arf, "artifact-retention", fmt.Sprintf("artifact retention policy: 0 removes all, 1 keeps artifacts of failed tests, 2 keeps all (%s; default %q)",
		arf.QuotedValues(), arf.Default()))
	f.Var(command.NewDurationFlag(time.Second, &c.CallTimeout, c.CallTimeout), "call-timeout", "default timeout of a hardware call in seconds")
	f.IntVar(&c.CallTimeoutsPerTest, "ctapt", c.CallTimeoutsPerTest, "call timeouts allowed per test function (-1 for unlimited)")
	f.IntVar(&c.CallTimeoutsPerRun, "ctapr", c.CallTimeoutsPerRun, "call timeouts allowed per run (-1 for unlimited)")
	f.BoolVar(&c.ParallelMetrics, "parallel-metrics", c.ParallelMetrics, "compute metrics in a worker pool")
	f.StringVar(&c.Platform, "platform", c.Platform, "name of the hardware platform under test (required)")
	f.IntVar(&c.Workers, "workers", c.Workers, "number of concurrent workers used by the runner")
	f.StringVar(&c.WorkerID, "worker-id", c.WorkerID, "identity of this worker; empty for the primary worker")
	f.StringVar(&c.Suite, "suite", c.Suite, "top-level suite name used in reports")
	f.StringVar(&c.LogDir, "logdir", c.LogDir, "directory where session results are written")
	f.StringVar(&c.Syslog, "syslog", c.Syslog, `system log source: "kmsg", "none" or "file:<path>"`)
}

// Validate checks that c is a consistent configuration. It returns a
// *ConfigurationError otherwise.
func (c *MutableConfig) Validate() error {
	if c.Platform == "" {
		return newConfigError("-platform is required")
	}
	if c.Workers < 1 {
		return newConfigError("%d is an invalid number of workers", c.Workers)
	}
	if c.CallTimeoutsPerTest < admission.Unlimited {
		return newConfigError("-ctapt must be %d or a non-negative integer; got %d", admission.Unlimited, c.CallTimeoutsPerTest)
	}
	if c.CallTimeoutsPerRun < admission.Unlimited {
		return newConfigError("-ctapr must be %d or a non-negative integer; got %d", admission.Unlimited, c.CallTimeoutsPerRun)
	}
	if c.CallTimeout <= 0 {
		return newConfigError("-call-timeout must be positive")
	}
	if _, _, err := ParseSyslog(c.Syslog); err != nil {
		return &ConfigurationError{err: err}
	}
	if c.Workers > 1 {
		// Counters and baselines are per worker and cannot be combined
		// across workers.
		if c.Rebase {
			return newConfigError("-rebase cannot be used with %d workers", c.Workers)
		}
		if c.CallTimeoutsPerTest != admission.Unlimited {
			return newConfigError("-ctapt cannot be used with %d workers", c.Workers)
		}
		if c.CallTimeoutsPerRun != admission.Unlimited {
			return newConfigError("-ctapr cannot be used with %d workers", c.Workers)
		}
	}
	return nil
}

// Validate checks that c is a consistent configuration. See MutableConfig.Validate.
func (c *Config) Validate() error { return c.m.Validate() }

// Freeze returns a frozen configuration object.
func (c *MutableConfig) Freeze() *Config {
	return &Config{m: c}
}
