// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"

	"go.chromium.org/hwsession/internal/artifact"
	"go.chromium.org/hwsession/internal/errors"
)

// EnvConfigFile is the environment variable overriding the path of the
// configuration file.
const EnvConfigFile = "HWSESSION_CONFIG"

const defaultConfigFile = "config/default"

// FilePath returns the path of the configuration file for installDir.
// getenv is usually os.Getenv.
func FilePath(installDir string, getenv func(string) string) string {
	if p := getenv(EnvConfigFile); p != "" {
		return p
	}
	return filepath.Join(installDir, defaultConfigFile)
}

// fileConfig is the YAML representation of the configuration file. Keys
// match flag names; absent keys keep their defaults.
type fileConfig struct {
	Rebase            *bool    `yaml:"rebase"`
	BaselineFile      *string  `yaml:"baseline-file"`
	ArtifactRetention *int     `yaml:"artifact-retention"`
	CallTimeout       *float64 `yaml:"call-timeout"`
	CTAPT             *int     `yaml:"ctapt"`
	CTAPR             *int     `yaml:"ctapr"`
	ParallelMetrics   *bool    `yaml:"parallel-metrics"`
	Platform          *string  `yaml:"platform"`
	Workers           *int     `yaml:"workers"`
	WorkerID          *string  `yaml:"worker-id"`
	Suite             *string  `yaml:"suite"`
	LogDir            *string  `yaml:"logdir"`
	Syslog            *string  `yaml:"syslog"`
}

// LoadFile applies the YAML configuration file at path to c. The file must
// exist; an empty file changes nothing. Unknown keys are rejected.
func (c *MutableConfig) LoadFile(path string) error {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return newConfigError("configuration file %s does not exist", path)
	} else if err != nil {
		return &ConfigurationError{err: errors.Wrapf(err, "failed to read %s", path)}
	}

	var fc fileConfig
	if err := yaml.UnmarshalStrict(b, &fc); err != nil {
		return &ConfigurationError{err: errors.Wrapf(err, "failed to parse %s", path)}
	}

	setBool := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}
	setString := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	setInt := func(dst *int, v *int) {
		if v != nil {
			*dst = *v
		}
	}

	if v := fc.ArtifactRetention; v != nil {
		if _, ok := artifact.Policies[strconv.Itoa(*v)]; !ok {
			return newConfigError("%s: invalid artifact-retention %d", path, *v)
		}
		c.ArtifactRetention = artifact.Policy(*v)
	}
	if v := fc.CallTimeout; v != nil {
		if *v < 0 {
			return newConfigError("%s: negative call-timeout %v", path, *v)
		}
		c.CallTimeout = time.Duration(*v * float64(time.Second))
	}
	setBool(&c.Rebase, fc.Rebase)
	setString(&c.BaselineFile, fc.BaselineFile)
	setInt(&c.CallTimeoutsPerTest, fc.CTAPT)
	setInt(&c.CallTimeoutsPerRun, fc.CTAPR)
	setBool(&c.ParallelMetrics, fc.ParallelMetrics)
	setString(&c.Platform, fc.Platform)
	setInt(&c.Workers, fc.Workers)
	setString(&c.WorkerID, fc.WorkerID)
	setString(&c.Suite, fc.Suite)
	setString(&c.LogDir, fc.LogDir)
	setString(&c.Syslog, fc.Syslog)
	return nil
}
