// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package metrics collects session metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"go.chromium.org/hwsession/internal/errors"
	"go.chromium.org/hwsession/internal/result"
)

const namespace = "hwsession"

// Filename is the name of the metrics file written to the session result
// directory.
const Filename = "metrics.prom"

// Session holds the metrics of a single session. It is safe for concurrent use.
type Session struct {
	reg *prometheus.Registry

	results       *prometheus.CounterVec
	callTimeouts  prometheus.Counter
	denials       prometheus.Counter
	hangs         *prometheus.CounterVec
	artifactBytes prometheus.Counter
	testDuration  prometheus.Histogram
}

// NewSession returns metrics labeled with the platform name.
func NewSession(platform string) *Session {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	labels := prometheus.Labels{"platform": platform}
	return &Session{
		reg: reg,
		results: f.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "results_total",
			Help:        "Number of finished tests by outcome",
			ConstLabels: labels,
		}, []string{"outcome"}),
		callTimeouts: f.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "call_timeouts_total",
			Help:        "Number of hardware call timeouts reported by tests",
			ConstLabels: labels,
		}),
		denials: f.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "admission_denials_total",
			Help:        "Number of calls denied because a call timeout limit was reached",
			ConstLabels: labels,
		}),
		hangs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "hang_signatures_total",
			Help:        "Number of hang signatures found in the system log",
			ConstLabels: labels,
		}, []string{"signature"}),
		artifactBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "artifact_bytes_total",
			Help:        "Total size of retained test artifacts",
			ConstLabels: labels,
		}),
		testDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "test_duration_seconds",
			Help:        "Duration of tests",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.1, 4, 8),
		}),
	}
}

// RecordResult records a finished test.
func (s *Session) RecordResult(r *result.Result) {
	s.results.WithLabelValues(r.Outcome().String()).Inc()
	if d, ok := r.Elapsed(); ok {
		s.testDuration.Observe(d.Seconds())
	}
}

// RecordCallTimeout records a reported call timeout.
func (s *Session) RecordCallTimeout() { s.callTimeouts.Inc() }

// RecordDenial records a call denied by admission control.
func (s *Session) RecordDenial() { s.denials.Inc() }

// RecordHang records a detected hang signature.
func (s *Session) RecordHang(signature string) { s.hangs.WithLabelValues(signature).Inc() }

// RecordArtifactBytes adds n to the retained artifact size.
func (s *Session) RecordArtifactBytes(n int64) { s.artifactBytes.Add(float64(n)) }

// Gatherer returns the registry holding s's metrics.
func (s *Session) Gatherer() prometheus.Gatherer { return s.reg }

// WriteFile writes s in the Prometheus text format to path.
func (s *Session) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, s.reg); err != nil {
		return errors.Wrap(err, "failed to write metrics")
	}
	return nil
}
