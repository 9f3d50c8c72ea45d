// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package platform describes the machine a session runs on.
package platform

import (
	"context"
	"strconv"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"go.chromium.org/hwsession/internal/logging"
)

// Info holds platform-descriptive attributes.
type Info struct {
	// Hostname is the host name of the machine. It may be empty.
	Hostname string
	// Attributes maps attribute names to values. It always contains
	// "platform".
	Attributes map[string]string
}

// Querier queries platform information.
type Querier interface {
	Query(ctx context.Context) *Info
}

// HostQuerier queries the local machine.
type HostQuerier struct {
	name string
}

var _ Querier = &HostQuerier{}

// NewHostQuerier returns a HostQuerier reporting name as the platform name.
func NewHostQuerier(name string) *HostQuerier {
	return &HostQuerier{name: name}
}

// Query collects attributes of the local machine. Attributes that cannot be
// read are omitted.
func (q *HostQuerier) Query(ctx context.Context) *Info {
	info := &Info{Attributes: map[string]string{"platform": q.name}}
	set := func(k, v string) {
		if v != "" {
			info.Attributes[k] = v
		}
	}

	if hi, err := host.InfoWithContext(ctx); err != nil {
		logging.Debugf(ctx, "Failed to get host info: %v", err)
	} else {
		info.Hostname = hi.Hostname
		set("os", hi.OS)
		set("distribution", hi.Platform)
		set("distribution_version", hi.PlatformVersion)
		set("kernel", hi.KernelVersion)
		set("arch", hi.KernelArch)
	}

	if cis, err := cpu.InfoWithContext(ctx); err != nil {
		logging.Debugf(ctx, "Failed to get CPU info: %v", err)
	} else if len(cis) > 0 {
		set("cpu_model", cis[0].ModelName)
	}
	if n, err := cpu.CountsWithContext(ctx, true); err != nil {
		logging.Debugf(ctx, "Failed to count CPUs: %v", err)
	} else if n > 0 {
		set("cpu_count", strconv.Itoa(n))
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		logging.Debugf(ctx, "Failed to get memory info: %v", err)
	} else {
		set("memory_total", strconv.FormatUint(vm.Total, 10))
	}
	return info
}

// Static is a Querier returning fixed information.
type Static Info

// Query returns a copy of s.
func (s *Static) Query(ctx context.Context) *Info {
	attrs := make(map[string]string, len(s.Attributes))
	for k, v := range s.Attributes {
		attrs[k] = v
	}
	return &Info{Hostname: s.Hostname, Attributes: attrs}
}
