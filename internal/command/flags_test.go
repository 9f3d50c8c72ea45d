// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package command_test

import (
	"flag"
	"testing"
	"time"

	"go.chromium.org/hwsession/internal/command"
)

func TestEnumFlag(t *testing.T) {
	valid := map[string]int{"0": 0, "1": 1, "2": 2}
	var dest int
	f := command.NewEnumFlag(valid, func(v int) { dest = v }, "1")
	if dest != 1 {
		t.Errorf("default assigned %d; want 1", dest)
	}

	fs := flag.NewFlagSet("", flag.ContinueOnError)
	fs.Var(f, "policy", "usage")
	if err := fs.Parse([]string{"-policy=2"}); err != nil {
		t.Fatal(err)
	}
	if dest != 2 {
		t.Errorf("-policy=2 assigned %d; want 2", dest)
	}
	if s := f.String(); s != "2" {
		t.Errorf("String() = %q; want %q", s, "2")
	}

	if err := f.Set("3"); err == nil {
		t.Error("Set(\"3\") succeeded; want error")
	}
	if dest != 2 {
		t.Errorf("invalid Set changed value to %d", dest)
	}
	if q := f.QuotedValues(); q != `"0", "1", "2"` {
		t.Errorf("QuotedValues() = %s", q)
	}
}

func TestDurationFlag(t *testing.T) {
	var d time.Duration
	f := command.NewDurationFlag(time.Second, &d, 300*time.Second)
	if d != 300*time.Second {
		t.Errorf("default = %v; want 5m", d)
	}
	if f.String() != "300" {
		t.Errorf("String() = %q; want %q", f.String(), "300")
	}
	if err := f.Set("1.5"); err != nil {
		t.Fatal(err)
	}
	if d != 1500*time.Millisecond {
		t.Errorf("Set(1.5) stored %v; want 1.5s", d)
	}
	for _, v := range []string{"abc", "-1"} {
		if err := f.Set(v); err == nil {
			t.Errorf("Set(%q) succeeded; want error", v)
		}
	}
}
