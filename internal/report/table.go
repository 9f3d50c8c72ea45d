// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package report

import (
	"bytes"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// status returns the status label of tc. Errors take precedence over
// failures, and failures over skips.
func (tc *TestCase) status() string {
	switch {
	case len(tc.Errors) > 0:
		return "ERROR"
	case len(tc.Failures) > 0:
		return "FAIL"
	case len(tc.Skipped) > 0:
		return "SKIP"
	default:
		return "PASS"
	}
}

// Table renders s as a plain text table with one row per test case and a
// footer counting test cases by status.
func (s *Suite) Table() string {
	var buf bytes.Buffer
	t := table.NewWriter()
	t.SetOutputMirror(&buf)
	t.SetTitle(s.Name)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"CLASS", "NAME", "TIME", "STATUS"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "CLASS", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
		{Name: "TIME", Align: text.AlignRight},
	})
	counts := make(map[string]int)
	for _, tc := range s.TestCases {
		st := tc.status()
		counts[st]++
		t.AppendRow(table.Row{tc.ClassName, tc.Name, tc.Time, st})
	}
	t.AppendFooter(table.Row{"TOTAL", len(s.TestCases), s.Time,
		fmt.Sprintf("%d pass, %d fail, %d error, %d skip", counts["PASS"], counts["FAIL"], counts["ERROR"], counts["SKIP"])})
	t.Render()
	return buf.String()
}
