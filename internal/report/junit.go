// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package report

import (
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"go.chromium.org/hwsession/internal/errors"
)

// Filename is the name of the report file written to the session result
// directory.
const Filename = "results.xml"

// Suite is the root element of the report.
type Suite struct {
	XMLName xml.Name `xml:"testsuite"`

	Name      string `xml:"name,attr"`
	Tests     int    `xml:"tests,attr"`
	Errors    int    `xml:"errors,attr"`
	Failures  int    `xml:"failures,attr"`
	Skipped   int    `xml:"skipped,attr"`
	Time      string `xml:"time,attr"`
	Timestamp string `xml:"timestamp,attr"`
	Hostname  string `xml:"hostname,attr,omitempty"`

	// Platform holds platform-descriptive attributes in sorted order.
	Platform []xml.Attr `xml:",any,attr"`

	TestCases []*TestCase `xml:"testcase"`
}

// TestCase is the element describing a single test.
type TestCase struct {
	Name      string `xml:"name,attr"`
	ClassName string `xml:"classname,attr"`
	Time      string `xml:"time,attr"`

	SystemOut *Text      `xml:"system-out,omitempty"`
	Errors    []*Record  `xml:"error,omitempty"`
	Failures  []*Record  `xml:"failure,omitempty"`
	Skipped   []*Skipped `xml:"skipped,omitempty"`
	Details   []*Detail  `xml:"detail,omitempty"`
}

// Text is character data emitted as a CDATA section.
type Text struct {
	Data string `xml:",cdata"`
}

// Record is a failure or error element. Trace holds the formatted traceback.
type Record struct {
	Message string `xml:"message,attr"`
	Trace   string `xml:",cdata"`
}

// Skipped marks a test case as skipped.
type Skipped struct {
	Message string `xml:"message,attr"`
}

// Detail is a named value annotated on a test.
type Detail struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// Write serializes s to path, creating parent directories as needed.
func (s *Suite) Write(path string) error {
	data, err := xml.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal report")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "failed to create report directory")
	}
	data = append([]byte(xml.Header), data...)
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write report")
	}
	return nil
}

// sanitizeXML drops characters that cannot appear in an XML 1.0 document.
// CDATA sections are written verbatim, so their content is passed through
// here first.
func sanitizeXML(s string) string {
	s = strings.ToValidUTF8(s, string(utf8.RuneError))
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			return r
		case r < 0x20, r == 0xFFFE, r == 0xFFFF:
			return -1
		case r >= 0xD800 && r <= 0xDFFF:
			return -1
		}
		return r
	}, s)
}

// attrName turns k into a valid XML attribute name.
func attrName(k string) string {
	var sb strings.Builder
	for i, r := range k {
		ok := r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' ||
			i > 0 && (r == '-' || r == '.' || r >= '0' && r <= '9')
		if ok {
			sb.WriteRune(r)
		} else {
			sb.WriteByte('_')
		}
	}
	return sb.String()
}
