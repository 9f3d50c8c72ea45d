// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package casetree_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"go.chromium.org/hwsession/internal/casetree"
)

const validTree = `
decode:
  vp9:
    cases:
      1080p: {width: 1920, height: 1080}
      720p:
  avc:
    cases:
      1: {profile: main}
encode:
  hevc:
    cases: {}
`

func TestParse(t *testing.T) {
	tree, err := casetree.Parse([]byte(validTree))
	if err != nil {
		t.Fatal("Parse: ", err)
	}
	want := []casetree.Entry{
		{Path: "decode/avc", ID: "1", Def: casetree.Case{"profile": "main"}},
		{Path: "decode/vp9", ID: "1080p", Def: casetree.Case{"width": 1920, "height": 1080}},
		{Path: "decode/vp9", ID: "720p", Def: casetree.Case{}},
	}
	if diff := cmp.Diff(tree.Cases(), want); diff != "" {
		t.Errorf("Cases mismatch (-got +want):\n%s", diff)
	}

	n, ok := tree.Lookup("/decode/vp9")
	if !ok || !n.Leaf() || len(n.Cases) != 2 {
		t.Errorf("Lookup(decode/vp9) = %+v, %v; want leaf with 2 cases", n, ok)
	}
	if n, ok := tree.Lookup("encode/hevc"); !ok || !n.Leaf() {
		t.Errorf("Lookup(encode/hevc) = %+v, %v; want empty leaf", n, ok)
	}
	if _, ok := tree.Lookup("decode/vp8"); ok {
		t.Error("Lookup(decode/vp8) succeeded")
	}
	if _, ok := tree.Lookup("decode/vp9/1080p"); ok {
		t.Error("Lookup below a leaf succeeded")
	}
	if n, ok := tree.Lookup(""); !ok || n != tree.Root {
		t.Error("Lookup(\"\") did not return the root")
	}
}

func TestParseEmpty(t *testing.T) {
	tree, err := casetree.Parse(nil)
	if err != nil {
		t.Fatal("Parse: ", err)
	}
	if c := tree.Cases(); len(c) != 0 {
		t.Errorf("Cases() = %v; want none", c)
	}
}

func TestParseInvalid(t *testing.T) {
	for _, tc := range []struct {
		name, yaml, path string
	}{
		{"scalar root", "foo", ""},
		{"scalar node", "decode: 3", "decode"},
		{"sequence cases", "a:\n  cases: [x, y]", "a"},
		{"extra leaf key", "a:\n  cases: {}\n  b: {}", "a"},
		{"float id", "a:\n  cases:\n    1.5: {}", "a"},
		{"bool id", "a:\n  cases:\n    true: {}", "a"},
		{"non-printable id", "a:\n  cases:\n    \"x\\ty\": {}", "a"},
		{"scalar case", "a:\n  cases:\n    x: 3", "a/x"},
		{"int segment", "1:\n  cases: {}", ""},
		{"syntax", "a: [", ""},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := casetree.Parse([]byte(tc.yaml))
			var ve *casetree.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Parse() = %v; want ValidationError", err)
			}
			if ve.Path != tc.path {
				t.Errorf("ValidationError.Path = %q; want %q", ve.Path, tc.path)
			}
		})
	}
}
