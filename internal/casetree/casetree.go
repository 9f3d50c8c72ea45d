// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package casetree parses hierarchical test case specification trees.
//
// A tree is a YAML mapping. Internal nodes map segment names to child nodes.
// A node containing the key "cases" is a leaf; it maps case identifiers to
// case definitions:
//
//	decode:
//	  vp9:
//	    cases:
//	      1080p: {width: 1920, height: 1080}
//	      720p: {width: 1280, height: 720}
package casetree

import (
	"fmt"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"gopkg.in/yaml.v2"

	"go.chromium.org/hwsession/internal/errors"
)

const casesKey = "cases"

// ValidationError is returned for a malformed tree.
type ValidationError struct {
	// Path is the slash-separated path of the offending node.
	Path string
	Msg  string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return "invalid case tree: " + e.Msg
	}
	return fmt.Sprintf("invalid case tree at %q: %s", e.Path, e.Msg)
}

func invalid(p, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Path: p, Msg: fmt.Sprintf(format, args...)}
}

// Case is the definition of a single case.
type Case map[string]interface{}

// Node is a node of a case tree. Exactly one of Children and Cases is
// non-nil.
type Node struct {
	Path     string
	Children map[string]*Node
	Cases    map[string]Case
}

// Leaf returns whether n holds cases.
func (n *Node) Leaf() bool { return n.Cases != nil }

// Tree is a validated case tree.
type Tree struct {
	Root *Node
}

// Entry is a single case of a tree.
type Entry struct {
	Path string
	ID   string
	Def  Case
}

// Load reads and parses the tree in the YAML file at p.
func Load(p string) (*Tree, error) {
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read case tree")
	}
	return Parse(b)
}

// Parse parses and validates a YAML tree. Validation failures are returned
// as *ValidationError.
func Parse(b []byte) (*Tree, error) {
	var v interface{}
	if err := yaml.Unmarshal(b, &v); err != nil {
		return nil, &ValidationError{Msg: err.Error()}
	}
	if v == nil {
		return &Tree{Root: &Node{Children: map[string]*Node{}}}, nil
	}
	root, err := buildNode("", v)
	if err != nil {
		return nil, err
	}
	return &Tree{Root: root}, nil
}

func buildNode(p string, v interface{}) (*Node, error) {
	m, ok := v.(map[interface{}]interface{})
	if !ok {
		return nil, invalid(p, "node must be a mapping, got %s", describe(v))
	}
	if cv, ok := m[casesKey]; ok {
		if len(m) != 1 {
			return nil, invalid(p, "leaf node must contain only %q", casesKey)
		}
		cases, err := buildCases(p, cv)
		if err != nil {
			return nil, err
		}
		return &Node{Path: p, Cases: cases}, nil
	}

	n := &Node{Path: p, Children: make(map[string]*Node)}
	for k, cv := range m {
		name, ok := k.(string)
		if !ok || name == "" || strings.Contains(name, "/") {
			return nil, invalid(p, "invalid segment name %v", k)
		}
		child, err := buildNode(path.Join(p, name), cv)
		if err != nil {
			return nil, err
		}
		n.Children[name] = child
	}
	return n, nil
}

func buildCases(p string, v interface{}) (map[string]Case, error) {
	cases := make(map[string]Case)
	if v == nil {
		return cases, nil
	}
	m, ok := v.(map[interface{}]interface{})
	if !ok {
		return nil, invalid(p, "%q must be a mapping, got %s", casesKey, describe(v))
	}
	for k, dv := range m {
		id, err := caseID(p, k)
		if err != nil {
			return nil, err
		}
		if _, ok := cases[id]; ok {
			return nil, invalid(p, "duplicate case %q", id)
		}
		def, err := buildCase(path.Join(p, id), dv)
		if err != nil {
			return nil, err
		}
		cases[id] = def
	}
	return cases, nil
}

// caseID validates and stringifies a case identifier.
func caseID(p string, k interface{}) (string, error) {
	switch k := k.(type) {
	case int:
		return strconv.Itoa(k), nil
	case string:
		if k == "" {
			return "", invalid(p, "empty case identifier")
		}
		for _, r := range k {
			if !unicode.IsPrint(r) {
				return "", invalid(p, "case identifier %q contains non-printable characters", k)
			}
		}
		return k, nil
	}
	return "", invalid(p, "case identifier %v must be a string or an integer, got %s", k, describe(k))
}

func buildCase(p string, v interface{}) (Case, error) {
	if v == nil {
		return Case{}, nil
	}
	m, ok := v.(map[interface{}]interface{})
	if !ok {
		return nil, invalid(p, "case definition must be a mapping, got %s", describe(v))
	}
	def := make(Case, len(m))
	for k, fv := range m {
		name, ok := k.(string)
		if !ok {
			return nil, invalid(p, "case field %v must be a string", k)
		}
		def[name] = fv
	}
	return def, nil
}

func describe(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[interface{}]interface{}:
		return "mapping"
	case []interface{}:
		return "sequence"
	}
	return fmt.Sprintf("%T", v)
}

// Lookup returns the node at the slash-separated path p. The empty path
// names the root.
func (t *Tree) Lookup(p string) (*Node, bool) {
	n := t.Root
	for _, seg := range strings.Split(strings.Trim(p, "/"), "/") {
		if seg == "" {
			continue
		}
		if n.Children == nil {
			return nil, false
		}
		c, ok := n.Children[seg]
		if !ok {
			return nil, false
		}
		n = c
	}
	return n, true
}

// Cases returns all cases of t sorted by path and identifier.
func (t *Tree) Cases() []Entry {
	var entries []Entry
	var walk func(n *Node)
	walk = func(n *Node) {
		for id, def := range n.Cases {
			entries = append(entries, Entry{Path: n.Path, ID: id, Def: def})
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(t.Root)
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Path != entries[j].Path {
			return entries[i].Path < entries[j].Path
		}
		return entries[i].ID < entries[j].ID
	})
	return entries
}
