// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package baseline compares values produced by tests against a reference
// store, or records new reference values in rebase mode.
package baseline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"

	"gopkg.in/yaml.v2"

	"go.chromium.org/hwsession/internal/errors"
	"go.chromium.org/hwsession/internal/logging"
)

// Store is a YAML file mapping reference keys to values.
type Store struct {
	path   string
	rebase bool

	mu      sync.Mutex
	ref     map[string]interface{}
	checked int
	dirty   bool
}

// Open loads the store at path. A missing file is an empty store. In rebase
// mode, values passed to Expect replace reference values and Finalize writes
// the file.
func Open(path string, rebase bool) (*Store, error) {
	s := &Store{path: path, rebase: rebase, ref: make(map[string]interface{})}
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	} else if err != nil {
		return nil, errors.Wrap(err, "failed to read baseline")
	}
	if err := yaml.Unmarshal(b, &s.ref); err != nil {
		return nil, errors.Wrapf(err, "failed to parse baseline %s", path)
	}
	if s.ref == nil {
		s.ref = make(map[string]interface{})
	}
	return s, nil
}

// Rebase returns whether s records reference values.
func (s *Store) Rebase() bool { return s.rebase }

// normalize converts v to the form it takes after a YAML round trip so that
// it can be compared with loaded values.
func normalize(v interface{}) (interface{}, error) {
	b, err := yaml.Marshal(v)
	if err != nil {
		return nil, err
	}
	var n interface{}
	if err := yaml.Unmarshal(b, &n); err != nil {
		return nil, err
	}
	return n, nil
}

// Expect compares value with the reference value for key. In rebase mode
// value becomes the reference value and nil is returned.
func (s *Store) Expect(key string, value interface{}) error {
	v, err := normalize(value)
	if err != nil {
		return errors.Wrapf(err, "baseline value for %s is not serializable", key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.checked++

	if s.rebase {
		s.ref[key] = v
		s.dirty = true
		return nil
	}
	want, ok := s.ref[key]
	if !ok {
		return errors.Errorf("no baseline for %s", key)
	}
	if !reflect.DeepEqual(v, want) {
		return errors.Errorf("baseline mismatch for %s: got %s, want %s", key, format(v), format(want))
	}
	return nil
}

func format(v interface{}) string {
	if s, ok := v.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprint(v)
}

// Finalize completes the session. In rebase mode the store is written to
// its file.
func (s *Store) Finalize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.rebase || !s.dirty {
		logging.Debugf(ctx, "Checked %d baseline value(s) against %s", s.checked, s.path)
		return nil
	}

	b, err := yaml.Marshal(s.ref)
	if err != nil {
		return errors.Wrap(err, "failed to marshal baseline")
	}
	if err := writeFileAtomic(s.path, b); err != nil {
		return err
	}
	s.dirty = false
	logging.Infof(ctx, "Rebased %d baseline value(s) in %s", s.checked, s.path)
	return nil
}

func writeFileAtomic(path string, b []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "failed to create baseline directory")
	}
	f, err := os.CreateTemp(dir, ".baseline-*")
	if err != nil {
		return errors.Wrap(err, "failed to create baseline")
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(b); err != nil {
		f.Close()
		return errors.Wrap(err, "failed to write baseline")
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "failed to write baseline")
	}
	if err := os.Chmod(f.Name(), 0644); err != nil {
		return errors.Wrap(err, "failed to write baseline")
	}
	if err := os.Rename(f.Name(), path); err != nil {
		return errors.Wrap(err, "failed to replace baseline")
	}
	return nil
}
