// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package syslog

import (
	"context"
	"io"
	"os"
	"syscall"

	"go.chromium.org/hwsession/internal/errors"
	"go.chromium.org/hwsession/internal/logging"
)

// FileSource is a Source reading an append-only log file such as
// /var/log/messages.
//
// The cursor is the inode and size seen by the previous read. If the file was
// replaced (different inode) or truncated, it is read from the beginning.
type FileSource struct {
	path string
	ino  uint64
	off  int64
}

// NewFileSource returns a FileSource for the file at path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Read returns the bytes appended to the file since the previous call. A
// missing file reads as empty.
func (s *FileSource) Read(ctx context.Context) (string, error) {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		s.ino, s.off = 0, 0
		return "", nil
	} else if err != nil {
		return "", errors.Wrapf(err, "failed to open %s", s.path)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return "", errors.Wrapf(err, "failed to stat %s", s.path)
	}
	var ino uint64
	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		ino = uint64(st.Ino)
	}

	off := s.off
	if ino != s.ino {
		off = 0
	} else if fi.Size() < off {
		logging.Debugf(ctx, "%s is shorter than before (now %d, before %d); reading all", s.path, fi.Size(), off)
		off = 0
	}
	if _, err := f.Seek(off, io.SeekStart); err != nil {
		return "", errors.Wrapf(err, "failed to seek %s", s.path)
	}
	b, err := io.ReadAll(f)
	if err != nil {
		return "", errors.Wrapf(err, "failed to read %s", s.path)
	}
	s.ino = ino
	s.off = off + int64(len(b))
	return string(b), nil
}

// Close is a no-op; the file is opened only while reading.
func (s *FileSource) Close() error { return nil }
