// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package syslog

import (
	"context"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"go.chromium.org/hwsession/internal/errors"
	"go.chromium.org/hwsession/internal/logging"
)

// KmsgPath is the kernel ring buffer device.
const KmsgPath = "/dev/kmsg"

// kmsgRecordMax bounds the size of a single /dev/kmsg record.
const kmsgRecordMax = 8192

// KmsgSource is a Source reading kernel ring buffer records from /dev/kmsg.
//
// Each read(2) on /dev/kmsg returns a single record. The file descriptor stays
// open so its position is the cursor; the sequence number of the last record
// seen is also kept to drop any record delivered twice.
type KmsgSource struct {
	fd      int
	lastSeq int64
	read    func(fd int, p []byte) (int, error)
}

// NewKmsgSource opens path (usually KmsgPath) for non-blocking reads.
func NewKmsgSource(path string) (*KmsgSource, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	return &KmsgSource{fd: fd, lastSeq: -1, read: unix.Read}, nil
}

// Read returns the messages of the records queued since the previous call,
// one per line.
func (s *KmsgSource) Read(ctx context.Context) (string, error) {
	var sb strings.Builder
	buf := make([]byte, kmsgRecordMax)
	for {
		n, err := s.read(s.fd, buf)
		if err == unix.EAGAIN {
			break
		}
		if err == unix.EPIPE {
			// Records were overwritten before we could read them.
			logging.Debug(ctx, "Kernel ring buffer records were lost")
			continue
		}
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return "", errors.Wrap(err, "failed to read kernel ring buffer")
		}
		if n == 0 {
			break
		}
		seq, msg, ok := parseKmsgRecord(string(buf[:n]))
		if !ok || seq <= s.lastSeq {
			continue
		}
		s.lastSeq = seq
		sb.WriteString(msg)
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

// Close closes the file descriptor.
func (s *KmsgSource) Close() error {
	return unix.Close(s.fd)
}

// parseKmsgRecord parses a /dev/kmsg record of the form
// "prio,seq,usec,flags[,...];message\n[ KEY=value\n]...", returning the
// sequence number and the message. Continuation lines carrying device
// properties are dropped.
func parseKmsgRecord(rec string) (seq int64, msg string, ok bool) {
	semi := strings.IndexByte(rec, ';')
	if semi < 0 {
		return 0, "", false
	}
	fields := strings.Split(rec[:semi], ",")
	if len(fields) < 3 {
		return 0, "", false
	}
	seq, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0, "", false
	}
	msg = rec[semi+1:]
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	return seq, unescapeKmsg(msg), true
}

// unescapeKmsg decodes the \xHH escapes the kernel uses for non-printable
// bytes in messages.
func unescapeKmsg(s string) string {
	if !strings.Contains(s, `\x`) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) && s[i+1] == 'x' {
			if v, err := strconv.ParseUint(s[i+2:i+4], 16, 8); err == nil {
				sb.WriteByte(byte(v))
				i += 3
				continue
			}
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}
