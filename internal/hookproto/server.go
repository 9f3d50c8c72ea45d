// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package hookproto

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"go.chromium.org/hwsession/internal/errors"
	"go.chromium.org/hwsession/internal/logging"
	"go.chromium.org/hwsession/internal/result"
	"go.chromium.org/hwsession/internal/session"
)

const maxLineSize = 4 * 1024 * 1024

// Server translates requests into calls on a session.Controller.
type Server struct {
	c       *session.Controller
	cur     *session.Test
	started bool
	ended   bool
}

// NewServer returns a Server driving c.
func NewServer(c *session.Controller) *Server {
	return &Server{c: c}
}

// Ended returns whether the session has ended.
func (s *Server) Ended() bool { return s.ended }

// Handle processes a single request.
func (s *Server) Handle(ctx context.Context, req *Request) *Response {
	res, err := s.handle(ctx, req)
	if err != nil {
		return &Response{Error: err.Error()}
	}
	res.OK = true
	return res
}

func (s *Server) handle(ctx context.Context, req *Request) (*Response, error) {
	switch req.Op {
	case OpSessionStart:
		if err := s.c.SessionStart(ctx); err != nil {
			return nil, err
		}
		s.started = true
		return &Response{SessionID: s.c.ID()}, nil

	case OpSessionEnd:
		if !s.started {
			return nil, errors.New("session is not running")
		}
		s.cur = nil
		s.ended = true
		return &Response{}, s.c.SessionEnd(ctx)

	case OpTestStart:
		if req.ID == nil {
			return nil, errors.New("test_start requires id")
		}
		t := s.c.NewTest(*req.ID)
		if err := s.c.TestStart(ctx, t); err != nil {
			return nil, err
		}
		keys := maps.Keys(req.Params)
		slices.Sort(keys)
		for _, k := range keys {
			t.Result().SetDetail(k, req.Params[k])
		}
		s.cur = t
		return &Response{CallTimeout: t.CallTimeout().Seconds()}, nil
	}

	t := s.cur
	if t == nil {
		if req.Op == OpCallAllowed {
			allowed := true
			return &Response{Allowed: &allowed}, nil
		}
		return nil, errors.Errorf("%s requires a running test", req.Op)
	}

	switch req.Op {
	case OpTestEnd:
		s.cur = nil
		if err := s.c.TestEnd(ctx, t); err != nil {
			return nil, err
		}
		return &Response{Outcome: t.Result().Outcome().String()}, nil

	case OpCallAllowed:
		allowed := t.IsCallAllowed(ctx)
		return &Response{Allowed: &allowed}, nil

	case OpCallTimeout:
		t.ReportCallTimeout(ctx)
		return &Response{}, nil

	case OpArtifact:
		p, err := t.Artifact(ctx, req.Filename)
		if err != nil {
			return nil, err
		}
		return &Response{Path: p}, nil

	case OpPurge:
		return &Response{}, t.PurgeArtifact(ctx, req.Filename)

	case OpDetail:
		if req.Key == "" {
			return nil, errors.New("detail requires key")
		}
		t.Result().SetDetail(req.Key, req.Value)
		return &Response{}, nil

	case OpExpect:
		if req.Key == "" {
			return nil, errors.New("expect requires key")
		}
		return &Response{}, t.Expect(ctx, req.Key, req.Value)

	case OpRecord:
		res := t.Result()
		rec := result.Record{Message: req.Message, Trace: req.Trace}
		switch req.Kind {
		case KindError:
			res.Errors = append(res.Errors, rec)
		case KindFailure:
			res.Failures = append(res.Failures, rec)
		case KindSkip:
			res.AddSkip(req.Message)
		default:
			return nil, errors.Errorf("unknown record kind %q", req.Kind)
		}
		logging.Debugf(t.Context(s.c.Context(ctx)), "Recorded %s: %s", req.Kind, req.Message)
		return &Response{}, nil
	}
	return nil, errors.Errorf("unknown operation %q", req.Op)
}

// abort interrupts the session with cause if it is still running, so that
// results of completed tests are reported. It returns cause.
func (s *Server) abort(ctx context.Context, cause error) error {
	if !s.started || s.ended {
		return cause
	}
	s.cur = nil
	s.ended = true
	if err := s.c.Interrupt(ctx, cause); err != nil {
		logging.Warningf(s.c.Context(ctx), "Failed to end session: %v", err)
	}
	return cause
}

// readLines scans lines of r on a separate goroutine so that a blocked read
// does not delay cancellation. The scan error is sent to the returned error
// channel before the line channel is closed. Scanning stops early once done
// is closed.
func readLines(r io.Reader, done <-chan struct{}) (<-chan []byte, <-chan error) {
	lines := make(chan []byte)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 64*1024), maxLineSize)
		for sc.Scan() {
			line := append([]byte(nil), sc.Bytes()...)
			select {
			case lines <- line:
			case <-done:
				return
			}
		}
		errc <- sc.Err()
	}()
	return lines, errc
}

// Serve reads requests from r and writes responses to w until a
// session_end request is handled, r is exhausted or ctx is done. If serving
// stops while the session is running, the session is interrupted and an
// error is returned. When ctx is done the error is its cause.
//
// A read blocked on r when Serve returns is left to finish on its own.
func Serve(ctx context.Context, c *session.Controller, r io.Reader, w io.Writer) error {
	s := NewServer(c)
	enc := json.NewEncoder(w)

	done := make(chan struct{})
	defer close(done)
	lines, errc := readLines(r, done)

	for {
		var line []byte
		select {
		case <-ctx.Done():
			return s.abort(context.WithoutCancel(ctx), context.Cause(ctx))
		case l, ok := <-lines:
			if !ok {
				if err := <-errc; err != nil {
					return s.abort(ctx, errors.Wrap(err, "failed to read requests"))
				}
				if s.started {
					return s.abort(ctx, errors.New("input ended before session_end"))
				}
				return nil
			}
			line = l
		}
		if len(line) == 0 {
			continue
		}

		var req Request
		var res *Response
		if err := json.Unmarshal(line, &req); err != nil {
			res = &Response{Error: fmt.Sprintf("malformed request: %v", err)}
		} else {
			res = s.Handle(ctx, &req)
		}
		if err := enc.Encode(res); err != nil {
			return s.abort(ctx, errors.Wrap(err, "failed to write response"))
		}
		if s.ended {
			return nil
		}
	}
}
