// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package metrics

import (
	"context"
	"os"
	"os/signal"
	"sync"

	"golang.org/x/sync/errgroup"

	"go.chromium.org/hwsession/internal/errors"
	"go.chromium.org/hwsession/internal/logging"
)

// Task is a metric computation run by a Pool.
type Task func(ctx context.Context) error

// Pool runs metric computations on a fixed set of worker goroutines.
type Pool struct {
	g     *errgroup.Group
	tasks chan Task

	mu     sync.Mutex
	closed bool
}

// NewPool starts a pool of n workers. Interrupts are ignored while the
// workers are started so that they are delivered to the session's handler
// only, and the previous disposition is restored afterwards.
func NewPool(ctx context.Context, n int) *Pool {
	if n < 1 {
		n = 1
	}

	restore := suppressInterrupt()
	defer restore()

	g, gctx := errgroup.WithContext(ctx)
	p := &Pool{g: g, tasks: make(chan Task)}
	for i := 0; i < n; i++ {
		g.Go(func() error {
			var first error
			for t := range p.tasks {
				if err := runTask(gctx, t); err != nil {
					logging.Debugf(gctx, "Metric computation failed: %v", err)
					if first == nil {
						first = err
					}
				}
			}
			return first
		})
	}
	logging.Debugf(ctx, "Started metrics pool with %d worker(s)", n)
	return p
}

// suppressInterrupt ignores SIGINT and returns a function restoring the
// previous disposition.
func suppressInterrupt() (restore func()) {
	if signal.Ignored(os.Interrupt) {
		return func() {}
	}
	signal.Ignore(os.Interrupt)
	return func() { signal.Reset(os.Interrupt) }
}

func runTask(ctx context.Context, t Task) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = errors.Errorf("panic: %v", v)
		}
	}()
	return t(ctx)
}

// Submit queues t. It blocks until a worker accepts t. Submitting to a
// closed pool returns an error.
func (p *Pool) Submit(t Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("metrics pool is closed")
	}
	p.tasks <- t
	return nil
}

// Close stops accepting tasks and waits for running tasks to finish. It
// returns the first error returned by a task.
func (p *Pool) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mu.Unlock()
	return p.g.Wait()
}
