// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package errors provides basic utilities to construct errors.
//
// Errors created by this package record the stack trace at the point of
// construction and the chain of wrapped causes. Formatting one with "%+v"
// prints the whole chain with stack traces; that text is what the report
// attaches to failure and error records.
//
//	errors.New("device node not found")
//	errors.Errorf("encoder %q not found", name)
//	errors.Wrap(err, "failed to open render node")
//	errors.Wrapf(err, "failed to decode frame %d", n)
package errors

import (
	"errors"
	"fmt"
	"io"

	"go.chromium.org/hwsession/internal/errors/stack"
)

// chainError is an error with a message, the stack where it was created and
// an optional cause.
type chainError struct {
	msg   string
	stk   stack.Stack
	cause error
}

func newChainError(msg string, cause error) *chainError {
	// Skip newChainError and the exported constructor.
	return &chainError{msg: msg, stk: stack.New(2), cause: cause}
}

func (e *chainError) Error() string {
	if e.cause == nil {
		return e.msg
	}
	return e.msg + ": " + e.cause.Error()
}

// Unwrap returns the cause of e.
func (e *chainError) Unwrap() error { return e.cause }

// Format prints the chain of messages with stack traces for "%+v" and the
// plain message otherwise.
func (e *chainError) Format(s fmt.State, verb rune) {
	if verb != 'v' || !s.Flag('+') {
		io.WriteString(s, e.Error())
		return
	}
	var err error = e
	for i := 0; err != nil; i++ {
		if i > 0 {
			io.WriteString(s, "\n")
		}
		ce, ok := err.(*chainError)
		if !ok {
			fmt.Fprintf(s, "%s\n\tat ???", err.Error())
			return
		}
		fmt.Fprintf(s, "%s\n%v", ce.msg, ce.stk)
		err = ce.cause
	}
}

// New returns an error with msg that records the caller's stack.
func New(msg string) error { return newChainError(msg, nil) }

// Errorf is like New with a formatted message.
func Errorf(format string, args ...interface{}) error {
	return newChainError(fmt.Sprintf(format, args...), nil)
}

// Wrap returns an error with msg caused by cause. A nil cause is allowed and
// makes Wrap equivalent to New.
func Wrap(cause error, msg string) error { return newChainError(msg, cause) }

// Wrapf is like Wrap with a formatted message.
func Wrapf(cause error, format string, args ...interface{}) error {
	return newChainError(fmt.Sprintf(format, args...), cause)
}

// Trace returns the traceback text of err. Errors created by this package are
// rendered as their full chain with stack traces; other errors as their
// message alone. A nil error yields an empty string.
func Trace(err error) string {
	if err == nil {
		return ""
	}
	if _, ok := err.(*chainError); ok {
		return fmt.Sprintf("%+v", err)
	}
	return err.Error()
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool { return errors.As(err, target) }
