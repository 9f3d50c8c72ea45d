// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package stack captures and formats stack traces for the errors package.
package stack

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

// maxDepth is the number of frames printed before the trace is cut.
const maxDepth = 16

// Stack is a captured call stack.
type Stack []uintptr

// New captures the stack of its caller. skip frames above the caller are
// dropped; skip=0 makes the caller of New the innermost frame.
func New(skip int) Stack {
	pcs := make([]uintptr, maxDepth+1)
	n := runtime.Callers(skip+2, pcs)
	return Stack(pcs[:n])
}

// String renders s with one "\tat func (file:line)" line per frame. Traces
// longer than maxDepth end with "\t...".
func (s Stack) String() string {
	var sb strings.Builder
	frames := runtime.CallersFrames(s)
	for i := 0; len(s) > 0; i++ {
		if i == maxDepth {
			sb.WriteString("\n\t...")
			break
		}
		f, more := frames.Next()
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "\tat %s (%s:%d)", f.Function, filepath.Base(f.File), f.Line)
		if !more {
			break
		}
	}
	return sb.String()
}
