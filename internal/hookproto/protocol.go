// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package hookproto implements the JSON-lines protocol a runner in another
// process uses to drive a session.Controller.
//
// Each line read is a Request; exactly one Response line is written for it.
// The session ends with a "session_end" request:
//
//	{"op":"session_start"}
//	{"op":"test_start","id":{"suitePath":"decode/vp9.py","function":"test_seek"}}
//	{"op":"artifact","filename":"out.yuv"}
//	{"op":"record","kind":"failure","message":"md5 mismatch"}
//	{"op":"test_end"}
//	{"op":"session_end"}
package hookproto

import (
	"go.chromium.org/hwsession/internal/result"
)

// Operations.
const (
	OpSessionStart = "session_start"
	OpTestStart    = "test_start"
	OpCallAllowed  = "call_allowed"
	OpCallTimeout  = "call_timeout"
	OpArtifact     = "artifact"
	OpPurge        = "purge"
	OpDetail       = "detail"
	OpRecord       = "record"
	OpExpect       = "expect"
	OpTestEnd      = "test_end"
	OpSessionEnd   = "session_end"
)

// Kinds of records accepted by OpRecord.
const (
	KindError   = "error"
	KindFailure = "failure"
	KindSkip    = "skip"
)

// Request is a single lifecycle call.
type Request struct {
	Op string `json:"op"`

	// ID identifies the test for OpTestStart.
	ID *result.ID `json:"id,omitempty"`
	// Params holds variation parameters for OpTestStart. They are added to
	// the result details.
	Params map[string]interface{} `json:"params,omitempty"`

	// Filename names an artifact for OpArtifact and OpPurge.
	Filename string `json:"filename,omitempty"`

	// Key and Value are a detail for OpDetail or a baseline value for
	// OpExpect.
	Key   string      `json:"key,omitempty"`
	Value interface{} `json:"value,omitempty"`

	// Kind, Message and Trace describe a record for OpRecord.
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
	Trace   string `json:"trace,omitempty"`
}

// Response is the reply to a Request.
type Response struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`

	// SessionID is set for OpSessionStart.
	SessionID string `json:"session_id,omitempty"`
	// CallTimeout is the default call timeout in seconds, set for OpTestStart.
	CallTimeout float64 `json:"call_timeout,omitempty"`
	// Allowed is set for OpCallAllowed.
	Allowed *bool `json:"allowed,omitempty"`
	// Path is the artifact path for OpArtifact.
	Path string `json:"path,omitempty"`
	// Outcome is the test outcome for OpTestEnd.
	Outcome string `json:"outcome,omitempty"`
}
