// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package longpoll

import (
	"encoding/json"
)

// ServerDescriptor identifies where and how to poll. It is replaced as a
// whole whenever the session is invalidated.
type ServerDescriptor struct {
	URL string
	Key string
	TS  int64
}

// Event is a single update delivered by the server. Only Type and Object are
// routed by the executor; the remaining fields are passed through untouched.
type Event struct {
	Type       string          `json:"type"`
	Object     json.RawMessage `json:"object"`
	GroupID    int64           `json:"group_id,omitempty"`
	EventID    string          `json:"event_id,omitempty"`
	APIVersion string          `json:"v,omitempty"`
}

// PollResult is the payload of a successful poll.
type PollResult struct {
	TS      int64
	Updates []Event
}

// OutcomeKind enumerates the possible results of a single poll.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeCursorExpired
	OutcomeKeyExpired
	OutcomeHistoryLost
	OutcomeVersionInvalid
	OutcomeUnknown
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeCursorExpired:
		return "cursor_expired"
	case OutcomeKeyExpired:
		return "key_expired"
	case OutcomeHistoryLost:
		return "history_lost"
	case OutcomeVersionInvalid:
		return "version_invalid"
	default:
		return "unknown"
	}
}

// Failure codes of the long-poll protocol.
const (
	FailedCursorExpired  = 1
	FailedKeyExpired     = 2
	FailedHistoryLost    = 3
	FailedVersionInvalid = 4
)

// Outcome is the classified result of one poll.
//
// For OutcomeSuccess, Result holds the events and, when HasTS is set, the new
// cursor. For OutcomeCursorExpired, HasTS marks a corrected cursor in
// Result.TS. Code is the raw failure code for every failure kind.
type Outcome struct {
	Kind   OutcomeKind
	Result PollResult
	HasTS  bool
	Code   int
}

// Recoverable reports whether the outcome is absorbed by the executor.
func (o Outcome) Recoverable() bool {
	return o.Kind != OutcomeVersionInvalid && o.Kind != OutcomeUnknown
}

// Invalidates reports whether the outcome drops the server descriptor.
func (o Outcome) Invalidates() bool {
	return o.Kind == OutcomeKeyExpired || o.Kind == OutcomeHistoryLost
}

func classifyFailure(code int) OutcomeKind {
	switch code {
	case FailedCursorExpired:
		return OutcomeCursorExpired
	case FailedKeyExpired:
		return OutcomeKeyExpired
	case FailedHistoryLost:
		return OutcomeHistoryLost
	case FailedVersionInvalid:
		return OutcomeVersionInvalid
	default:
		return OutcomeUnknown
	}
}
