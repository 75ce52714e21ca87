// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package longpoll

import (
	"errors"
	"fmt"
)

var (
	// ErrVersionInvalid matches failures with code 4.
	ErrVersionInvalid = errors.New("long poll: protocol version is not supported")

	// ErrUnknownFailure matches failures with an unrecognized code.
	ErrUnknownFailure = errors.New("long poll: unknown failure")
)

// TransportError reports a poll request that did not complete or that was
// answered with a non-2xx status.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("long poll: request to %s failed: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("long poll: request to %s returned status %d", e.URL, e.StatusCode)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// FailureError is a protocol failure the executor does not absorb.
type FailureError struct {
	Code int
	Kind OutcomeKind
}

func (e *FailureError) Error() string {
	if e.Kind == OutcomeVersionInvalid {
		return fmt.Sprintf("long poll: failed %d: protocol version is not supported", e.Code)
	}
	return fmt.Sprintf("long poll: failed %d: unknown error", e.Code)
}

func (e *FailureError) Is(target error) bool {
	switch target {
	case ErrVersionInvalid:
		return e.Kind == OutcomeVersionInvalid
	case ErrUnknownFailure:
		return e.Kind == OutcomeUnknown
	}
	return false
}

// DecodeError is returned in strict mode when a response body does not
// match the envelope schema.
type DecodeError struct {
	Body []byte
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("long poll: undecodable response %q: %v", e.Body, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
