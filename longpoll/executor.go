// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package longpoll

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vklongpoll/collector/vkapi"
)

// DefaultWait is the number of seconds the server may hold a poll request.
const DefaultWait = 10

// ResolveFunc obtains a fresh server descriptor.
type ResolveFunc func(ctx context.Context) (ServerDescriptor, error)

// EventFunc handles one delivered event. A returned error aborts the current
// Listen call and is returned to its caller unchanged.
type EventFunc func(ctx context.Context, event Event) error

// State is a snapshot of the executor's session.
type State struct {
	HasServer bool
	ServerURL string
	HasCursor bool
	TS        int64
}

// Executor keeps a long-poll session: the server descriptor and the cursor.
//
// Listen performs exactly one poll per call and never loops or retries on its
// own. An Executor must not be used from more than one goroutine at a time.
type Executor struct {
	transport vkapi.Transport
	resolve   ResolveFunc
	onEvent   EventFunc
	wait      int
	strict    bool
	logger    *zap.Logger

	server    *ServerDescriptor
	ts        int64
	hasCursor bool
}

// Option configures an Executor.
type Option func(*Executor)

// WithWait sets the wait parameter in seconds.
func WithWait(seconds int) Option {
	return func(e *Executor) {
		if seconds > 0 {
			e.wait = seconds
		}
	}
}

// WithStrictDecoding makes undecodable responses fail with *DecodeError
// instead of being treated as empty.
func WithStrictDecoding() Option {
	return func(e *Executor) {
		e.strict = true
	}
}

// WithInitialCursor seeds the cursor, e.g. from a value persisted by a
// previous process. The server's initial cursor is then ignored.
func WithInitialCursor(ts int64) Option {
	return func(e *Executor) {
		e.ts = ts
		e.hasCursor = true
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewExecutor creates an executor that obtains servers from resolve and hands
// events to onEvent.
func NewExecutor(transport vkapi.Transport, resolve ResolveFunc, onEvent EventFunc, opts ...Option) *Executor {
	e := &Executor{
		transport: transport,
		resolve:   resolve,
		onEvent:   onEvent,
		wait:      DefaultWait,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Listen polls once and returns the held cursor.
//
// When ts is non-nil it is used as the cursor of this poll instead of the
// held one. Recoverable failures (expired cursor, expired key, lost history)
// are absorbed; other failures, transport errors, resolver errors and
// handler errors are returned and leave the session unchanged.
func (e *Executor) Listen(ctx context.Context, ts *int64) (int64, error) {
	if e.server == nil {
		server, err := e.resolve(ctx)
		if err != nil {
			return e.ts, fmt.Errorf("resolve long poll server: %w", err)
		}
		e.server = &server
		e.logger.Debug("Long poll server resolved", zap.String("server", server.URL))
	}

	if !e.hasCursor {
		e.ts = e.server.TS
		e.hasCursor = true
	}

	cursor := e.ts
	if ts != nil {
		cursor = *ts
	}

	outcome, err := e.poll(ctx, *e.server, cursor)
	if err != nil {
		return e.ts, err
	}

	if !outcome.Recoverable() {
		return e.ts, &FailureError{Code: outcome.Code, Kind: outcome.Kind}
	}

	switch {
	case outcome.Invalidates():
		e.server = nil
		e.logger.Debug("Long poll session invalidated",
			zap.String("reason", outcome.Kind.String()))

	case outcome.Kind == OutcomeCursorExpired:
		if outcome.HasTS {
			e.ts = outcome.Result.TS
		}
		e.logger.Debug("Long poll cursor expired",
			zap.Int64("ts", e.ts),
			zap.Bool("corrected", outcome.HasTS))

	default:
		for _, event := range outcome.Result.Updates {
			if err := e.onEvent(ctx, event); err != nil {
				return e.ts, err
			}
		}
		if outcome.HasTS {
			e.ts = outcome.Result.TS
		}
	}

	return e.ts, nil
}

// poll issues a single request and classifies its response.
func (e *Executor) poll(ctx context.Context, server ServerDescriptor, cursor int64) (Outcome, error) {
	target := server.URL
	if !strings.HasPrefix(target, "http") {
		target = "https://" + target
	}

	params := url.Values{}
	params.Set("act", "a_check")
	params.Set("key", server.Key)
	params.Set("ts", strconv.FormatInt(cursor, 10))
	params.Set("wait", strconv.Itoa(e.wait))

	ctx, cancel := context.WithTimeout(ctx, time.Duration(e.wait)*time.Second+vkapi.ConnectionTimeout)
	defer cancel()

	resp, err := e.transport.Get(ctx, target, params)
	if err != nil {
		return Outcome{}, &TransportError{URL: target, Err: err}
	}
	if !resp.OK() {
		return Outcome{}, &TransportError{URL: target, StatusCode: resp.StatusCode}
	}

	env, malformed, err := decodeEnvelope(resp.Body, e.strict)
	if err != nil {
		return Outcome{}, err
	}
	if malformed {
		e.logger.Warn("Undecodable long poll response treated as empty",
			zap.String("url", target),
			zap.Int("body_bytes", len(resp.Body)))
	}
	if env.skipped > 0 {
		e.logger.Warn("Skipped undecodable long poll updates",
			zap.String("url", target),
			zap.Int("skipped", env.skipped))
	}
	return env.classify(), nil
}

// State returns a snapshot of the session.
func (e *Executor) State() State {
	s := State{HasCursor: e.hasCursor, TS: e.ts}
	if e.server != nil {
		s.HasServer = true
		s.ServerURL = e.server.URL
	}
	return s
}

// Reset drops the server descriptor and the cursor.
func (e *Executor) Reset() {
	e.server = nil
	e.ts = 0
	e.hasCursor = false
}
