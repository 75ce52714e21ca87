// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package vklongpollreceiver

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/vklongpoll/collector/longpoll"
)

// pollStats is shared between the poll loop and the status server.
type pollStats struct {
	polls    atomic.Int64
	failures atomic.Int64
	events   atomic.Int64
	callback atomic.Int64
	dropped  atomic.Int64

	mu        sync.Mutex
	session   longpoll.State
	lastPoll  time.Time
	lastError string
	lastErrAt time.Time
}

func (s *pollStats) recordPoll(state longpoll.State, at time.Time) {
	s.polls.Add(1)
	s.mu.Lock()
	s.session = state
	s.lastPoll = at
	s.mu.Unlock()
}

func (s *pollStats) recordFailure(state longpoll.State, err error, at time.Time) {
	s.failures.Add(1)
	s.mu.Lock()
	s.session = state
	s.lastError = err.Error()
	s.lastErrAt = at
	s.mu.Unlock()
}

// statusReport is the body of GET /status.
type statusReport struct {
	PollerID      string     `json:"poller_id"`
	GroupID       int64      `json:"group_id"`
	HasServer     bool       `json:"has_server"`
	Server        string     `json:"server,omitempty"`
	HasCursor     bool       `json:"has_cursor"`
	TS            int64      `json:"ts"`
	Polls         int64      `json:"polls"`
	Failures      int64      `json:"failures"`
	Events        int64      `json:"events"`
	CallbackCount int64      `json:"callback_events"`
	Dropped       int64      `json:"dropped_events"`
	Subscribers   int        `json:"tail_subscribers"`
	LastPoll      *time.Time `json:"last_poll,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
	LastErrorAt   *time.Time `json:"last_error_at,omitempty"`
}

func (s *pollStats) report() statusReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return statusReport{
		HasServer:     s.session.HasServer,
		Server:        s.session.ServerURL,
		HasCursor:     s.session.HasCursor,
		TS:            s.session.TS,
		Polls:         s.polls.Load(),
		Failures:      s.failures.Load(),
		Events:        s.events.Load(),
		CallbackCount: s.callback.Load(),
		Dropped:       s.dropped.Load(),
		LastPoll:      timeOrNil(s.lastPoll),
		LastError:     s.lastError,
		LastErrorAt:   timeOrNil(s.lastErrAt),
	}
}

func timeOrNil(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
