// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package vklongpollreceiver

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"time"

	"go.opentelemetry.io/collector/pdata/pcommon"
	"go.opentelemetry.io/collector/pdata/plog"
)

// Attribute keys set on every emitted record.
const (
	attrGroupID     = "vk.group.id"
	attrPollerID    = "vk.poller.id"
	attrEventType   = "vk.event.type"
	attrEventID     = "vk.event.id"
	attrEventSource = "vk.event.source"
	attrAPIVersion  = "vk.api.version"
)

// Event sources.
const (
	sourceLongPoll = "long_poll"
	sourceCallback = "callback"
)

// vkEvent is an event as received from either source.
type vkEvent struct {
	Source     string          `json:"source"`
	GroupID    int64           `json:"group_id"`
	Type       string          `json:"type"`
	EventID    string          `json:"event_id,omitempty"`
	APIVersion string          `json:"v,omitempty"`
	Object     json.RawMessage `json:"object"`
	ReceivedAt time.Time       `json:"received_at"`
}

// eventToLogs converts ev into a single log record. The record body is the
// event object as a map, or its raw text when it is not a JSON object.
func eventToLogs(ev vkEvent, pollerID, scopeName string) plog.Logs {
	ld := plog.NewLogs()
	rl := ld.ResourceLogs().AppendEmpty()
	res := rl.Resource().Attributes()
	res.PutInt(attrGroupID, ev.GroupID)
	res.PutStr(attrPollerID, pollerID)

	sl := rl.ScopeLogs().AppendEmpty()
	sl.Scope().SetName(scopeName)

	lr := sl.LogRecords().AppendEmpty()
	ts := pcommon.NewTimestampFromTime(ev.ReceivedAt)
	lr.SetTimestamp(ts)
	lr.SetObservedTimestamp(ts)
	lr.SetSeverityNumber(plog.SeverityNumberInfo)

	attrs := lr.Attributes()
	attrs.PutStr(attrEventType, ev.Type)
	attrs.PutStr(attrEventSource, ev.Source)
	attrs.PutInt(attrGroupID, ev.GroupID)
	if ev.EventID != "" {
		attrs.PutStr(attrEventID, ev.EventID)
	}
	if ev.APIVersion != "" {
		attrs.PutStr(attrAPIVersion, ev.APIVersion)
	}

	setBody(lr.Body(), ev.Object)
	return ld
}

func setBody(body pcommon.Value, object json.RawMessage) {
	if m, ok := decodeObject(object); ok {
		if err := body.SetEmptyMap().FromRaw(m); err == nil {
			return
		}
	}
	body.SetStr(string(object))
}

// decodeObject decodes a JSON object keeping whole numbers as int64, so ids
// do not turn into doubles.
func decodeObject(object json.RawMessage) (map[string]any, bool) {
	dec := json.NewDecoder(bytes.NewReader(object))
	dec.UseNumber()

	var m map[string]any
	if err := dec.Decode(&m); err != nil || m == nil {
		return nil, false
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, false
	}
	return normalizeNumbers(m).(map[string]any), true
}

func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, item := range t {
			t[k] = normalizeNumbers(item)
		}
		return t
	case []any:
		for i, item := range t {
			t[i] = normalizeNumbers(item)
		}
		return t
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	default:
		return v
	}
}
