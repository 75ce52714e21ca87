// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package longpoll

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vklongpoll/collector/vkapi"
)

// Envelope field names fixed by the long-poll protocol.
const (
	fieldTS         = "ts"
	fieldUpdates    = "updates"
	fieldFailed     = "failed"
	fieldType       = "type"
	fieldObject     = "object"
	fieldGroupID    = "group_id"
	fieldEventID    = "event_id"
	fieldAPIVersion = "v"
)

// envelope is the response schema shared by success and failure bodies.
// A zero Failed means the field was absent.
type envelope struct {
	TS      *vkapi.Timestamp
	Updates []Event
	Failed  int

	// skipped counts updates dropped in lenient mode.
	skipped int
}

var errNotObject = errors.New("body is not a JSON object")

// decodeEnvelope parses body. In lenient mode a body that cannot be decoded
// is treated as an empty object; malformed reports whether that happened.
func decodeEnvelope(body []byte, strict bool) (env envelope, malformed bool, err error) {
	var fields map[string]json.RawMessage
	err = json.Unmarshal(body, &fields)
	if err == nil && fields == nil {
		err = errNotObject
	}
	if err != nil {
		if strict {
			return envelope{}, false, &DecodeError{Body: truncate(body), Err: err}
		}
		return envelope{}, true, nil
	}

	env, err = parseEnvelope(fields, strict)
	if err != nil {
		return envelope{}, false, &DecodeError{Body: truncate(body), Err: err}
	}
	return env, false, nil
}

// parseEnvelope reads the top-level fields one by one. In lenient mode a
// field of the wrong type is treated as absent and a bad update is skipped.
func parseEnvelope(fields map[string]json.RawMessage, strict bool) (envelope, error) {
	var env envelope

	if raw, ok := present(fields, fieldFailed); ok {
		var code vkapi.Timestamp
		if err := json.Unmarshal(raw, &code); err != nil {
			if strict {
				return envelope{}, fmt.Errorf("%q: %w", fieldFailed, err)
			}
		} else {
			env.Failed = int(code)
		}
	}

	if raw, ok := present(fields, fieldTS); ok {
		var ts vkapi.Timestamp
		if err := json.Unmarshal(raw, &ts); err != nil {
			if strict {
				return envelope{}, fmt.Errorf("%q: %w", fieldTS, err)
			}
		} else {
			env.TS = &ts
		}
	}

	if env.Failed != 0 {
		return env, nil
	}
	if strict && env.TS == nil {
		return envelope{}, fmt.Errorf("missing %q", fieldTS)
	}

	raw, ok := present(fields, fieldUpdates)
	if !ok {
		return env, nil
	}
	var updates []json.RawMessage
	if err := json.Unmarshal(raw, &updates); err != nil {
		if strict {
			return envelope{}, fmt.Errorf("%q: %w", fieldUpdates, err)
		}
		env.skipped++
		return env, nil
	}
	for i, u := range updates {
		event, err := parseEvent(u)
		if err != nil {
			if strict {
				return envelope{}, fmt.Errorf("%s[%d]: %w", fieldUpdates, i, err)
			}
			env.skipped++
			continue
		}
		env.Updates = append(env.Updates, event)
	}
	return env, nil
}

// parseEvent requires type and object. Pass-through fields that do not
// decode are left empty.
func parseEvent(raw json.RawMessage) (Event, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return Event{}, errors.New("update is not a JSON object")
	}

	var event Event
	typeRaw, ok := present(fields, fieldType)
	if !ok {
		return Event{}, fmt.Errorf("missing %q", fieldType)
	}
	if err := json.Unmarshal(typeRaw, &event.Type); err != nil || event.Type == "" {
		return Event{}, fmt.Errorf("invalid %q", fieldType)
	}
	object, ok := present(fields, fieldObject)
	if !ok {
		return Event{}, fmt.Errorf("missing %q", fieldObject)
	}
	event.Object = object

	if raw, ok := present(fields, fieldGroupID); ok {
		var id vkapi.Timestamp
		if json.Unmarshal(raw, &id) == nil {
			event.GroupID = int64(id)
		}
	}
	if raw, ok := present(fields, fieldEventID); ok {
		event.EventID = scalarString(raw)
	}
	if raw, ok := present(fields, fieldAPIVersion); ok {
		event.APIVersion = scalarString(raw)
	}
	return event, nil
}

// present returns the raw value of key unless it is missing or null.
func present(fields map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	raw, ok := fields[key]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return nil, false
	}
	return raw, true
}

// scalarString returns a JSON string as is and a JSON number as its text.
func scalarString(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		return n.String()
	}
	return ""
}

// classify turns a decoded envelope into an Outcome. A zero failed code is
// treated as absent.
func (e envelope) classify() Outcome {
	if e.Failed != 0 {
		out := Outcome{Kind: classifyFailure(e.Failed), Code: e.Failed}
		if out.Kind == OutcomeCursorExpired && e.TS != nil {
			out.Result.TS = int64(*e.TS)
			out.HasTS = true
		}
		return out
	}

	out := Outcome{Kind: OutcomeSuccess, Result: PollResult{Updates: e.Updates}}
	if e.TS != nil {
		out.Result.TS = int64(*e.TS)
		out.HasTS = true
	}
	return out
}

// Decode parses a long-poll response body into an Outcome.
func Decode(body []byte, strict bool) (Outcome, error) {
	env, _, err := decodeEnvelope(body, strict)
	if err != nil {
		return Outcome{}, err
	}
	return env.classify(), nil
}

func truncate(body []byte) []byte {
	const maxBody = 256
	if len(body) <= maxBody {
		return body
	}
	return body[:maxBody]
}
