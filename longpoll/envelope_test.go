// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package longpoll

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		kind    OutcomeKind
		hasTS   bool
		ts      int64
		code    int
		updates int
	}{
		{name: "success", body: `{"ts":5,"updates":[{"type":"a","object":{}}]}`, kind: OutcomeSuccess, hasTS: true, ts: 5, updates: 1},
		{name: "string ts", body: `{"ts":"6","updates":[]}`, kind: OutcomeSuccess, hasTS: true, ts: 6},
		{name: "cursor expired with ts", body: `{"failed":1,"ts":42}`, kind: OutcomeCursorExpired, hasTS: true, ts: 42, code: 1},
		{name: "cursor expired without ts", body: `{"failed":1}`, kind: OutcomeCursorExpired, code: 1},
		{name: "key expired", body: `{"failed":2}`, kind: OutcomeKeyExpired, code: 2},
		{name: "history lost", body: `{"failed":3}`, kind: OutcomeHistoryLost, code: 3},
		{name: "version invalid", body: `{"failed":4,"min_version":0,"max_version":3}`, kind: OutcomeVersionInvalid, code: 4},
		{name: "unknown", body: `{"failed":17}`, kind: OutcomeUnknown, code: 17},
		{name: "zero failed is success", body: `{"failed":0,"ts":3}`, kind: OutcomeSuccess, hasTS: true, ts: 3},
		{name: "key expired ignores ts", body: `{"failed":2,"ts":8}`, kind: OutcomeKeyExpired, code: 2},
		{name: "string failed code", body: `{"failed":"2"}`, kind: OutcomeKeyExpired, code: 2},
		{name: "string cursor correction", body: `{"failed":"1","ts":"42"}`, kind: OutcomeCursorExpired, hasTS: true, ts: 42, code: 1},
		{name: "null updates", body: `{"ts":7,"updates":null}`, kind: OutcomeSuccess, hasTS: true, ts: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Decode([]byte(tt.body), true)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, out.Kind)
			assert.Equal(t, tt.hasTS, out.HasTS)
			assert.Equal(t, tt.ts, out.Result.TS)
			assert.Equal(t, tt.code, out.Code)
			assert.Len(t, out.Result.Updates, tt.updates)
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	bodies := []string{``, `not json`, `[1,2]`, `null`, `{"failed":"x"}`}

	for _, body := range bodies {
		t.Run(body, func(t *testing.T) {
			out, err := Decode([]byte(body), false)
			require.NoError(t, err)
			assert.Equal(t, OutcomeSuccess, out.Kind)
			assert.False(t, out.HasTS)
			assert.Empty(t, out.Result.Updates)

			_, err = Decode([]byte(body), true)
			var decodeErr *DecodeError
			assert.ErrorAs(t, err, &decodeErr)
		})
	}
}

func TestDecodeStrictValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "missing ts", body: `{"updates":[]}`},
		{name: "update without type", body: `{"ts":1,"updates":[{"object":{}}]}`},
		{name: "update without object", body: `{"ts":1,"updates":[{"type":"a"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.body), true)
			var decodeErr *DecodeError
			require.ErrorAs(t, err, &decodeErr)

			out, err := Decode([]byte(tt.body), false)
			require.NoError(t, err)
			assert.Empty(t, out.Result.Updates)
		})
	}
}

func TestDecodePassThroughFields(t *testing.T) {
	body := `{"ts":"11","updates":[
		{"type":"message_new","object":{"id":1},"group_id":"5","event_id":"abc","v":"5.131"},
		{"type":"message_new","object":{"id":2},"group_id":{"x":1},"event_id":77,"v":5}]}`

	for _, strict := range []bool{false, true} {
		out, err := Decode([]byte(body), strict)
		require.NoError(t, err)
		assert.Equal(t, int64(11), out.Result.TS)
		require.Len(t, out.Result.Updates, 2)

		first := out.Result.Updates[0]
		assert.Equal(t, int64(5), first.GroupID)
		assert.Equal(t, "abc", first.EventID)
		assert.Equal(t, "5.131", first.APIVersion)

		second := out.Result.Updates[1]
		assert.Zero(t, second.GroupID)
		assert.Equal(t, "77", second.EventID)
		assert.Equal(t, "5", second.APIVersion)
		assert.JSONEq(t, `{"id":2}`, string(second.Object))
	}
}

func TestDecodeLenientSkipsBadUpdates(t *testing.T) {
	body := `{"ts":12,"updates":[
		{"type":"a","object":{"id":1}},
		"garbage",
		{"type":7,"object":{}},
		{"type":"b"},
		{"type":"c","object":{"id":3}}]}`

	out, err := Decode([]byte(body), false)
	require.NoError(t, err)
	assert.True(t, out.HasTS)
	assert.Equal(t, int64(12), out.Result.TS)
	require.Len(t, out.Result.Updates, 2)
	assert.Equal(t, "a", out.Result.Updates[0].Type)
	assert.Equal(t, "c", out.Result.Updates[1].Type)

	_, err = Decode([]byte(body), true)
	var decodeErr *DecodeError
	assert.ErrorAs(t, err, &decodeErr)
}

func TestDecodeLenientWrongFieldTypes(t *testing.T) {
	out, err := Decode([]byte(`{"ts":[1],"updates":{"type":"a"}}`), false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, out.Kind)
	assert.False(t, out.HasTS)
	assert.Empty(t, out.Result.Updates)
}

func TestOutcomePredicates(t *testing.T) {
	assert.True(t, Outcome{Kind: OutcomeSuccess}.Recoverable())
	assert.True(t, Outcome{Kind: OutcomeCursorExpired}.Recoverable())
	assert.True(t, Outcome{Kind: OutcomeKeyExpired}.Invalidates())
	assert.True(t, Outcome{Kind: OutcomeHistoryLost}.Invalidates())
	assert.False(t, Outcome{Kind: OutcomeCursorExpired}.Invalidates())
	assert.False(t, Outcome{Kind: OutcomeVersionInvalid}.Recoverable())
	assert.False(t, Outcome{Kind: OutcomeUnknown}.Recoverable())
}
