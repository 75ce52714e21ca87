// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package vkapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestampUnmarshal(t *testing.T) {
	tests := []struct {
		in       string
		expected Timestamp
		wantErr  bool
	}{
		{in: `17`, expected: 17},
		{in: `"17"`, expected: 17},
		{in: `""`, expected: 0},
		{in: `"abc"`, wantErr: true},
		{in: `{}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var ts Timestamp
			err := json.Unmarshal([]byte(tt.in), &ts)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ts)
		})
	}
}

// newGroupsServer answers each method with the mapped body and records the
// last form it received.
func newGroupsServer(t *testing.T, bodies map[string]string) (*Groups, *url.Values) {
	t.Helper()
	var last url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		last = r.PostForm
		body, ok := bodies[r.URL.Path[1:]]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	client := NewClient(NewHTTPTransport(srv.Client()), "token", WithBaseURL(srv.URL))
	return NewGroups(client), &last
}

func TestGroupsGetLongPollServer(t *testing.T) {
	groups, last := newGroupsServer(t, map[string]string{
		"groups.getLongPollServer": `{"response":{"server":"https://lp.vk.com/wh123","key":"abc","ts":"100"}}`,
	})

	server, err := groups.GetLongPollServer(context.Background(), 123)
	require.NoError(t, err)
	assert.Equal(t, LongPollServer{Server: "https://lp.vk.com/wh123", Key: "abc", TS: 100}, server)
	assert.Equal(t, "123", last.Get("group_id"))
}

func TestGroupsLongPollSettings(t *testing.T) {
	groups, last := newGroupsServer(t, map[string]string{
		"groups.getLongPollSettings": `{"response":{"is_enabled":true,"api_version":"5.131","events":{"message_new":1,"wall_post_new":0}}}`,
		"groups.setLongPollSettings": `{"response":1}`,
	})

	settings, err := groups.GetLongPollSettings(context.Background(), 5)
	require.NoError(t, err)
	assert.True(t, settings.IsEnabled)
	assert.Equal(t, "5.131", settings.APIVersion)
	assert.Equal(t, 1, settings.Events["message_new"])

	enabled := true
	err = groups.SetLongPollSettings(context.Background(), 5, SetLongPollSettingsRequest{
		Enabled:    &enabled,
		APIVersion: "5.131",
		Events:     map[string]bool{"message_new": true, "group_leave": false},
	})
	require.NoError(t, err)
	assert.Equal(t, "1", last.Get("enabled"))
	assert.Equal(t, "5.131", last.Get("api_version"))
	assert.Equal(t, "1", last.Get("message_new"))
	assert.Equal(t, "0", last.Get("group_leave"))
}

func TestGroupsGetCallbackConfirmationCode(t *testing.T) {
	groups, _ := newGroupsServer(t, map[string]string{
		"groups.getCallbackConfirmationCode": `{"response":{"code":"a1b2c3"}}`,
	})

	code, err := groups.GetCallbackConfirmationCode(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, "a1b2c3", code)
}

func TestGroupsPropagatesAPIError(t *testing.T) {
	groups, _ := newGroupsServer(t, map[string]string{
		"groups.getLongPollServer": `{"error":{"error_code":15,"error_msg":"Access denied"}}`,
	})

	_, err := groups.GetLongPollServer(context.Background(), 1)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, ErrCodeAccessDenied, apiErr.Code)
}
