// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package vkapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// Timestamp is a long-poll cursor. The API encodes it either as a number or
// as a numeric string depending on the method.
type Timestamp int64

// UnmarshalJSON accepts both 123 and "123".
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*t = 0
			return nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid timestamp %q: %w", s, err)
		}
		*t = Timestamp(n)
		return nil
	}

	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*t = Timestamp(n)
	return nil
}

// LongPollServer is the result of groups.getLongPollServer.
type LongPollServer struct {
	Server string    `json:"server"`
	Key    string    `json:"key"`
	TS     Timestamp `json:"ts"`
}

// LongPollSettings is the result of groups.getLongPollSettings.
type LongPollSettings struct {
	IsEnabled  bool           `json:"is_enabled"`
	APIVersion string         `json:"api_version,omitempty"`
	Events     map[string]int `json:"events,omitempty"`
}

// SetLongPollSettingsRequest holds the arguments of groups.setLongPollSettings.
// Events maps event type names (message_new, wall_post_new, ...) to on/off.
type SetLongPollSettingsRequest struct {
	Enabled    *bool
	APIVersion string
	Events     map[string]bool
}

// Groups exposes the community long-poll methods.
type Groups struct {
	client *Client
}

// NewGroups returns the groups.* method set bound to client.
func NewGroups(client *Client) *Groups {
	return &Groups{client: client}
}

// GetLongPollServer returns the Bots Long Poll server for groupID.
func (g *Groups) GetLongPollServer(ctx context.Context, groupID int64) (LongPollServer, error) {
	var out LongPollServer
	err := g.call(ctx, "groups.getLongPollServer", Params{"group_id": groupID}, &out)
	return out, err
}

// GetLongPollSettings returns the Bots Long Poll settings of groupID.
func (g *Groups) GetLongPollSettings(ctx context.Context, groupID int64) (LongPollSettings, error) {
	var out LongPollSettings
	err := g.call(ctx, "groups.getLongPollSettings", Params{"group_id": groupID}, &out)
	return out, err
}

// SetLongPollSettings changes the Bots Long Poll settings of groupID.
func (g *Groups) SetLongPollSettings(ctx context.Context, groupID int64, req SetLongPollSettingsRequest) error {
	params := Params{
		"group_id":    groupID,
		"api_version": req.APIVersion,
	}
	if req.Enabled != nil {
		params["enabled"] = *req.Enabled
	}
	for name, on := range req.Events {
		params[name] = on
	}
	_, err := g.client.Call(ctx, "groups.setLongPollSettings", params)
	return err
}

// GetCallbackConfirmationCode returns the string the Callback API server
// must answer to a confirmation request.
func (g *Groups) GetCallbackConfirmationCode(ctx context.Context, groupID int64) (string, error) {
	var out struct {
		Code string `json:"code"`
	}
	if err := g.call(ctx, "groups.getCallbackConfirmationCode", Params{"group_id": groupID}, &out); err != nil {
		return "", err
	}
	return out.Code, nil
}

func (g *Groups) call(ctx context.Context, method string, params Params, out any) error {
	raw, err := g.client.Call(ctx, method, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	return nil
}
