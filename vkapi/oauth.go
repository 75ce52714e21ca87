// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package vkapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultOAuthHost is the authorization server.
	DefaultOAuthHost = "https://oauth.vk.com"

	// DefaultOAuthVersion is the API version passed to /authorize.
	DefaultOAuthVersion = "5.69"

	groupTokenPrefix = "access_token_"
)

// Display selects the authorization page layout.
type Display string

const (
	DisplayPage   Display = "page"
	DisplayPopup  Display = "popup"
	DisplayMobile Display = "mobile"
)

// ResponseType selects between the authorization code and implicit flows.
type ResponseType string

const (
	ResponseTypeCode  ResponseType = "code"
	ResponseTypeToken ResponseType = "token"
)

// Scope is an access right bit. Scopes are OR-ed into the scope parameter.
type Scope int

// User token scopes.
const (
	ScopeNotify        Scope = 1
	ScopeFriends       Scope = 2
	ScopePhotos        Scope = 4
	ScopeAudio         Scope = 8
	ScopeVideo         Scope = 16
	ScopeStories       Scope = 64
	ScopePages         Scope = 128
	ScopeStatus        Scope = 1024
	ScopeNotes         Scope = 2048
	ScopeMessages      Scope = 4096
	ScopeWall          Scope = 8192
	ScopeAds           Scope = 32768
	ScopeOffline       Scope = 65536
	ScopeDocs          Scope = 131072
	ScopeGroups        Scope = 262144
	ScopeNotifications Scope = 524288
	ScopeStats         Scope = 1048576
	ScopeEmail         Scope = 4194304
	ScopeMarket        Scope = 134217728
)

// Community token scopes.
const (
	GroupScopeStories   Scope = 1
	GroupScopePhotos    Scope = 4
	GroupScopeAppWidget Scope = 64
	GroupScopeMessages  Scope = 4096
	GroupScopeDocs      Scope = 131072
	GroupScopeManage    Scope = 262144
)

// AuthorizeRequest describes an authorization dialog.
type AuthorizeRequest struct {
	ClientID     int64
	RedirectURI  string
	Display      Display
	Scopes       []Scope
	State        string
	ResponseType ResponseType
	// GroupIDs requests community tokens instead of a user token.
	GroupIDs []int64
	// Revoke forces the permission dialog even if rights were granted before.
	Revoke bool
}

// AccessTokenResponse is the result of the code exchange. Community flows
// return one token per requested group in GroupTokens.
type AccessTokenResponse struct {
	AccessToken string
	ExpiresIn   int64
	UserID      int64
	Email       string
	GroupTokens map[int64]string
}

// OAuth builds authorization URLs and exchanges codes for tokens.
type OAuth struct {
	transport Transport
	host      string
	version   string
}

// NewOAuth creates an OAuth helper. Empty host and version use the defaults.
func NewOAuth(transport Transport, host, version string) *OAuth {
	if host == "" {
		host = DefaultOAuthHost
	}
	if version == "" {
		version = DefaultOAuthVersion
	}
	return &OAuth{
		transport: transport,
		host:      strings.TrimSuffix(host, "/"),
		version:   version,
	}
}

// AuthorizeURL returns the URL of the authorization dialog.
func (o *OAuth) AuthorizeURL(req AuthorizeRequest) string {
	var scope Scope
	for _, s := range req.Scopes {
		scope |= s
	}

	responseType := req.ResponseType
	if responseType == "" {
		responseType = ResponseTypeCode
	}

	values := url.Values{}
	values.Set("client_id", strconv.FormatInt(req.ClientID, 10))
	values.Set("redirect_uri", req.RedirectURI)
	if req.Display != "" {
		values.Set("display", string(req.Display))
	}
	values.Set("scope", strconv.Itoa(int(scope)))
	values.Set("response_type", string(responseType))
	values.Set("v", o.version)
	if req.State != "" {
		values.Set("state", req.State)
	}
	if len(req.GroupIDs) > 0 {
		ids := make([]string, len(req.GroupIDs))
		for i, id := range req.GroupIDs {
			ids[i] = strconv.FormatInt(id, 10)
		}
		values.Set("group_ids", strings.Join(ids, ","))
	}
	if req.Revoke {
		values.Set("revoke", "1")
	}

	return o.host + "/authorize?" + values.Encode()
}

// AccessToken exchanges an authorization code for an access token.
func (o *OAuth) AccessToken(ctx context.Context, clientID int64, clientSecret, redirectURI, code string) (*AccessTokenResponse, error) {
	target := o.host + "/access_token"
	values := url.Values{}
	values.Set("client_id", strconv.FormatInt(clientID, 10))
	values.Set("client_secret", clientSecret)
	values.Set("redirect_uri", redirectURI)
	values.Set("code", code)

	resp, err := o.transport.Get(ctx, target, values)
	if err != nil {
		return nil, &ClientError{URL: target, Err: err}
	}

	body := decodeObject(resp.Body)
	if raw, ok := body["error"]; ok {
		oauthErr := &OAuthError{}
		if err := json.Unmarshal(raw, &oauthErr.Code); err != nil {
			oauthErr.Code = string(raw)
		}
		if desc, ok := body["error_description"]; ok {
			_ = json.Unmarshal(desc, &oauthErr.Description)
		}
		return nil, oauthErr
	}
	if resp.StatusCode != 200 {
		return nil, &ClientError{URL: target, StatusCode: resp.StatusCode}
	}
	if body == nil {
		return nil, fmt.Errorf("vk oauth: undecodable token response")
	}

	return parseAccessToken(body)
}

func parseAccessToken(body map[string]json.RawMessage) (*AccessTokenResponse, error) {
	out := &AccessTokenResponse{}
	fields := map[string]any{
		"access_token": &out.AccessToken,
		"expires_in":   &out.ExpiresIn,
		"user_id":      &out.UserID,
		"email":        &out.Email,
	}
	for key, raw := range body {
		if dst, ok := fields[key]; ok {
			if err := json.Unmarshal(raw, dst); err != nil {
				return nil, fmt.Errorf("vk oauth: decode %s: %w", key, err)
			}
			continue
		}
		if !strings.HasPrefix(key, groupTokenPrefix) {
			continue
		}
		groupID, err := strconv.ParseInt(strings.TrimPrefix(key, groupTokenPrefix), 10, 64)
		if err != nil {
			continue
		}
		var token string
		if err := json.Unmarshal(raw, &token); err != nil {
			return nil, fmt.Errorf("vk oauth: decode %s: %w", key, err)
		}
		if out.GroupTokens == nil {
			out.GroupTokens = make(map[int64]string)
		}
		out.GroupTokens[groupID] = token
	}
	return out, nil
}
