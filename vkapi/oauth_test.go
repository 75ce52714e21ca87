// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package vkapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorizeURL(t *testing.T) {
	oauth := NewOAuth(nil, "", "")

	raw := oauth.AuthorizeURL(AuthorizeRequest{
		ClientID:    6001,
		RedirectURI: "https://example.com/cb",
		Display:     DisplayPage,
		Scopes:      []Scope{GroupScopeMessages, GroupScopeManage},
		State:       "xyz",
		GroupIDs:    []int64{10, 20},
		Revoke:      true,
	})

	require.True(t, strings.HasPrefix(raw, DefaultOAuthHost+"/authorize?"))
	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "6001", q.Get("client_id"))
	assert.Equal(t, "https://example.com/cb", q.Get("redirect_uri"))
	assert.Equal(t, "page", q.Get("display"))
	assert.Equal(t, "266240", q.Get("scope"))
	assert.Equal(t, "xyz", q.Get("state"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, DefaultOAuthVersion, q.Get("v"))
	assert.Equal(t, "10,20", q.Get("group_ids"))
	assert.Equal(t, "1", q.Get("revoke"))
}

func TestAuthorizeURLMinimal(t *testing.T) {
	oauth := NewOAuth(nil, "https://auth.test/", "5.131")

	u, err := url.Parse(oauth.AuthorizeURL(AuthorizeRequest{ClientID: 1, ResponseType: ResponseTypeToken}))
	require.NoError(t, err)
	assert.Equal(t, "auth.test", u.Host)
	q := u.Query()
	assert.Equal(t, "token", q.Get("response_type"))
	assert.Equal(t, "0", q.Get("scope"))
	assert.Equal(t, "5.131", q.Get("v"))
	assert.False(t, q.Has("revoke"))
	assert.False(t, q.Has("group_ids"))
	assert.False(t, q.Has("state"))
}

func TestAccessToken(t *testing.T) {
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		assert.Equal(t, "/access_token", r.URL.Path)
		_, _ = w.Write([]byte(`{"access_token":"user-token","expires_in":86400,"user_id":77,"access_token_10":"g10","access_token_20":"g20"}`))
	}))
	defer srv.Close()

	oauth := NewOAuth(NewHTTPTransport(srv.Client()), srv.URL, "")
	resp, err := oauth.AccessToken(context.Background(), 6001, "shh", "https://example.com/cb", "the-code")
	require.NoError(t, err)

	assert.Equal(t, "user-token", resp.AccessToken)
	assert.Equal(t, int64(86400), resp.ExpiresIn)
	assert.Equal(t, int64(77), resp.UserID)
	assert.Equal(t, map[int64]string{10: "g10", 20: "g20"}, resp.GroupTokens)

	assert.Equal(t, "6001", gotQuery.Get("client_id"))
	assert.Equal(t, "shh", gotQuery.Get("client_secret"))
	assert.Equal(t, "the-code", gotQuery.Get("code"))
}

func TestAccessTokenOAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Code is expired."}`))
	}))
	defer srv.Close()

	oauth := NewOAuth(NewHTTPTransport(srv.Client()), srv.URL, "")
	_, err := oauth.AccessToken(context.Background(), 1, "s", "r", "c")

	var oauthErr *OAuthError
	require.ErrorAs(t, err, &oauthErr)
	assert.Equal(t, "invalid_grant", oauthErr.Code)
	assert.Equal(t, "Code is expired.", oauthErr.Description)
}

func TestAccessTokenBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	oauth := NewOAuth(NewHTTPTransport(srv.Client()), srv.URL, "")
	_, err := oauth.AccessToken(context.Background(), 1, "s", "r", "c")

	var clientErr *ClientError
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, http.StatusInternalServerError, clientErr.StatusCode)
}
