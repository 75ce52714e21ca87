// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package vkadminext

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/vklongpoll/collector/extension/storageext"
	"github.com/vklongpoll/collector/vkapi"
)

// handleHealth handles GET /health
func (e *Extension) handleHealth(w http.ResponseWriter, _ *http.Request) {
	e.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// checkGroup rejects community ids outside the configured groups.
func (e *Extension) checkGroup(id int64) error {
	if e.allowed != nil && !e.allowed[id] {
		return errForbidden(fmt.Sprintf("group %d is not managed by this collector", id))
	}
	return nil
}

func (e *Extension) groupParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "groupID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errBadRequest("invalid group id")
	}
	return id, e.checkGroup(id)
}

// getLongPollSettings handles GET /api/v1/groups/{groupID}/longpoll/settings
func (e *Extension) getLongPollSettings(w http.ResponseWriter, r *http.Request) {
	groupID, err := e.groupParam(r)
	if err != nil {
		e.handleError(w, err)
		return
	}

	settings, err := e.groups.GetLongPollSettings(r.Context(), groupID)
	if err != nil {
		e.handleError(w, err)
		return
	}
	e.writeJSON(w, http.StatusOK, settings)
}

type setLongPollSettingsBody struct {
	Enabled    *bool           `json:"enabled"`
	APIVersion string          `json:"api_version"`
	Events     map[string]bool `json:"events"`
}

// setLongPollSettings handles PUT /api/v1/groups/{groupID}/longpoll/settings
func (e *Extension) setLongPollSettings(w http.ResponseWriter, r *http.Request) {
	groupID, err := e.groupParam(r)
	if err != nil {
		e.handleError(w, err)
		return
	}

	body, err := decodeJSON[setLongPollSettingsBody](r)
	if err != nil {
		e.handleError(w, err)
		return
	}
	version := body.APIVersion
	if version == "" {
		version = e.client.Version()
	}

	err = e.groups.SetLongPollSettings(r.Context(), groupID, vkapi.SetLongPollSettingsRequest{
		Enabled:    body.Enabled,
		APIVersion: version,
		Events:     body.Events,
	})
	if err != nil {
		e.handleError(w, err)
		return
	}

	e.logger.Info("Long poll settings updated",
		zap.Int64("group_id", groupID),
		zap.String("api_version", version),
		zap.Int("events", len(body.Events)),
	)
	e.writeJSON(w, http.StatusOK, successResponse("long poll settings updated", map[string]any{
		"group_id":    groupID,
		"api_version": version,
	}))
}

// getLongPollServer handles GET /api/v1/groups/{groupID}/longpoll/server.
// The session key is not returned.
func (e *Extension) getLongPollServer(w http.ResponseWriter, r *http.Request) {
	groupID, err := e.groupParam(r)
	if err != nil {
		e.handleError(w, err)
		return
	}

	server, err := e.groups.GetLongPollServer(r.Context(), groupID)
	if err != nil {
		e.handleError(w, err)
		return
	}
	e.writeJSON(w, http.StatusOK, map[string]any{
		"group_id": groupID,
		"server":   server.Server,
		"ts":       int64(server.TS),
	})
}

// getConfirmationCode handles GET /api/v1/groups/{groupID}/callback/confirmation
func (e *Extension) getConfirmationCode(w http.ResponseWriter, r *http.Request) {
	groupID, err := e.groupParam(r)
	if err != nil {
		e.handleError(w, err)
		return
	}

	code, err := e.groups.GetCallbackConfirmationCode(r.Context(), groupID)
	if err != nil {
		e.handleError(w, err)
		return
	}
	e.writeJSON(w, http.StatusOK, map[string]any{
		"group_id": groupID,
		"code":     code,
	})
}

// parseGroupIDs parses a comma separated list of community ids.
func (e *Extension) parseGroupIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, errBadRequest(fmt.Sprintf("invalid group id %q", part))
		}
		if err := e.checkGroup(id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, errBadRequest("group_id is required")
	}
	return ids, nil
}

// oauthAuthorize handles GET /oauth/authorize?group_id=1,2 by redirecting to
// the authorization dialog.
func (e *Extension) oauthAuthorize(w http.ResponseWriter, r *http.Request) {
	ids, err := e.parseGroupIDs(r.URL.Query().Get("group_id"))
	if err != nil {
		e.handleError(w, err)
		return
	}

	cfg := e.config.OAuth
	pending := e.states.Generate(ids)
	target := e.oauth.AuthorizeURL(vkapi.AuthorizeRequest{
		ClientID:     cfg.ClientID,
		RedirectURI:  cfg.RedirectURI,
		Display:      vkapi.DisplayPage,
		Scopes:       cfg.scopes(),
		State:        pending.State,
		ResponseType: vkapi.ResponseTypeCode,
		GroupIDs:     ids,
		Revoke:       r.URL.Query().Get("revoke") == "1",
	})

	e.logger.Info("Authorization started", zap.Int64s("group_ids", ids))
	http.Redirect(w, r, target, http.StatusFound)
}

// oauthCallback handles GET /oauth/callback, the redirect target of the
// authorization dialog.
func (e *Extension) oauthCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if code := query.Get("error"); code != "" {
		e.writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":          query.Get("error_description"),
			"vk_oauth_error": code,
		})
		return
	}

	pending := e.states.Consume(query.Get("state"))
	if pending == nil {
		e.writeError(w, http.StatusBadRequest, "unknown or expired state")
		return
	}
	code := query.Get("code")
	if code == "" {
		e.writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	cfg := e.config.OAuth
	resp, err := e.oauth.AccessToken(r.Context(), cfg.ClientID, string(cfg.ClientSecret), cfg.RedirectURI, code)
	if err != nil {
		e.handleError(w, err)
		return
	}

	results := make([]map[string]any, 0, len(pending.GroupIDs))
	for _, id := range pending.GroupIDs {
		token, granted := resp.GroupTokens[id]
		result := map[string]any{"group_id": id, "granted": granted}
		switch {
		case !granted:
		case cfg.PublishTo != nil:
			if err := e.publishToken(r.Context(), *cfg.PublishTo, id, token); err != nil {
				result["error"] = err.Error()
			} else {
				result["published"] = true
			}
		default:
			result["access_token"] = token
		}
		results = append(results, result)
	}

	e.writeJSON(w, http.StatusOK, map[string]any{"groups": results})
}

// publishToken stores a community token at ref, with {group_id} in the
// data id replaced.
func (e *Extension) publishToken(ctx context.Context, ref storageext.SecretRef, groupID int64, token string) error {
	ref.DataID = strings.ReplaceAll(ref.DataID, groupIDPlaceholder, strconv.FormatInt(groupID, 10))
	if err := e.storage.PublishSecret(ctx, ref, token); err != nil {
		e.logger.Warn("Failed to publish community token",
			zap.Int64("group_id", groupID),
			zap.String("data_id", ref.DataID),
			zap.Error(err))
		return err
	}
	e.logger.Info("Community token published",
		zap.Int64("group_id", groupID),
		zap.String("data_id", ref.DataID))
	return nil
}
