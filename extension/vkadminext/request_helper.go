// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package vkadminext

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/vklongpoll/collector/vkapi"
)

// APIError represents a structured API error with HTTP status code.
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return e.Message
}

func errBadRequest(msg string) *APIError {
	return &APIError{Status: http.StatusBadRequest, Message: msg}
}

func errForbidden(msg string) *APIError {
	return &APIError{Status: http.StatusForbidden, Message: msg}
}

// decodeJSON decodes JSON request body into the given struct.
func decodeJSON[T any](r *http.Request) (*T, error) {
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		return nil, errBadRequest(fmt.Sprintf("invalid JSON: %v", err))
	}
	return &v, nil
}

// writeJSON writes a JSON response with the given status code.
func (e *Extension) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		e.logger.Error("Failed to encode JSON response", zap.Error(err))
	}
}

// writeError writes an error response.
func (e *Extension) writeError(w http.ResponseWriter, status int, message string) {
	e.writeJSON(w, status, map[string]string{"error": message})
}

// handleError maps local, VK API and transport errors to responses.
func (e *Extension) handleError(w http.ResponseWriter, err error) {
	var (
		apiErr   *APIError
		vkErr    *vkapi.APIError
		oauthErr *vkapi.OAuthError
	)
	switch {
	case errors.As(err, &apiErr):
		e.writeError(w, apiErr.Status, apiErr.Message)
	case errors.As(err, &vkErr):
		e.writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":         vkErr.Message,
			"vk_error_code": vkErr.Code,
		})
	case errors.As(err, &oauthErr):
		e.writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":          oauthErr.Error(),
			"vk_oauth_error": oauthErr.Code,
		})
	default:
		e.logger.Warn("Request failed", zap.Error(err))
		e.writeError(w, http.StatusBadGateway, err.Error())
	}
}

// successResponse creates a standard success response.
func successResponse(message string, extra ...map[string]any) map[string]any {
	resp := map[string]any{
		"success": true,
		"message": message,
	}
	for _, m := range extra {
		for k, v := range m {
			resp[k] = v
		}
	}
	return resp
}
