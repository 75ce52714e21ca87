// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package vkadminext

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vklongpoll/collector/callbackapi"
)

// newRouter creates and configures the HTTP router with all routes.
func (e *Extension) newRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(callbackapi.LoggingMiddleware(e.logger))
	if e.config.CORS.Enabled {
		r.Use(e.corsMiddleware)
	}

	// No auth: probes, and VK redirecting the browser back with a state.
	r.Get("/health", e.handleHealth)
	if e.oauth != nil {
		r.Get("/oauth/callback", e.oauthCallback)
	}

	r.Group(func(r chi.Router) {
		if e.config.Auth.Enabled {
			r.Use(e.authMiddleware)
		}

		if e.oauth != nil {
			r.Get("/oauth/authorize", e.oauthAuthorize)
		}

		r.Route("/api/v1/groups/{groupID}", func(r chi.Router) {
			r.Get("/longpoll/settings", e.getLongPollSettings)
			r.Put("/longpoll/settings", e.setLongPollSettings)
			r.Get("/longpoll/server", e.getLongPollServer)
			r.Get("/callback/confirmation", e.getConfirmationCode)
		})
	})

	return r
}
