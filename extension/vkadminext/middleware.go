// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package vkadminext

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
)

// corsMiddleware handles CORS.
func (e *Extension) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		allowed := false
		for _, o := range e.config.CORS.AllowedOrigins {
			if o == "*" || o == origin {
				allowed = true
				break
			}
		}

		if allowed && origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			if e.config.CORS.AllowCredentials {
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
		}

		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", strings.Join(e.config.CORS.AllowedMethods, ", "))
			w.Header().Set("Access-Control-Allow-Headers", strings.Join(e.config.CORS.AllowedHeaders, ", "))
			if e.config.CORS.MaxAge > 0 {
				w.Header().Set("Access-Control-Max-Age", strconv.Itoa(e.config.CORS.MaxAge))
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// authMiddleware handles authentication.
func (e *Extension) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// CORS preflight
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		var authenticated bool
		switch e.config.Auth.Type {
		case "basic":
			authenticated = e.authenticateBasic(r)
		case "api_key":
			authenticated = e.authenticateAPIKey(r)
		}

		if !authenticated {
			if e.config.Auth.Type == "basic" {
				w.Header().Set("WWW-Authenticate", `Basic realm="VK Admin"`)
			}
			e.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func secureEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// authenticateBasic performs basic authentication.
func (e *Extension) authenticateBasic(r *http.Request) bool {
	username, password, ok := r.BasicAuth()
	if !ok {
		return false
	}
	return secureEqual(username, e.config.Auth.Basic.Username) &&
		secureEqual(password, string(e.config.Auth.Basic.Password))
}

// authenticateAPIKey performs API key authentication.
func (e *Extension) authenticateAPIKey(r *http.Request) bool {
	header := e.config.Auth.APIKey.Header
	if header == "" {
		header = "X-API-Key"
	}

	key := r.Header.Get(header)
	if key == "" {
		return false
	}

	for _, valid := range e.config.Auth.APIKey.Keys {
		if secureEqual(key, string(valid)) {
			return true
		}
	}
	return false
}
