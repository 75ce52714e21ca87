// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package callbackapi

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// HandlerConfig configures the Callback API endpoint.
type HandlerConfig struct {
	// GroupID, when set, rejects notifications for other communities.
	GroupID int64
	// ConfirmationCode is answered to "confirmation" requests.
	ConfirmationCode string
	// Secret, when set, must match the secret field of every notification.
	Secret string
}

// notification is the body of a Callback API request.
type notification struct {
	Type       string          `json:"type"`
	Object     json.RawMessage `json:"object"`
	GroupID    int64           `json:"group_id"`
	EventID    string          `json:"event_id"`
	APIVersion string          `json:"v"`
	Secret     string          `json:"secret"`
}

type callbackHandler struct {
	cfg        HandlerConfig
	dispatcher *Dispatcher
	logger     *zap.Logger
}

// NewHandler returns an http.Handler serving the Callback API at "/" with
// panic recovery and request logging.
func NewHandler(cfg HandlerConfig, dispatcher *Dispatcher, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(LoggingMiddleware(logger))
	r.Mount("/", NewRouter(cfg, dispatcher, logger))
	return r
}

// NewRouter returns the bare Callback API routes for mounting into a router
// that already recovers panics and logs requests.
func NewRouter(cfg HandlerConfig, dispatcher *Dispatcher, logger *zap.Logger) chi.Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &callbackHandler{cfg: cfg, dispatcher: dispatcher, logger: logger}

	r := chi.NewRouter()
	r.Post("/", h.serve)
	return r
}

func (h *callbackHandler) serve(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	var n notification
	if err := json.Unmarshal(body, &n); err != nil || n.Type == "" {
		http.Error(w, "invalid notification", http.StatusBadRequest)
		return
	}

	if h.cfg.GroupID != 0 && n.GroupID != h.cfg.GroupID {
		h.logger.Warn("Callback for unexpected group",
			zap.Int64("group_id", n.GroupID),
			zap.Int64("expected", h.cfg.GroupID))
		http.Error(w, "unexpected group", http.StatusForbidden)
		return
	}

	if h.cfg.Secret != "" && subtle.ConstantTimeCompare([]byte(n.Secret), []byte(h.cfg.Secret)) != 1 {
		h.logger.Warn("Callback secret mismatch", zap.Int64("group_id", n.GroupID))
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	if n.Type == TypeConfirmation {
		writeText(w, h.cfg.ConfirmationCode)
		return
	}

	err = h.dispatcher.Dispatch(r.Context(), Event{
		GroupID:    n.GroupID,
		Secret:     n.Secret,
		Type:       n.Type,
		EventID:    n.EventID,
		APIVersion: n.APIVersion,
		Object:     n.Object,
	})
	if err != nil {
		h.logger.Error("Callback handler failed",
			zap.String("type", n.Type),
			zap.String("event_id", n.EventID),
			zap.Error(err))
		http.Error(w, "handler failed", http.StatusInternalServerError)
		return
	}

	writeText(w, "ok")
}

func writeText(w http.ResponseWriter, s string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(s))
}

// LoggingMiddleware logs each request at debug level.
func LoggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Debug("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}
