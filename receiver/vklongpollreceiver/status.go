// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package vklongpollreceiver

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/collector/component"
	"go.opentelemetry.io/collector/component/componentstatus"
	"go.opentelemetry.io/collector/config/confighttp"
	"go.uber.org/zap"

	"github.com/vklongpoll/collector/callbackapi"
)

const (
	healthPath = "/health"
	statusPath = "/status"
	tailPath   = "/events/ws"
)

// newHTTPRouter creates the status server router.
func (r *vkLongPollReceiver) newHTTPRouter() http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)
	router.Use(callbackapi.LoggingMiddleware(r.logger))

	router.Get(healthPath, r.healthHandler)
	router.Get(statusPath, r.statusHandler)
	router.Get(tailPath, r.tail.handle)

	if cb := r.config.Status.Callback; cb != nil {
		dispatcher := callbackapi.NewDispatcher(r.logger)
		dispatcher.OnDefault(r.eventHandler(sourceCallback))

		router.Mount(cb.GetPath(), callbackapi.NewRouter(callbackapi.HandlerConfig{
			GroupID:          r.config.GroupID,
			ConfirmationCode: string(cb.ConfirmationCode),
			Secret:           string(cb.Secret),
		}, dispatcher, r.logger))

		r.logger.Info("Registered callback endpoint", zap.String("path", cb.GetPath()))
	}

	return router
}

// healthHandler handles health check requests.
func (r *vkLongPollReceiver) healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// statusHandler reports the session state and counters.
func (r *vkLongPollReceiver) statusHandler(w http.ResponseWriter, _ *http.Request) {
	report := r.stats.report()
	report.PollerID = r.pollerID
	report.GroupID = r.config.GroupID
	report.Subscribers = r.tail.count()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(report); err != nil {
		r.logger.Debug("Failed to write status", zap.Error(err))
	}
}

// startHTTPServer starts the status server when configured.
func (r *vkLongPollReceiver) startHTTPServer(ctx context.Context, host component.Host) error {
	if r.config.Status == nil {
		return nil
	}

	var err error
	r.serverHTTP, err = r.config.Status.ToServer(
		ctx, host, r.settings.TelemetrySettings, r.newHTTPRouter(),
		confighttp.WithErrorHandler(defaultErrorHandler),
	)
	if err != nil {
		return err
	}

	var ln net.Listener
	ln, err = r.config.Status.ToListener(ctx)
	if err != nil {
		return err
	}

	r.statusAddr = ln.Addr().String()
	r.logger.Info("Starting status server", zap.String("endpoint", r.statusAddr))

	r.shutdownWG.Add(1)
	go func() {
		defer r.shutdownWG.Done()
		if errHTTP := r.serverHTTP.Serve(ln); errHTTP != nil && !errors.Is(errHTTP, http.ErrServerClosed) {
			componentstatus.ReportStatus(host, componentstatus.NewFatalErrorEvent(errHTTP))
		}
	}()

	return nil
}

// defaultErrorHandler handles errors for HTTP endpoints.
func defaultErrorHandler(w http.ResponseWriter, _ *http.Request, _ string, statusCode int) {
	http.Error(w, http.StatusText(statusCode), statusCode)
}
