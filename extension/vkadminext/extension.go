// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package vkadminext

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/collector/component"
	"go.opentelemetry.io/collector/extension"
	"go.opentelemetry.io/collector/extension/extensioncapabilities"
	"go.uber.org/zap"

	"github.com/vklongpoll/collector/extension/storageext"
	"github.com/vklongpoll/collector/vkapi"
)

// Ensure Extension implements the required interfaces.
var (
	_ extension.Extension             = (*Extension)(nil)
	_ extensioncapabilities.Dependent = (*Extension)(nil)
)

const stateCleanupInterval = 30 * time.Second

// Extension serves the community management API.
type Extension struct {
	config   *Config
	settings extension.Settings
	logger   *zap.Logger

	storage storageext.Storage

	client *vkapi.Client
	groups *vkapi.Groups
	oauth  *vkapi.OAuth
	states *oauthStateManager

	allowed map[int64]bool

	// HTTP server
	server   *http.Server
	listener net.Listener

	// Lifecycle
	stopCh chan struct{}
	wg     sync.WaitGroup
	mu     sync.RWMutex
	started bool
}

// newAdminExtension creates a new VK admin extension.
func newAdminExtension(
	_ context.Context,
	set extension.Settings,
	config *Config,
) (*Extension, error) {
	var allowed map[int64]bool
	if len(config.Groups) > 0 {
		allowed = make(map[int64]bool, len(config.Groups))
		for _, id := range config.Groups {
			allowed[id] = true
		}
	}

	return &Extension{
		config:   config,
		settings: set,
		logger:   set.Logger,
		allowed:  allowed,
	}, nil
}

// Start implements component.Component.
func (e *Extension) Start(ctx context.Context, host component.Host) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return nil
	}

	e.logger.Info("Starting VK admin extension",
		zap.String("endpoint", e.config.HTTP.Endpoint),
	)

	if e.config.StorageExtension != "" {
		storage, err := storageext.FromHost(host, e.config.StorageExtension)
		if err != nil {
			return err
		}
		e.storage = storage
	}

	if err := e.initClients(ctx, host); err != nil {
		return err
	}

	e.stopCh = make(chan struct{})
	if e.states != nil {
		e.wg.Add(1)
		go e.runStateCleanup()
	}

	if err := e.startHTTPServer(); err != nil {
		close(e.stopCh)
		e.wg.Wait()
		return err
	}

	e.started = true
	e.logger.Info("VK admin extension started",
		zap.Bool("oauth_enabled", e.oauth != nil),
		zap.Int64s("groups", e.config.Groups),
	)
	return nil
}

// initClients creates the API client and, if configured, the OAuth helper.
func (e *Extension) initClients(ctx context.Context, host component.Host) error {
	token, err := e.resolveToken(ctx)
	if err != nil {
		return err
	}

	httpClient, err := e.config.API.Client.ToClient(ctx, host, e.settings.TelemetrySettings)
	if err != nil {
		return fmt.Errorf("create http client: %w", err)
	}
	transport := vkapi.NewHTTPTransport(httpClient)

	opts := []vkapi.Option{
		vkapi.WithVersion(e.config.API.Version),
		vkapi.WithLogger(e.logger),
	}
	if e.config.API.URL != "" {
		opts = append(opts, vkapi.WithBaseURL(e.config.API.URL))
	}
	e.client = vkapi.NewClient(transport, token, opts...)
	e.groups = vkapi.NewGroups(e.client)

	if ref := e.config.API.TokenRef; ref != nil {
		if err := e.storage.WatchSecret(*ref, e.rotateToken); err != nil {
			e.logger.Warn("Access token changes will not be followed", zap.Error(err))
		}
	}

	if cfg := e.config.OAuth; cfg != nil {
		e.oauth = vkapi.NewOAuth(transport, cfg.Host, cfg.Version)
		e.states = newOAuthStateManager(cfg.StateTTL)
	}
	return nil
}

func (e *Extension) resolveToken(ctx context.Context) (string, error) {
	ref := e.config.API.TokenRef
	if ref == nil {
		return string(e.config.API.AccessToken), nil
	}
	if e.storage == nil {
		return "", errors.New("api.token_ref requires storage_extension")
	}
	token, err := e.storage.ReadSecret(ctx, *ref)
	if err != nil {
		return "", fmt.Errorf("read access token: %w", err)
	}
	return token, nil
}

func (e *Extension) rotateToken(token string) {
	if token == "" {
		e.logger.Warn("Ignoring empty access token update")
		return
	}
	e.client.SetAccessToken(token)
	e.logger.Info("Access token rotated")
}

// runStateCleanup drops expired authorization states.
func (e *Extension) runStateCleanup() {
	defer e.wg.Done()

	ticker := time.NewTicker(stateCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := e.states.cleanup(); removed > 0 {
				e.logger.Debug("Expired authorization states removed", zap.Int("count", removed))
			}
		case <-e.stopCh:
			return
		}
	}
}

// startHTTPServer starts the HTTP server.
func (e *Extension) startHTTPServer() error {
	listener, err := net.Listen("tcp", e.config.HTTP.Endpoint)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", e.config.HTTP.Endpoint, err)
	}
	e.listener = listener

	e.server = &http.Server{
		Handler:      e.newRouter(),
		ReadTimeout:  e.config.HTTP.ReadTimeout,
		WriteTimeout: e.config.HTTP.WriteTimeout,
		IdleTimeout:  e.config.HTTP.IdleTimeout,
	}

	go func() {
		e.logger.Info("HTTP server listening", zap.String("addr", listener.Addr().String()))
		if err := e.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Shutdown implements component.Component.
func (e *Extension) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.started {
		return nil
	}

	e.logger.Info("Shutting down VK admin extension")

	if e.server != nil {
		if err := e.server.Shutdown(ctx); err != nil {
			e.logger.Warn("Error shutting down HTTP server", zap.Error(err))
		}
	}

	close(e.stopCh)
	e.wg.Wait()

	e.started = false
	return nil
}

// Addr returns the address the HTTP server listens on, or "" before Start.
func (e *Extension) Addr() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.listener == nil {
		return ""
	}
	return e.listener.Addr().String()
}

// Dependencies implements extensioncapabilities.Dependent.
// This ensures the storage extension is started before this extension.
func (e *Extension) Dependencies() []component.ID {
	if e.config.StorageExtension == "" {
		return nil
	}
	var id component.ID
	if err := id.UnmarshalText([]byte(e.config.StorageExtension)); err != nil {
		return nil
	}
	return []component.ID{id}
}
