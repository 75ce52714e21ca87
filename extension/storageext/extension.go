// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package storageext

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/collector/component"
	"go.opentelemetry.io/collector/extension"
	"go.uber.org/zap"

	"github.com/vklongpoll/collector/cursorstore"
)

var (
	_ extension.Extension = (*Extension)(nil)
	_ Storage             = (*Extension)(nil)
)

// Extension owns the shared Redis and Nacos connections and the cursor store.
type Extension struct {
	config   *Config
	settings extension.Settings
	logger   *zap.Logger

	redisClients map[string]redis.UniversalClient
	redisMu      sync.RWMutex

	nacosClients map[string]configSource
	nacosMu      sync.RWMutex

	cursors cursorstore.Store

	// newNacosClient is replaced in tests.
	newNacosClient func(NacosConfig) (configSource, error)

	started bool
	mu      sync.Mutex
}

func newStorageExtension(
	_ context.Context,
	set extension.Settings,
	config *Config,
) (*Extension, error) {
	return &Extension{
		config:         config,
		settings:       set,
		logger:         set.Logger,
		redisClients:   make(map[string]redis.UniversalClient),
		nacosClients:   make(map[string]configSource),
		newNacosClient: createNacosClient,
	}, nil
}

// Start implements component.Component.
func (e *Extension) Start(ctx context.Context, _ component.Host) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return nil
	}

	e.logger.Info("Starting storage extension")

	for name, cfg := range e.config.Redis {
		client := createRedisClient(cfg)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			_ = e.closeClients()
			return fmt.Errorf("failed to connect to redis %q: %w", name, err)
		}
		e.redisMu.Lock()
		e.redisClients[name] = client
		e.redisMu.Unlock()
		e.logger.Info("Redis client initialized", zap.String("name", name))
	}

	for name, cfg := range e.config.Nacos {
		client, err := e.newNacosClient(cfg)
		if err != nil {
			_ = e.closeClients()
			return fmt.Errorf("failed to create nacos client %q: %w", name, err)
		}
		e.nacosMu.Lock()
		e.nacosClients[name] = client
		e.nacosMu.Unlock()
		e.logger.Info("Nacos client initialized", zap.String("name", name))
	}

	var redisClient redis.UniversalClient
	if e.config.Cursors.Type == "redis" {
		var err error
		if redisClient, err = e.GetRedis(e.config.Cursors.RedisName); err != nil {
			_ = e.closeClients()
			return fmt.Errorf("cursor store: %w", err)
		}
	}
	store, err := cursorstore.New(e.logger, e.config.Cursors, redisClient)
	if err == nil {
		err = store.Start(ctx)
	}
	if err != nil {
		_ = e.closeClients()
		return fmt.Errorf("cursor store: %w", err)
	}
	e.cursors = store

	e.started = true
	e.logger.Info("Storage extension started",
		zap.Int("redis_clients", len(e.redisClients)),
		zap.Int("nacos_clients", len(e.nacosClients)),
		zap.String("cursor_store", e.config.Cursors.Type),
	)
	return nil
}

// Shutdown implements component.Component.
func (e *Extension) Shutdown(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.started {
		return nil
	}

	e.logger.Info("Shutting down storage extension")

	var errs []error
	if e.cursors != nil {
		errs = append(errs, e.cursors.Close())
		e.cursors = nil
	}
	errs = append(errs, e.closeClients())

	e.started = false
	return errors.Join(errs...)
}

func (e *Extension) closeClients() error {
	var errs []error

	e.redisMu.Lock()
	for name, client := range e.redisClients {
		if err := client.Close(); err != nil {
			e.logger.Warn("Failed to close redis client", zap.String("name", name), zap.Error(err))
			errs = append(errs, err)
		}
	}
	e.redisClients = make(map[string]redis.UniversalClient)
	e.redisMu.Unlock()

	e.nacosMu.Lock()
	for name, client := range e.nacosClients {
		client.CloseClient()
		e.logger.Debug("Nacos client closed", zap.String("name", name))
	}
	e.nacosClients = make(map[string]configSource)
	e.nacosMu.Unlock()

	return errors.Join(errs...)
}

// GetRedis implements Storage.
func (e *Extension) GetRedis(name string) (redis.UniversalClient, error) {
	e.redisMu.RLock()
	defer e.redisMu.RUnlock()

	client, ok := e.redisClients[name]
	if !ok {
		return nil, fmt.Errorf("redis client %q not found", name)
	}
	return client, nil
}

// CursorStore implements Storage. It is nil before Start.
func (e *Extension) CursorStore() cursorstore.Store {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cursors
}

func (e *Extension) nacos(name string) (configSource, error) {
	e.nacosMu.RLock()
	defer e.nacosMu.RUnlock()

	client, ok := e.nacosClients[name]
	if !ok {
		return nil, fmt.Errorf("nacos client %q not found", name)
	}
	return client, nil
}

// ReadSecret implements Storage.
func (e *Extension) ReadSecret(_ context.Context, ref SecretRef) (string, error) {
	client, err := e.nacos(ref.Nacos)
	if err != nil {
		return "", err
	}

	content, err := client.GetConfig(ref.configParam())
	if err != nil {
		return "", fmt.Errorf("read secret %s: %w", ref.DataID, err)
	}
	return ref.extractSecret(content)
}

// WatchSecret implements Storage.
func (e *Extension) WatchSecret(ref SecretRef, onChange func(value string)) error {
	client, err := e.nacos(ref.Nacos)
	if err != nil {
		return err
	}

	param := ref.configParam()
	param.OnChange = func(_, _, dataID, data string) {
		value, err := ref.extractSecret(data)
		if err != nil {
			e.logger.Warn("Ignoring unusable secret update",
				zap.String("data_id", dataID),
				zap.Error(err))
			return
		}
		onChange(value)
	}
	if err := client.ListenConfig(param); err != nil {
		return fmt.Errorf("watch secret %s: %w", ref.DataID, err)
	}
	return nil
}

// PublishSecret implements Storage.
func (e *Extension) PublishSecret(_ context.Context, ref SecretRef, value string) error {
	client, err := e.nacos(ref.Nacos)
	if err != nil {
		return err
	}

	param := ref.configParam()
	content := value
	if ref.Field != "" {
		current, err := client.GetConfig(param)
		if err != nil {
			return fmt.Errorf("read secret %s: %w", ref.DataID, err)
		}
		if content, err = ref.injectSecret(current, value); err != nil {
			return err
		}
	}

	param.Content = content
	ok, err := client.PublishConfig(param)
	if err != nil {
		return fmt.Errorf("publish secret %s: %w", ref.DataID, err)
	}
	if !ok {
		return fmt.Errorf("publish secret %s: rejected by server", ref.DataID)
	}
	e.logger.Info("Secret published", zap.String("data_id", ref.DataID), zap.String("group", param.Group))
	return nil
}

// HasRedis implements Storage.
func (e *Extension) HasRedis(name string) bool {
	e.redisMu.RLock()
	defer e.redisMu.RUnlock()
	_, ok := e.redisClients[name]
	return ok
}

// HasNacos implements Storage.
func (e *Extension) HasNacos(name string) bool {
	e.nacosMu.RLock()
	defer e.nacosMu.RUnlock()
	_, ok := e.nacosClients[name]
	return ok
}

// FromHost looks up the storage extension named name among the host's
// extensions.
func FromHost(host component.Host, name string) (Storage, error) {
	id, err := parseComponentID(name)
	if err != nil {
		return nil, err
	}
	ext, ok := host.GetExtensions()[id]
	if !ok {
		return nil, fmt.Errorf("storage extension %q not found", name)
	}
	storage, ok := ext.(Storage)
	if !ok {
		return nil, fmt.Errorf("extension %q is not a storage extension", name)
	}
	return storage, nil
}

func parseComponentID(name string) (component.ID, error) {
	var id component.ID
	if err := id.UnmarshalText([]byte(name)); err != nil {
		return component.ID{}, fmt.Errorf("invalid extension id %q: %w", name, err)
	}
	return id, nil
}
