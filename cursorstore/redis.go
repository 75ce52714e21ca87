// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package cursorstore

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStore implements Store using Redis string keys.
type RedisStore struct {
	logger *zap.Logger
	config Config
	client redis.UniversalClient

	started atomic.Bool
}

// NewRedisStore creates a new Redis-backed store.
func NewRedisStore(logger *zap.Logger, config Config, client redis.UniversalClient) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = DefaultConfig().KeyPrefix
	}
	return &RedisStore{
		logger: logger,
		config: config,
		client: client,
	}, nil
}

var _ Store = (*RedisStore)(nil)

// Start implements Store.
func (r *RedisStore) Start(ctx context.Context) error {
	if r.started.Swap(true) {
		return nil
	}

	if err := r.client.Ping(ctx).Err(); err != nil {
		r.started.Store(false)
		return fmt.Errorf("redis connection failed: %w", err)
	}

	r.logger.Info("Starting Redis cursor store",
		zap.String("key_prefix", r.config.KeyPrefix),
		zap.Duration("ttl", r.config.TTL),
	)
	return nil
}

// Close implements Store. The client belongs to the storage extension and
// is not closed here.
func (r *RedisStore) Close() error {
	r.started.Store(false)
	return nil
}

// Get implements Store.
func (r *RedisStore) Get(ctx context.Context, key string) (int64, bool, error) {
	ts, err := r.client.Get(ctx, r.key(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get cursor %q: %w", key, err)
	}
	return ts, true, nil
}

// Set implements Store.
func (r *RedisStore) Set(ctx context.Context, key string, ts int64) error {
	if err := r.client.Set(ctx, r.key(key), ts, r.config.TTL).Err(); err != nil {
		return fmt.Errorf("set cursor %q: %w", key, err)
	}
	return nil
}

// Delete implements Store.
func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("delete cursor %q: %w", key, err)
	}
	return nil
}

func (r *RedisStore) key(key string) string {
	return r.config.KeyPrefix + ":" + key
}
