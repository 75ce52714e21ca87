// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package cursorstore persists long-poll cursors between process restarts.
package cursorstore

import (
	"context"
	"errors"
	"strconv"
	"time"
)

// Store keeps the last acknowledged cursor per stream.
type Store interface {
	// Get returns the cursor saved under key. ok is false when none is saved.
	Get(ctx context.Context, key string) (ts int64, ok bool, err error)

	// Set saves ts under key.
	Set(ctx context.Context, key string, ts int64) error

	// Delete forgets the cursor saved under key.
	Delete(ctx context.Context, key string) error

	// Start initializes the store.
	Start(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// Config holds configuration for Store.
type Config struct {
	// Type specifies the backend type: "memory" or "redis".
	Type string `mapstructure:"type"`

	// RedisName is the name of the Redis connection from the storage extension.
	RedisName string `mapstructure:"redis_name"`

	// KeyPrefix is the prefix for Redis keys.
	KeyPrefix string `mapstructure:"key_prefix"`

	// TTL expires saved cursors. Zero keeps them forever.
	TTL time.Duration `mapstructure:"ttl"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Type:      "memory",
		RedisName: "default",
		KeyPrefix: "vk:longpoll:cursor",
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	switch c.Type {
	case "", "memory":
	case "redis":
		if c.RedisName == "" {
			return errors.New("redis_name is required for redis cursor store")
		}
	default:
		return errors.New("unknown cursor store type: " + c.Type)
	}
	if c.TTL < 0 {
		return errors.New("ttl must not be negative")
	}
	return nil
}

// GroupKey is the key under which a community's cursor is saved.
func GroupKey(groupID int64) string {
	return "group:" + strconv.FormatInt(groupID, 10)
}
