// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package storageext

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/vklongpoll/collector/cursorstore"
)

// SecretRef points at a secret kept in a Nacos config.
type SecretRef struct {
	// Nacos is the name of the Nacos connection.
	Nacos string `mapstructure:"nacos"`
	// DataID and Group address the config item.
	DataID string `mapstructure:"data_id"`
	Group  string `mapstructure:"group"`
	// Field selects a value from a JSON config using gjson path syntax.
	// Empty means the whole config content.
	Field string `mapstructure:"field"`
}

// Storage is the interface exposed by the storage extension to other components.
type Storage interface {
	// GetRedis returns a Redis client by name.
	GetRedis(name string) (redis.UniversalClient, error)

	// CursorStore returns the shared long-poll cursor store.
	CursorStore() cursorstore.Store

	// ReadSecret resolves ref to its current value.
	ReadSecret(ctx context.Context, ref SecretRef) (string, error)

	// WatchSecret calls onChange with the new value whenever ref changes.
	WatchSecret(ref SecretRef, onChange func(value string)) error

	// PublishSecret stores value at ref. With a Field set, only that
	// top-level field of the JSON config is replaced.
	PublishSecret(ctx context.Context, ref SecretRef, value string) error

	// HasRedis checks if a Redis connection with the given name exists.
	HasRedis(name string) bool

	// HasNacos checks if a Nacos connection with the given name exists.
	HasNacos(name string) bool
}
