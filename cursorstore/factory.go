// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package cursorstore

import (
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// New creates a Store based on configuration.
func New(logger *zap.Logger, config Config, redisClient redis.UniversalClient) (Store, error) {
	switch config.Type {
	case "", "memory":
		return NewMemoryStore(logger, config), nil

	case "redis":
		if redisClient == nil {
			return nil, errors.New("redis client is required for redis cursor store")
		}
		return NewRedisStore(logger, config, redisClient)

	default:
		return nil, errors.New("unknown cursor store type: " + config.Type)
	}
}
