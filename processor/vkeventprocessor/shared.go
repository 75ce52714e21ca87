// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package vkeventprocessor

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// sharedSeen keeps seen event ids in Redis so that several collectors
// reading the same community drop each other's duplicates.
type sharedSeen struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

func (s *sharedSeen) key(k string) string {
	return s.prefix + ":" + k
}

// markIfNew reports whether key was not seen by any collector. Redis
// failures are logged and the event is let through.
func (s *sharedSeen) markIfNew(ctx context.Context, key string) bool {
	ok, err := s.client.SetNX(ctx, s.key(key), 1, s.ttl).Result()
	if err != nil {
		s.logger.Warn("Shared dedup unavailable, accepting event",
			zap.String("key", key),
			zap.Error(err))
		return true
	}
	return ok
}

func (s *sharedSeen) forget(ctx context.Context, keys []string) {
	if len(keys) == 0 {
		return
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}
	if err := s.client.Del(ctx, full...).Err(); err != nil {
		s.logger.Warn("Failed to forget shared event ids", zap.Error(err))
	}
}
