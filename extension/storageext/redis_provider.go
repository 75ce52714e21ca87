// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package storageext

import (
	"time"

	"github.com/redis/go-redis/v9"
)

func durationOr(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// redisOptions maps RedisConfig to go-redis options. The connection mode is
// picked from whichever of sentinel, cluster or standalone is configured.
func redisOptions(cfg RedisConfig) *redis.UniversalOptions {
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 10
	}

	opts := &redis.UniversalOptions{
		Password:     string(cfg.Password),
		DB:           cfg.DB,
		PoolSize:     poolSize,
		DialTimeout:  durationOr(cfg.DialTimeout, 5*time.Second),
		ReadTimeout:  durationOr(cfg.ReadTimeout, 3*time.Second),
		WriteTimeout: durationOr(cfg.WriteTimeout, 3*time.Second),
	}

	switch {
	case cfg.MasterName != "" && len(cfg.SentinelAddrs) > 0:
		opts.MasterName = cfg.MasterName
		opts.Addrs = cfg.SentinelAddrs
	case len(cfg.Addrs) > 0:
		opts.Addrs = cfg.Addrs
	default:
		opts.Addrs = []string{cfg.Addr}
	}
	return opts
}

func createRedisClient(cfg RedisConfig) redis.UniversalClient {
	return redis.NewUniversalClient(redisOptions(cfg))
}
