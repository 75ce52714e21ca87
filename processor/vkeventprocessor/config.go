// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package vkeventprocessor

import (
	"errors"

	"go.opentelemetry.io/collector/component"
)

// Config defines the configuration for the VK event processor.
type Config struct {
	// IncludeTypes keeps only events of these types. Empty keeps all types.
	IncludeTypes []string `mapstructure:"include_types"`

	// ExcludeTypes drops events of these types. Applied after IncludeTypes.
	ExcludeTypes []string `mapstructure:"exclude_types"`

	// LogDropped indicates whether to log dropped events.
	// Default is true.
	LogDropped bool `mapstructure:"log_dropped"`

	// Dedup configuration
	Dedup DedupConfig `mapstructure:"dedup"`
}

// DedupConfig defines duplicate event suppression by event id.
type DedupConfig struct {
	// Enabled indicates whether to drop events whose id was already seen.
	// Default is true.
	Enabled bool `mapstructure:"enabled"`

	// TTL is how long an event id is remembered.
	// Default is 10 minutes.
	TTL int `mapstructure:"ttl_seconds"`

	// MaxSize is the maximum number of remembered ids.
	// When exceeded, oldest entries are evicted.
	// Default is 100000.
	MaxSize int `mapstructure:"max_size"`

	// CleanupInterval is the interval for background cache cleanup.
	// Default is 60 seconds.
	CleanupInterval int `mapstructure:"cleanup_interval_seconds"`

	// StorageExtension, when set, shares seen ids between collectors through
	// a Redis connection of the storage extension.
	StorageExtension string `mapstructure:"storage_extension"`

	// RedisName is the Redis connection used for shared ids.
	// Default is "default".
	RedisName string `mapstructure:"redis_name"`

	// KeyPrefix is the prefix of shared id keys.
	// Default is "vk:event:seen".
	KeyPrefix string `mapstructure:"key_prefix"`
}

var _ component.Config = (*Config)(nil)

// Validate checks if the configuration is valid.
func (cfg *Config) Validate() error {
	if !cfg.Dedup.Enabled {
		return nil
	}
	if cfg.Dedup.TTL <= 0 {
		return errors.New("dedup.ttl_seconds must be positive")
	}
	if cfg.Dedup.MaxSize <= 0 {
		return errors.New("dedup.max_size must be positive")
	}
	if cfg.Dedup.CleanupInterval < 0 {
		return errors.New("dedup.cleanup_interval_seconds must not be negative")
	}
	if cfg.Dedup.StorageExtension != "" && cfg.Dedup.RedisName == "" {
		return errors.New("dedup.redis_name is required with dedup.storage_extension")
	}
	return nil
}

// createDefaultConfig creates the default configuration.
func createDefaultConfig() component.Config {
	return &Config{
		LogDropped: true,
		Dedup: DedupConfig{
			Enabled:         true,
			TTL:             600, // 10 minutes
			MaxSize:         100000,
			CleanupInterval: 60, // 1 minute
			RedisName:       "default",
			KeyPrefix:       "vk:event:seen",
		},
	}
}
