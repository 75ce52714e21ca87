// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package storageext

import (
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/collector/config/configopaque"

	"github.com/vklongpoll/collector/cursorstore"
)

// Config defines the configuration for the storage extension.
type Config struct {
	// Redis holds named Redis connection configurations.
	Redis map[string]RedisConfig `mapstructure:"redis"`

	// Nacos holds named Nacos config center connections used for secrets.
	Nacos map[string]NacosConfig `mapstructure:"nacos"`

	// Cursors selects the backend of the long-poll cursor store.
	Cursors cursorstore.Config `mapstructure:"cursors"`
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	// Standalone mode
	Addr string `mapstructure:"addr"`

	// Cluster mode
	Addrs []string `mapstructure:"addrs"`

	// Sentinel mode
	MasterName    string   `mapstructure:"master_name"`
	SentinelAddrs []string `mapstructure:"sentinel_addrs"`

	Password configopaque.String `mapstructure:"password"`

	// DB applies to standalone mode only.
	DB int `mapstructure:"db"`

	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// NacosConfig holds Nacos client configuration.
type NacosConfig struct {
	// ServerAddr is a comma separated list of host[:port] addresses.
	ServerAddr string `mapstructure:"server_addr"`

	Namespace string              `mapstructure:"namespace"`
	Username  string              `mapstructure:"username"`
	Password  configopaque.String `mapstructure:"password"`

	Timeout  time.Duration `mapstructure:"timeout"`
	LogDir   string        `mapstructure:"log_dir"`
	CacheDir string        `mapstructure:"cache_dir"`
	LogLevel string        `mapstructure:"log_level"`
}

// Validate checks if the configuration is valid.
func (cfg *Config) Validate() error {
	var errs []error
	for name, redisCfg := range cfg.Redis {
		if err := redisCfg.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("redis.%s: %w", name, err))
		}
	}
	for name, nacosCfg := range cfg.Nacos {
		if err := nacosCfg.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("nacos.%s: %w", name, err))
		}
	}
	if err := cfg.Cursors.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("cursors: %w", err))
	} else if cfg.Cursors.Type == "redis" {
		if _, ok := cfg.Redis[cfg.Cursors.RedisName]; !ok {
			errs = append(errs, fmt.Errorf("cursors: redis connection %q is not configured", cfg.Cursors.RedisName))
		}
	}
	return errors.Join(errs...)
}

// Validate checks if the Redis configuration is valid.
func (cfg *RedisConfig) Validate() error {
	modes := 0
	if cfg.Addr != "" {
		modes++
	}
	if len(cfg.Addrs) > 0 {
		modes++
	}
	if cfg.MasterName != "" && len(cfg.SentinelAddrs) > 0 {
		modes++
	}

	switch {
	case modes == 0:
		return errors.New("one of addr, addrs, or sentinel configuration is required")
	case modes > 1:
		return errors.New("only one of addr, addrs, or sentinel configuration should be specified")
	}
	return nil
}

// Validate checks if the Nacos configuration is valid.
func (cfg *NacosConfig) Validate() error {
	if cfg.ServerAddr == "" {
		return errors.New("server_addr is required")
	}
	if _, err := parseNacosServerAddr(cfg.ServerAddr); err != nil {
		return err
	}
	return nil
}

// createDefaultConfig creates the default configuration.
func createDefaultConfig() *Config {
	return &Config{
		Redis:   make(map[string]RedisConfig),
		Nacos:   make(map[string]NacosConfig),
		Cursors: cursorstore.DefaultConfig(),
	}
}
