// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package vklongpollreceiver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/collector/component/componenttest"
	"go.opentelemetry.io/collector/confmap"

	"github.com/vklongpoll/collector/extension/storageext"
)

func validConfig() *Config {
	cfg := createDefaultConfig()
	cfg.GroupID = 42
	cfg.AccessToken = "token"
	return cfg
}

func TestCreateDefaultConfig(t *testing.T) {
	cfg := createDefaultConfig()
	assert.NoError(t, componenttest.CheckConfigStruct(cfg))
	assert.Equal(t, 10*time.Second, cfg.Wait)
	assert.Equal(t, "5.73", cfg.APIVersion)
	require.NotNil(t, cfg.Status)
	assert.Nil(t, cfg.Status.Callback)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:    "missing group",
			mutate:  func(c *Config) { c.GroupID = 0 },
			wantErr: "group_id must be positive",
		},
		{
			name:    "missing token",
			mutate:  func(c *Config) { c.AccessToken = "" },
			wantErr: "one of access_token or token_ref is required",
		},
		{
			name: "token and token ref",
			mutate: func(c *Config) {
				c.TokenRef = &storageext.SecretRef{Nacos: "default", DataID: "vk"}
				c.StorageExtension = "vkstorage"
			},
			wantErr: "only one of access_token or token_ref",
		},
		{
			name: "token ref without storage",
			mutate: func(c *Config) {
				c.AccessToken = ""
				c.TokenRef = &storageext.SecretRef{Nacos: "default", DataID: "vk"}
			},
			wantErr: "token_ref requires storage_extension",
		},
		{
			name: "token ref without data id",
			mutate: func(c *Config) {
				c.AccessToken = ""
				c.StorageExtension = "vkstorage"
				c.TokenRef = &storageext.SecretRef{Nacos: "default"}
			},
			wantErr: "nacos and data_id are required",
		},
		{
			name:    "wait too long",
			mutate:  func(c *Config) { c.Wait = 91 * time.Second },
			wantErr: "wait must be between",
		},
		{
			name:    "wait zero",
			mutate:  func(c *Config) { c.Wait = 0 },
			wantErr: "wait must be between",
		},
		{
			name:    "fractional wait",
			mutate:  func(c *Config) { c.Wait = 1500 * time.Millisecond },
			wantErr: "whole number of seconds",
		},
		{
			name:    "client timeout shorter than wait",
			mutate:  func(c *Config) { c.ClientConfig.Timeout = 5 * time.Second },
			wantErr: "http.timeout must be at least",
		},
		{
			name:    "backoff max below initial",
			mutate:  func(c *Config) { c.Backoff.MaxInterval = time.Millisecond },
			wantErr: "backoff: max_interval",
		},
		{
			name:    "backoff multiplier",
			mutate:  func(c *Config) { c.Backoff.Multiplier = 0.5 },
			wantErr: "multiplier must be at least 1",
		},
		{
			name:    "callback without confirmation code",
			mutate:  func(c *Config) { c.Status.Callback = &CallbackConfig{} },
			wantErr: "status.callback: confirmation_code is required",
		},
		{
			name: "callback on reserved path",
			mutate: func(c *Config) {
				c.Status.Callback = &CallbackConfig{Path: "/status", ConfirmationCode: "abc"}
			},
			wantErr: "path /status is reserved",
		},
		{
			name: "callback on default path",
			mutate: func(c *Config) {
				c.Status.Callback = &CallbackConfig{ConfirmationCode: "abc"}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestConfig_Unmarshal(t *testing.T) {
	t.Run("status omitted", func(t *testing.T) {
		cfg := createDefaultConfig()
		conf := confmap.NewFromStringMap(map[string]any{
			"group_id":     42,
			"access_token": "token",
			"wait":         "25s",
		})
		require.NoError(t, cfg.Unmarshal(conf))
		assert.Equal(t, int64(42), cfg.GroupID)
		assert.Equal(t, 25*time.Second, cfg.Wait)
		assert.Nil(t, cfg.Status)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("status with callback", func(t *testing.T) {
		cfg := createDefaultConfig()
		conf := confmap.NewFromStringMap(map[string]any{
			"group_id": 42,
			"token_ref": map[string]any{
				"nacos":   "default",
				"data_id": "vk-bot",
				"field":   "token",
			},
			"storage_extension": "vkstorage",
			"status": map[string]any{
				"endpoint": "0.0.0.0:9000",
				"callback": map[string]any{
					"confirmation_code": "c0de",
					"secret":            "s3cret",
				},
			},
		})
		require.NoError(t, cfg.Unmarshal(conf))
		require.NotNil(t, cfg.Status)
		assert.Equal(t, "0.0.0.0:9000", cfg.Status.Endpoint)
		require.NotNil(t, cfg.Status.Callback)
		assert.Equal(t, "/callback", cfg.Status.Callback.GetPath())
		require.NotNil(t, cfg.TokenRef)
		assert.Equal(t, "token", cfg.TokenRef.Field)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("status without callback", func(t *testing.T) {
		cfg := createDefaultConfig()
		conf := confmap.NewFromStringMap(map[string]any{
			"group_id":     42,
			"access_token": "token",
			"status":       map[string]any{"endpoint": "localhost:0"},
		})
		require.NoError(t, cfg.Unmarshal(conf))
		require.NotNil(t, cfg.Status)
		assert.Nil(t, cfg.Status.Callback)
	})
}
