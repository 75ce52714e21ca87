// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package vklongpollreceiver

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/collector/config/confighttp"
	"go.opentelemetry.io/collector/config/configopaque"
	"go.opentelemetry.io/collector/confmap"

	"github.com/vklongpoll/collector/extension/storageext"
	"github.com/vklongpoll/collector/vkapi"
)

const (
	minWait = time.Second
	maxWait = 90 * time.Second

	defaultCallbackPath = "/callback"
)

// Config defines the configuration for the VK long poll receiver.
type Config struct {
	// GroupID is the community whose Bots Long Poll stream is read.
	GroupID int64 `mapstructure:"group_id"`

	// AccessToken is a community token. Exactly one of AccessToken and
	// TokenRef must be set.
	AccessToken configopaque.String `mapstructure:"access_token"`

	// TokenRef reads the token from a Nacos config through the storage
	// extension and follows its changes.
	TokenRef *storageext.SecretRef `mapstructure:"token_ref"`

	// StorageExtension is the id of the storage extension providing the
	// cursor store and secrets. Without it the cursor is not persisted.
	StorageExtension string `mapstructure:"storage_extension"`

	// APIURL overrides the API method endpoint.
	APIURL string `mapstructure:"api_url"`

	// APIVersion is sent with every API call.
	APIVersion string `mapstructure:"api_version"`

	// Language is sent as the lang parameter.
	Language string `mapstructure:"language"`

	// Wait is how long the server may hold a poll open. Whole seconds only.
	Wait time.Duration `mapstructure:"wait"`

	// StrictDecoding fails polls whose body cannot be decoded instead of
	// treating them as empty.
	StrictDecoding bool `mapstructure:"strict_decoding"`

	// ClientConfig configures the HTTP client used for API calls and polls.
	ClientConfig confighttp.ClientConfig `mapstructure:"http"`

	// Backoff controls retries after failed polls.
	Backoff BackoffConfig `mapstructure:"backoff"`

	// Status enables the status server. Nil disables it.
	Status *StatusConfig `mapstructure:"status"`
}

// BackoffConfig configures exponential backoff between failed polls.
type BackoffConfig struct {
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
}

// StatusConfig configures the status HTTP server.
type StatusConfig struct {
	confighttp.ServerConfig `mapstructure:",squash"`

	// Callback additionally serves the Callback API on the status server.
	// Nil disables it.
	Callback *CallbackConfig `mapstructure:"callback"`
}

// CallbackConfig configures the Callback API endpoint.
type CallbackConfig struct {
	// Path is where notifications are accepted. Default: /callback
	Path string `mapstructure:"path"`

	// ConfirmationCode is answered to confirmation requests.
	ConfirmationCode configopaque.String `mapstructure:"confirmation_code"`

	// Secret must match the secret of every notification when set.
	Secret configopaque.String `mapstructure:"secret"`
}

var _ confmap.Unmarshaler = (*Config)(nil)

// Unmarshal a confmap.Conf into the config struct.
func (cfg *Config) Unmarshal(conf *confmap.Conf) error {
	if err := conf.Unmarshal(cfg); err != nil {
		return err
	}

	if !conf.IsSet("status") {
		cfg.Status = nil
	} else if !conf.IsSet("status::callback") {
		cfg.Status.Callback = nil
	}
	return nil
}

// Validate checks if the configuration is valid.
func (cfg *Config) Validate() error {
	var errs []error

	if cfg.GroupID <= 0 {
		errs = append(errs, errors.New("group_id must be positive"))
	}

	switch {
	case cfg.AccessToken == "" && cfg.TokenRef == nil:
		errs = append(errs, errors.New("one of access_token or token_ref is required"))
	case cfg.AccessToken != "" && cfg.TokenRef != nil:
		errs = append(errs, errors.New("only one of access_token or token_ref should be specified"))
	case cfg.TokenRef != nil:
		if cfg.StorageExtension == "" {
			errs = append(errs, errors.New("token_ref requires storage_extension"))
		}
		if cfg.TokenRef.Nacos == "" || cfg.TokenRef.DataID == "" {
			errs = append(errs, errors.New("token_ref: nacos and data_id are required"))
		}
	}

	if cfg.Wait < minWait || cfg.Wait > maxWait {
		errs = append(errs, fmt.Errorf("wait must be between %s and %s", minWait, maxWait))
	} else if cfg.Wait%time.Second != 0 {
		errs = append(errs, errors.New("wait must be a whole number of seconds"))
	}

	if cfg.ClientConfig.Timeout > 0 && cfg.ClientConfig.Timeout < cfg.Wait+vkapi.ConnectionTimeout {
		errs = append(errs, fmt.Errorf("http.timeout must be at least wait + %s", vkapi.ConnectionTimeout))
	}

	if err := cfg.Backoff.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("backoff: %w", err))
	}

	if cfg.Status != nil && cfg.Status.Callback != nil {
		if err := cfg.Status.Callback.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("status.callback: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Validate checks if the backoff configuration is valid.
func (cfg *BackoffConfig) Validate() error {
	if cfg.InitialInterval <= 0 {
		return errors.New("initial_interval must be positive")
	}
	if cfg.MaxInterval < cfg.InitialInterval {
		return errors.New("max_interval must not be less than initial_interval")
	}
	if cfg.Multiplier < 1 {
		return errors.New("multiplier must be at least 1")
	}
	return nil
}

// Validate checks if the callback configuration is valid.
func (cfg *CallbackConfig) Validate() error {
	if cfg.ConfirmationCode == "" {
		return errors.New("confirmation_code is required")
	}
	path := cfg.GetPath()
	if !strings.HasPrefix(path, "/") {
		return errors.New("path must start with /")
	}
	switch path {
	case "/", healthPath, statusPath, tailPath:
		return fmt.Errorf("path %s is reserved", path)
	}
	return nil
}

// GetPath returns the URL path of the Callback API endpoint.
func (cfg *CallbackConfig) GetPath() string {
	if cfg.Path != "" {
		return cfg.Path
	}
	return defaultCallbackPath
}

// createDefaultConfig creates the default configuration.
func createDefaultConfig() *Config {
	return &Config{
		APIVersion:   vkapi.DefaultVersion,
		Wait:         10 * time.Second,
		ClientConfig: confighttp.NewDefaultClientConfig(),
		Backoff: BackoffConfig{
			InitialInterval: time.Second,
			MaxInterval:     time.Minute,
			Multiplier:      2,
		},
		Status: &StatusConfig{
			ServerConfig: confighttp.ServerConfig{
				Endpoint: "localhost:8089",
			},
		},
	}
}
