// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package vkadminext

import (
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/collector/config/confighttp"
	"go.opentelemetry.io/collector/config/configopaque"
	"go.opentelemetry.io/collector/confmap"

	"github.com/vklongpoll/collector/extension/storageext"
	"github.com/vklongpoll/collector/vkapi"
)

// groupIDPlaceholder is replaced with the community id in oauth.publish_to.data_id.
const groupIDPlaceholder = "{group_id}"

// Config defines the configuration for the VK admin extension.
type Config struct {
	// StorageExtension is the name of the storage extension to use.
	StorageExtension string `mapstructure:"storage_extension"`

	// HTTP server configuration.
	HTTP HTTPConfig `mapstructure:"http"`

	// CORS configuration.
	CORS CORSConfig `mapstructure:"cors"`

	// Auth configuration.
	Auth AuthConfig `mapstructure:"auth"`

	// API configures the VK API client used for community management.
	API APIConfig `mapstructure:"api"`

	// OAuth enables the community token authorization flow. Nil disables it.
	OAuth *OAuthConfig `mapstructure:"oauth"`

	// Groups limits the communities that can be managed. Empty allows any.
	Groups []int64 `mapstructure:"groups"`
}

// HTTPConfig defines HTTP server settings.
type HTTPConfig struct {
	// Endpoint is the address to listen on.
	Endpoint string `mapstructure:"endpoint"`

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the response.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request.
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
}

// CORSConfig defines CORS settings.
type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`

	// MaxAge is the maximum age (in seconds) of preflight request results.
	MaxAge int `mapstructure:"max_age"`
}

// AuthConfig defines authentication settings.
type AuthConfig struct {
	// Enabled enables authentication.
	Enabled bool `mapstructure:"enabled"`

	// Type is the authentication type: "basic" or "api_key".
	Type string `mapstructure:"type"`

	Basic  BasicAuthConfig  `mapstructure:"basic"`
	APIKey APIKeyAuthConfig `mapstructure:"api_key"`
}

// BasicAuthConfig defines basic authentication settings.
type BasicAuthConfig struct {
	Username string              `mapstructure:"username"`
	Password configopaque.String `mapstructure:"password"`
}

// APIKeyAuthConfig defines API key authentication settings.
type APIKeyAuthConfig struct {
	// Header is the HTTP header name for the API key.
	Header string `mapstructure:"header"`

	// Keys is a list of valid API keys.
	Keys []configopaque.String `mapstructure:"keys"`
}

// APIConfig configures VK API access.
type APIConfig struct {
	// URL overrides the API method endpoint.
	URL string `mapstructure:"url"`

	// Version is sent with every API call.
	Version string `mapstructure:"version"`

	// AccessToken is a community token with the manage right. At most one
	// of AccessToken and TokenRef may be set.
	AccessToken configopaque.String `mapstructure:"access_token"`

	// TokenRef reads the token through the storage extension and follows
	// its changes.
	TokenRef *storageext.SecretRef `mapstructure:"token_ref"`

	// Client configures the HTTP client.
	Client confighttp.ClientConfig `mapstructure:"client"`
}

// OAuthConfig configures the authorization code flow for community tokens.
type OAuthConfig struct {
	ClientID     int64               `mapstructure:"client_id"`
	ClientSecret configopaque.String `mapstructure:"client_secret"`
	RedirectURI  string              `mapstructure:"redirect_uri"`

	// Host overrides the authorization server.
	Host string `mapstructure:"host"`

	// Version is the API version passed to the authorization dialog.
	Version string `mapstructure:"version"`

	// Scopes are community rights: stories, photos, app_widget, messages,
	// docs, manage.
	Scopes []string `mapstructure:"scopes"`

	// StateTTL bounds the time between authorize and callback.
	StateTTL time.Duration `mapstructure:"state_ttl"`

	// PublishTo stores each obtained community token through the storage
	// extension. The data_id may contain {group_id}. When unset the tokens
	// are returned in the callback response.
	PublishTo *storageext.SecretRef `mapstructure:"publish_to"`
}

var groupScopes = map[string]vkapi.Scope{
	"stories":    vkapi.GroupScopeStories,
	"photos":     vkapi.GroupScopePhotos,
	"app_widget": vkapi.GroupScopeAppWidget,
	"messages":   vkapi.GroupScopeMessages,
	"docs":       vkapi.GroupScopeDocs,
	"manage":     vkapi.GroupScopeManage,
}

func (cfg *OAuthConfig) scopes() []vkapi.Scope {
	out := make([]vkapi.Scope, 0, len(cfg.Scopes))
	for _, name := range cfg.Scopes {
		out = append(out, groupScopes[name])
	}
	return out
}

var _ confmap.Unmarshaler = (*Config)(nil)

// Unmarshal a confmap.Conf into the config struct. A present oauth section
// starts from the oauth defaults.
func (cfg *Config) Unmarshal(conf *confmap.Conf) error {
	if conf.IsSet("oauth") && cfg.OAuth == nil {
		oauth := defaultOAuthConfig()
		cfg.OAuth = &oauth
	}
	return conf.Unmarshal(cfg)
}

// Validate checks if the configuration is valid.
func (cfg *Config) Validate() error {
	if cfg.HTTP.Endpoint == "" {
		return errors.New("http.endpoint is required")
	}

	if cfg.Auth.Enabled {
		switch cfg.Auth.Type {
		case "basic":
			if cfg.Auth.Basic.Username == "" || cfg.Auth.Basic.Password == "" {
				return errors.New("auth.basic.username and auth.basic.password are required")
			}
		case "api_key":
			if len(cfg.Auth.APIKey.Keys) == 0 {
				return errors.New("auth.api_key.keys is required")
			}
		case "":
			return errors.New("auth.type is required when auth.enabled is true")
		default:
			return errors.New("auth.type must be 'basic' or 'api_key'")
		}
	}

	if cfg.API.AccessToken != "" && cfg.API.TokenRef != nil {
		return errors.New("api.access_token and api.token_ref are mutually exclusive")
	}
	if cfg.API.TokenRef != nil {
		if cfg.StorageExtension == "" {
			return errors.New("storage_extension is required when api.token_ref is set")
		}
		if cfg.API.TokenRef.Nacos == "" || cfg.API.TokenRef.DataID == "" {
			return errors.New("api.token_ref requires nacos and data_id")
		}
	}

	for _, id := range cfg.Groups {
		if id <= 0 {
			return fmt.Errorf("groups: invalid community id %d", id)
		}
	}

	if cfg.OAuth != nil {
		return cfg.OAuth.validate(cfg.StorageExtension)
	}
	return nil
}

func (cfg *OAuthConfig) validate(storageExtension string) error {
	if cfg.ClientID <= 0 {
		return errors.New("oauth.client_id is required")
	}
	if cfg.ClientSecret == "" {
		return errors.New("oauth.client_secret is required")
	}
	if cfg.RedirectURI == "" {
		return errors.New("oauth.redirect_uri is required")
	}
	for _, name := range cfg.Scopes {
		if _, ok := groupScopes[name]; !ok {
			return fmt.Errorf("oauth.scopes: unknown community scope %q", name)
		}
	}
	if cfg.StateTTL <= 0 {
		return errors.New("oauth.state_ttl must be positive")
	}
	if cfg.PublishTo != nil {
		if storageExtension == "" {
			return errors.New("storage_extension is required when oauth.publish_to is set")
		}
		if cfg.PublishTo.Nacos == "" || cfg.PublishTo.DataID == "" {
			return errors.New("oauth.publish_to requires nacos and data_id")
		}
	}
	return nil
}

// createDefaultConfig creates the default configuration.
func createDefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Endpoint:     "localhost:8090",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		CORS: CORSConfig{
			Enabled:          false,
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "PUT", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: false,
			MaxAge:           86400,
		},
		Auth: AuthConfig{
			APIKey: APIKeyAuthConfig{
				Header: "X-API-Key",
			},
		},
		API: APIConfig{
			Version: vkapi.DefaultVersion,
			Client:  confighttp.NewDefaultClientConfig(),
		},
	}
}

// defaultOAuthConfig fills the fields a configured oauth section may omit.
func defaultOAuthConfig() OAuthConfig {
	return OAuthConfig{
		Scopes:   []string{"messages", "manage"},
		StateTTL: 10 * time.Minute,
	}
}
