// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package vkapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is the API method endpoint.
	DefaultBaseURL = "https://api.vk.com/method/"

	// DefaultVersion is the API version sent when none is configured.
	DefaultVersion = "5.73"

	paramAccessToken = "access_token"
	paramVersion     = "v"
	paramLang        = "lang"

	keyResponse = "response"
	keyError    = "error"
)

// Params holds method parameters. Values are formatted by FormatParams.
type Params map[string]any

// Client calls API methods.
type Client struct {
	transport Transport
	tokenMu   sync.RWMutex
	token     string
	baseURL   string
	version   string
	lang      string
	logger    *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides DefaultBaseURL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		c.baseURL = baseURL
	}
}

// WithVersion sets the API version.
func WithVersion(version string) Option {
	return func(c *Client) {
		if version != "" {
			c.version = version
		}
	}
}

// WithLanguage sets the lang parameter sent with every call.
func WithLanguage(lang string) Option {
	return func(c *Client) {
		c.lang = lang
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a client authenticated with token.
func NewClient(transport Transport, token string, opts ...Option) *Client {
	c := &Client{
		transport: transport,
		token:     token,
		baseURL:   DefaultBaseURL,
		version:   DefaultVersion,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Version returns the API version the client sends.
func (c *Client) Version() string {
	return c.version
}

// SetAccessToken replaces the token used by subsequent calls.
func (c *Client) SetAccessToken(token string) {
	c.tokenMu.Lock()
	c.token = token
	c.tokenMu.Unlock()
}

func (c *Client) accessToken() string {
	c.tokenMu.RLock()
	defer c.tokenMu.RUnlock()
	return c.token
}

// Call invokes method and returns the content of the "response" field, or
// the whole body when the field is absent.
func (c *Client) Call(ctx context.Context, method string, params Params) (json.RawMessage, error) {
	values := FormatParams(params)
	if token := c.accessToken(); token != "" {
		values.Set(paramAccessToken, token)
	}
	values.Set(paramVersion, c.version)
	if c.lang != "" {
		values.Set(paramLang, c.lang)
	}

	target := c.baseURL + method
	resp, err := c.transport.PostForm(ctx, target, values)
	if err != nil {
		return nil, &ClientError{URL: target, Err: err}
	}

	c.logger.Debug("VK API call completed",
		zap.String("method", method),
		zap.Int("status", resp.StatusCode),
		zap.Int("body_bytes", len(resp.Body)),
	)

	return c.parseResponse(target, resp)
}

// parseResponse maps a raw method response to its payload or error.
func (c *Client) parseResponse(target string, resp *Response) (json.RawMessage, error) {
	if resp.StatusCode != 200 {
		return nil, &ClientError{URL: target, StatusCode: resp.StatusCode}
	}

	body := decodeObject(resp.Body)
	if body == nil {
		c.logger.Warn("VK API returned a non-object body, treating it as empty",
			zap.String("url", target),
			zap.Int("body_bytes", len(resp.Body)),
		)
		return json.RawMessage("{}"), nil
	}

	if raw, ok := body[keyError]; ok {
		apiErr := &APIError{}
		if err := json.Unmarshal(raw, apiErr); err != nil {
			return nil, fmt.Errorf("decode api error: %w", err)
		}
		return nil, apiErr
	}

	if raw, ok := body[keyResponse]; ok {
		return raw, nil
	}
	return json.RawMessage(bytes.TrimSpace(resp.Body)), nil
}

// decodeObject decodes a JSON object. It returns nil when data is not one.
func decodeObject(data []byte) map[string]json.RawMessage {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil || m == nil {
		return nil
	}
	return m
}

// FormatParams converts method parameters to request values. Slices are
// joined with commas, booleans become 1 or 0, and nil or empty values are
// dropped.
func FormatParams(params Params) url.Values {
	values := url.Values{}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if s, ok := formatValue(params[k]); ok {
			values.Set(k, s)
		}
	}
	return values
}

func formatValue(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, val != ""
	case bool:
		if val {
			return "1", true
		}
		return "0", true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case []string:
		return strings.Join(val, ","), len(val) > 0
	case fmt.Stringer:
		s := val.String()
		return s, s != ""
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return "", false
		}
		return formatValue(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		if rv.Len() == 0 {
			return "", false
		}
		parts := make([]string, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			if s, ok := formatValue(rv.Index(i).Interface()); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ","), len(parts) > 0
	case reflect.Map:
		if rv.Len() == 0 {
			return "", false
		}
		data, err := json.Marshal(v)
		if err != nil {
			return "", false
		}
		return string(data), true
	}

	s := fmt.Sprint(v)
	return s, s != ""
}
