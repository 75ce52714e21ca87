// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package storageext

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nacos-group/nacos-sdk-go/v2/clients"
	"github.com/nacos-group/nacos-sdk-go/v2/common/constant"
	"github.com/nacos-group/nacos-sdk-go/v2/vo"
	"github.com/tidwall/gjson"
)

const (
	defaultNacosPort  = 8848
	defaultNacosGroup = "DEFAULT_GROUP"
)

// configSource is the part of the Nacos config client the extension uses.
type configSource interface {
	GetConfig(param vo.ConfigParam) (string, error)
	ListenConfig(param vo.ConfigParam) error
	PublishConfig(param vo.ConfigParam) (bool, error)
	CloseClient()
}

// createNacosClient creates a Nacos config client based on configuration.
func createNacosClient(cfg NacosConfig) (configSource, error) {
	serverConfigs, err := parseNacosServerAddr(cfg.ServerAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse server address: %w", err)
	}

	logDir := cfg.LogDir
	if logDir == "" {
		logDir = filepath.Join(os.TempDir(), "vkcol", "nacos", "log")
	}
	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = filepath.Join(os.TempDir(), "vkcol", "nacos", "cache")
	}
	logLevel := cfg.LogLevel
	if logLevel == "" {
		logLevel = "warn"
	}

	clientConfig := constant.ClientConfig{
		NamespaceId:         cfg.Namespace,
		TimeoutMs:           uint64(cfg.Timeout.Milliseconds()),
		NotLoadCacheAtStart: true,
		LogDir:              logDir,
		CacheDir:            cacheDir,
		LogLevel:            logLevel,
	}
	if cfg.Username != "" {
		clientConfig.Username = cfg.Username
		clientConfig.Password = string(cfg.Password)
	}

	client, err := clients.NewConfigClient(vo.NacosClientParam{
		ClientConfig:  &clientConfig,
		ServerConfigs: serverConfigs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create config client: %w", err)
	}
	return client, nil
}

// parseNacosServerAddr parses "host[:port][,host[:port]...]". A missing
// port defaults to 8848 and an http:// scheme is ignored.
func parseNacosServerAddr(addr string) ([]constant.ServerConfig, error) {
	var configs []constant.ServerConfig

	for _, part := range strings.Split(addr, ",") {
		part = strings.TrimSpace(part)
		part = strings.TrimPrefix(part, "http://")
		if part == "" {
			continue
		}

		host, portStr, found := strings.Cut(part, ":")
		if host == "" {
			return nil, fmt.Errorf("invalid server address format: %s", part)
		}
		port := uint64(defaultNacosPort)
		if found {
			p, err := strconv.ParseUint(portStr, 10, 16)
			if err != nil {
				return nil, fmt.Errorf("invalid port number: %s", portStr)
			}
			port = p
		}

		configs = append(configs, constant.ServerConfig{IpAddr: host, Port: port})
	}

	if len(configs) == 0 {
		return nil, errors.New("no valid server address found")
	}
	return configs, nil
}

func (r SecretRef) configParam() vo.ConfigParam {
	group := r.Group
	if group == "" {
		group = defaultNacosGroup
	}
	return vo.ConfigParam{DataId: r.DataID, Group: group}
}

// extractSecret picks the referenced value out of a config's content.
func (r SecretRef) extractSecret(content string) (string, error) {
	if r.Field == "" {
		return strings.TrimSpace(content), nil
	}
	if !gjson.Valid(content) {
		return "", fmt.Errorf("config %s is not valid JSON", r.DataID)
	}
	value := gjson.Get(content, r.Field)
	if !value.Exists() {
		return "", fmt.Errorf("field %q not found in config %s", r.Field, r.DataID)
	}
	return value.String(), nil
}

// injectSecret sets the referenced top-level field of a JSON config to value,
// keeping the other fields.
func (r SecretRef) injectSecret(content, value string) (string, error) {
	if strings.ContainsAny(r.Field, ".*?|#@\\") {
		return "", fmt.Errorf("cannot write nested field %q", r.Field)
	}
	doc := map[string]any{}
	if strings.TrimSpace(content) != "" {
		if err := json.Unmarshal([]byte(content), &doc); err != nil {
			return "", fmt.Errorf("config %s is not a JSON object", r.DataID)
		}
	}
	doc[r.Field] = value
	out, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
