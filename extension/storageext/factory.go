// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package storageext

import (
	"context"

	"go.opentelemetry.io/collector/component"
	"go.opentelemetry.io/collector/extension"
)

const (
	// TypeStr is the type string for this extension.
	TypeStr = "vkstorage"
)

// Type is the component type for this extension.
var Type = component.MustNewType(TypeStr)

// NewFactory creates a factory for the storage extension.
func NewFactory() extension.Factory {
	return extension.NewFactory(
		Type,
		func() component.Config {
			return createDefaultConfig()
		},
		func(ctx context.Context, set extension.Settings, cfg component.Config) (extension.Extension, error) {
			return newStorageExtension(ctx, set, cfg.(*Config))
		},
		component.StabilityLevelAlpha,
	)
}
