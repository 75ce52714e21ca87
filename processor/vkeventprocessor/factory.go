// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package vkeventprocessor

import (
	"context"

	"go.opentelemetry.io/collector/component"
	"go.opentelemetry.io/collector/consumer"
	"go.opentelemetry.io/collector/processor"
)

const (
	// TypeStr is the type string for the VK event processor.
	TypeStr = "vk_event"
)

// Type is the component type.
var Type = component.MustNewType(TypeStr)

// NewFactory creates a new factory for the VK event processor.
func NewFactory() processor.Factory {
	return processor.NewFactory(
		Type,
		createDefaultConfig,
		processor.WithLogs(createLogsProcessor, component.StabilityLevelAlpha),
	)
}

// createLogsProcessor creates a logs processor.
func createLogsProcessor(
	_ context.Context,
	set processor.Settings,
	cfg component.Config,
	nextConsumer consumer.Logs,
) (processor.Logs, error) {
	return newVKEventProcessor(set, cfg.(*Config), nextConsumer)
}
