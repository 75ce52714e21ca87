// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package vklongpollreceiver

import (
	"context"

	"go.opentelemetry.io/collector/component"
	"go.opentelemetry.io/collector/consumer"
	"go.opentelemetry.io/collector/receiver"
)

const (
	// TypeStr is the type string for this receiver.
	TypeStr = "vk_longpoll"
)

var (
	// Type is the component type for this receiver.
	Type = component.MustNewType(TypeStr)
)

// NewFactory creates a new factory for the VK long poll receiver.
func NewFactory() receiver.Factory {
	return receiver.NewFactory(
		Type,
		func() component.Config {
			return createDefaultConfig()
		},
		receiver.WithLogs(createLogsReceiver, component.StabilityLevelAlpha),
	)
}

// createLogsReceiver creates a logs receiver.
func createLogsReceiver(
	_ context.Context,
	set receiver.Settings,
	cfg component.Config,
	nextConsumer consumer.Logs,
) (receiver.Logs, error) {
	return newVKLongPollReceiver(set, cfg.(*Config), nextConsumer)
}
