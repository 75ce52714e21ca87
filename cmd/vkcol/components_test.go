// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/collector/component"
)

func TestComponents(t *testing.T) {
	factories, err := components()
	require.NoError(t, err)

	assert.Contains(t, factories.Receivers, component.MustNewType("vk_longpoll"))
	assert.Contains(t, factories.Receivers, component.MustNewType("otlp"))
	assert.Contains(t, factories.Processors, component.MustNewType("vk_event"))
	assert.Contains(t, factories.Processors, component.MustNewType("batch"))
	assert.Contains(t, factories.Extensions, component.MustNewType("vkstorage"))
	assert.Contains(t, factories.Extensions, component.MustNewType("vk_admin"))
	assert.Contains(t, factories.Exporters, component.MustNewType("otlphttp"))
	assert.Contains(t, factories.Exporters, component.MustNewType("prometheusremotewrite"))
	assert.Contains(t, factories.Connectors, component.MustNewType("spanmetrics"))
}

func TestSettings(t *testing.T) {
	set := settings(component.BuildInfo{Command: "vkcol", Version: "test"})
	assert.Equal(t, "vkcol", set.BuildInfo.Command)
	assert.Len(t, set.ConfigProviderSettings.ResolverSettings.ProviderFactories, 5)
	require.NotNil(t, set.Factories)
}
