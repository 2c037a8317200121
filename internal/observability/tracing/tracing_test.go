/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package tracing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitialize(t *testing.T) {
	t.Run("Provider NONE", func(t *testing.T) {
		shutdown, tracer, err := Initialize("", "service1")
		require.NoError(t, err)
		require.NotNil(t, shutdown)
		require.NotNil(t, tracer)
		require.NotPanics(t, shutdown)
	})

	t.Run("Provider STDOUT", func(t *testing.T) {
		shutdown, tracer, err := Initialize(Stdout, "service1")
		require.NoError(t, err)
		require.NotNil(t, shutdown)
		require.NotNil(t, tracer)
		require.NotPanics(t, shutdown)
	})

	t.Run("Provider JAEGER without endpoint", func(t *testing.T) {
		shutdown, tracer, err := Initialize(Jaeger, "service1")
		require.Error(t, err)
		require.Contains(t, err.Error(), "neither agent nor collector endpoint is provided")
		require.Nil(t, shutdown)
		require.Nil(t, tracer)
	})

	t.Run("Unsupported provider", func(t *testing.T) {
		shutdown, tracer, err := Initialize("unsupported", "service1")
		require.Error(t, err)
		require.Contains(t, err.Error(), "unsupported exporter type")
		require.Nil(t, shutdown)
		require.Nil(t, tracer)
	})
}

func TestIsExporterSupported(t *testing.T) {
	require.True(t, IsExporterSupported(None))
	require.True(t, IsExporterSupported(Stdout))
	require.True(t, IsExporterSupported(Jaeger))
	require.False(t, IsExporterSupported("unsupported"))
}
