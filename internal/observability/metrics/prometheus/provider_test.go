/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package prometheus

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestPromProvider(t *testing.T) {
	provider := NewPrometheusProvider(nil)
	require.NotNil(t, provider)

	err := provider.Create()
	require.NoError(t, err)

	m := provider.Metrics()
	require.NotNil(t, m)

	err = provider.Destroy()
	require.NoError(t, err)
}

func TestMetrics(t *testing.T) {
	m := GetMetrics()
	require.NotNil(t, m)
	require.True(t, m == GetMetrics())

	require.NotPanics(t, func() { m.IssueTime(time.Second) })
	require.NotPanics(t, func() { m.VerifyTime(time.Second) })
	require.NotPanics(t, func() { m.DeriveTime(time.Second) })
	require.NotPanics(t, func() { m.CaseCompleted("passed") })
	require.NotPanics(t, func() { m.CaseCompleted("failed") })
}

func TestNewHandler(t *testing.T) {
	GetMetrics().CaseCompleted("passed")

	rec := httptest.NewRecorder()

	NewHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "conformance_runner_cases_total")
}

func TestNewHistogram(t *testing.T) {
	labels := prometheus.Labels{"type": "create"}

	require.NotNil(t, newHistogram("vcapi", "metric_name", "Some help", labels))
}

func TestNewCounterVec(t *testing.T) {
	require.NotNil(t, newCounterVec("runner", "metric_name", "Some help", []string{"outcome"}))
}
