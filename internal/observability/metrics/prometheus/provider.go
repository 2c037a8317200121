/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package prometheus

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/trustbloc/logutil-go/pkg/log"

	"github.com/trustbloc/vc-conformance/internal/observability/metrics"
)

var logger = metrics.Logger

var (
	createOnce sync.Once       //nolint:gochecknoglobals
	instance   metrics.Metrics //nolint:gochecknoglobals
)

type promProvider struct {
	httpServer *http.Server
}

// NewPrometheusProvider creates new instance of Prometheus Metrics Provider.
func NewPrometheusProvider(httpServer *http.Server) metrics.Provider {
	return &promProvider{httpServer: httpServer}
}

// Create creates/initializes the prometheus metrics provider.
func (pp *promProvider) Create() error {
	if pp.httpServer == nil {
		return nil
	}

	go func() {
		if err := pp.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics HTTP server closed unexpectedly", log.WithError(err))
		}
	}()

	return nil
}

// Metrics returns supported metrics.
func (pp *promProvider) Metrics() metrics.Metrics {
	return GetMetrics()
}

// Destroy destroys the prometheus metrics provider.
func (pp *promProvider) Destroy() error {
	if pp.httpServer != nil {
		return pp.httpServer.Shutdown(context.Background())
	}

	return nil
}

// GetMetrics returns metrics implementation.
func GetMetrics() metrics.Metrics {
	createOnce.Do(func() {
		instance = NewMetrics()
	})

	return instance
}

// PromMetrics manages the metrics for the conformance suite.
type PromMetrics struct {
	issueTime  prometheus.Histogram
	verifyTime prometheus.Histogram
	deriveTime prometheus.Histogram
	cases      *prometheus.CounterVec
}

// NewMetrics creates instance of prometheus metrics.
func NewMetrics() metrics.Metrics {
	pm := &PromMetrics{
		issueTime:  newIssueTime(),
		verifyTime: newVerifyTime(),
		deriveTime: newDeriveTime(),
		cases:      newCases(),
	}

	registerMetrics(pm)

	return pm
}

// IssueTime records the time of an issuer endpoint call.
func (pm *PromMetrics) IssueTime(value time.Duration) {
	pm.issueTime.Observe(value.Seconds())

	logger.Debug("issue endpoint call time", log.WithDuration(value))
}

// VerifyTime records the time of a verifier endpoint call.
func (pm *PromMetrics) VerifyTime(value time.Duration) {
	pm.verifyTime.Observe(value.Seconds())

	logger.Debug("verify endpoint call time", log.WithDuration(value))
}

// DeriveTime records the time of a holder derive endpoint call.
func (pm *PromMetrics) DeriveTime(value time.Duration) {
	pm.deriveTime.Observe(value.Seconds())

	logger.Debug("derive endpoint call time", log.WithDuration(value))
}

// CaseCompleted counts a completed test case by outcome.
func (pm *PromMetrics) CaseCompleted(outcome string) {
	pm.cases.WithLabelValues(outcome).Inc()
}

func registerMetrics(pm *PromMetrics) {
	prometheus.MustRegister(
		pm.issueTime, pm.verifyTime, pm.deriveTime, pm.cases,
	)
}

func newHistogram(subsystem, name, help string, labels prometheus.Labels) prometheus.Histogram {
	return prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   metrics.Namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: labels,
	})
}

func newCounterVec(subsystem, name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

func newIssueTime() prometheus.Histogram {
	return newHistogram(
		metrics.VCAPI, metrics.VCAPIIssueTimeMetric,
		"The time (in seconds) it takes to call an issuer endpoint.",
		nil,
	)
}

func newVerifyTime() prometheus.Histogram {
	return newHistogram(
		metrics.VCAPI, metrics.VCAPIVerifyTimeMetric,
		"The time (in seconds) it takes to call a verifier endpoint.",
		nil,
	)
}

func newDeriveTime() prometheus.Histogram {
	return newHistogram(
		metrics.VCAPI, metrics.VCAPIDeriveTimeMetric,
		"The time (in seconds) it takes to call a holder derive endpoint.",
		nil,
	)
}

func newCases() *prometheus.CounterVec {
	return newCounterVec(
		metrics.Runner, metrics.RunnerCasesMetric,
		"The number of completed test cases by outcome.",
		[]string{"outcome"},
	)
}
