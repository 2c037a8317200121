/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package noop

import (
	"time"

	"github.com/trustbloc/vc-conformance/internal/observability/metrics"
)

// NoMetrics provides default no operation implementation for the Metrics interface.
type NoMetrics struct{}

// GetMetrics returns metrics implementation.
func GetMetrics() metrics.Metrics {
	return &NoMetrics{}
}

func (n *NoMetrics) IssueTime(_ time.Duration)  {}
func (n *NoMetrics) VerifyTime(_ time.Duration) {}
func (n *NoMetrics) DeriveTime(_ time.Duration) {}
func (n *NoMetrics) CaseCompleted(_ string)     {}
