/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package metrics

import (
	"time"

	"github.com/trustbloc/logutil-go/pkg/log"
)

// Logger used by different metrics provider.
var Logger = log.New("metrics-provider")

// Constants used by different metrics provider.
const (
	// Namespace Organization namespace.
	Namespace = "conformance"

	// VCAPI client operations.
	VCAPI                 = "vcapi"
	VCAPIIssueTimeMetric  = "issue_seconds"
	VCAPIVerifyTimeMetric = "verify_seconds"
	VCAPIDeriveTimeMetric = "derive_seconds"

	// Runner operations.
	Runner            = "runner"
	RunnerCasesMetric = "cases_total"
)

// Provider is an interface for metrics provider.
type Provider interface {
	// Create creates a metrics provider instance
	Create() error
	// Destroy destroys the metrics provider instance
	Destroy() error
	// Metrics providers metrics
	Metrics() Metrics
}

// Metrics is an interface for the metrics to be supported by the provider.
type Metrics interface {
	IssueTime(value time.Duration)
	VerifyTime(value time.Duration)
	DeriveTime(value time.Duration)
	CaseCompleted(outcome string)
}
