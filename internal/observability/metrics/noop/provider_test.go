/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package noop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGetMetrics(t *testing.T) {
	m := GetMetrics()
	require.NotNil(t, m)

	require.NotPanics(t, func() { m.IssueTime(time.Second) })
	require.NotPanics(t, func() { m.VerifyTime(time.Second) })
	require.NotPanics(t, func() { m.DeriveTime(time.Second) })
	require.NotPanics(t, func() { m.CaseCompleted("passed") })
}
