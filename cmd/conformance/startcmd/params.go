/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package startcmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	cmdutils "github.com/trustbloc/cmdutil-go/pkg/utils/cmd"

	"github.com/trustbloc/vc-conformance/cmd/common"
	"github.com/trustbloc/vc-conformance/internal/observability/tracing"
)

const (
	commonEnvVarUsageText = "Alternatively, this can be set with the following environment variable: "

	hostURLFlagName      = "host-url"
	hostURLFlagShorthand = "u"
	hostURLEnvKey        = "CONFORMANCE_HOST_URL"
	hostURLFlagUsage     = "Host:Port to run the conformance service on. " +
		commonEnvVarUsageText + hostURLEnvKey

	contextProviderFlagName  = "context-provider-url"
	contextProviderEnvKey    = "CONFORMANCE_CONTEXT_PROVIDER_URL"
	contextProviderFlagUsage = "Comma-separated list of remote context provider URLs to get JSON-LD contexts from. " +
		commonEnvVarUsageText + contextProviderEnvKey

	remoteContextsFlagName  = "enable-remote-contexts"
	remoteContextsEnvKey    = "CONFORMANCE_ENABLE_REMOTE_CONTEXTS"
	remoteContextsFlagUsage = "Enables fetching of JSON-LD contexts the loader does not hold from their source URL. " +
		"Possible values [true] [false]. Defaults to false if not set. " +
		commonEnvVarUsageText + remoteContextsEnvKey

	tracingExporterFlagName  = "tracing-exporter"
	tracingExporterEnvKey    = "CONFORMANCE_TRACING_EXPORTER"
	tracingExporterFlagUsage = "Span exporter for OpenTelemetry tracing. " +
		"Supported values: JAEGER, STDOUT. Tracing is disabled if not set. " +
		commonEnvVarUsageText + tracingExporterEnvKey
)

type parameters struct {
	hostURL              string
	contextProviderURLs  []string
	enableRemoteContexts bool
	tracingExporter      tracing.SpanExporterType
	logLevel             string
}

func getParameters(cmd *cobra.Command) (*parameters, error) {
	hostURL, err := cmdutils.GetUserSetVarFromString(cmd, hostURLFlagName, hostURLEnvKey, false)
	if err != nil {
		return nil, err
	}

	remoteContextsStr := cmdutils.GetUserSetOptionalVarFromString(cmd, remoteContextsFlagName, remoteContextsEnvKey)

	enableRemoteContexts := false
	if remoteContextsStr != "" {
		if enableRemoteContexts, err = strconv.ParseBool(remoteContextsStr); err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", remoteContextsFlagName, err)
		}
	}

	tracingExporter := cmdutils.GetUserSetOptionalVarFromString(cmd, tracingExporterFlagName, tracingExporterEnvKey)
	if !tracing.IsExporterSupported(tracingExporter) {
		return nil, fmt.Errorf("unsupported tracing exporter: %s", tracingExporter)
	}

	return &parameters{
		hostURL:              hostURL,
		contextProviderURLs:  cmdutils.GetUserSetOptionalCSVVar(cmd, contextProviderFlagName, contextProviderEnvKey),
		enableRemoteContexts: enableRemoteContexts,
		tracingExporter:      tracingExporter,
		logLevel:             cmdutils.GetUserSetOptionalVarFromString(cmd, common.LogLevelFlagName, common.LogLevelEnvKey),
	}, nil
}

func createFlags(cmd *cobra.Command) {
	cmd.Flags().StringP(hostURLFlagName, hostURLFlagShorthand, "", hostURLFlagUsage)
	cmd.Flags().StringSlice(contextProviderFlagName, nil, contextProviderFlagUsage)
	cmd.Flags().String(remoteContextsFlagName, "", remoteContextsFlagUsage)
	cmd.Flags().String(tracingExporterFlagName, "", tracingExporterFlagUsage)
	cmd.Flags().StringP(common.LogLevelFlagName, "l", "", common.LogLevelFlagUsage)
}
