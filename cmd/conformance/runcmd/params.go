/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package runcmd

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

	configFlagName      = "config"
	configFlagShorthand = "c"
	configEnvKey        = "CONFORMANCE_CONFIG"
	configFlagUsage     = "Path of the conformance configuration file. " +
		commonEnvVarUsageText + configEnvKey

	implementationsFlagName      = "implementations"
	implementationsFlagShorthand = "i"
	implementationsEnvKey        = "CONFORMANCE_IMPLEMENTATIONS"
	implementationsFlagUsage     = "Path of an implementations manifest file or of a directory of manifests. " +
		"Overrides the path from the configuration file. " + commonEnvVarUsageText + implementationsEnvKey

	reportFlagName      = "report"
	reportFlagShorthand = "r"
	reportEnvKey        = "CONFORMANCE_REPORT"
	reportFlagUsage     = "Path the JSON conformance report is written to. " +
		"Overrides the path from the configuration file. " + commonEnvVarUsageText + reportEnvKey

	tagFlagName  = "tag"
	tagEnvKey    = "CONFORMANCE_TAGS"
	tagFlagUsage = "Implementation endpoint tags in scope for the run, as a comma-separated list. " +
		"Overrides the tags from the configuration file. " + commonEnvVarUsageText + tagEnvKey

	contextProviderFlagName  = "context-provider-url"
	contextProviderEnvKey    = "CONFORMANCE_CONTEXT_PROVIDER_URL"
	contextProviderFlagUsage = "Comma-separated list of remote context provider URLs to get JSON-LD contexts from. " +
		commonEnvVarUsageText + contextProviderEnvKey

	remoteContextsFlagName  = "enable-remote-contexts"
	remoteContextsEnvKey    = "CONFORMANCE_ENABLE_REMOTE_CONTEXTS"
	remoteContextsFlagUsage = "Enables fetching of JSON-LD contexts the loader does not hold from their source URL. " +
		"Possible values [true] [false]. Defaults to false if not set. " +
		commonEnvVarUsageText + remoteContextsEnvKey

	concurrencyFlagName  = "concurrency"
	concurrencyEnvKey    = "CONFORMANCE_CONCURRENCY"
	concurrencyFlagUsage = "Number of concurrent workers executing test cases. " +
		"Overrides the value from the configuration file. " + commonEnvVarUsageText + concurrencyEnvKey

	debugFlagName  = "debug"
	debugEnvKey    = "CONFORMANCE_DEBUG"
	debugFlagUsage = "Enables dumping of the HTTP requests and responses exchanged with the implementations. " +
		"Possible values [true] [false]. Defaults to false if not set. " +
		commonEnvVarUsageText + debugEnvKey

	tracingExporterFlagName  = "tracing-exporter"
	tracingExporterEnvKey    = "CONFORMANCE_TRACING_EXPORTER"
	tracingExporterFlagUsage = "Span exporter for OpenTelemetry tracing. " +
		"Supported values: JAEGER, STDOUT. Tracing is disabled if not set. " +
		commonEnvVarUsageText + tracingExporterEnvKey
)

type parameters struct {
	configPath           string
	implementationsPath  string
	reportPath           string
	tags                 []string
	concurrency          int
	debug                bool
	contextProviderURLs  []string
	enableRemoteContexts bool
	tracingExporter      tracing.SpanExporterType
	logLevel             string
}

func getParameters(cmd *cobra.Command) (*parameters, error) {
	configPath, err := cmdutils.GetUserSetVarFromString(cmd, configFlagName, configEnvKey, false)
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

	concurrency := 0

	if concurrencyStr := cmdutils.GetUserSetOptionalVarFromString(cmd, concurrencyFlagName, concurrencyEnvKey); concurrencyStr != "" { //nolint:lll
		if concurrency, err = strconv.Atoi(concurrencyStr); err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", concurrencyFlagName, err)
		}

		if concurrency <= 0 {
			return nil, fmt.Errorf("invalid value for %s: must be greater than zero", concurrencyFlagName)
		}
	}

	debug := false

	if debugStr := cmdutils.GetUserSetOptionalVarFromString(cmd, debugFlagName, debugEnvKey); debugStr != "" {
		if debug, err = strconv.ParseBool(debugStr); err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", debugFlagName, err)
		}
	}

	tracingExporter := cmdutils.GetUserSetOptionalVarFromString(cmd, tracingExporterFlagName, tracingExporterEnvKey)
	if !tracing.IsExporterSupported(tracingExporter) {
		return nil, fmt.Errorf("unsupported tracing exporter: %s", tracingExporter)
	}

	return &parameters{
		configPath:           configPath,
		implementationsPath:  cmdutils.GetUserSetOptionalVarFromString(cmd, implementationsFlagName, implementationsEnvKey),
		reportPath:           cmdutils.GetUserSetOptionalVarFromString(cmd, reportFlagName, reportEnvKey),
		tags:                 cmdutils.GetUserSetOptionalCSVVar(cmd, tagFlagName, tagEnvKey),
		concurrency:          concurrency,
		debug:                debug,
		contextProviderURLs:  cmdutils.GetUserSetOptionalCSVVar(cmd, contextProviderFlagName, contextProviderEnvKey),
		enableRemoteContexts: enableRemoteContexts,
		tracingExporter:      tracingExporter,
		logLevel:             cmdutils.GetUserSetOptionalVarFromString(cmd, common.LogLevelFlagName, common.LogLevelEnvKey),
	}, nil
}

func createFlags(cmd *cobra.Command) {
	cmd.Flags().StringP(configFlagName, configFlagShorthand, "", configFlagUsage)
	cmd.Flags().StringP(implementationsFlagName, implementationsFlagShorthand, "", implementationsFlagUsage)
	cmd.Flags().StringP(reportFlagName, reportFlagShorthand, "", reportFlagUsage)
	cmd.Flags().StringSlice(tagFlagName, nil, tagFlagUsage)
	cmd.Flags().String(concurrencyFlagName, "", concurrencyFlagUsage)
	cmd.Flags().String(debugFlagName, "", debugFlagUsage)
	cmd.Flags().StringSlice(contextProviderFlagName, nil, contextProviderFlagUsage)
	cmd.Flags().String(remoteContextsFlagName, "", remoteContextsFlagUsage)
	cmd.Flags().String(tracingExporterFlagName, "", tracingExporterFlagUsage)
	cmd.Flags().StringP(common.LogLevelFlagName, "l", "", common.LogLevelFlagUsage)
}
