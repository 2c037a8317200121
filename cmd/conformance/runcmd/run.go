/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package runcmd implements the "run" command: it executes the conformance
// test cases against the registered implementations and writes the report.
package runcmd

import (
	"crypto/tls"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/trustbloc/logutil-go/pkg/log"

	"github.com/trustbloc/vc-conformance/cmd/common"
	"github.com/trustbloc/vc-conformance/internal/ldutil"
	"github.com/trustbloc/vc-conformance/internal/localissuer"
	"github.com/trustbloc/vc-conformance/internal/logfields"
	"github.com/trustbloc/vc-conformance/internal/observability/tracing"
	"github.com/trustbloc/vc-conformance/pkg/config"
	"github.com/trustbloc/vc-conformance/pkg/registry"
	"github.com/trustbloc/vc-conformance/pkg/report"
	"github.com/trustbloc/vc-conformance/pkg/runner"
	"github.com/trustbloc/vc-conformance/pkg/vcapi"
)

var logger = log.New("conformance-run")

const serviceName = "vc-conformance"

// GetRunCmd returns the "run" command.
func GetRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "run",
		Short:        "Runs the conformance test cases",
		Long:         "Runs the conformance test cases against the registered implementations and writes the report",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := getParameters(cmd)
			if err != nil {
				return err
			}

			return execute(cmd, params)
		},
	}

	createFlags(cmd)

	return cmd
}

func execute(cmd *cobra.Command, params *parameters) error {
	common.SetDefaultLogLevel(logger, params.logLevel)

	cfg, err := config.Load(params.configPath)
	if err != nil {
		return err
	}

	applyOverrides(cfg, params)

	if cfg.Implementations == "" {
		return fmt.Errorf("no implementations manifest: set it in the configuration file or with --%s",
			implementationsFlagName)
	}

	reg, err := registry.Load(cfg.Implementations)
	if err != nil {
		return err
	}

	shutdown, tracer, err := tracing.Initialize(params.tracingExporter, serviceName)
	if err != nil {
		return fmt.Errorf("initialize tracing: %w", err)
	}

	defer shutdown()

	httpClient := vcapi.NewHTTPClient(&tls.Config{
		InsecureSkipVerify: cfg.HTTP.TLSSkipVerify, //nolint:gosec // operator opt-in for test deployments
		MinVersion:         tls.VersionTLS12,
	}, cfg.HTTP.Debug)

	loaderOpts := []ldutil.Opt{
		ldutil.WithContextProviderURL(params.contextProviderURLs...),
		ldutil.WithHTTPClient(httpClient),
	}

	if params.enableRemoteContexts {
		loaderOpts = append(loaderOpts, ldutil.WithRemoteContexts())
	}

	documentLoader, err := ldutil.DocumentLoader(loaderOpts...)
	if err != nil {
		return err
	}

	signer, err := localissuer.New(documentLoader)
	if err != nil {
		return fmt.Errorf("create local issuer: %w", err)
	}

	r, err := runner.New(
		runner.WithConfig(cfg),
		runner.WithRegistry(reg),
		runner.WithHTTPClient(httpClient),
		runner.WithDocumentLoader(documentLoader),
		runner.WithTracer(tracer),
		runner.WithLocalIssuer(signer))
	if err != nil {
		return err
	}

	matrix, err := r.Run(cmd.Context())
	if err != nil {
		return err
	}

	if err := writeReport(matrix, cfg.ReportPath); err != nil {
		return err
	}

	if err := matrix.WriteSummary(cmd.OutOrStdout()); err != nil {
		return err
	}

	if failed := matrix.Summary().Failed; failed > 0 {
		return fmt.Errorf("%d conformance test cases failed", failed)
	}

	return nil
}

func applyOverrides(cfg *config.Config, params *parameters) {
	if params.implementationsPath != "" {
		cfg.Implementations = params.implementationsPath
	}

	if params.reportPath != "" {
		cfg.ReportPath = params.reportPath
	}

	if len(params.tags) > 0 {
		cfg.Tags = params.tags
	}

	if params.concurrency > 0 {
		cfg.Concurrency = params.concurrency
	}

	if params.debug {
		cfg.HTTP.Debug = true
	}
}

func writeReport(matrix *report.Matrix, path string) error {
	if path == "" {
		return nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}

	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}

	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			logger.Warn("Failed to close report file", log.WithError(closeErr))
		}
	}()

	if err := matrix.WriteJSON(f); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	logger.Info("Wrote conformance report", logfields.WithPath(path))

	return nil
}
