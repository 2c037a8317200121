/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package startcmd implements the "start" command: a long-running service
// that executes conformance runs on request and serves their results.
package startcmd

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/bluele/gcache"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/piprate/json-gold/ld"
	"github.com/spf13/cobra"
	"github.com/trustbloc/logutil-go/pkg/log"
	"go.opentelemetry.io/otel/trace"

	"github.com/trustbloc/vc-conformance/cmd/common"
	"github.com/trustbloc/vc-conformance/internal/ldutil"
	"github.com/trustbloc/vc-conformance/internal/localissuer"
	"github.com/trustbloc/vc-conformance/internal/logfields"
	"github.com/trustbloc/vc-conformance/internal/observability/metrics"
	"github.com/trustbloc/vc-conformance/internal/observability/metrics/prometheus"
	"github.com/trustbloc/vc-conformance/internal/observability/tracing"
	"github.com/trustbloc/vc-conformance/pkg/config"
	"github.com/trustbloc/vc-conformance/pkg/registry"
	"github.com/trustbloc/vc-conformance/pkg/report"
	"github.com/trustbloc/vc-conformance/pkg/runner"
	"github.com/trustbloc/vc-conformance/pkg/vcapi"
)

var logger = log.New("conformance-start")

const (
	serviceName = "vc-conformance"

	resultCacheSize = 100

	stateRunning            = "running"
	stateComplete           = "complete"
	stateCompleteWithErrors = "complete with errors"
	stateFailed             = "failed"
)

// GetStartCmd returns the "start" command.
func GetStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "start",
		Short:        "Starts the conformance service",
		Long:         "Starts a service that executes conformance runs on request and serves their results",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := getParameters(cmd)
			if err != nil {
				return err
			}

			return start(params)
		},
	}

	createFlags(cmd)

	return cmd
}

func start(params *parameters) error {
	common.SetDefaultLogLevel(logger, params.logLevel)

	shutdown, tracer, err := tracing.Initialize(params.tracingExporter, serviceName)
	if err != nil {
		return fmt.Errorf("initialize tracing: %w", err)
	}

	defer shutdown()

	httpClient := vcapi.NewHTTPClient(&tls.Config{MinVersion: tls.VersionTLS12}, false)

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

	svc, err := newService(documentLoader, httpClient, tracer, prometheus.GetMetrics())
	if err != nil {
		return err
	}

	logger.Info("Starting conformance service", logfields.WithHostURL(params.hostURL))

	return svc.echo.Start(params.hostURL)
}

// runRequest submits a conformance run. Implementations given inline take
// precedence over the manifest path in the configuration.
type runRequest struct {
	ID              string                     `json:"id,omitempty"`
	Config          *config.Config             `json:"config"`
	Implementations []*registry.Implementation `json:"implementations,omitempty"`
}

type runResult struct {
	ID         string           `json:"id"`
	State      string           `json:"state"`
	HostName   string           `json:"hostName,omitempty"`
	StartedAt  time.Time        `json:"startedAt"`
	FinishedAt *time.Time       `json:"finishedAt,omitempty"`
	Errors     []string         `json:"errors,omitempty"`
	Report     *report.Document `json:"report,omitempty"`
}

type service struct {
	echo       *echo.Echo
	results    gcache.Cache
	loader     ld.DocumentLoader
	httpClient *http.Client
	tracer     trace.Tracer
	metrics    metrics.Metrics
	signer     *localissuer.Signer
	hostName   string
}

func newService(documentLoader ld.DocumentLoader, httpClient *http.Client, tracer trace.Tracer,
	m metrics.Metrics) (*service, error) {
	signer, err := localissuer.New(documentLoader)
	if err != nil {
		return nil, fmt.Errorf("create local issuer: %w", err)
	}

	hostName, _ := os.Hostname() //nolint:errcheck // host name is informational

	s := &service{
		echo:       echo.New(),
		results:    gcache.New(resultCacheSize).LRU().Build(),
		loader:     documentLoader,
		httpClient: httpClient,
		tracer:     tracer,
		metrics:    m,
		signer:     signer,
		hostName:   hostName,
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true

	s.echo.POST("/runs", s.submitRun)
	s.echo.GET("/runs/:id", s.getRun)
	s.echo.GET("/metrics", echo.WrapHandler(prometheus.NewHandler()))
	s.echo.GET("/healthcheck", s.healthcheck)

	return s, nil
}

func (s *service) submitRun(c echo.Context) error {
	var req runRequest

	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(fmt.Errorf("decode run request: %w", err)))
	}

	if req.Config == nil {
		return c.JSON(http.StatusBadRequest, errorBody(fmt.Errorf("run request carries no config")))
	}

	req.Config.SetDefaults()

	if err := req.Config.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(err))
	}

	reg, err := s.loadRegistry(&req)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(err))
	}

	id := uuid.NewString()

	if req.ID != "" {
		if v, _ := s.results.Get(req.ID); v != nil { //nolint:errcheck // a cache miss is not an error
			return c.String(http.StatusConflict, "job already running on this node")
		}

		id = req.ID
	}

	r, err := runner.New(
		runner.WithConfig(req.Config),
		runner.WithRegistry(reg),
		runner.WithHTTPClient(s.httpClient),
		runner.WithDocumentLoader(s.loader),
		runner.WithTracer(s.tracer),
		runner.WithMetrics(s.metrics),
		runner.WithLocalIssuer(s.signer))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(err))
	}

	s.setResult(&runResult{
		ID:        id,
		State:     stateRunning,
		HostName:  s.hostName,
		StartedAt: time.Now().UTC(),
	})

	go s.executeRun(id, r)

	logger.Info("Accepted conformance run", logfields.WithJobID(id))

	return c.JSON(http.StatusAccepted, map[string]string{"id": id})
}

func (s *service) executeRun(id string, r *runner.Runner) {
	started := time.Now().UTC()

	matrix, err := r.Run(context.Background())

	now := time.Now().UTC()

	result := &runResult{
		ID:         id,
		State:      stateComplete,
		HostName:   s.hostName,
		StartedAt:  started,
		FinishedAt: &now,
		Report:     matrix.Document(),
	}

	if err != nil {
		logger.Error("Conformance run failed", logfields.WithJobID(id), log.WithError(err))

		result.State = stateFailed
		result.Errors = []string{err.Error()}
	} else if result.Report.Summary.Failed > 0 {
		result.State = stateCompleteWithErrors
	}

	s.setResult(result)
}

func (s *service) getRun(c echo.Context) error {
	item, _ := s.results.Get(c.Param("id")) //nolint:errcheck // a cache miss is not an error
	if item == nil {
		return c.JSON(http.StatusNotFound, errorBody(fmt.Errorf("unknown run id %q", c.Param("id"))))
	}

	return c.JSON(http.StatusOK, item)
}

func (s *service) healthcheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":      "success",
		"currentTime": time.Now().UTC(),
	})
}

func (s *service) loadRegistry(req *runRequest) (*registry.Registry, error) {
	if len(req.Implementations) > 0 {
		return registry.New(req.Implementations...)
	}

	if req.Config.Implementations == "" {
		return nil, fmt.Errorf("run request names no implementations")
	}

	return registry.Load(req.Config.Implementations)
}

func (s *service) setResult(result *runResult) {
	if err := s.results.Set(result.ID, result); err != nil {
		logger.Warn("Failed to cache run result", logfields.WithJobID(result.ID), log.WithError(err))
	}
}

func errorBody(err error) map[string][]string {
	return map[string][]string{"errors": {err.Error()}}
}
