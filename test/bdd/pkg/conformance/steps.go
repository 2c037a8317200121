/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package conformance provides BDD steps that exercise conformance runs
// against an in-process interop VC implementation.
package conformance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/cucumber/godog"
	"github.com/rdumont/assistdog"
	"github.com/trustbloc/logutil-go/pkg/log"

	"github.com/trustbloc/vc-conformance/cmd/conformance/startcmd"
	"github.com/trustbloc/vc-conformance/internal/interopserver"
	"github.com/trustbloc/vc-conformance/internal/ldutil"
	"github.com/trustbloc/vc-conformance/pkg/config"
	"github.com/trustbloc/vc-conformance/pkg/registry"
	"github.com/trustbloc/vc-conformance/pkg/report"
	"github.com/trustbloc/vc-conformance/pkg/runner"
)

var logger = log.New("bdd-conformance")

const (
	runTag             = "interop"
	implementationName = "vc-conformance-interop"

	servicePollInterval = 100 * time.Millisecond
	serviceStartTimeout = 10 * time.Second
	runTimeout          = 60 * time.Second
)

// Steps holds the state shared by the conformance scenario steps.
type Steps struct {
	interop    *interopserver.Server
	interopSrv *httptest.Server
	cfg        *config.Config
	matrix     *report.Matrix
	serviceURL string
	runID      string
	runState   string
}

// NewSteps returns the conformance BDD steps.
func NewSteps() *Steps {
	return &Steps{}
}

// RegisterSteps registers the conformance steps with the scenario context.
func (s *Steps) RegisterSteps(sc *godog.ScenarioContext) {
	sc.Step(`^an interop VC service is running$`, s.startInteropService)
	sc.Step(`^a conformance run is configured from table:$`, s.configureRun)
	sc.Step(`^the conformance run is executed$`, s.executeRun)
	sc.Step(`^the report has no failed test cases$`, s.checkNoFailures)
	sc.Step(`^the report records "([^"]*)" for "([^"]*)" of cryptosuite "([^"]*)" version "([^"]*)" with key type "([^"]*)"$`, s.checkCell) //nolint:lll
	sc.Step(`^the conformance service is started$`, s.startService)
	sc.Step(`^a run request is submitted for cryptosuite "([^"]*)"$`, s.submitRunRequest)
	sc.Step(`^the run completes with state "([^"]*)"$`, s.awaitRunState)

	sc.After(func(ctx context.Context, _ *godog.Scenario, _ error) (context.Context, error) {
		if s.interopSrv != nil {
			s.interopSrv.Close()
		}

		*s = Steps{}

		return ctx, nil
	})
}

func (s *Steps) startInteropService() error {
	documentLoader, err := ldutil.DocumentLoader()
	if err != nil {
		return fmt.Errorf("create document loader: %w", err)
	}

	s.interop, err = interopserver.New(documentLoader)
	if err != nil {
		return fmt.Errorf("create interop service: %w", err)
	}

	s.interopSrv = httptest.NewServer(s.interop.Handler())

	logger.Info("Started interop VC service", log.WithURL(s.interopSrv.URL))

	return nil
}

type runParams struct {
	SuiteName  string
	Suites     string
	KeyTypes   string
	VCVersions string
}

func (s *Steps) configureRun(table *godog.Table) error {
	rows, err := assistdog.NewDefault().CreateSlice(&runParams{}, table)
	if err != nil {
		return fmt.Errorf("parse run table: %w", err)
	}

	params, ok := rows.([]*runParams)
	if !ok || len(params) == 0 {
		return fmt.Errorf("run table carries no rows")
	}

	p := params[0]

	s.cfg = &config.Config{
		SuiteName:  p.SuiteName,
		Suites:     splitCSV(p.Suites),
		Tags:       []string{runTag},
		KeyTypes:   splitCSV(p.KeyTypes),
		VCVersions: splitCSV(p.VCVersions),
	}

	s.cfg.SetDefaults()

	return s.cfg.Validate()
}

func (s *Steps) executeRun() error {
	if s.interop == nil {
		return fmt.Errorf("interop VC service is not running")
	}

	if s.cfg == nil {
		return fmt.Errorf("conformance run is not configured")
	}

	reg, err := registry.New(s.interop.Implementation(s.interopSrv.URL, runTag))
	if err != nil {
		return fmt.Errorf("build registry: %w", err)
	}

	documentLoader, err := ldutil.DocumentLoader()
	if err != nil {
		return fmt.Errorf("create document loader: %w", err)
	}

	r, err := runner.New(
		runner.WithConfig(s.cfg),
		runner.WithRegistry(reg),
		runner.WithHTTPClient(s.interopSrv.Client()),
		runner.WithDocumentLoader(documentLoader),
		runner.WithLocalIssuer(s.interop.Signer()))
	if err != nil {
		return fmt.Errorf("create runner: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	s.matrix, err = r.Run(ctx)
	if err != nil {
		return fmt.Errorf("execute conformance run: %w", err)
	}

	return nil
}

func (s *Steps) checkNoFailures() error {
	if s.matrix == nil {
		return fmt.Errorf("no conformance run has been executed")
	}

	summary := s.matrix.Summary()

	if summary.Total == 0 {
		return fmt.Errorf("conformance run executed no test cases")
	}

	if summary.Failed == 0 {
		return nil
	}

	var failed []string

	for _, row := range s.matrix.Rows() {
		for _, column := range s.matrix.Columns() {
			if cell := s.matrix.CellAt(row, column); cell != nil && cell.Outcome == report.OutcomeFailed {
				failed = append(failed, fmt.Sprintf("%s / %s: %s", row, column, cell.Message))
			}
		}
	}

	return fmt.Errorf("%d test cases failed:\n%s", summary.Failed, strings.Join(failed, "\n"))
}

func (s *Steps) checkCell(outcome, assertion, cryptosuite, version, keyType string) error {
	if s.matrix == nil {
		return fmt.Errorf("no conformance run has been executed")
	}

	row := fmt.Sprintf("%s [%s]: %s", cryptosuite, version, assertion)
	column := fmt.Sprintf("%s (%s)", implementationName, keyType)

	cell := s.matrix.CellAt(row, column)
	if cell == nil {
		return fmt.Errorf("report has no cell at %q / %q", row, column)
	}

	if string(cell.Outcome) != outcome {
		return fmt.Errorf("expected %q at %q / %q, got %q: %s", outcome, row, column, cell.Outcome, cell.Message)
	}

	return nil
}

func (s *Steps) startService() error {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("allocate service port: %w", err)
	}

	hostURL := listener.Addr().String()

	if err = listener.Close(); err != nil {
		return fmt.Errorf("release service port: %w", err)
	}

	cmd := startcmd.GetStartCmd()
	cmd.SetArgs([]string{"--host-url", hostURL})

	go func() {
		if execErr := cmd.Execute(); execErr != nil {
			logger.Error("Conformance service stopped", log.WithError(execErr))
		}
	}()

	s.serviceURL = "http://" + hostURL

	return s.waitForService()
}

func (s *Steps) waitForService() error {
	deadline := time.Now().Add(serviceStartTimeout)

	for time.Now().Before(deadline) {
		resp, err := http.Get(s.serviceURL + "/healthcheck") //nolint:noctx,gosec // local test service
		if err == nil {
			_ = resp.Body.Close() //nolint:errcheck

			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}

		time.Sleep(servicePollInterval)
	}

	return fmt.Errorf("conformance service did not start within %s", serviceStartTimeout)
}

func (s *Steps) submitRunRequest(cryptosuite string) error {
	if s.interop == nil {
		return fmt.Errorf("interop VC service is not running")
	}

	if s.serviceURL == "" {
		return fmt.Errorf("conformance service is not running")
	}

	request := map[string]interface{}{
		"config": map[string]interface{}{
			"suiteName":  "bdd conformance run",
			"suites":     []string{cryptosuite},
			"tags":       []string{runTag},
			"keyTypes":   []string{"P-256"},
			"vcVersions": []string{"1.1", "2.0"},
		},
		"implementations": []*registry.Implementation{
			s.interop.Implementation(s.interopSrv.URL, runTag),
		},
	}

	body, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("marshal run request: %w", err)
	}

	resp, err := http.Post(s.serviceURL+"/runs", "application/json", bytes.NewReader(body)) //nolint:noctx,gosec
	if err != nil {
		return fmt.Errorf("submit run request: %w", err)
	}

	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("run request rejected with status %d", resp.StatusCode)
	}

	var accepted map[string]string

	if err = json.NewDecoder(resp.Body).Decode(&accepted); err != nil {
		return fmt.Errorf("decode run response: %w", err)
	}

	s.runID = accepted["id"]
	if s.runID == "" {
		return fmt.Errorf("run response carries no id")
	}

	return nil
}

func (s *Steps) awaitRunState(expected string) error {
	if s.runID == "" {
		return fmt.Errorf("no run has been submitted")
	}

	deadline := time.Now().Add(runTimeout)

	for time.Now().Before(deadline) {
		state, err := s.fetchRunState()
		if err != nil {
			return err
		}

		if state != "running" {
			s.runState = state

			if state != expected {
				return fmt.Errorf("run finished with state %q, expected %q", state, expected)
			}

			return nil
		}

		time.Sleep(servicePollInterval)
	}

	return fmt.Errorf("run %s did not finish within %s", s.runID, runTimeout)
}

func (s *Steps) fetchRunState() (string, error) {
	resp, err := http.Get(fmt.Sprintf("%s/runs/%s", s.serviceURL, s.runID)) //nolint:noctx,gosec
	if err != nil {
		return "", fmt.Errorf("fetch run state: %w", err)
	}

	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch run state: status %d", resp.StatusCode)
	}

	var result struct {
		State string `json:"state"`
	}

	if err = json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode run state: %w", err)
	}

	return result.State, nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}

	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	return parts
}
