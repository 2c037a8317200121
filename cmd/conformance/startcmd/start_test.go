/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package startcmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/trustbloc/vc-conformance/internal/interopserver"
	noopmetrics "github.com/trustbloc/vc-conformance/internal/observability/metrics/noop"
	"github.com/trustbloc/vc-conformance/internal/testutil"
	"github.com/trustbloc/vc-conformance/pkg/config"
	"github.com/trustbloc/vc-conformance/pkg/registry"
	"github.com/trustbloc/vc-conformance/pkg/suite"
)

func TestGetStartCmd(t *testing.T) {
	t.Run("missing host-url flag", func(t *testing.T) {
		cmd := GetStartCmd()
		cmd.SetArgs([]string{})
		cmd.SetOut(&bytes.Buffer{})

		err := cmd.Execute()
		require.ErrorContains(t, err, "host-url")
	})

	t.Run("unsupported tracing exporter", func(t *testing.T) {
		cmd := GetStartCmd()
		cmd.SetArgs([]string{"--host-url", "localhost:0", "--tracing-exporter", "ZIPKIN"})
		cmd.SetOut(&bytes.Buffer{})

		err := cmd.Execute()
		require.ErrorContains(t, err, "unsupported tracing exporter")
	})
}

func TestService_Runs(t *testing.T) {
	interop, err := interopserver.New(testutil.DocumentLoader(t))
	require.NoError(t, err)

	interopSrv := httptest.NewServer(interop.Handler())
	defer interopSrv.Close()

	svc := startService(t)

	svcSrv := httptest.NewServer(svc.echo)
	defer svcSrv.Close()

	id := submitRun(t, svcSrv.URL, &runRequest{
		Config: &config.Config{
			SuiteName:  "service run",
			Suites:     []string{suite.ECDSARDFC2019},
			Tags:       []string{"interop"},
			KeyTypes:   []string{string(suite.P256)},
			VCVersions: []string{string(suite.Version11)},
		},
		Implementations: []*registry.Implementation{interop.Implementation(interopSrv.URL, "interop")},
	})

	result := awaitRun(t, svcSrv.URL, id)

	require.Equal(t, stateComplete, result.State)
	require.NotNil(t, result.FinishedAt)
	require.NotNil(t, result.Report)
	require.NotZero(t, result.Report.Summary.Total)
	require.Zero(t, result.Report.Summary.Failed)
}

func TestService_SubmitRunErrors(t *testing.T) {
	svc := startService(t)

	svcSrv := httptest.NewServer(svc.echo)
	defer svcSrv.Close()

	t.Run("no config", func(t *testing.T) {
		resp, err := http.Post(svcSrv.URL+"/runs", "application/json", bytes.NewBufferString(`{}`))
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("invalid config", func(t *testing.T) {
		body := `{"config":{"tags":[],"suites":["ecdsa-rdfc-2019"]}}`

		resp, err := http.Post(svcSrv.URL+"/runs", "application/json", bytes.NewBufferString(body))
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("no implementations", func(t *testing.T) {
		body := `{"config":{"tags":["interop"]}}`

		resp, err := http.Post(svcSrv.URL+"/runs", "application/json", bytes.NewBufferString(body))
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("duplicate run id", func(t *testing.T) {
		req := &runRequest{
			ID: "duplicate-run",
			Config: &config.Config{
				Tags: []string{"no-such-tag"},
			},
			Implementations: []*registry.Implementation{{Name: "empty"}},
		}

		submitRun(t, svcSrv.URL, req)

		body, err := json.Marshal(req)
		require.NoError(t, err)

		resp, err := http.Post(svcSrv.URL+"/runs", "application/json", bytes.NewReader(body))
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		require.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("unknown run id", func(t *testing.T) {
		resp, err := http.Get(svcSrv.URL + "/runs/no-such-run")
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestService_Healthcheck(t *testing.T) {
	svc := startService(t)

	svcSrv := httptest.NewServer(svc.echo)
	defer svcSrv.Close()

	resp, err := http.Get(svcSrv.URL + "/healthcheck")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func startService(t *testing.T) *service {
	t.Helper()

	svc, err := newService(testutil.DocumentLoader(t), http.DefaultClient,
		trace.NewNoopTracerProvider().Tracer(""), noopmetrics.GetMetrics())
	require.NoError(t, err)

	return svc
}

func submitRun(t *testing.T, baseURL string, req *runRequest) string {
	t.Helper()

	body, err := json.Marshal(req)
	require.NoError(t, err)

	resp, err := http.Post(baseURL+"/runs", "application/json", bytes.NewReader(body))
	require.NoError(t, err)

	defer func() {
		require.NoError(t, resp.Body.Close())
	}()

	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var accepted map[string]string

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&accepted))
	require.NotEmpty(t, accepted["id"])

	return accepted["id"]
}

func awaitRun(t *testing.T, baseURL, id string) *runResult {
	t.Helper()

	var result runResult

	require.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("%s/runs/%s", baseURL, id))
		require.NoError(t, err)

		defer func() {
			require.NoError(t, resp.Body.Close())
		}()

		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))

		return result.State != stateRunning
	}, 30*time.Second, 100*time.Millisecond)

	return &result
}
