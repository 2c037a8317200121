/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package vcapi implements the client side of the VC API endpoints exercised
// by the conformance suite: issue, verify and derive.
package vcapi

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/henvic/httpretty"
	"github.com/tidwall/gjson"
	"github.com/trustbloc/logutil-go/pkg/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/trustbloc/vc-conformance/internal/logfields"
	"github.com/trustbloc/vc-conformance/internal/observability/metrics"
	noopmetrics "github.com/trustbloc/vc-conformance/internal/observability/metrics/noop"
)

var logger = log.New("vcapi")

const (
	contentTypeJSON = "application/json"

	defaultRetryCount = 2
	retryInterval     = time.Second

	maxDebugResponseBody = 102400
)

type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client calls VC API endpoints. Server errors and transport failures are
// retried, client errors are not.
type Client struct {
	http       httpClient
	retryCount uint64
	tracer     trace.Tracer
	metrics    metrics.Metrics
}

// Option configures the client.
type Option func(*Client)

// WithRetryCount sets the number of retries of a failed request.
func WithRetryCount(count uint64) Option {
	return func(c *Client) {
		c.retryCount = count
	}
}

// WithTracer sets the tracer used to span endpoint calls.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Client) {
		c.tracer = tracer
	}
}

// WithMetrics sets the metrics used to record endpoint call times.
func WithMetrics(m metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// New returns a client that sends requests with the given HTTP client.
func New(client httpClient, opts ...Option) *Client {
	c := &Client{
		http:       client,
		retryCount: defaultRetryCount,
		tracer:     trace.NewNoopTracerProvider().Tracer(""),
		metrics:    noopmetrics.GetMetrics(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// NewHTTPClient returns the HTTP client used to call VC API endpoints.
func NewHTTPClient(tlsConfig *tls.Config, debug bool) *http.Client {
	httpClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: tlsConfig,
		},
	}

	if debug {
		httpLogger := &httpretty.Logger{
			RequestHeader:   true,
			RequestBody:     true,
			ResponseHeader:  true,
			ResponseBody:    true,
			SkipSanitize:    true,
			Colors:          true,
			SkipRequestInfo: true,
			Formatters:      []httpretty.Formatter{&httpretty.JSONFormatter{}},
			MaxResponseBody: maxDebugResponseBody,
		}

		httpClient.Transport = httpLogger.RoundTripper(httpClient.Transport)
	}

	return httpClient
}

// Issue posts the credential to the issuer endpoint and returns the signed
// credential from the response.
func (c *Client) Issue(ctx context.Context, endpoint string, req *IssueRequest) (json.RawMessage, error) {
	ctx, span := c.tracer.Start(ctx, "vcapi.Issue")
	defer span.End()

	span.SetAttributes(attribute.String("endpoint", endpoint))

	started := time.Now()

	statusCode, respBytes, err := c.post(ctx, endpoint, req)
	if err != nil {
		return nil, err
	}

	c.metrics.IssueTime(time.Since(started))

	if !is2xx(statusCode) {
		return nil, &StatusCodeError{Expected: http.StatusCreated, Actual: statusCode, Body: respBytes}
	}

	signed, err := unwrapCredential(respBytes)
	if err != nil {
		return nil, fmt.Errorf("issue response from %s: %w", endpoint, err)
	}

	logger.Debugc(ctx, "Received signed credential", log.WithURL(endpoint), log.WithHTTPStatus(statusCode))

	return signed, nil
}

// Derive posts the signed credential with the selective disclosure pointers
// to the holder endpoint and returns the derived credential.
func (c *Client) Derive(ctx context.Context, endpoint string, req *DeriveRequest) (json.RawMessage, error) {
	ctx, span := c.tracer.Start(ctx, "vcapi.Derive")
	defer span.End()

	span.SetAttributes(attribute.String("endpoint", endpoint))

	started := time.Now()

	statusCode, respBytes, err := c.post(ctx, endpoint, req)
	if err != nil {
		return nil, err
	}

	c.metrics.DeriveTime(time.Since(started))

	if !is2xx(statusCode) {
		return nil, &StatusCodeError{Expected: http.StatusCreated, Actual: statusCode, Body: respBytes}
	}

	derived, err := unwrapCredential(respBytes)
	if err != nil {
		return nil, fmt.Errorf("derive response from %s: %w", endpoint, err)
	}

	logger.Debugc(ctx, "Received derived credential", log.WithURL(endpoint), log.WithHTTPStatus(statusCode))

	return derived, nil
}

// Verify posts the credential to the verifier endpoint. A rejection is
// reported in the result, not as an error.
func (c *Client) Verify(ctx context.Context, endpoint string, req *VerifyRequest) (*VerifyResult, error) {
	ctx, span := c.tracer.Start(ctx, "vcapi.Verify")
	defer span.End()

	span.SetAttributes(attribute.String("endpoint", endpoint))

	if req.Options == nil {
		req.Options = &VerifyOptions{Checks: []string{"proof"}}
	}

	started := time.Now()

	statusCode, respBytes, err := c.post(ctx, endpoint, req)
	if err != nil {
		return nil, err
	}

	c.metrics.VerifyTime(time.Since(started))

	if statusCode >= http.StatusInternalServerError {
		return nil, &StatusCodeError{Expected: http.StatusOK, Actual: statusCode, Body: respBytes}
	}

	result := parseVerifyResult(statusCode, respBytes)

	logger.Debugc(ctx, "Received verification result", log.WithURL(endpoint),
		log.WithHTTPStatus(statusCode), logfields.WithResponses(len(result.Errors)))

	return result, nil
}

// post marshals the payload and sends it, retrying transport failures and
// server errors. A server error that persists through all retries is returned
// as a status code with a nil error.
func (c *Client) post(ctx context.Context, endpoint string, payload interface{}) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal request: %w", err)
	}

	var (
		statusCode int
		respBytes  []byte
	)

	err = backoff.RetryNotify(
		func() error {
			var doErr error

			statusCode, respBytes, doErr = c.do(ctx, endpoint, body)
			if doErr != nil {
				return doErr
			}

			if statusCode >= http.StatusInternalServerError {
				return fmt.Errorf("server status code %d", statusCode)
			}

			return nil
		},
		backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(retryInterval), c.retryCount), ctx),
		func(retryErr error, sleep time.Duration) {
			logger.Warnc(ctx, "Request failed, will sleep before trying again.",
				log.WithURL(endpoint), logfields.WithSleep(sleep), log.WithError(retryErr))
		},
	)
	if err != nil && respBytes == nil {
		return 0, nil, err
	}

	return statusCode, respBytes, nil
}

func (c *Client) do(ctx context.Context, endpoint string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", contentTypeJSON)

	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("post to %s: %w", endpoint, err)
	}

	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logger.Warnc(ctx, "Failed to close response body", log.WithError(closeErr))
		}
	}()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response from %s: %w", endpoint, err)
	}

	return resp.StatusCode, respBytes, nil
}

// unwrapCredential accepts either a bare credential or one wrapped in a
// verifiableCredential envelope.
func unwrapCredential(body []byte) (json.RawMessage, error) {
	if vc := gjson.GetBytes(body, "verifiableCredential"); vc.IsObject() {
		return json.RawMessage(vc.Raw), nil
	}

	if gjson.GetBytes(body, "proof").Exists() {
		return body, nil
	}

	return nil, fmt.Errorf("response carries no verifiable credential")
}

func parseVerifyResult(statusCode int, body []byte) *VerifyResult {
	result := &VerifyResult{StatusCode: statusCode}

	result.Checks = stringsAt(body, "checks")
	result.Warnings = stringsAt(body, "warnings")
	result.Errors = stringsAt(body, "errors")

	return result
}

func stringsAt(body []byte, path string) []string {
	var out []string

	for _, v := range gjson.GetBytes(body, path).Array() {
		out = append(out, v.String())
	}

	return out
}

func is2xx(statusCode int) bool {
	return statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices
}
