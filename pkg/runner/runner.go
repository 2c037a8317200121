/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package runner expands the configuration and the implementations registry
// into conformance test cases and executes them on a worker pool. The run has
// two phases: the issuance phase collects signed credentials from issuer
// endpoints, the verification phase replays them, valid and tampered, against
// verifier endpoints.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/piprate/json-gold/ld"
	"github.com/samber/lo"
	"github.com/trustbloc/logutil-go/pkg/log"
	"go.opentelemetry.io/otel/trace"

	"github.com/trustbloc/vc-conformance/internal/logfields"
	"github.com/trustbloc/vc-conformance/internal/observability/metrics"
	noopmetrics "github.com/trustbloc/vc-conformance/internal/observability/metrics/noop"
	"github.com/trustbloc/vc-conformance/pkg/config"
	"github.com/trustbloc/vc-conformance/pkg/credential"
	"github.com/trustbloc/vc-conformance/pkg/registry"
	"github.com/trustbloc/vc-conformance/pkg/report"
	"github.com/trustbloc/vc-conformance/pkg/suite"
	"github.com/trustbloc/vc-conformance/pkg/vcapi"
)

var logger = log.New("runner")

// localImplementation names fixtures signed by the local issuer in report
// cells and log lines.
const localImplementation = "local"

// LocalIssuer signs a credential with a local key so that verifier endpoints
// are still exercised when no issuer endpoint qualifies for a combination.
type LocalIssuer interface {
	// Cryptosuites lists the cryptosuite names the signer can produce.
	Cryptosuites() []string
	// Issue signs the credential with a key of the given type.
	Issue(credentialDoc json.RawMessage, suiteName string, keyType suite.KeyType) (json.RawMessage, error)
}

// Options are the runner options.
type Options struct {
	cfg            *config.Config
	registry       *registry.Registry
	httpClient     *http.Client
	documentLoader ld.DocumentLoader
	tracer         trace.Tracer
	metrics        metrics.Metrics
	localIssuer    LocalIssuer
}

// Option configures the runner.
type Option func(opts *Options)

// WithConfig sets the runner configuration.
func WithConfig(cfg *config.Config) Option {
	return func(opts *Options) {
		opts.cfg = cfg
	}
}

// WithRegistry sets the implementations registry.
func WithRegistry(reg *registry.Registry) Option {
	return func(opts *Options) {
		opts.registry = reg
	}
}

// WithHTTPClient sets the base HTTP client used to call endpoints.
func WithHTTPClient(client *http.Client) Option {
	return func(opts *Options) {
		opts.httpClient = client
	}
}

// WithDocumentLoader sets the JSON-LD document loader used to parse issued
// credentials.
func WithDocumentLoader(loader ld.DocumentLoader) Option {
	return func(opts *Options) {
		opts.documentLoader = loader
	}
}

// WithTracer sets the tracer used to span endpoint calls.
func WithTracer(tracer trace.Tracer) Option {
	return func(opts *Options) {
		opts.tracer = tracer
	}
}

// WithMetrics sets the metrics provider.
func WithMetrics(m metrics.Metrics) Option {
	return func(opts *Options) {
		opts.metrics = m
	}
}

// WithLocalIssuer sets the signer that fills in fixtures for combinations no
// issuer endpoint covered.
func WithLocalIssuer(issuer LocalIssuer) Option {
	return func(opts *Options) {
		opts.localIssuer = issuer
	}
}

// Runner executes the conformance test cases.
type Runner struct {
	cfg            *config.Config
	registry       *registry.Registry
	httpClient     *http.Client
	documentLoader ld.DocumentLoader
	tracer         trace.Tracer
	metrics        metrics.Metrics
	localIssuer    LocalIssuer
}

// New returns a new runner.
func New(opts ...Option) (*Runner, error) {
	options := &Options{
		tracer:  trace.NewNoopTracerProvider().Tracer(""),
		metrics: noopmetrics.GetMetrics(),
	}

	for _, opt := range opts {
		opt(options)
	}

	if options.cfg == nil {
		return nil, fmt.Errorf("config is empty")
	}

	if options.registry == nil {
		return nil, fmt.Errorf("registry is empty")
	}

	if options.documentLoader == nil {
		return nil, fmt.Errorf("document loader is empty")
	}

	options.cfg.SetDefaults()

	if options.httpClient == nil {
		options.httpClient = vcapi.NewHTTPClient(nil, options.cfg.HTTP.Debug)
	}

	return &Runner{
		cfg:            options.cfg,
		registry:       options.registry,
		httpClient:     options.httpClient,
		documentLoader: options.documentLoader,
		tracer:         options.tracer,
		metrics:        options.metrics,
		localIssuer:    options.localIssuer,
	}, nil
}

// Run executes all test cases and returns the populated report matrix.
// Endpoint failures are annotated in the matrix, so a non-nil error reports
// only a cancelled run.
func (r *Runner) Run(ctx context.Context) (*report.Matrix, error) {
	matrix := report.NewMatrix(r.cfg.SuiteName)
	fixtures := newFixtureStore()

	issuance := r.issuanceCases(ctx, matrix, fixtures)

	logger.Infoc(ctx, "Executing issuance cases",
		logfields.WithTotalCases(len(issuance)), logfields.WithWorkers(r.cfg.Concurrency))

	if err := r.execute(issuance); err != nil {
		return matrix, err
	}

	r.signLocalFixtures(fixtures)

	verification := r.verificationCases(ctx, matrix, fixtures)

	logger.Infoc(ctx, "Executing verification cases",
		logfields.WithTotalCases(len(verification)), logfields.WithWorkers(r.cfg.Concurrency))

	if err := r.execute(verification); err != nil {
		return matrix, err
	}

	logger.Infoc(ctx, "Run complete", logfields.WithSummary(matrix.Summary()))

	return matrix, nil
}

func (r *Runner) execute(cases []Request) error {
	if len(cases) == 0 {
		return nil
	}

	pool := NewWorkerPool(r.cfg.Concurrency, logger)

	pool.Start()

	for _, c := range cases {
		pool.Submit(c)
	}

	pool.Stop()

	for _, resp := range pool.Responses() {
		if resp.Err != nil {
			return resp.Err
		}
	}

	return nil
}

// combination is one cryptosuite, key type and data model version triple in
// scope for the run.
type combination struct {
	desc    *suite.Descriptor
	keyType suite.KeyType
	version suite.Version
}

func (r *Runner) combinations() []combination {
	var out []combination

	for _, desc := range r.cfg.Descriptors() {
		for _, keyType := range r.cfg.ECDSAKeyTypes() {
			if !desc.SupportsKeyType(keyType) {
				continue
			}

			for _, version := range r.cfg.Versions() {
				out = append(out, combination{desc: desc, keyType: keyType, version: version})
			}
		}
	}

	return out
}

// scope keeps the matches that carry at least one of the configured tags. An
// endpoint qualifies for a cryptosuite by carrying the suite name as a tag,
// and opts into the run through the configured tags.
func (r *Runner) scope(matches []*registry.Match) []*registry.Match {
	return lo.Filter(matches, func(m *registry.Match, _ int) bool {
		return m.Endpoint.HasTag(r.cfg.Tags)
	})
}

func (r *Runner) issuanceCases(ctx context.Context, matrix *report.Matrix, fixtures *fixtureStore) []Request {
	var cases []Request

	for _, tc := range r.combinations() {
		for _, match := range r.scope(r.registry.Issuers([]string{tc.desc.Name}, tc.keyType, tc.version)) {
			c := &issuanceCase{
				caseBase: caseBase{
					runner:  r,
					ctx:     ctx,
					desc:    tc.desc,
					keyType: tc.keyType,
					version: tc.version,
					match:   match,
					matrix:  matrix,
				},
				fixtures: fixtures,
			}

			if tc.desc.SelectiveDisclosure {
				c.holder = r.registry.HolderFor(match.Implementation, []string{tc.desc.Name}, tc.keyType, tc.version)
			}

			cases = append(cases, c)
		}
	}

	return cases
}

func (r *Runner) verificationCases(ctx context.Context, matrix *report.Matrix, fixtures *fixtureStore) []Request {
	var cases []Request

	for _, tc := range r.combinations() {
		for _, match := range r.scope(r.registry.Verifiers([]string{tc.desc.Name}, tc.keyType, tc.version)) {
			cases = append(cases, &verificationCase{
				caseBase: caseBase{
					runner:  r,
					ctx:     ctx,
					desc:    tc.desc,
					keyType: tc.keyType,
					version: tc.version,
					match:   match,
					matrix:  matrix,
				},
				fixtures: fixtures.find(tc.desc.Name, tc.keyType, tc.version),
			})
		}
	}

	return cases
}

// signLocalFixtures fills combinations that no issuer endpoint produced a
// credential for, so verifier endpoints still get exercised.
func (r *Runner) signLocalFixtures(fixtures *fixtureStore) {
	if r.localIssuer == nil {
		return
	}

	for _, tc := range r.combinations() {
		if !lo.Contains(r.localIssuer.Cryptosuites(), tc.desc.Name) {
			continue
		}

		if len(fixtures.find(tc.desc.Name, tc.keyType, tc.version)) > 0 {
			continue
		}

		if len(r.scope(r.registry.Verifiers([]string{tc.desc.Name}, tc.keyType, tc.version))) == 0 {
			continue
		}

		doc, err := credential.NewIssueRequest(r.cfg.VectorFor(tc.desc.Name).Credential, tc.version, "")
		if err != nil {
			logger.Warn("Failed to prepare a local fixture credential", log.WithError(err),
				logfields.WithCryptosuite(tc.desc.Name), logfields.WithVCVersion(string(tc.version)))

			continue
		}

		signed, err := r.localIssuer.Issue(doc, tc.desc.Name, tc.keyType)
		if err != nil {
			logger.Warn("Failed to sign a local fixture credential", log.WithError(err),
				logfields.WithCryptosuite(tc.desc.Name), logfields.WithKeyType(string(tc.keyType)))

			continue
		}

		logger.Debug("Signed a local fixture credential", logfields.WithCryptosuite(tc.desc.Name),
			logfields.WithKeyType(string(tc.keyType)), logfields.WithVCVersion(string(tc.version)))

		fixtures.add(&fixture{
			suiteName:      tc.desc.Name,
			implementation: localImplementation,
			keyType:        tc.keyType,
			version:        tc.version,
			signed:         signed,
		})
	}
}
