/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package ldutil builds the JSON-LD document loader the conformance runner
// resolves credential contexts with.
package ldutil

import (
	_ "embed" //nolint:gci // required for go:embed
	"fmt"
	"net/http"

	jsonld "github.com/piprate/json-gold/ld"
	ldcontext "github.com/trustbloc/did-go/doc/ld/context"
	"github.com/trustbloc/did-go/doc/ld/context/remote"
	ld "github.com/trustbloc/did-go/doc/ld/documentloader"
	ldstore "github.com/trustbloc/did-go/doc/ld/store"
	"github.com/trustbloc/did-go/legacy/mem"
)

// nolint:gochecknoglobals // embedded contexts
var (
	//go:embed contexts/citizenship_v1.jsonld
	citizenshipVocab []byte
	//go:embed contexts/vc-data-integrity-v1.jsonld
	dataIntegrityVocab []byte
	//go:embed contexts/credentials-examples_v2.jsonld
	credentialExamplesV2Vocab []byte
)

// Contexts returns the JSON-LD contexts preloaded into every loader. The
// credentials v1 and v2 base contexts ship with the loader itself, so only
// the vocabularies the conformance credentials add appear here.
func Contexts() []ldcontext.Document {
	return []ldcontext.Document{
		{
			URL:         "https://w3id.org/citizenship/v1",
			DocumentURL: "https://w3c-ccg.github.io/citizenship-vocab/contexts/citizenship-v1.jsonld",
			Content:     citizenshipVocab,
		},
		{
			URL:     "https://w3id.org/security/data-integrity/v1",
			Content: dataIntegrityVocab,
		},
		{
			URL:     "https://www.w3.org/ns/credentials/examples/v2",
			Content: credentialExamplesV2Vocab,
		},
	}
}

// Opt configures the document loader.
type Opt func(*options)

type options struct {
	providerURLs []string
	enableRemote bool
	httpClient   *http.Client
}

// WithContextProviderURL adds remote context providers the loader imports
// contexts from.
func WithContextProviderURL(urls ...string) Opt {
	return func(o *options) {
		o.providerURLs = append(o.providerURLs, urls...)
	}
}

// WithRemoteContexts lets the loader fetch contexts it does not hold from
// their source URL.
func WithRemoteContexts() Opt {
	return func(o *options) {
		o.enableRemote = true
	}
}

// WithHTTPClient sets the client used to fetch remote contexts.
func WithHTTPClient(client *http.Client) Opt {
	return func(o *options) {
		o.httpClient = client
	}
}

// DocumentLoader returns a JSON-LD document loader with preloaded conformance
// contexts.
func DocumentLoader(opts ...Opt) (*ld.DocumentLoader, error) {
	o := &options{httpClient: http.DefaultClient}

	for _, opt := range opts {
		opt(o)
	}

	contextStore, err := ldstore.NewContextStore(mem.NewProvider())
	if err != nil {
		return nil, fmt.Errorf("create JSON-LD context store: %w", err)
	}

	remoteProviderStore, err := ldstore.NewRemoteProviderStore(mem.NewProvider())
	if err != nil {
		return nil, fmt.Errorf("create remote provider store: %w", err)
	}

	ldStore := &ldStoreProvider{
		ContextStore:        contextStore,
		RemoteProviderStore: remoteProviderStore,
	}

	loaderOpts := []ld.Opts{ld.WithExtraContexts(Contexts()...)}

	for _, url := range o.providerURLs {
		if url == "" {
			continue
		}

		loaderOpts = append(loaderOpts,
			ld.WithRemoteProvider(
				remote.NewProvider(url, remote.WithHTTPClient(o.httpClient)),
			),
		)
	}

	if o.enableRemote {
		loaderOpts = append(loaderOpts,
			ld.WithRemoteDocumentLoader(jsonld.NewDefaultDocumentLoader(o.httpClient)))
	}

	loader, err := ld.NewDocumentLoader(ldStore, loaderOpts...)
	if err != nil {
		return nil, fmt.Errorf("create document loader: %w", err)
	}

	return loader, nil
}

type ldStoreProvider struct {
	ContextStore        ldstore.ContextStore
	RemoteProviderStore ldstore.RemoteProviderStore
}

func (p *ldStoreProvider) JSONLDContextStore() ldstore.ContextStore {
	return p.ContextStore
}

func (p *ldStoreProvider) JSONLDRemoteProviderStore() ldstore.RemoteProviderStore {
	return p.RemoteProviderStore
}
