/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package registry

import (
	"context"
	"net/http"
	"os"

	"github.com/samber/lo"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/trustbloc/vc-conformance/pkg/suite"
)

// Implementation describes one system under test, as declared by its
// implementations manifest.
type Implementation struct {
	// Name is the display name, unique across the registry. It becomes the
	// implementation part of report matrix columns.
	Name string `json:"name"`
	// Implementation is the project URL.
	Implementation string `json:"implementation,omitempty"`
	// Issuers expose /credentials/issue.
	Issuers []*Endpoint `json:"issuers,omitempty"`
	// Verifiers expose /credentials/verify.
	Verifiers []*Endpoint `json:"verifiers,omitempty"`
	// Holders expose the derive operation for selective disclosure suites.
	Holders []*Endpoint `json:"holders,omitempty"`
}

// Endpoint is one VC API endpoint of an implementation.
type Endpoint struct {
	ID       string `json:"id,omitempty"`
	Endpoint string `json:"endpoint"`
	// IssuerDID is the DID the implementation issues under, when declared.
	// Issue requests carry it as the credential issuer.
	IssuerDID              string        `json:"issuerDid,omitempty"`
	Tags                   []string      `json:"tags"`
	SupportedEcdsaKeyTypes []string      `json:"supportedEcdsaKeyTypes,omitempty"`
	Supports               *Supports     `json:"supports,omitempty"`
	OAuth2                 *OAuth2Config `json:"oauth2,omitempty"`
}

// Supports declares optional capabilities of an endpoint.
type Supports struct {
	// VC lists supported data model versions. Empty means all.
	VC []string `json:"vc,omitempty"`
}

// OAuth2Config configures client-credentials authorization for an endpoint.
type OAuth2Config struct {
	TokenURL string `json:"tokenUrl"`
	ClientID string `json:"clientId"`
	// ClientSecretEnv names the environment variable holding the secret, so
	// manifests stay committable.
	ClientSecretEnv string   `json:"clientSecretEnv,omitempty"`
	Scopes          []string `json:"scopes,omitempty"`
}

// Match pairs an endpoint with the implementation that owns it.
type Match struct {
	Implementation *Implementation
	Endpoint       *Endpoint
}

// HasTag reports whether the endpoint carries at least one of the tags.
func (e *Endpoint) HasTag(tags []string) bool {
	return lo.Some(e.Tags, tags)
}

// SupportsKeyType reports whether the endpoint declares support for the key
// type. An endpoint that declares no key types never matches.
func (e *Endpoint) SupportsKeyType(keyType suite.KeyType) bool {
	return lo.Contains(e.SupportedEcdsaKeyTypes, string(keyType))
}

// SupportsVersion reports whether the endpoint supports the VC data model
// version. Endpoints that declare nothing support every version.
func (e *Endpoint) SupportsVersion(version suite.Version) bool {
	if e.Supports == nil || len(e.Supports.VC) == 0 {
		return true
	}

	return lo.Contains(e.Supports.VC, string(version))
}

// HTTPClient returns the HTTP client to call this endpoint with. Endpoints
// that declare oauth2 get a client-credentials token source layered over the
// base client.
func (e *Endpoint) HTTPClient(ctx context.Context, base *http.Client) *http.Client {
	if e.OAuth2 == nil {
		return base
	}

	conf := &clientcredentials.Config{
		TokenURL:     e.OAuth2.TokenURL,
		ClientID:     e.OAuth2.ClientID,
		ClientSecret: os.Getenv(e.OAuth2.ClientSecretEnv),
		Scopes:       e.OAuth2.Scopes,
	}

	return conf.Client(context.WithValue(ctx, oauth2.HTTPClient, base))
}

// Name returns the endpoint's identifier for logs: its declared ID when
// present, the URL otherwise.
func (e *Endpoint) Name() string {
	if e.ID != "" {
		return e.ID
	}

	return e.Endpoint
}
