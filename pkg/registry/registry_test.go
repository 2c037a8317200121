/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package registry_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trustbloc/vc-conformance/pkg/registry"
	"github.com/trustbloc/vc-conformance/pkg/suite"
)

func TestNew(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		r, err := registry.New(
			&registry.Implementation{Name: "Inline One"},
			&registry.Implementation{Name: "Inline Two"},
		)
		require.NoError(t, err)
		require.Len(t, r.Implementations(), 2)
	})

	t.Run("missing name", func(t *testing.T) {
		_, err := registry.New(&registry.Implementation{})
		require.ErrorContains(t, err, "implementation has no name")
	})

	t.Run("duplicate name", func(t *testing.T) {
		_, err := registry.New(
			&registry.Implementation{Name: "Inline One"},
			&registry.Implementation{Name: "Inline One"},
		)
		require.ErrorContains(t, err, `duplicate implementation name "Inline One"`)
	})
}

func TestLoad(t *testing.T) {
	t.Run("directory of manifests", func(t *testing.T) {
		r, err := registry.Load("testdata/implementations")
		require.NoError(t, err)

		imps := r.Implementations()
		require.Len(t, imps, 2)
		require.Equal(t, "Acme VC API", imps[0].Name)
		require.Equal(t, "Orbit VC Service", imps[1].Name)
	})

	t.Run("single manifest file", func(t *testing.T) {
		r, err := registry.Load("testdata/implementations/acme.json")
		require.NoError(t, err)
		require.Len(t, r.Implementations(), 1)
	})

	t.Run("path not found", func(t *testing.T) {
		_, err := registry.Load("testdata/no_such_dir")
		require.ErrorContains(t, err, "read implementations path")
	})

	t.Run("schema violation", func(t *testing.T) {
		_, err := registry.Load("testdata/invalid/missing_tags.json")
		require.ErrorContains(t, err, "validate implementations manifest")
	})

	t.Run("duplicate implementation name", func(t *testing.T) {
		_, err := registry.Load("testdata/duplicate")
		require.ErrorContains(t, err, `duplicate implementation name "Acme VC API"`)
	})
}

func TestFilter(t *testing.T) {
	r, err := registry.Load("testdata/implementations")
	require.NoError(t, err)

	interop := []string{"interop"}

	t.Run("issuers by key type", func(t *testing.T) {
		p256 := r.Issuers(interop, suite.P256, suite.Version20)
		require.Len(t, p256, 1)
		require.Equal(t, "Acme VC API", p256[0].Implementation.Name)

		p384 := r.Issuers(interop, suite.P384, suite.Version20)
		require.Len(t, p384, 2)
	})

	t.Run("verifiers by version", func(t *testing.T) {
		v11 := r.Verifiers(interop, suite.P256, suite.Version11)
		require.Len(t, v11, 2)

		// the acme verifier declares 1.1 support only
		v20 := r.Verifiers(interop, suite.P256, suite.Version20)
		require.Len(t, v20, 1)
		require.Equal(t, "Orbit VC Service", v20[0].Implementation.Name)
	})

	t.Run("filter by suite tag", func(t *testing.T) {
		jcs := r.Verifiers([]string{"ecdsa-jcs-2019"}, suite.P256, suite.Version20)
		require.Len(t, jcs, 1)
		require.Equal(t, "orbit-verifier", jcs[0].Endpoint.ID)

		require.Empty(t, r.Issuers([]string{"ecdsa-jcs-2019"}, suite.P256, suite.Version20))
	})

	t.Run("no matching tag", func(t *testing.T) {
		require.Empty(t, r.Issuers([]string{"eddsa"}, suite.P256, suite.Version20))
	})

	t.Run("holders", func(t *testing.T) {
		holders := r.Holders([]string{"ecdsa-sd-2023"}, suite.P256, suite.Version20)
		require.Len(t, holders, 1)
		require.Equal(t, "acme-holder-sd", holders[0].Endpoint.ID)
	})

	t.Run("holder for implementation", func(t *testing.T) {
		imps := r.Implementations()

		acme := r.HolderFor(imps[0], []string{"ecdsa-sd-2023"}, suite.P256, suite.Version20)
		require.NotNil(t, acme)
		require.Equal(t, "Acme VC API", acme.Implementation.Name)

		// orbit has no holder of its own, falls back to acme's
		orbit := r.HolderFor(imps[1], []string{"ecdsa-sd-2023"}, suite.P256, suite.Version20)
		require.NotNil(t, orbit)
		require.Equal(t, "acme-holder-sd", orbit.Endpoint.ID)

		require.Nil(t, r.HolderFor(imps[1], []string{"no-such-tag"}, suite.P256, suite.Version20))
	})
}

func TestEndpointHTTPClient(t *testing.T) {
	r, err := registry.Load("testdata/implementations")
	require.NoError(t, err)

	base := &http.Client{}

	t.Run("no oauth2 returns base client", func(t *testing.T) {
		issuers := r.Issuers([]string{"interop"}, suite.P256, suite.Version20)
		require.Len(t, issuers, 1)

		require.Same(t, base, issuers[0].Endpoint.HTTPClient(context.Background(), base))
	})

	t.Run("oauth2 wraps base client", func(t *testing.T) {
		t.Setenv("ORBIT_CLIENT_SECRET", "test-secret")

		issuers := r.Issuers([]string{"interop"}, suite.P384, suite.Version20)
		require.Len(t, issuers, 2)

		orbit := issuers[1]
		require.NotNil(t, orbit.Endpoint.OAuth2)

		cli := orbit.Endpoint.HTTPClient(context.Background(), base)
		require.NotSame(t, base, cli)
	})
}

func TestEndpointName(t *testing.T) {
	e := &registry.Endpoint{Endpoint: "https://acme.example/credentials/issue"}
	require.Equal(t, "https://acme.example/credentials/issue", e.Name())

	e.ID = "acme-issuer"
	require.Equal(t, "acme-issuer", e.Name())
}
