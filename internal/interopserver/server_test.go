/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package interopserver_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/trustbloc/vc-conformance/internal/interopserver"
	"github.com/trustbloc/vc-conformance/internal/testutil"
	"github.com/trustbloc/vc-conformance/pkg/credential"
	"github.com/trustbloc/vc-conformance/pkg/suite"
	"github.com/trustbloc/vc-conformance/pkg/vcapi"
)

func TestServer_IssueAndVerify(t *testing.T) {
	srv, httpSrv, client := startServer(t)
	defer httpSrv.Close()

	impl := srv.Implementation(httpSrv.URL, "interop")
	require.Equal(t, "vc-conformance-interop", impl.Name)
	require.Len(t, impl.Issuers, 3)
	require.Len(t, impl.Verifiers, 1)
	require.Len(t, impl.Holders, 1)

	for _, keyType := range []suite.KeyType{suite.P256, suite.P384} {
		keyType := keyType

		t.Run(string(keyType), func(t *testing.T) {
			signed := issueCredential(t, client, httpSrv.URL, keyType)

			require.Equal(t, suite.ECDSARDFC2019, gjson.GetBytes(signed, "proof.cryptosuite").String())
			require.Equal(t, srv.Signer().DID(keyType), gjson.GetBytes(signed, "issuer").String())

			result, err := client.Verify(context.Background(), httpSrv.URL+"/credentials/verify",
				&vcapi.VerifyRequest{VerifiableCredential: signed})
			require.NoError(t, err)
			require.False(t, result.Rejected())
			require.Contains(t, result.Checks, "proof")
		})
	}
}

func TestServer_RejectsTamperedCredentials(t *testing.T) {
	_, httpSrv, client := startServer(t)
	defer httpSrv.Close()

	signed := issueCredential(t, client, httpSrv.URL, suite.P256)

	desc, err := suite.Lookup(suite.ECDSARDFC2019)
	require.NoError(t, err)

	for _, tamper := range credential.Tampers(desc) {
		tamper := tamper

		t.Run(tamper.Name, func(t *testing.T) {
			mutated, err := tamper.Apply(signed)
			require.NoError(t, err)

			result, err := client.Verify(context.Background(), httpSrv.URL+"/credentials/verify",
				&vcapi.VerifyRequest{VerifiableCredential: mutated})
			require.NoError(t, err)
			require.True(t, result.Rejected(), "verifier accepted a tampered credential")
			require.NotEmpty(t, result.Errors)
		})
	}
}

func TestServer_SelectiveDisclosureFlow(t *testing.T) {
	srv, httpSrv, client := startServer(t)
	defer httpSrv.Close()

	req, err := credential.NewIssueRequest(nil, suite.Version20, srv.Signer().DID(suite.P256))
	require.NoError(t, err)

	base, err := client.Issue(context.Background(), httpSrv.URL+"/sd/credentials/issue", &vcapi.IssueRequest{
		Credential: req,
		Options:    &vcapi.IssueOptions{MandatoryPointers: credential.DefaultMandatoryPointers(suite.Version20)},
	})
	require.NoError(t, err)

	require.Equal(t, suite.ECDSASD2023, gjson.GetBytes(base, "proof.cryptosuite").String())

	desc, err := suite.Lookup(suite.ECDSASD2023)
	require.NoError(t, err)

	var baseProof map[string]interface{}

	require.NoError(t, json.Unmarshal([]byte(gjson.GetBytes(base, "proof").Raw), &baseProof))
	require.NoError(t, desc.ValidateProof(baseProof))

	selective := credential.DefaultSelectivePointers()

	derived, err := client.Derive(context.Background(), httpSrv.URL+"/credentials/derive", &vcapi.DeriveRequest{
		VerifiableCredential: base,
		Options:              &vcapi.DeriveOptions{SelectivePointers: selective},
	})
	require.NoError(t, err)

	for _, pointer := range selective {
		require.True(t, credential.PointerExists(derived, pointer), "selected claim %s missing", pointer)
	}

	// unselected claims must not be disclosed
	require.False(t, credential.PointerExists(derived, "/credentialSubject/lprNumber"))

	var derivedProof map[string]interface{}

	require.NoError(t, json.Unmarshal([]byte(gjson.GetBytes(derived, "proof").Raw), &derivedProof))
	require.NoError(t, desc.ValidateProof(derivedProof))
}

func TestServer_BadRequests(t *testing.T) {
	_, httpSrv, client := startServer(t)
	defer httpSrv.Close()

	t.Run("unknown key type path", func(t *testing.T) {
		_, err := client.Issue(context.Background(), httpSrv.URL+"/p521/credentials/issue",
			&vcapi.IssueRequest{Credential: json.RawMessage(`{}`)})
		require.Error(t, err)

		var statusErr *vcapi.StatusCodeError

		require.ErrorAs(t, err, &statusErr)
		require.Equal(t, http.StatusNotFound, statusErr.Actual)
	})

	t.Run("malformed credential", func(t *testing.T) {
		_, err := client.Issue(context.Background(), httpSrv.URL+"/p256/credentials/issue",
			&vcapi.IssueRequest{Credential: json.RawMessage(`{"no":"context"}`)})
		require.Error(t, err)
	})

	t.Run("verify without proof", func(t *testing.T) {
		req, err := credential.NewIssueRequest(nil, suite.Version11, "")
		require.NoError(t, err)

		result, err := client.Verify(context.Background(), httpSrv.URL+"/credentials/verify",
			&vcapi.VerifyRequest{VerifiableCredential: req})
		require.NoError(t, err)
		require.True(t, result.Rejected())
	})

	t.Run("derive without pointers", func(t *testing.T) {
		_, err := client.Derive(context.Background(), httpSrv.URL+"/credentials/derive",
			&vcapi.DeriveRequest{VerifiableCredential: json.RawMessage(`{}`)})
		require.Error(t, err)
	})

	t.Run("derive from non-sd credential", func(t *testing.T) {
		signed := issueCredential(t, client, httpSrv.URL, suite.P256)

		_, err := client.Derive(context.Background(), httpSrv.URL+"/credentials/derive", &vcapi.DeriveRequest{
			VerifiableCredential: signed,
			Options:              &vcapi.DeriveOptions{SelectivePointers: credential.DefaultSelectivePointers()},
		})
		require.Error(t, err)
		require.Contains(t, err.Error(), "base proof")
	})
}

func startServer(t *testing.T) (*interopserver.Server, *httptest.Server, *vcapi.Client) {
	t.Helper()

	srv, err := interopserver.New(testutil.DocumentLoader(t))
	require.NoError(t, err)

	httpSrv := httptest.NewServer(srv.Handler())

	return srv, httpSrv, vcapi.New(httpSrv.Client(), vcapi.WithRetryCount(0))
}

func issueCredential(t *testing.T, client *vcapi.Client, baseURL string, keyType suite.KeyType) json.RawMessage {
	t.Helper()

	path := "/p256/credentials/issue"
	if keyType == suite.P384 {
		path = "/p384/credentials/issue"
	}

	req, err := credential.NewIssueRequest(nil, suite.Version11, "")
	require.NoError(t, err)

	signed, err := client.Issue(context.Background(), baseURL+path, &vcapi.IssueRequest{Credential: req})
	require.NoError(t, err)

	return signed
}
