/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package localissuer_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"github.com/trustbloc/vc-go/proof/defaults"
	"github.com/trustbloc/vc-go/verifiable"
	"github.com/trustbloc/vc-go/vermethod"

	"github.com/trustbloc/vc-conformance/internal/localissuer"
	"github.com/trustbloc/vc-conformance/internal/testutil"
	"github.com/trustbloc/vc-conformance/pkg/credential"
	"github.com/trustbloc/vc-conformance/pkg/multikey"
	"github.com/trustbloc/vc-conformance/pkg/suite"
)

func TestSigner_Issue(t *testing.T) {
	loader := testutil.DocumentLoader(t)

	signer, err := localissuer.New(loader)
	require.NoError(t, err)

	require.Equal(t, []string{suite.ECDSARDFC2019}, signer.Cryptosuites())

	for _, keyType := range []suite.KeyType{suite.P256, suite.P384} {
		keyType := keyType

		t.Run(string(keyType), func(t *testing.T) {
			doc, err := credential.NewIssueRequest(nil, suite.Version11, "")
			require.NoError(t, err)

			signed, err := signer.Issue(doc, suite.ECDSARDFC2019, keyType)
			require.NoError(t, err)

			proof := gjson.GetBytes(signed, "proof")
			require.True(t, proof.Exists())
			require.Equal(t, suite.ECDSARDFC2019, proof.Get("cryptosuite").String())
			require.Equal(t, suite.ProofType, proof.Get("type").String())
			require.Equal(t, signer.VerificationMethodID(keyType), proof.Get("verificationMethod").String())
			require.Equal(t, signer.DID(keyType), gjson.GetBytes(signed, "issuer").String())

			key, err := multikey.FromVerificationMethod(proof.Get("verificationMethod").String())
			require.NoError(t, err)
			require.NoError(t, multikey.Validate(key, keyType))

			verifier, err := signer.Verifier()
			require.NoError(t, err)

			parsed, err := verifiable.ParseCredential(signed,
				verifiable.WithDisabledProofCheck(),
				verifiable.WithJSONLDDocumentLoader(loader))
			require.NoError(t, err)

			require.NoError(t, parsed.CheckProof(
				verifiable.WithProofChecker(defaults.NewDefaultProofChecker(vermethod.NewVDRResolver(signer.Resolver()))),
				verifiable.WithJSONLDDocumentLoader(loader),
				verifiable.WithDataIntegrityVerifier(verifier),
				verifiable.WithExpectedDataIntegrityFields(suite.ProofPurpose, "", "")))
		})
	}
}

func TestSigner_UnsupportedInputs(t *testing.T) {
	signer, err := localissuer.New(testutil.DocumentLoader(t))
	require.NoError(t, err)

	doc, err := credential.NewIssueRequest(nil, suite.Version20, "")
	require.NoError(t, err)

	_, err = signer.Issue(doc, suite.ECDSASD2023, suite.P256)
	require.ErrorContains(t, err, "does not support cryptosuite")

	_, err = signer.Issue([]byte("not json"), suite.ECDSARDFC2019, suite.P256)
	require.Error(t, err)
}
