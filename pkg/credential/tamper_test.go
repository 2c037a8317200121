/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package credential

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/trustbloc/vc-conformance/pkg/suite"
)

func TestTampers(t *testing.T) {
	rdfc, err := suite.Lookup(suite.ECDSARDFC2019)
	require.NoError(t, err)

	sd, err := suite.Lookup(suite.ECDSASD2023)
	require.NoError(t, err)

	rdfcTampers := Tampers(rdfc)
	sdTampers := Tampers(sd)

	require.Len(t, rdfcTampers, 8)
	require.Len(t, sdTampers, 6)

	names := func(tampers []Tamper) []string {
		out := make([]string, 0, len(tampers))
		for _, tm := range tampers {
			out = append(out, tm.Name)
		}

		return out
	}

	require.Contains(t, names(rdfcTampers), "rejects credential with modified subject id")
	require.Contains(t, names(rdfcTampers), "rejects credential with removed context")
	require.NotContains(t, names(sdTampers), "rejects credential with modified subject id")
	require.NotContains(t, names(sdTampers), "rejects credential with removed context")
}

func TestTamperProofValue(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		signed := signedCredential(t)
		original := gjson.GetBytes(signed, "proof.proofValue").String()

		tampered, err := TamperProofValue(signed)
		require.NoError(t, err)

		mutated := gjson.GetBytes(tampered, "proof.proofValue").String()
		require.NotEqual(t, original, mutated)
		require.Len(t, mutated, len(original))
		require.Equal(t, original[:len(original)-1], mutated[:len(mutated)-1])
	})

	t.Run("Proof array", func(t *testing.T) {
		signed := asProofArray(t, signedCredential(t))
		original := gjson.GetBytes(signed, "proof.0.proofValue").String()

		tampered, err := TamperProofValue(signed)
		require.NoError(t, err)

		require.NotEqual(t, original, gjson.GetBytes(tampered, "proof.0.proofValue").String())
	})

	t.Run("Missing proofValue", func(t *testing.T) {
		signed, err := StripProofValue(signedCredential(t))
		require.NoError(t, err)

		_, err = TamperProofValue(signed)
		require.EqualError(t, err, "credential has no proofValue to tamper with")
	})
}

func TestStripProofType(t *testing.T) {
	tampered, err := StripProofType(signedCredential(t))
	require.NoError(t, err)

	require.False(t, gjson.GetBytes(tampered, "proof.type").Exists())
	require.True(t, gjson.GetBytes(tampered, "proof.proofValue").Exists())
}

func TestWrongCryptosuite(t *testing.T) {
	tampered, err := WrongCryptosuite(signedCredential(t))
	require.NoError(t, err)

	require.Equal(t, "unknown-cryptosuite", gjson.GetBytes(tampered, "proof.cryptosuite").String())
}

func TestStripProofValue(t *testing.T) {
	tampered, err := StripProofValue(signedCredential(t))
	require.NoError(t, err)

	require.False(t, gjson.GetBytes(tampered, "proof.proofValue").Exists())
}

func TestInvalidProofPurpose(t *testing.T) {
	tampered, err := InvalidProofPurpose(signedCredential(t))
	require.NoError(t, err)

	require.Equal(t, "authentication", gjson.GetBytes(tampered, "proof.proofPurpose").String())
}

func TestModifySubjectClaim(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		tampered, err := ModifySubjectClaim(signedCredential(t))
		require.NoError(t, err)

		require.Equal(t, "000-000-000", gjson.GetBytes(tampered, "credentialSubject.lprNumber").String())
	})

	t.Run("Subject array", func(t *testing.T) {
		signed, err := sjson.SetRawBytes(signedCredential(t), "credentialSubject",
			[]byte(`[{"id": "did:example:subject"}]`))
		require.NoError(t, err)

		tampered, err := ModifySubjectClaim(signed)
		require.NoError(t, err)

		require.Equal(t, "000-000-000", gjson.GetBytes(tampered, "credentialSubject.0.lprNumber").String())
	})
}

func TestMangleSubjectID(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		tampered, err := MangleSubjectID(signedCredential(t))
		require.NoError(t, err)

		require.Equal(t, "did:example:tampered-subject",
			gjson.GetBytes(tampered, "credentialSubject.id").String())
	})

	t.Run("Missing subject id", func(t *testing.T) {
		signed, err := sjson.DeleteBytes(signedCredential(t), "credentialSubject.id")
		require.NoError(t, err)

		_, err = MangleSubjectID(signed)
		require.EqualError(t, err, "credential subject has no id to modify")
	})
}

func TestStripContext(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		signed := signedCredential(t)
		before := len(gjson.GetBytes(signed, contextPath).Array())

		tampered, err := StripContext(signed)
		require.NoError(t, err)

		after := gjson.GetBytes(tampered, contextPath).Array()
		require.Len(t, after, before-1)
		require.Equal(t, suite.ContextCredentialsV1, after[0].String())
	})

	t.Run("Single context", func(t *testing.T) {
		signed, err := sjson.SetBytes(signedCredential(t), contextPath,
			[]interface{}{suite.ContextCredentialsV1})
		require.NoError(t, err)

		_, err = StripContext(signed)
		require.EqualError(t, err, "credential context has 1 entries, nothing to remove")
	})
}

func signedCredential(t *testing.T) []byte {
	t.Helper()

	doc, err := NewIssueRequest(nil, suite.Version11, "did:key:zDnaerDaTF5BXEavCrfRZEk316dpbLsfPDZ3WJ5hRTPFU2169")
	require.NoError(t, err)

	doc, err = sjson.SetBytes(doc, "proof", map[string]interface{}{
		"type":               suite.ProofType,
		"cryptosuite":        suite.ECDSARDFC2019,
		"proofPurpose":       suite.ProofPurpose,
		"verificationMethod": "did:key:zDnaerDaTF5BXEavCrfRZEk316dpbLsfPDZ3WJ5hRTPFU2169#zDnaerDaTF5BXEavCrfRZEk316dpbLsfPDZ3WJ5hRTPFU2169",
		"created":            "2024-02-08T12:19:52Z",
		"proofValue":         "z3FXQBp8XGRCQkwgzGGkhu9bJoLPVLyRd8H4URkTqBZaumYxUXQzq6JQgFWC7ADuXMUr4Nqfnaa8dBV1e5bgZ8dEQ",
	})
	require.NoError(t, err)

	return doc
}

func asProofArray(t *testing.T, signed []byte) []byte {
	t.Helper()

	proof := gjson.GetBytes(signed, "proof").Value()

	out, err := sjson.SetBytes(signed, "proof", []interface{}{proof})
	require.NoError(t, err)

	return out
}
