/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package credential

import (
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/trustbloc/vc-conformance/pkg/suite"
)

// Tamper is one deliberate mutation of a signed credential. A conformant
// verifier must reject the mutated document. Mutations keep the document
// parseable: the rejection under test is cryptographic, not syntactic.
type Tamper struct {
	// Name is the verifier test case name the mutation drives.
	Name string
	// Apply returns a mutated copy of the signed credential.
	Apply func(signed []byte) ([]byte, error)
}

// Tampers returns the mutations applicable to credentials of a cryptosuite.
func Tampers(d *suite.Descriptor) []Tamper {
	tampers := []Tamper{
		{Name: "rejects credential with tampered proofValue", Apply: TamperProofValue},
		{Name: "rejects credential without proof type", Apply: StripProofType},
		{Name: "rejects credential with unknown cryptosuite", Apply: WrongCryptosuite},
		{Name: "rejects credential without proofValue", Apply: StripProofValue},
		{Name: "rejects credential with wrong proof purpose", Apply: InvalidProofPurpose},
		{Name: "rejects credential with claims modified after signing", Apply: ModifySubjectClaim},
	}

	if !d.SelectiveDisclosure {
		tampers = append(tampers,
			Tamper{Name: "rejects credential with modified subject id", Apply: MangleSubjectID},
			Tamper{Name: "rejects credential with removed context", Apply: StripContext},
		)
	}

	return tampers
}

// TamperProofValue flips the final character of the proofValue, keeping the
// multibase header and length intact.
func TamperProofValue(signed []byte) ([]byte, error) {
	path := proofPath(signed) + ".proofValue"

	pv := gjson.GetBytes(signed, path).String()
	if len(pv) < 2 {
		return nil, fmt.Errorf("credential has no proofValue to tamper with")
	}

	last := "A"
	if pv[len(pv)-1] == 'A' {
		last = "B"
	}

	return setBytes(signed, path, pv[:len(pv)-1]+last)
}

// StripProofType removes the proof's type property.
func StripProofType(signed []byte) ([]byte, error) {
	return deleteBytes(signed, proofPath(signed)+".type")
}

// WrongCryptosuite replaces the proof's cryptosuite name.
func WrongCryptosuite(signed []byte) ([]byte, error) {
	return setBytes(signed, proofPath(signed)+".cryptosuite", "unknown-cryptosuite")
}

// StripProofValue removes the proof's proofValue property.
func StripProofValue(signed []byte) ([]byte, error) {
	return deleteBytes(signed, proofPath(signed)+".proofValue")
}

// InvalidProofPurpose rewrites the proof purpose to one the issuer did not
// sign for.
func InvalidProofPurpose(signed []byte) ([]byte, error) {
	return setBytes(signed, proofPath(signed)+".proofPurpose", "authentication")
}

// ModifySubjectClaim rewrites a subject claim without re-signing. On a
// derived credential where the claim was not disclosed this introduces an
// unsigned claim instead.
func ModifySubjectClaim(signed []byte) ([]byte, error) {
	return setBytes(signed, subjectPath(signed)+".lprNumber", "000-000-000")
}

// MangleSubjectID rewrites the credential subject id.
func MangleSubjectID(signed []byte) ([]byte, error) {
	path := subjectPath(signed) + ".id"

	if !gjson.GetBytes(signed, path).Exists() {
		return nil, fmt.Errorf("credential subject has no id to modify")
	}

	return setBytes(signed, path, "did:example:tampered-subject")
}

// StripContext drops the final @context entry.
func StripContext(signed []byte) ([]byte, error) {
	ctx := gjson.GetBytes(signed, contextPath).Array()
	if len(ctx) < 2 {
		return nil, fmt.Errorf("credential context has %d entries, nothing to remove", len(ctx))
	}

	trimmed := make([]interface{}, 0, len(ctx)-1)
	for _, c := range ctx[:len(ctx)-1] {
		trimmed = append(trimmed, c.Value())
	}

	return setBytes(signed, contextPath, trimmed)
}

func proofPath(doc []byte) string {
	if gjson.GetBytes(doc, "proof").IsArray() {
		return "proof.0"
	}

	return "proof"
}

func subjectPath(doc []byte) string {
	if gjson.GetBytes(doc, "credentialSubject").IsArray() {
		return "credentialSubject.0"
	}

	return "credentialSubject"
}

func setBytes(doc []byte, path string, value interface{}) ([]byte, error) {
	out, err := sjson.SetBytes(doc, path, value)
	if err != nil {
		return nil, fmt.Errorf("set %s: %w", path, err)
	}

	return out, nil
}

func deleteBytes(doc []byte, path string) ([]byte, error) {
	out, err := sjson.DeleteBytes(doc, path)
	if err != nil {
		return nil, fmt.Errorf("delete %s: %w", path, err)
	}

	if gjson.GetBytes(out, path).Exists() {
		return nil, fmt.Errorf("delete %s: property still present", path)
	}

	return out, nil
}
