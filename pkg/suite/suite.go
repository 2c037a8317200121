/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package suite describes the ECDSA Data Integrity cryptosuites covered by
// the conformance runner.
package suite

import (
	"fmt"
	"time"

	"github.com/multiformats/go-multibase"
	"github.com/samber/lo"
)

// Supported cryptosuite names.
const (
	ECDSARDFC2019 = "ecdsa-rdfc-2019"
	ECDSAJCS2019  = "ecdsa-jcs-2019"
	ECDSASD2023   = "ecdsa-sd-2023"
)

// Proof constants common to all ECDSA Data Integrity suites.
const (
	ProofType            = "DataIntegrityProof"
	ProofPurpose         = "assertionMethod"
	ContextCredentialsV1 = "https://www.w3.org/2018/credentials/v1"
	ContextCredentialsV2 = "https://www.w3.org/ns/credentials/v2"
	ContextDataIntegrity = "https://w3id.org/security/data-integrity/v1"
)

// CBOR header bytes of an ecdsa-sd-2023 proofValue after multibase decoding.
var (
	SDBaseProofHeader    = []byte{0xd9, 0x5d, 0x00}
	SDDerivedProofHeader = []byte{0xd9, 0x5d, 0x01}
)

// KeyType is an ECDSA key type the suites operate on.
type KeyType string

// Supported key types.
const (
	P256 KeyType = "P-256"
	P384 KeyType = "P-384"
)

// MulticodecCode returns the multicodec code for a compressed public key of
// this type.
func (kt KeyType) MulticodecCode() uint64 {
	if kt == P384 {
		return 0x1201
	}

	return 0x1200
}

// CompressedKeySize returns the size of a compressed public key of this type.
func (kt KeyType) CompressedKeySize() int {
	if kt == P384 {
		return 49
	}

	return 33
}

// MultikeyLength returns the expected decoded length of a multikey for this
// key type: a two-byte multicodec varint followed by the compressed key.
func (kt KeyType) MultikeyLength() int {
	return 2 + kt.CompressedKeySize()
}

// ParseKeyType parses a key type string.
func ParseKeyType(s string) (KeyType, error) {
	switch KeyType(s) {
	case P256:
		return P256, nil
	case P384:
		return P384, nil
	}

	return "", fmt.Errorf("unsupported key type %q, must be one of %s or %s", s, P256, P384)
}

// Version is a Verifiable Credential data model version.
type Version string

// Supported data model versions.
const (
	Version11 Version = "1.1"
	Version20 Version = "2.0"
)

// ParseVersion parses a VC data model version string.
func ParseVersion(s string) (Version, error) {
	switch Version(s) {
	case Version11:
		return Version11, nil
	case Version20:
		return Version20, nil
	}

	return "", fmt.Errorf("unsupported VC version %q, must be one of %s or %s", s, Version11, Version20)
}

// Context returns the base credentials context URL for the version.
func (v Version) Context() string {
	if v == Version20 {
		return ContextCredentialsV2
	}

	return ContextCredentialsV1
}

// NeedsDataIntegrityContext reports whether credentials of the given version
// must carry the data-integrity context to define DataIntegrityProof terms.
// The v2 base context defines them already.
func NeedsDataIntegrityContext(v Version) bool {
	return v != Version20
}

// Descriptor describes one cryptosuite.
type Descriptor struct {
	// Name is the value of the "cryptosuite" proof property.
	Name string
	// SelectiveDisclosure is true for suites whose credentials are derived
	// by a holder before presentation.
	SelectiveDisclosure bool
	// KeyTypes lists the key types the suite is defined for.
	KeyTypes []KeyType
	// ProofValueEncodings lists the multibase encodings a conformant
	// proofValue may use.
	ProofValueEncodings []multibase.Encoding
}

//nolint:gochecknoglobals
var descriptors = []*Descriptor{
	{
		Name:                ECDSARDFC2019,
		KeyTypes:            []KeyType{P256, P384},
		ProofValueEncodings: []multibase.Encoding{multibase.Base58BTC},
	},
	{
		Name:                ECDSAJCS2019,
		KeyTypes:            []KeyType{P256, P384},
		ProofValueEncodings: []multibase.Encoding{multibase.Base58BTC},
	},
	{
		Name:                ECDSASD2023,
		SelectiveDisclosure: true,
		KeyTypes:            []KeyType{P256},
		ProofValueEncodings: []multibase.Encoding{multibase.Base64url},
	},
}

// All returns descriptors for every supported cryptosuite.
func All() []*Descriptor {
	return descriptors
}

// Lookup returns the descriptor for the named cryptosuite.
func Lookup(name string) (*Descriptor, error) {
	for _, d := range descriptors {
		if d.Name == name {
			return d, nil
		}
	}

	return nil, fmt.Errorf("unsupported cryptosuite %q, must be one of [%s %s %s]",
		name, ECDSARDFC2019, ECDSAJCS2019, ECDSASD2023)
}

// SupportsKeyType reports whether the suite is defined for the key type.
func (d *Descriptor) SupportsKeyType(kt KeyType) bool {
	return lo.Contains(d.KeyTypes, kt)
}

// ValidateProof checks a Data Integrity proof object against the suite's
// requirements. The proof is the generic map shape credentials carry.
func (d *Descriptor) ValidateProof(proof map[string]interface{}) error {
	if typ, _ := proof["type"].(string); typ != ProofType {
		return fmt.Errorf("proof type is %q, expected %q", typ, ProofType)
	}

	if cs, _ := proof["cryptosuite"].(string); cs != d.Name {
		return fmt.Errorf("proof cryptosuite is %q, expected %q", cs, d.Name)
	}

	if purpose, _ := proof["proofPurpose"].(string); purpose != ProofPurpose {
		return fmt.Errorf("proof purpose is %q, expected %q", purpose, ProofPurpose)
	}

	if vm, _ := proof["verificationMethod"].(string); vm == "" {
		return fmt.Errorf("proof is missing verificationMethod")
	}

	if created, ok := proof["created"]; ok {
		createdStr, _ := created.(string)
		if _, err := time.Parse(time.RFC3339, createdStr); err != nil {
			return fmt.Errorf("proof created %q is not RFC3339: %w", createdStr, err)
		}
	}

	return d.validateProofValue(proof)
}

func (d *Descriptor) validateProofValue(proof map[string]interface{}) error {
	pv, _ := proof["proofValue"].(string)
	if pv == "" {
		return fmt.Errorf("proof is missing proofValue")
	}

	encoding, _, err := multibase.Decode(pv)
	if err != nil {
		return fmt.Errorf("decode proofValue: %w", err)
	}

	if !lo.Contains(d.ProofValueEncodings, encoding) {
		return fmt.Errorf("proofValue of %s uses multibase encoding %q, expected one of %v",
			d.Name, string(rune(encoding)), encodingPrefixes(d.ProofValueEncodings))
	}

	return nil
}

func encodingPrefixes(encodings []multibase.Encoding) []string {
	return lo.Map(encodings, func(e multibase.Encoding, _ int) string {
		return string(rune(e))
	})
}
