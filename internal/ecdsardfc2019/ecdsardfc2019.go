/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package ecdsardfc2019 implements the ecdsa-rdfc-2019 data integrity
// cryptographic suite for signing and verifying conformance fixtures.
package ecdsardfc2019

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/json"
	"errors"
	"fmt"
	"hash"
	"math/big"
	"time"

	"github.com/multiformats/go-multibase"
	"github.com/piprate/json-gold/ld"
	"github.com/trustbloc/did-go/doc/ld/processor"
	"github.com/trustbloc/kms-go/doc/jose/jwk"
	"github.com/trustbloc/vc-go/dataintegrity/models"
	"github.com/trustbloc/vc-go/dataintegrity/suite"
)

const (
	// SuiteType "ecdsa-rdfc-2019" is the data integrity Type identifier for the
	// suite implementing ecdsa signatures over an RDF canonicalized document as
	// per this spec: https://www.w3.org/TR/vc-di-ecdsa/#ecdsa-rdfc-2019
	SuiteType = "ecdsa-rdfc-2019"

	ldCtxKey = "@context"
)

// A Signer is able to sign messages.
type Signer interface {
	// Sign will sign msg using a private key internal to the Signer.
	Sign(msg []byte) ([]byte, error)
}

// SignerGetter returns the Signer for the given public key.
type SignerGetter func(key *jwk.JWK) (Signer, error)

// WithStaticSigner returns a SignerGetter that always returns the given
// Signer. The Signer must hold the private key matching the verification
// method of every proof it creates.
func WithStaticSigner(signer Signer) SignerGetter {
	return func(*jwk.JWK) (Signer, error) {
		return signer, nil
	}
}

// Suite implements the ecdsa-rdfc-2019 data integrity cryptographic suite.
type Suite struct {
	ldLoader ld.DocumentLoader
	signer   SignerGetter
}

// Options provides initialization options for Suite.
type Options struct {
	LDDocumentLoader ld.DocumentLoader
	SignerGetter     SignerGetter
}

// SuiteInitializer is the initializer for Suite.
type SuiteInitializer func() (suite.Suite, error)

// New constructs an initializer for Suite.
func New(options *Options) SuiteInitializer {
	return func() (suite.Suite, error) {
		return &Suite{
			ldLoader: options.LDDocumentLoader,
			signer:   options.SignerGetter,
		}, nil
	}
}

type initializer SuiteInitializer

// Signer private, implements suite.SignerInitializer.
func (i initializer) Signer() (suite.Signer, error) {
	return i()
}

// Verifier private, implements suite.VerifierInitializer.
func (i initializer) Verifier() (suite.Verifier, error) {
	return i()
}

// Type private, implements suite.SignerInitializer and
// suite.VerifierInitializer.
func (i initializer) Type() []string {
	return []string{SuiteType}
}

// SignerInitializerOptions provides options for a SignerInitializer.
type SignerInitializerOptions struct {
	LDDocumentLoader ld.DocumentLoader
	SignerGetter     SignerGetter
}

// NewSignerInitializer returns a suite.SignerInitializer that initializes an
// ecdsa-rdfc-2019 signing Suite with the given SignerInitializerOptions.
func NewSignerInitializer(options *SignerInitializerOptions) suite.SignerInitializer {
	return initializer(New(&Options{
		LDDocumentLoader: options.LDDocumentLoader,
		SignerGetter:     options.SignerGetter,
	}))
}

// VerifierInitializerOptions provides options for a VerifierInitializer.
type VerifierInitializerOptions struct {
	LDDocumentLoader ld.DocumentLoader
}

// NewVerifierInitializer returns a suite.VerifierInitializer that initializes
// an ecdsa-rdfc-2019 verification Suite with the given
// VerifierInitializerOptions.
func NewVerifierInitializer(options *VerifierInitializerOptions) suite.VerifierInitializer {
	return initializer(New(&Options{
		LDDocumentLoader: options.LDDocumentLoader,
	}))
}

// CreateProof implements the ecdsa-rdfc-2019 cryptographic suite for Add
// Proof: https://www.w3.org/TR/vc-di-ecdsa/#add-proof-ecdsa-rdfc-2019
func (s *Suite) CreateProof(doc []byte, opts *models.ProofOptions) (*models.Proof, error) {
	created := opts.Created
	if created.IsZero() {
		created = time.Now()
	}

	docHash, vmKey, err := s.transformAndHash(doc, opts, created)
	if err != nil {
		return nil, err
	}

	signer, err := s.signer(vmKey)
	if err != nil {
		return nil, err
	}

	sig, err := signer.Sign(docHash)
	if err != nil {
		return nil, err
	}

	sigStr, err := multibase.Encode(multibase.Base58BTC, sig)
	if err != nil {
		return nil, err
	}

	p := &models.Proof{
		Type:               models.DataIntegrityProof,
		CryptoSuite:        SuiteType,
		ProofPurpose:       opts.Purpose,
		Created:            created.Format(models.DateTimeFormat),
		Domain:             opts.Domain,
		Challenge:          opts.Challenge,
		VerificationMethod: opts.VerificationMethod.ID,
		ProofValue:         sigStr,
	}

	return p, nil
}

// VerifyProof implements the ecdsa-rdfc-2019 cryptographic suite for Verify
// Proof: https://www.w3.org/TR/vc-di-ecdsa/#verify-proof-ecdsa-rdfc-2019
func (s *Suite) VerifyProof(doc []byte, proof *models.Proof, opts *models.ProofOptions) error {
	created, err := time.Parse(models.DateTimeFormat, proof.Created)
	if err != nil {
		return fmt.Errorf("parsing proof created: %w", err)
	}

	sigBase, vmKey, err := s.transformAndHash(doc, opts, created)
	if err != nil {
		return err
	}

	_, sig, err := multibase.Decode(proof.ProofValue)
	if err != nil {
		return fmt.Errorf("decoding proofValue: %w", err)
	}

	if err := verifySignature(sigBase, sig, vmKey); err != nil {
		return fmt.Errorf("failed to verify ecdsa-rdfc-2019 DI proof: %w", err)
	}

	return nil
}

// RequiresCreated returns false, as the ecdsa-rdfc-2019 cryptographic suite
// does not require the use of the models.Proof.Created field.
func (s *Suite) RequiresCreated() bool {
	return false
}

func (s *Suite) transformAndHash(doc []byte, opts *models.ProofOptions, created time.Time) ([]byte, *jwk.JWK, error) {
	docData := make(map[string]interface{})

	err := json.Unmarshal(doc, &docData)
	if err != nil {
		return nil, nil, fmt.Errorf("ecdsa-rdfc-2019 suite expects JSON-LD payload: %w", err)
	}

	vmKey := opts.VerificationMethod.JSONWebKey()
	if vmKey == nil {
		return nil, nil, errors.New("verification method needs JWK")
	}

	var h hash.Hash

	switch vmKey.Crv {
	case "P-256":
		h = sha256.New()
	case "P-384":
		h = sha512.New384()
	default:
		return nil, nil, errors.New("unsupported ECDSA curve")
	}

	if opts.SuiteType != SuiteType {
		return nil, nil, suite.ErrProofTransformation
	}

	confData, err := proofConfig(docData[ldCtxKey], opts, created)
	if err != nil {
		return nil, nil, err
	}

	canonDoc, err := canonicalize(docData, s.ldLoader)
	if err != nil {
		return nil, nil, err
	}

	canonConf, err := canonicalize(confData, s.ldLoader)
	if err != nil {
		return nil, nil, err
	}

	return hashData(canonConf, canonDoc, h), vmKey, nil
}

func canonicalize(data map[string]interface{}, loader ld.DocumentLoader) ([]byte, error) {
	out, err := processor.Default().GetCanonicalDocument(data, processor.WithDocumentLoader(loader))
	if err != nil {
		return nil, fmt.Errorf("canonicalizing signature base data: %w", err)
	}

	return out, nil
}

// hashData concatenates the proof configuration hash and the transformed
// document hash, as per https://www.w3.org/TR/vc-di-ecdsa/#hashing-ecdsa-rdfc-2019
func hashData(confData, transformedDoc []byte, h hash.Hash) []byte {
	h.Write(confData)
	out := h.Sum(nil)

	h.Reset()
	h.Write(transformedDoc)

	return h.Sum(out)
}

func proofConfig(docCtx interface{}, opts *models.ProofOptions, created time.Time) (map[string]interface{}, error) {
	if opts.Purpose != opts.VerificationRelationship {
		return nil, errors.New("verification method is not suitable for purpose")
	}

	conf := map[string]interface{}{
		ldCtxKey:             docCtx,
		"type":               models.DataIntegrityProof,
		"cryptosuite":        SuiteType,
		"verificationMethod": opts.VerificationMethodID,
		"created":            created.Format(models.DateTimeFormat),
		"proofPurpose":       opts.Purpose,
	}

	if opts.Domain != "" {
		conf["domain"] = opts.Domain
	}

	if opts.Challenge != "" {
		conf["challenge"] = opts.Challenge
	}

	return conf, nil
}

func verifySignature(sigBase, sig []byte, key *jwk.JWK) error {
	pub, ok := key.Key.(*ecdsa.PublicKey)
	if !ok {
		return errors.New("verification key is not an ECDSA public key")
	}

	var h hash.Hash

	switch key.Crv {
	case "P-256":
		h = sha256.New()
	case "P-384":
		h = sha512.New384()
	default:
		return errors.New("unsupported ECDSA curve")
	}

	keySize := (pub.Curve.Params().BitSize + 7) / 8
	if len(sig) != 2*keySize {
		return errors.New("invalid signature size")
	}

	h.Write(sigBase)
	digest := h.Sum(nil)

	r := new(big.Int).SetBytes(sig[:keySize])
	ss := new(big.Int).SetBytes(sig[keySize:])

	if !ecdsa.Verify(pub, digest, r, ss) {
		return errors.New("invalid signature")
	}

	return nil
}
