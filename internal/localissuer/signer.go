/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package localissuer signs fixture credentials with locally held ECDSA
// keys, so verifier endpoints are exercised even when no issuer endpoint is
// in scope.
package localissuer

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/json"
	"fmt"

	"github.com/piprate/json-gold/ld"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"github.com/trustbloc/did-go/doc/did"
	ariesmockstorage "github.com/trustbloc/did-go/legacy/mock/storage"
	vdrapi "github.com/trustbloc/did-go/vdr/api"
	vdrmock "github.com/trustbloc/did-go/vdr/mock"
	"github.com/trustbloc/kms-go/doc/jose/jwk"
	arieskms "github.com/trustbloc/kms-go/kms"
	"github.com/trustbloc/kms-go/secretlock/noop"
	kmsapi "github.com/trustbloc/kms-go/spi/kms"
	wrapperapi "github.com/trustbloc/kms-go/wrapper/api"
	"github.com/trustbloc/kms-go/wrapper/localsuite"
	"github.com/trustbloc/vc-go/dataintegrity"
	"github.com/trustbloc/vc-go/verifiable"

	"github.com/trustbloc/vc-conformance/internal/ecdsardfc2019"
	"github.com/trustbloc/vc-conformance/pkg/multikey"
	"github.com/trustbloc/vc-conformance/pkg/suite"
)

const (
	didContext = "https://w3id.org/did/v1"
	vmType     = "JsonWebKey2020"
)

type fixtureKey struct {
	didKey string
	vmID   string
	pubJWK *jwk.JWK
	signer wrapperapi.FixedKeySigner
	doc    *did.Doc
}

// Signer signs fixture credentials with locally held ECDSA keys. The
// keys live in an in-memory KMS and are addressed by did:key DIDs, so signed
// fixtures verify against the signer's own DID resolver.
type Signer struct {
	loader ld.DocumentLoader
	keys   map[suite.KeyType]*fixtureKey
}

// New creates an in-memory KMS holding one P-256 and one P-384 key.
func New(loader ld.DocumentLoader) (*Signer, error) {
	kmsStore, err := arieskms.NewAriesProviderWrapper(ariesmockstorage.NewMockStoreProvider())
	if err != nil {
		return nil, fmt.Errorf("create KMS store: %w", err)
	}

	cryptoSuite, err := localsuite.NewLocalCryptoSuite("local-lock://custom/primary/key/", kmsStore, &noop.NoLock{})
	if err != nil {
		return nil, fmt.Errorf("create crypto suite: %w", err)
	}

	creator, err := cryptoSuite.KeyCreator()
	if err != nil {
		return nil, fmt.Errorf("create key creator: %w", err)
	}

	s := &Signer{
		loader: loader,
		keys:   make(map[suite.KeyType]*fixtureKey),
	}

	keyTypes := map[suite.KeyType]kmsapi.KeyType{
		suite.P256: kmsapi.ECDSAP256TypeIEEEP1363,
		suite.P384: kmsapi.ECDSAP384TypeIEEEP1363,
	}

	for keyType, kmsKeyType := range keyTypes {
		key, err := s.createKey(cryptoSuite, creator, keyType, kmsKeyType)
		if err != nil {
			return nil, fmt.Errorf("create %s fixture key: %w", keyType, err)
		}

		s.keys[keyType] = key
	}

	return s, nil
}

func (s *Signer) createKey(cryptoSuite wrapperapi.Suite, creator wrapperapi.KeyCreator,
	keyType suite.KeyType, kmsKeyType kmsapi.KeyType) (*fixtureKey, error) {
	pubJWK, err := creator.Create(kmsKeyType)
	if err != nil {
		return nil, err
	}

	pub, ok := pubJWK.Key.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("created key is %T, not an ECDSA public key", pubJWK.Key)
	}

	compressed := elliptic.MarshalCompressed(pub.Curve, pub.X, pub.Y)

	didKey, vmID := multikey.DIDKey(keyType, compressed)

	vm, err := did.NewVerificationMethodFromJWK(vmID, vmType, didKey, pubJWK)
	if err != nil {
		return nil, fmt.Errorf("create verification method: %w", err)
	}

	fks, err := cryptoSuite.FixedKeySigner(pubJWK.KeyID)
	if err != nil {
		return nil, fmt.Errorf("create fixed key signer: %w", err)
	}

	return &fixtureKey{
		didKey: didKey,
		vmID:   vmID,
		pubJWK: pubJWK,
		signer: fks,
		doc: &did.Doc{
			Context:            []string{didContext},
			ID:                 didKey,
			VerificationMethod: []did.VerificationMethod{*vm},
			AssertionMethod:    []did.Verification{{VerificationMethod: *vm}},
			Authentication:     []did.Verification{{VerificationMethod: *vm}},
		},
	}, nil
}

// Cryptosuites implements the runner's LocalIssuer interface.
func (s *Signer) Cryptosuites() []string {
	return []string{suite.ECDSARDFC2019}
}

// DID returns the did:key DID the signer issues under with the given key type.
func (s *Signer) DID(keyType suite.KeyType) string {
	return s.keys[keyType].didKey
}

// VerificationMethodID returns the verification method reference proofs by
// the given key type carry.
func (s *Signer) VerificationMethodID(keyType suite.KeyType) string {
	return s.keys[keyType].vmID
}

// Resolver returns a DID resolver covering the signer's own DIDs.
func (s *Signer) Resolver() vdrapi.Registry {
	return &vdrmock.VDRegistry{
		ResolveFunc: func(didID string, _ ...vdrapi.DIDMethodOption) (*did.DocResolution, error) {
			for _, key := range s.keys {
				if key.didKey == didID {
					return &did.DocResolution{DIDDocument: key.doc}, nil
				}
			}

			return nil, fmt.Errorf("%q is not a fixture DID", didID)
		},
	}
}

// Issue adds an ecdsa-rdfc-2019 data integrity proof to the credential. The
// credential issuer is rewritten to the signing DID so the proof controller
// matches.
func (s *Signer) Issue(credentialDoc json.RawMessage, suiteName string,
	keyType suite.KeyType) (json.RawMessage, error) {
	if suiteName != suite.ECDSARDFC2019 {
		return nil, fmt.Errorf("fixture signer does not support cryptosuite %q", suiteName)
	}

	key, ok := s.keys[keyType]
	if !ok {
		return nil, fmt.Errorf("fixture signer holds no %s key", keyType)
	}

	issuerPath := "issuer"
	if gjson.GetBytes(credentialDoc, "issuer").IsObject() {
		issuerPath = "issuer.id"
	}

	doc, err := sjson.SetBytes(credentialDoc, issuerPath, key.didKey)
	if err != nil {
		return nil, fmt.Errorf("set credential issuer: %w", err)
	}

	credential, err := verifiable.ParseCredential(doc,
		verifiable.WithDisabledProofCheck(),
		verifiable.WithJSONLDDocumentLoader(s.loader))
	if err != nil {
		return nil, fmt.Errorf("parse credential: %w", err)
	}

	signerInit := ecdsardfc2019.NewSignerInitializer(&ecdsardfc2019.SignerInitializerOptions{
		LDDocumentLoader: s.loader,
		SignerGetter:     ecdsardfc2019.WithStaticSigner(key.signer),
	})

	diSigner, err := dataintegrity.NewSigner(&dataintegrity.Options{
		DIDResolver: s.Resolver(),
	}, signerInit)
	if err != nil {
		return nil, fmt.Errorf("create data integrity signer: %w", err)
	}

	err = credential.AddDataIntegrityProof(&verifiable.DataIntegrityProofContext{
		SigningKeyID: key.vmID,
		CryptoSuite:  suite.ECDSARDFC2019,
		ProofPurpose: suite.ProofPurpose,
	}, diSigner)
	if err != nil {
		return nil, fmt.Errorf("add data integrity proof: %w", err)
	}

	signed, err := credential.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal signed credential: %w", err)
	}

	return signed, nil
}

// Verifier returns a data integrity verifier resolving the signer's DIDs.
func (s *Signer) Verifier() (*dataintegrity.Verifier, error) {
	verifierInit := ecdsardfc2019.NewVerifierInitializer(&ecdsardfc2019.VerifierInitializerOptions{
		LDDocumentLoader: s.loader,
	})

	verifier, err := dataintegrity.NewVerifier(&dataintegrity.Options{
		DIDResolver: s.Resolver(),
	}, verifierInit)
	if err != nil {
		return nil, fmt.Errorf("create data integrity verifier: %w", err)
	}

	return verifier, nil
}
