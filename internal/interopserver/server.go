/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package interopserver is an in-process VC API implementation used by the
// BDD harness and the unit tests. It issues and cryptographically verifies
// ecdsa-rdfc-2019 credentials with the local fixture signer, and mocks the
// selective disclosure issue and derive operations with shape-conformant
// ecdsa-sd-2023 proofs.
package interopserver

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/multiformats/go-multibase"
	"github.com/piprate/json-gold/ld"
	"github.com/samber/lo"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"github.com/trustbloc/logutil-go/pkg/log"
	"github.com/trustbloc/vc-go/proof/defaults"
	"github.com/trustbloc/vc-go/verifiable"
	"github.com/trustbloc/vc-go/vermethod"

	"github.com/trustbloc/vc-conformance/internal/localissuer"
	"github.com/trustbloc/vc-conformance/internal/logfields"
	"github.com/trustbloc/vc-conformance/pkg/credential"
	"github.com/trustbloc/vc-conformance/pkg/registry"
	"github.com/trustbloc/vc-conformance/pkg/suite"
	"github.com/trustbloc/vc-conformance/pkg/vcapi"
)

var logger = log.New("interopserver")

const implementationName = "vc-conformance-interop"

// Server is the in-process VC API implementation.
type Server struct {
	echo   *echo.Echo
	signer *localissuer.Signer
	loader ld.DocumentLoader
}

// New returns a server holding fresh fixture keys.
func New(loader ld.DocumentLoader) (*Server, error) {
	signer, err := localissuer.New(loader)
	if err != nil {
		return nil, fmt.Errorf("create fixture signer: %w", err)
	}

	s := &Server{
		echo:   echo.New(),
		signer: signer,
		loader: loader,
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true

	s.echo.POST("/:keyType/credentials/issue", s.issue)
	s.echo.POST("/sd/credentials/issue", s.issueSDBase)
	s.echo.POST("/credentials/verify", s.verify)
	s.echo.POST("/credentials/derive", s.derive)
	s.echo.GET("/healthcheck", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "success"})
	})

	return s, nil
}

// Handler returns the HTTP handler, for mounting on an httptest server.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Signer returns the fixture signer holding the server's keys.
func (s *Server) Signer() *localissuer.Signer {
	return s.signer
}

// Implementation describes the server as an implementations manifest entry
// rooted at baseURL. Every endpoint carries the cryptosuites it serves plus
// the given run tags.
func (s *Server) Implementation(baseURL string, runTags ...string) *registry.Implementation {
	tags := func(suites ...string) []string {
		return append(suites, runTags...)
	}

	return &registry.Implementation{
		Name:           implementationName,
		Implementation: "https://github.com/trustbloc/vc-conformance",
		Issuers: []*registry.Endpoint{
			{
				ID:                     "interop-issuer-p256",
				Endpoint:               baseURL + "/p256/credentials/issue",
				IssuerDID:              s.signer.DID(suite.P256),
				Tags:                   tags(suite.ECDSARDFC2019),
				SupportedEcdsaKeyTypes: []string{string(suite.P256)},
			},
			{
				ID:                     "interop-issuer-p384",
				Endpoint:               baseURL + "/p384/credentials/issue",
				IssuerDID:              s.signer.DID(suite.P384),
				Tags:                   tags(suite.ECDSARDFC2019),
				SupportedEcdsaKeyTypes: []string{string(suite.P384)},
			},
			{
				ID:                     "interop-issuer-sd",
				Endpoint:               baseURL + "/sd/credentials/issue",
				IssuerDID:              s.signer.DID(suite.P256),
				Tags:                   tags(suite.ECDSASD2023),
				SupportedEcdsaKeyTypes: []string{string(suite.P256)},
			},
		},
		Verifiers: []*registry.Endpoint{
			{
				ID:                     "interop-verifier",
				Endpoint:               baseURL + "/credentials/verify",
				Tags:                   tags(suite.ECDSARDFC2019),
				SupportedEcdsaKeyTypes: []string{string(suite.P256), string(suite.P384)},
			},
		},
		Holders: []*registry.Endpoint{
			{
				ID:                     "interop-holder",
				Endpoint:               baseURL + "/credentials/derive",
				Tags:                   tags(suite.ECDSASD2023),
				SupportedEcdsaKeyTypes: []string{string(suite.P256)},
			},
		},
	}
}

func (s *Server) issue(c echo.Context) error {
	keyType, err := pathKeyType(c.Param("keyType"))
	if err != nil {
		return c.JSON(http.StatusNotFound, errorBody(err))
	}

	var req vcapi.IssueRequest

	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(fmt.Errorf("decode issue request: %w", err)))
	}

	signed, err := s.signer.Issue(req.Credential, suite.ECDSARDFC2019, keyType)
	if err != nil {
		logger.Warn("Failed to issue a credential", log.WithError(err), logfields.WithKeyType(string(keyType)))

		return c.JSON(http.StatusBadRequest, errorBody(err))
	}

	return c.JSON(http.StatusCreated, map[string]json.RawMessage{"verifiableCredential": signed})
}

// issueSDBase issues a mock ecdsa-sd-2023 base credential: the proof has the
// conformant shape and base CBOR header but an opaque payload, so it drives
// the derive flow without a full selective disclosure implementation.
func (s *Server) issueSDBase(c echo.Context) error {
	var req vcapi.IssueRequest

	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(fmt.Errorf("decode issue request: %w", err)))
	}

	doc, err := sjson.SetBytes(req.Credential, issuerPath(req.Credential), s.signer.DID(suite.P256))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(fmt.Errorf("set credential issuer: %w", err)))
	}

	digest := sha256.Sum256(doc)

	proofValue, err := multibase.Encode(multibase.Base64url, append(append([]byte{}, suite.SDBaseProofHeader...), digest[:]...))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorBody(err))
	}

	proof := map[string]interface{}{
		"type":               suite.ProofType,
		"cryptosuite":        suite.ECDSASD2023,
		"proofPurpose":       suite.ProofPurpose,
		"verificationMethod": s.signer.VerificationMethodID(suite.P256),
		"proofValue":         proofValue,
	}

	signed, err := sjson.SetBytes(doc, "proof", proof)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorBody(err))
	}

	return c.JSON(http.StatusCreated, map[string]json.RawMessage{"verifiableCredential": signed})
}

func (s *Server) verify(c echo.Context) error {
	var req vcapi.VerifyRequest

	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(fmt.Errorf("decode verify request: %w", err)))
	}

	if err := s.checkProof(req.VerifiableCredential); err != nil {
		logger.Debug("Rejected a credential", log.WithError(err))

		return c.JSON(http.StatusBadRequest, errorBody(err))
	}

	return c.JSON(http.StatusOK, map[string][]string{"checks": {"proof"}})
}

func (s *Server) checkProof(doc json.RawMessage) error {
	parsed, err := verifiable.ParseCredential(doc,
		verifiable.WithDisabledProofCheck(),
		verifiable.WithJSONLDDocumentLoader(s.loader))
	if err != nil {
		return fmt.Errorf("parse credential: %w", err)
	}

	if len(parsed.Proofs()) == 0 {
		return fmt.Errorf("credential carries no proof")
	}

	diVerifier, err := s.signer.Verifier()
	if err != nil {
		return err
	}

	err = parsed.CheckProof(
		verifiable.WithProofChecker(defaults.NewDefaultProofChecker(vermethod.NewVDRResolver(s.signer.Resolver()))),
		verifiable.WithJSONLDDocumentLoader(s.loader),
		verifiable.WithDataIntegrityVerifier(diVerifier),
		verifiable.WithExpectedDataIntegrityFields(suite.ProofPurpose, "", ""))
	if err != nil {
		return fmt.Errorf("proof check: %w", err)
	}

	return nil
}

// derive projects the credential to the selected subject claims and swaps the
// base proof header for the derived one.
func (s *Server) derive(c echo.Context) error {
	var req vcapi.DeriveRequest

	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(fmt.Errorf("decode derive request: %w", err)))
	}

	if req.Options == nil || len(req.Options.SelectivePointers) == 0 {
		return c.JSON(http.StatusBadRequest, errorBody(fmt.Errorf("derive request carries no selective pointers")))
	}

	derived, err := s.deriveCredential(req.VerifiableCredential, req.Options.SelectivePointers)
	if err != nil {
		logger.Warn("Failed to derive a credential", log.WithError(err))

		return c.JSON(http.StatusBadRequest, errorBody(err))
	}

	return c.JSON(http.StatusCreated, map[string]json.RawMessage{"verifiableCredential": derived})
}

func (s *Server) deriveCredential(signed json.RawMessage, selective []string) (json.RawMessage, error) {
	proofValue := gjson.GetBytes(signed, "proof.proofValue").String()

	encoding, decoded, err := multibase.Decode(proofValue)
	if err != nil {
		return nil, fmt.Errorf("decode base proofValue: %w", err)
	}

	if !bytes.HasPrefix(decoded, suite.SDBaseProofHeader) || len(decoded) == len(suite.SDBaseProofHeader) {
		return nil, fmt.Errorf("credential does not carry an %s base proof", suite.ECDSASD2023)
	}

	derivedValue, err := multibase.Encode(encoding,
		append(append([]byte{}, suite.SDDerivedProofHeader...), decoded[len(suite.SDDerivedProofHeader):]...))
	if err != nil {
		return nil, err
	}

	derived := append(json.RawMessage{}, signed...)

	for _, pointer := range credential.SubjectClaimPointers(signed) {
		if lo.Contains(selective, pointer) {
			continue
		}

		if derived, err = credential.DeletePointer(derived, pointer); err != nil {
			return nil, err
		}
	}

	if derived, err = sjson.SetBytes(derived, "proof.proofValue", derivedValue); err != nil {
		return nil, fmt.Errorf("set derived proofValue: %w", err)
	}

	return derived, nil
}

func pathKeyType(param string) (suite.KeyType, error) {
	switch param {
	case "p256":
		return suite.P256, nil
	case "p384":
		return suite.P384, nil
	}

	return "", fmt.Errorf("unknown key type path %q", param)
}

func issuerPath(doc []byte) string {
	if gjson.GetBytes(doc, "issuer").IsObject() {
		return "issuer.id"
	}

	return "issuer"
}

func errorBody(err error) map[string][]string {
	return map[string][]string{"errors": {err.Error()}}
}
