/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/multiformats/go-multibase"
	"github.com/samber/lo"
	"github.com/tidwall/gjson"
	"github.com/trustbloc/logutil-go/pkg/log"
	"github.com/trustbloc/vc-go/verifiable"

	"github.com/trustbloc/vc-conformance/internal/logfields"
	"github.com/trustbloc/vc-conformance/pkg/credential"
	"github.com/trustbloc/vc-conformance/pkg/multikey"
	"github.com/trustbloc/vc-conformance/pkg/registry"
	"github.com/trustbloc/vc-conformance/pkg/report"
	"github.com/trustbloc/vc-conformance/pkg/suite"
	"github.com/trustbloc/vc-conformance/pkg/vcapi"
)

// Assertions annotated by the issuance and verification cases. A matrix row
// name combines the cryptosuite, the data model version and the assertion.
const (
	rowIssue           = "issues a valid credential"
	rowWellFormed      = "issued credential is well formed"
	rowProof           = "issued credential has a conformant data integrity proof"
	rowMultikey        = "issued credential is signed with a conformant multikey"
	rowContent         = "issued credential preserves the credential content"
	rowDerive          = "derives a selective disclosure credential"
	rowDeriveDiscloses = "derived credential discloses the selected claims"
	rowDeriveOmits     = "derived credential omits undisclosed claims"
	rowDeriveProof     = "derived credential carries a derived proof"
	rowVerify          = "verifies a valid credential"
	rowRejectBase      = "rejects an undisclosed base credential"
)

// caseBase carries what every test case needs to call its endpoint and to
// annotate the report matrix.
type caseBase struct {
	runner  *Runner
	ctx     context.Context
	desc    *suite.Descriptor
	keyType suite.KeyType
	version suite.Version
	match   *registry.Match
	matrix  *report.Matrix
}

func (c *caseBase) rowName(assertion string) string {
	return fmt.Sprintf("%s [%s]: %s", c.desc.Name, c.version, assertion)
}

func (c *caseBase) annotate(assertion string, outcome report.Outcome, message string, duration time.Duration) {
	c.matrix.Add(&report.Cell{
		TestName:       c.rowName(assertion),
		Implementation: c.match.Implementation.Name,
		KeyType:        string(c.keyType),
		Outcome:        outcome,
		Message:        message,
		Duration:       duration,
	})

	c.runner.metrics.CaseCompleted(string(outcome))
}

func (c *caseBase) pass(assertion string, duration time.Duration) {
	c.annotate(assertion, report.OutcomePassed, "", duration)
}

func (c *caseBase) fail(assertion, message string, duration time.Duration) {
	logger.Warnc(c.ctx, "Test case failed", logfields.WithTestName(c.rowName(assertion)),
		logfields.WithImplementation(c.match.Implementation.Name),
		logfields.WithKeyType(string(c.keyType)))

	c.annotate(assertion, report.OutcomeFailed, message, duration)
}

func (c *caseBase) skip(assertion, message string) {
	c.annotate(assertion, report.OutcomeSkipped, message, 0)
}

// check runs an assertion and annotates its outcome.
func (c *caseBase) check(assertion string, fn func() error) bool {
	started := time.Now()

	if err := fn(); err != nil {
		c.fail(assertion, err.Error(), time.Since(started))

		return false
	}

	c.pass(assertion, time.Since(started))

	return true
}

func (c *caseBase) clientFor(match *registry.Match) *vcapi.Client {
	return vcapi.New(match.Endpoint.HTTPClient(c.ctx, c.runner.httpClient),
		vcapi.WithRetryCount(uint64(c.runner.cfg.HTTP.RetryCount)),
		vcapi.WithTracer(c.runner.tracer),
		vcapi.WithMetrics(c.runner.metrics))
}

func (c *caseBase) client() *vcapi.Client {
	return c.clientFor(c.match)
}

func (c *caseBase) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.ctx, c.runner.cfg.Timeout())
}

// issuanceCase drives one issuer endpoint through the issue flow for one
// cryptosuite, key type and data model version, and captures the signed
// credential for the verification phase.
type issuanceCase struct {
	caseBase

	holder   *registry.Match
	fixtures *fixtureStore
}

// Invoke implements Request. Endpoint failures are annotated in the matrix,
// so a non-nil error reports only a cancelled run.
func (c *issuanceCase) Invoke() (interface{}, error) {
	if err := c.ctx.Err(); err != nil {
		return nil, err
	}

	vector := c.runner.cfg.VectorFor(c.desc.Name)

	doc, err := credential.NewIssueRequest(vector.Credential, c.version, c.match.Endpoint.IssuerDID)
	if err != nil {
		c.fail(rowIssue, fmt.Sprintf("prepare credential: %s", err), 0)
		c.skipAfterIssue("credential preparation failed")

		return nil, nil
	}

	mandatory := vector.MandatoryPointers
	if len(mandatory) == 0 {
		mandatory = credential.DefaultMandatoryPointers(c.version)
	}

	req := &vcapi.IssueRequest{Credential: doc}

	if c.desc.SelectiveDisclosure {
		req.Options = &vcapi.IssueOptions{MandatoryPointers: mandatory}
	}

	opCtx, cancel := c.opContext()
	defer cancel()

	started := time.Now()

	signed, err := c.client().Issue(opCtx, c.match.Endpoint.Endpoint, req)
	duration := time.Since(started)

	if err != nil {
		logger.Warnc(c.ctx, "Credential issuance failed", log.WithURL(c.match.Endpoint.Endpoint),
			logfields.WithImplementation(c.match.Implementation.Name), log.WithError(err))

		c.fail(rowIssue, err.Error(), duration)
		c.skipAfterIssue("credential issuance failed")

		return nil, nil
	}

	c.pass(rowIssue, duration)

	c.checkSigned(signed, doc)

	f := &fixture{
		suiteName:      c.desc.Name,
		implementation: c.match.Implementation.Name,
		keyType:        c.keyType,
		version:        c.version,
		signed:         signed,
	}

	if c.desc.SelectiveDisclosure {
		selective := vector.SelectivePointers
		if len(selective) == 0 {
			selective = credential.DefaultSelectivePointers()
		}

		f.derived = c.derive(signed, mandatory, selective)
	}

	c.fixtures.add(f)

	return nil, nil
}

func (c *issuanceCase) checkSigned(signed, requested []byte) {
	c.check(rowWellFormed, func() error {
		_, err := verifiable.ParseCredential(signed,
			verifiable.WithDisabledProofCheck(),
			verifiable.WithJSONLDDocumentLoader(c.runner.documentLoader))

		return err
	})

	c.check(rowProof, func() error {
		proof, err := proofObject(signed)
		if err != nil {
			return err
		}

		if err := c.desc.ValidateProof(proof); err != nil {
			return err
		}

		if c.desc.SelectiveDisclosure {
			return checkProofHeader(proof, suite.SDBaseProofHeader, "base")
		}

		return nil
	})

	c.checkMultikey(signed)

	c.check(rowContent, func() error {
		if declared := c.match.Endpoint.IssuerDID; declared != "" {
			if got := issuerID(signed); got != declared {
				return fmt.Errorf("issuer is %q, expected %q", got, declared)
			}
		}

		return contentPreserved(requested, signed)
	})
}

// checkMultikey decodes the verification method of the proof. Verification
// methods that do not embed a multikey are skipped, not failed: did:web and
// similar methods need resolution this suite does not perform.
func (c *issuanceCase) checkMultikey(signed []byte) {
	proof, err := proofObject(signed)
	if err != nil {
		c.fail(rowMultikey, err.Error(), 0)

		return
	}

	vm, _ := proof["verificationMethod"].(string)

	key, err := multikey.FromVerificationMethod(vm)
	if err != nil {
		c.skip(rowMultikey, err.Error())

		return
	}

	c.check(rowMultikey, func() error {
		return multikey.Validate(key, c.keyType)
	})
}

// derive posts the signed credential to the holder endpoint and checks the
// derived credential it returns. Returns nil when no derived credential was
// obtained.
func (c *issuanceCase) derive(signed json.RawMessage, mandatory, selective []string) json.RawMessage {
	if c.holder == nil {
		c.skipDerive("no holder endpoint in scope")

		return nil
	}

	opCtx, cancel := c.opContext()
	defer cancel()

	started := time.Now()

	derived, err := c.clientFor(c.holder).Derive(opCtx, c.holder.Endpoint.Endpoint, &vcapi.DeriveRequest{
		VerifiableCredential: signed,
		Options:              &vcapi.DeriveOptions{SelectivePointers: selective},
	})
	duration := time.Since(started)

	if err != nil {
		logger.Warnc(c.ctx, "Credential derivation failed", log.WithURL(c.holder.Endpoint.Endpoint),
			logfields.WithImplementation(c.holder.Implementation.Name), log.WithError(err))

		c.fail(rowDerive, err.Error(), duration)
		c.skipDerived("credential derivation failed")

		return nil
	}

	c.pass(rowDerive, duration)

	c.check(rowDeriveDiscloses, func() error {
		for _, pointer := range append(append([]string{}, mandatory...), selective...) {
			if !credential.PointerExists(derived, pointer) {
				return fmt.Errorf("JSON pointer %q is not disclosed", pointer)
			}
		}

		return nil
	})

	c.check(rowDeriveOmits, func() error {
		for _, pointer := range credential.SubjectClaimPointers(signed) {
			if lo.Contains(selective, pointer) || lo.Contains(mandatory, pointer) {
				continue
			}

			if credential.PointerExists(derived, pointer) {
				return fmt.Errorf("undisclosed claim %q is present in the derived credential", pointer)
			}
		}

		return nil
	})

	c.check(rowDeriveProof, func() error {
		proof, err := proofObject(derived)
		if err != nil {
			return err
		}

		if err := c.desc.ValidateProof(proof); err != nil {
			return err
		}

		return checkProofHeader(proof, suite.SDDerivedProofHeader, "derived")
	})

	return derived
}

func (c *issuanceCase) skipAfterIssue(message string) {
	for _, assertion := range []string{rowWellFormed, rowProof, rowMultikey, rowContent} {
		c.skip(assertion, message)
	}

	if c.desc.SelectiveDisclosure {
		c.skipDerive(message)
	}
}

func (c *issuanceCase) skipDerive(message string) {
	c.skip(rowDerive, message)
	c.skipDerived(message)
}

func (c *issuanceCase) skipDerived(message string) {
	for _, assertion := range []string{rowDeriveDiscloses, rowDeriveOmits, rowDeriveProof} {
		c.skip(assertion, message)
	}
}

// verificationCase drives one verifier endpoint with the valid and the
// tampered variants of every captured fixture.
type verificationCase struct {
	caseBase

	fixtures []*fixture
}

// Invoke implements Request. Endpoint failures are annotated in the matrix,
// so a non-nil error reports only a cancelled run.
func (c *verificationCase) Invoke() (interface{}, error) {
	if err := c.ctx.Err(); err != nil {
		return nil, err
	}

	if len(c.fixtures) == 0 {
		c.skipAll(fmt.Sprintf("no %s credential was captured for %s/%s", c.desc.Name, c.keyType, c.version))

		return nil, nil
	}

	client := c.client()

	for _, f := range c.fixtures {
		c.exercise(client, f)
	}

	return nil, nil
}

func (c *verificationCase) exercise(client *vcapi.Client, f *fixture) {
	target := f.signed

	if c.desc.SelectiveDisclosure {
		if f.derived == nil {
			c.skipAll(fmt.Sprintf("no derived credential from %s", f.implementation))

			return
		}

		target = f.derived

		c.expectRejected(client, rowRejectBase, f.signed, f)
	}

	c.expectVerified(client, rowVerify, target, f)

	for _, tamper := range credential.Tampers(c.desc) {
		tampered, err := tamper.Apply(target)
		if err != nil {
			c.skip(tamper.Name, fmt.Sprintf("mutation does not apply: %s", err))

			continue
		}

		c.expectRejected(client, tamper.Name, tampered, f)
	}
}

func (c *verificationCase) skipAll(message string) {
	c.skip(rowVerify, message)

	if c.desc.SelectiveDisclosure {
		c.skip(rowRejectBase, message)
	}

	for _, tamper := range credential.Tampers(c.desc) {
		c.skip(tamper.Name, message)
	}
}

func (c *verificationCase) verify(client *vcapi.Client, target json.RawMessage) (*vcapi.VerifyResult, time.Duration, error) {
	opCtx, cancel := c.opContext()
	defer cancel()

	started := time.Now()

	result, err := client.Verify(opCtx, c.match.Endpoint.Endpoint, &vcapi.VerifyRequest{
		VerifiableCredential: target,
	})

	return result, time.Since(started), err
}

func (c *verificationCase) expectVerified(client *vcapi.Client, assertion string, target json.RawMessage, f *fixture) {
	result, duration, err := c.verify(client, target)
	if err != nil {
		c.fail(assertion, err.Error(), duration)

		return
	}

	if result.Rejected() {
		c.fail(assertion, fmt.Sprintf("credential from %s was rejected: %s",
			f.implementation, rejectionDetail(result)), duration)

		return
	}

	c.pass(assertion, duration)
}

func (c *verificationCase) expectRejected(client *vcapi.Client, assertion string, target json.RawMessage, f *fixture) {
	result, duration, err := c.verify(client, target)
	if err != nil {
		c.fail(assertion, err.Error(), duration)

		return
	}

	if !result.Rejected() {
		c.fail(assertion, fmt.Sprintf("credential from %s was verified but should have been rejected",
			f.implementation), duration)

		return
	}

	c.pass(assertion, duration)
}

func rejectionDetail(result *vcapi.VerifyResult) string {
	if len(result.Errors) == 0 {
		return fmt.Sprintf("status code %d", result.StatusCode)
	}

	return fmt.Sprintf("status code %d, errors [%s]", result.StatusCode, strings.Join(result.Errors, "; "))
}

// proofObject returns the first proof of the credential as a generic map.
func proofObject(doc []byte) (map[string]interface{}, error) {
	proof := gjson.GetBytes(doc, "proof")

	if proof.IsArray() {
		arr := proof.Array()
		if len(arr) == 0 {
			return nil, fmt.Errorf("credential carries no proof")
		}

		proof = arr[0]
	}

	obj, ok := proof.Value().(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("credential carries no proof")
	}

	return obj, nil
}

// checkProofHeader checks the CBOR tag an ecdsa-sd-2023 proofValue must open
// with after multibase decoding.
func checkProofHeader(proof map[string]interface{}, header []byte, kind string) error {
	pv, _ := proof["proofValue"].(string)

	_, decoded, err := multibase.Decode(pv)
	if err != nil {
		return fmt.Errorf("decode proofValue: %w", err)
	}

	if !bytes.HasPrefix(decoded, header) {
		return fmt.Errorf("proofValue does not open with the %s proof header", kind)
	}

	return nil
}

// contentPreserved checks that the issuer signed the credential it was asked
// to sign: same id, same subject, and no requested context dropped. Issuers
// may append contexts, a data integrity proof often needs its own. The
// issuer itself is not compared here: implementations that did not declare
// an issuer DID legitimately replace the one in the request.
func contentPreserved(requested, signed []byte) error {
	if want, got := gjson.GetBytes(requested, "id").String(), gjson.GetBytes(signed, "id").String(); want != got {
		return fmt.Errorf("credential id changed from %q to %q", want, got)
	}

	want := gjson.GetBytes(requested, "credentialSubject").Value()
	got := gjson.GetBytes(signed, "credentialSubject").Value()

	if !reflect.DeepEqual(want, got) {
		return fmt.Errorf("credential subject was modified")
	}

	signedContexts := gjson.GetBytes(signed, `\@context`).Array()

	for _, requestedCtx := range gjson.GetBytes(requested, `\@context`).Array() {
		found := lo.ContainsBy(signedContexts, func(signedCtx gjson.Result) bool {
			return reflect.DeepEqual(requestedCtx.Value(), signedCtx.Value())
		})

		if !found {
			return fmt.Errorf("context %s was dropped", requestedCtx.String())
		}
	}

	return nil
}

func issuerID(doc []byte) string {
	issuer := gjson.GetBytes(doc, "issuer")

	if issuer.IsObject() {
		return issuer.Get("id").String()
	}

	return issuer.String()
}
