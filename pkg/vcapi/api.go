/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package vcapi

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// IssueRequest is the request body of the issue credential endpoint.
type IssueRequest struct {
	Credential json.RawMessage `json:"credential"`
	Options    *IssueOptions   `json:"options,omitempty"`
}

// IssueOptions carries issuance options. Selective disclosure suites take
// the mandatory pointers here.
type IssueOptions struct {
	MandatoryPointers []string `json:"mandatoryPointers,omitempty"`
}

// DeriveRequest is the request body of the holder derive endpoint.
type DeriveRequest struct {
	VerifiableCredential json.RawMessage `json:"verifiableCredential"`
	Options              *DeriveOptions  `json:"options"`
}

// DeriveOptions carries the selective disclosure pointers for a derive request.
type DeriveOptions struct {
	SelectivePointers []string `json:"selectivePointers"`
}

// VerifyRequest is the request body of the verify credential endpoint.
type VerifyRequest struct {
	VerifiableCredential json.RawMessage `json:"verifiableCredential"`
	Options              *VerifyOptions  `json:"options,omitempty"`
}

// VerifyOptions carries the checks requested from the verifier.
type VerifyOptions struct {
	Checks []string `json:"checks"`
}

// VerifyResult is the parsed response of the verify credential endpoint. A
// non-2xx status code is part of the result rather than an error so that
// callers can assert an expected rejection.
type VerifyResult struct {
	StatusCode int
	Checks     []string
	Warnings   []string
	Errors     []string
}

// Rejected reports whether the verifier rejected the credential.
func (r *VerifyResult) Rejected() bool {
	if r.StatusCode < http.StatusOK || r.StatusCode >= http.StatusMultipleChoices {
		return true
	}

	return len(r.Errors) > 0
}

// StatusCodeError is returned when an endpoint responds with an unexpected
// status code.
type StatusCodeError struct {
	Expected int
	Actual   int
	Body     []byte
}

func (e *StatusCodeError) Error() string {
	return fmt.Sprintf("expected status code %d but got status code %d with response body %s instead",
		e.Expected, e.Actual, e.Body)
}
