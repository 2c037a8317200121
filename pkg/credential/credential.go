/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package credential builds the test credentials POSTed to issuer endpoints
// and derives the tampered variants POSTed to verifier endpoints. All shaping
// happens on the raw JSON document.
package credential

import (
	_ "embed" //nolint:gci // required for go:embed
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/trustbloc/vc-conformance/pkg/suite"
)

//nolint:gochecknoglobals // embedded credential templates
var (
	//go:embed templates/credential_v1.json
	templateV1 []byte
	//go:embed templates/credential_v2.json
	templateV2 []byte
)

const (
	contextPath = `\@context`

	expiryYears = 5
)

// Template returns the built-in credential template for a data model version.
func Template(version suite.Version) []byte {
	if version == suite.Version20 {
		return append([]byte(nil), templateV2...)
	}

	return append([]byte(nil), templateV1...)
}

// NewIssueRequest prepares a credential for issuance: fresh urn:uuid id,
// current validity timestamps, the issuer set to issuerID when given, and the
// data-integrity context appended when the version requires it. The template
// may be nil, in which case the built-in one for the version is used.
func NewIssueRequest(template []byte, version suite.Version, issuerID string) ([]byte, error) {
	doc := template
	if len(doc) == 0 {
		doc = Template(version)
	}

	if !gjson.ValidBytes(doc) {
		return nil, fmt.Errorf("credential template is not valid JSON")
	}

	doc, err := sjson.SetBytes(doc, "id", uuid.New().URN())
	if err != nil {
		return nil, fmt.Errorf("set credential id: %w", err)
	}

	if issuerID != "" {
		issuerPath := "issuer"
		if gjson.GetBytes(doc, "issuer").IsObject() {
			issuerPath = "issuer.id"
		}

		if doc, err = sjson.SetBytes(doc, issuerPath, issuerID); err != nil {
			return nil, fmt.Errorf("set credential issuer: %w", err)
		}
	}

	if doc, err = setValidity(doc, version); err != nil {
		return nil, err
	}

	return ensureDataIntegrityContext(doc, version)
}

func setValidity(doc []byte, version suite.Version) ([]byte, error) {
	now := time.Now().UTC().Truncate(time.Second)

	fromField, untilField := "issuanceDate", "expirationDate"
	if version == suite.Version20 {
		fromField, untilField = "validFrom", "validUntil"
	}

	doc, err := sjson.SetBytes(doc, fromField, now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("set %s: %w", fromField, err)
	}

	if doc, err = sjson.SetBytes(doc, untilField, now.AddDate(expiryYears, 0, 0).Format(time.RFC3339)); err != nil {
		return nil, fmt.Errorf("set %s: %w", untilField, err)
	}

	return doc, nil
}

func ensureDataIntegrityContext(doc []byte, version suite.Version) ([]byte, error) {
	if !suite.NeedsDataIntegrityContext(version) {
		return doc, nil
	}

	for _, ctx := range gjson.GetBytes(doc, contextPath).Array() {
		if ctx.String() == suite.ContextDataIntegrity {
			return doc, nil
		}
	}

	doc, err := sjson.SetBytes(doc, contextPath+".-1", suite.ContextDataIntegrity)
	if err != nil {
		return nil, fmt.Errorf("append data-integrity context: %w", err)
	}

	return doc, nil
}

// DefaultMandatoryPointers returns the JSON pointers a derived credential
// must always keep for the given data model version.
func DefaultMandatoryPointers(version suite.Version) []string {
	if version == suite.Version20 {
		return []string{"/issuer", "/validFrom"}
	}

	return []string{"/issuer", "/issuanceDate"}
}

// DefaultSelectivePointers returns the JSON pointers disclosed by default in
// derive requests.
func DefaultSelectivePointers() []string {
	return []string{"/credentialSubject/givenName", "/credentialSubject/familyName"}
}

// PointerExists reports whether the JSON pointer resolves in the document.
func PointerExists(doc []byte, pointer string) bool {
	path, err := gjsonPath(pointer)
	if err != nil {
		return false
	}

	return gjson.GetBytes(doc, path).Exists()
}

// SelectPointers resolves each JSON pointer in the document, failing on the
// first pointer that does not resolve.
func SelectPointers(doc []byte, pointers []string) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(pointers))

	for _, pointer := range pointers {
		path, err := gjsonPath(pointer)
		if err != nil {
			return nil, err
		}

		r := gjson.GetBytes(doc, path)
		if !r.Exists() {
			return nil, fmt.Errorf("JSON pointer %q does not resolve", pointer)
		}

		out[pointer] = r.Value()
	}

	return out, nil
}

// DeletePointer removes the JSON pointer target from the document.
func DeletePointer(doc []byte, pointer string) ([]byte, error) {
	path, err := gjsonPath(pointer)
	if err != nil {
		return nil, err
	}

	return deleteBytes(doc, path)
}

// SubjectClaimPointers returns a JSON pointer for each first-level claim of
// the credential subject. The structural id and type members are left out so
// the result names only the claims a holder can choose to disclose.
func SubjectClaimPointers(doc []byte) []string {
	path := subjectPath(doc)
	prefix := "/" + strings.ReplaceAll(path, ".", "/")

	var pointers []string

	gjson.GetBytes(doc, path).ForEach(func(key, _ gjson.Result) bool {
		name := key.String()
		if name == "id" || name == "type" {
			return true
		}

		pointers = append(pointers, prefix+"/"+escapePointerSegment(name))

		return true
	})

	return pointers
}

// escapePointerSegment applies the RFC 6901 escaping to a single segment.
func escapePointerSegment(seg string) string {
	seg = strings.ReplaceAll(seg, "~", "~0")

	return strings.ReplaceAll(seg, "/", "~1")
}

// gjsonPath converts an RFC 6901 JSON pointer to a gjson path.
func gjsonPath(pointer string) (string, error) {
	if pointer == "" || !strings.HasPrefix(pointer, "/") {
		return "", fmt.Errorf("invalid JSON pointer %q", pointer)
	}

	segments := strings.Split(pointer[1:], "/")

	for i, seg := range segments {
		seg = strings.ReplaceAll(seg, "~1", "/")
		seg = strings.ReplaceAll(seg, "~0", "~")

		// escape gjson syntax characters
		for _, ch := range []string{"\\", ".", "*", "?", "@", "#"} {
			seg = strings.ReplaceAll(seg, ch, "\\"+ch)
		}

		segments[i] = seg
	}

	return strings.Join(segments, "."), nil
}
