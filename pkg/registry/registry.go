/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package registry loads the implementations manifests naming the endpoints
// under test and selects endpoints by tag, key type and VC version.
package registry

import (
	_ "embed" //nolint:gci // required for go:embed
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/trustbloc/logutil-go/pkg/log"

	"github.com/trustbloc/vc-conformance/internal/jsonschema"
	"github.com/trustbloc/vc-conformance/internal/logfields"
	"github.com/trustbloc/vc-conformance/pkg/suite"
)

const schemaID = "https://trustbloc.dev/schemas/vc-conformance-implementations.schema.json"

//go:embed implementations.schema.json
var schema []byte

var logger = log.New("registry")

// Registry is the loaded set of implementations.
type Registry struct {
	implementations map[string]*Implementation
}

// New builds a registry from in-memory implementations.
func New(implementations ...*Implementation) (*Registry, error) {
	r := &Registry{implementations: make(map[string]*Implementation, len(implementations))}

	for _, imp := range implementations {
		if imp.Name == "" {
			return nil, fmt.Errorf("implementation has no name")
		}

		if _, ok := r.implementations[imp.Name]; ok {
			return nil, fmt.Errorf("duplicate implementation name %q", imp.Name)
		}

		r.implementations[imp.Name] = imp
	}

	return r, nil
}

// Load reads implementations manifests from path, which is either a single
// manifest file or a directory of *.json manifests. Every document is
// validated against the embedded JSON schema.
func Load(path string) (*Registry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("read implementations path: %w", err)
	}

	files := []string{path}

	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("read implementations directory: %w", err)
		}

		files = nil

		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
				continue
			}

			files = append(files, filepath.Join(path, entry.Name()))
		}
	}

	r := &Registry{implementations: make(map[string]*Implementation)}

	validator := jsonschema.NewCachingValidator()

	for _, file := range files {
		jsonBytes, err := os.ReadFile(filepath.Clean(file))
		if err != nil {
			return nil, fmt.Errorf("read implementations manifest: %w", err)
		}

		if err = validator.ValidateBytes(jsonBytes, schemaID, schema); err != nil {
			return nil, fmt.Errorf("validate implementations manifest %s: %w", file, err)
		}

		imp := &Implementation{}

		if err = json.Unmarshal(jsonBytes, imp); err != nil {
			return nil, fmt.Errorf("unmarshal implementations manifest %s: %w", file, err)
		}

		if _, ok := r.implementations[imp.Name]; ok {
			return nil, fmt.Errorf("duplicate implementation name %q in %s", imp.Name, file)
		}

		r.implementations[imp.Name] = imp

		logger.Info("loaded implementation manifest", logfields.WithImplementation(imp.Name),
			logfields.WithPath(file))
	}

	return r, nil
}

// Implementations returns all implementations, ordered by name.
func (r *Registry) Implementations() []*Implementation {
	out := make([]*Implementation, 0, len(r.implementations))

	for _, imp := range r.implementations {
		out = append(out, imp)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})

	return out
}

// Issuers returns issuer endpoints matching the tags, key type and version.
func (r *Registry) Issuers(tags []string, keyType suite.KeyType, version suite.Version) []*Match {
	return r.filter(tags, keyType, version, func(imp *Implementation) []*Endpoint {
		return imp.Issuers
	})
}

// Verifiers returns verifier endpoints matching the tags, key type and
// version.
func (r *Registry) Verifiers(tags []string, keyType suite.KeyType, version suite.Version) []*Match {
	return r.filter(tags, keyType, version, func(imp *Implementation) []*Endpoint {
		return imp.Verifiers
	})
}

// Holders returns holder (derive) endpoints matching the tags, key type and
// version.
func (r *Registry) Holders(tags []string, keyType suite.KeyType, version suite.Version) []*Match {
	return r.filter(tags, keyType, version, func(imp *Implementation) []*Endpoint {
		return imp.Holders
	})
}

// HolderFor returns the implementation's own holder endpoint matching the
// tags, key type and version, falling back to any matching holder in the
// registry. Derive flows prefer keeping issuance and derivation inside one
// implementation.
func (r *Registry) HolderFor(imp *Implementation, tags []string, keyType suite.KeyType,
	version suite.Version) *Match {
	for _, e := range imp.Holders {
		if e.HasTag(tags) && e.SupportsKeyType(keyType) && e.SupportsVersion(version) {
			return &Match{Implementation: imp, Endpoint: e}
		}
	}

	if matches := r.Holders(tags, keyType, version); len(matches) > 0 {
		return matches[0]
	}

	return nil
}

func (r *Registry) filter(tags []string, keyType suite.KeyType, version suite.Version,
	endpoints func(*Implementation) []*Endpoint) []*Match {
	var matches []*Match

	for _, imp := range r.Implementations() {
		for _, e := range endpoints(imp) {
			if e.HasTag(tags) && e.SupportsKeyType(keyType) && e.SupportsVersion(version) {
				matches = append(matches, &Match{Implementation: imp, Endpoint: e})
			}
		}
	}

	return matches
}
