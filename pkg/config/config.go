/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package config loads and validates the conformance runner configuration.
package config

import (
	_ "embed" //nolint:gci // required for go:embed
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/samber/lo"

	"github.com/trustbloc/vc-conformance/internal/jsonschema"
	"github.com/trustbloc/vc-conformance/pkg/suite"
)

const schemaID = "https://trustbloc.dev/schemas/vc-conformance-config.schema.json"

//go:embed config.schema.json
var schema []byte

// Defaults applied by Load.
const (
	DefaultConcurrency    = 4
	DefaultTimeoutSeconds = 30
	DefaultRetryCount     = 2
)

// Config is the runner configuration.
type Config struct {
	// SuiteName titles the report.
	SuiteName string `json:"suiteName,omitempty"`
	// Suites restricts the run to the named cryptosuites. Empty means all.
	Suites []string `json:"suites,omitempty"`
	// Tags select implementation endpoints from the registry.
	Tags []string `json:"tags"`
	// KeyTypes restricts the run to the named ECDSA key types.
	KeyTypes []string `json:"keyTypes,omitempty"`
	// VCVersions restricts the run to the named VC data model versions.
	VCVersions []string `json:"vcVersions,omitempty"`
	// Implementations is the path of an implementations manifest file or of a
	// directory of manifests.
	Implementations string `json:"implementations,omitempty"`
	// Vectors overrides test vector inputs per cryptosuite.
	Vectors map[string]*VectorConfig `json:"vectors,omitempty"`
	// HTTP configures the VC API client.
	HTTP *HTTPConfig `json:"http,omitempty"`
	// Concurrency is the worker pool size.
	Concurrency int `json:"concurrency,omitempty"`
	// ReportPath is where the JSON report is written.
	ReportPath string `json:"reportPath,omitempty"`
}

// VectorConfig overrides test vector inputs for one cryptosuite.
type VectorConfig struct {
	// Credential replaces the built-in credential template.
	Credential json.RawMessage `json:"credential,omitempty"`
	// MandatoryPointers are JSON pointers every derived credential must keep.
	MandatoryPointers []string `json:"mandatoryPointers,omitempty"`
	// SelectivePointers are JSON pointers a holder discloses on derive.
	SelectivePointers []string `json:"selectivePointers,omitempty"`
}

// HTTPConfig configures the VC API client.
type HTTPConfig struct {
	TimeoutSeconds int  `json:"timeoutSeconds,omitempty"`
	RetryCount     int  `json:"retryCount,omitempty"`
	TLSSkipVerify  bool `json:"tlsSkipVerify,omitempty"`
	Debug          bool `json:"debug,omitempty"`
}

// Load reads the configuration file, validates it against the embedded JSON
// schema and applies defaults.
func Load(path string) (*Config, error) {
	jsonBytes, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err = jsonschema.NewCachingValidator().ValidateBytes(jsonBytes, schemaID, schema); err != nil {
		return nil, fmt.Errorf("validate config file: %w", err)
	}

	cfg := &Config{}

	if err = json.Unmarshal(jsonBytes, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config file: %w", err)
	}

	cfg.SetDefaults()

	if err = cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SetDefaults fills unset fields with defaults.
func (c *Config) SetDefaults() {
	if len(c.Suites) == 0 {
		c.Suites = lo.Map(suite.All(), func(d *suite.Descriptor, _ int) string {
			return d.Name
		})
	}

	if len(c.KeyTypes) == 0 {
		c.KeyTypes = []string{string(suite.P256), string(suite.P384)}
	}

	if len(c.VCVersions) == 0 {
		c.VCVersions = []string{string(suite.Version11), string(suite.Version20)}
	}

	if c.Concurrency == 0 {
		c.Concurrency = DefaultConcurrency
	}

	if c.HTTP == nil {
		c.HTTP = &HTTPConfig{}
	}

	if c.HTTP.TimeoutSeconds == 0 {
		c.HTTP.TimeoutSeconds = DefaultTimeoutSeconds
	}

	if c.HTTP.RetryCount == 0 {
		c.HTTP.RetryCount = DefaultRetryCount
	}
}

// Validate checks cross-field constraints the JSON schema cannot express.
func (c *Config) Validate() error {
	if len(c.Tags) == 0 {
		return fmt.Errorf("config selects no endpoints: at least one tag is required")
	}

	for _, name := range c.Suites {
		if _, err := suite.Lookup(name); err != nil {
			return err
		}
	}

	for name := range c.Vectors {
		if !lo.Contains(c.Suites, name) {
			if _, err := suite.Lookup(name); err != nil {
				return fmt.Errorf("vectors: %w", err)
			}

			return fmt.Errorf("vectors configured for cryptosuite %q which is not in scope", name)
		}
	}

	for _, kt := range c.KeyTypes {
		if _, err := suite.ParseKeyType(kt); err != nil {
			return err
		}
	}

	for _, v := range c.VCVersions {
		if _, err := suite.ParseVersion(v); err != nil {
			return err
		}
	}

	return nil
}

// Descriptors returns the cryptosuite descriptors in scope.
func (c *Config) Descriptors() []*suite.Descriptor {
	return lo.Map(c.Suites, func(name string, _ int) *suite.Descriptor {
		d, _ := suite.Lookup(name) //nolint:errcheck // validated by Load

		return d
	})
}

// ECDSAKeyTypes returns the key types in scope.
func (c *Config) ECDSAKeyTypes() []suite.KeyType {
	return lo.Map(c.KeyTypes, func(kt string, _ int) suite.KeyType {
		return suite.KeyType(kt)
	})
}

// Versions returns the VC data model versions in scope.
func (c *Config) Versions() []suite.Version {
	return lo.Map(c.VCVersions, func(v string, _ int) suite.Version {
		return suite.Version(v)
	})
}

// VectorFor returns the vector overrides for a cryptosuite, or an empty
// config when none were provided.
func (c *Config) VectorFor(suiteName string) *VectorConfig {
	if v, ok := c.Vectors[suiteName]; ok && v != nil {
		return v
	}

	return &VectorConfig{}
}

// Timeout returns the per-request HTTP timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}
