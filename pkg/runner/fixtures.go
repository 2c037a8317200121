/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package runner

import (
	"encoding/json"
	"sync"

	"github.com/trustbloc/vc-conformance/pkg/suite"
)

// fixture is a signed credential captured during the issuance phase and fed
// to verifier endpoints during the verification phase.
type fixture struct {
	suiteName      string
	implementation string
	keyType        suite.KeyType
	version        suite.Version
	signed         json.RawMessage
	// derived is filled for selective disclosure suites when a holder
	// endpoint produced a derived credential.
	derived json.RawMessage
}

// fixtureStore collects fixtures from concurrently executing cases.
type fixtureStore struct {
	mutex    sync.RWMutex
	fixtures []*fixture
}

func newFixtureStore() *fixtureStore {
	return &fixtureStore{}
}

func (s *fixtureStore) add(f *fixture) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.fixtures = append(s.fixtures, f)
}

func (s *fixtureStore) find(suiteName string, keyType suite.KeyType, version suite.Version) []*fixture {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var out []*fixture

	for _, f := range s.fixtures {
		if f.suiteName == suiteName && f.keyType == keyType && f.version == version {
			out = append(out, f)
		}
	}

	return out
}
