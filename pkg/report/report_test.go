/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCellColumnID(t *testing.T) {
	cell := &Cell{
		Implementation: "acme-vc-api",
		KeyType:        "P-256",
	}

	require.Equal(t, "acme-vc-api (P-256)", cell.ColumnID())
}

func TestMatrixAdd(t *testing.T) {
	t.Run("Worse outcome wins", func(t *testing.T) {
		m := NewMatrix("ecdsa-rdfc-2019")

		m.Add(newCell("issues a valid credential", "acme-vc-api", "P-256", OutcomePassed))
		m.Add(&Cell{
			TestName:       "issues a valid credential",
			Implementation: "acme-vc-api",
			KeyType:        "P-256",
			Outcome:        OutcomeFailed,
			Message:        "proof is missing",
		})

		cell := m.CellAt("issues a valid credential", "acme-vc-api (P-256)")
		require.NotNil(t, cell)
		require.Equal(t, OutcomeFailed, cell.Outcome)
		require.Equal(t, "proof is missing", cell.Message)
	})

	t.Run("Better outcome does not overwrite", func(t *testing.T) {
		m := NewMatrix("ecdsa-rdfc-2019")

		m.Add(newCell("issues a valid credential", "acme-vc-api", "P-256", OutcomeFailed))
		m.Add(newCell("issues a valid credential", "acme-vc-api", "P-256", OutcomePassed))
		m.Add(newCell("issues a valid credential", "acme-vc-api", "P-256", OutcomeSkipped))

		require.Equal(t, OutcomeFailed,
			m.CellAt("issues a valid credential", "acme-vc-api (P-256)").Outcome)
	})

	t.Run("Skipped overwrites passed", func(t *testing.T) {
		m := NewMatrix("ecdsa-rdfc-2019")

		m.Add(newCell("issues a valid credential", "acme-vc-api", "P-256", OutcomePassed))
		m.Add(newCell("issues a valid credential", "acme-vc-api", "P-256", OutcomeSkipped))

		require.Equal(t, OutcomeSkipped,
			m.CellAt("issues a valid credential", "acme-vc-api (P-256)").Outcome)
	})

	t.Run("Concurrent annotation", func(t *testing.T) {
		m := NewMatrix("ecdsa-rdfc-2019")

		var wg sync.WaitGroup

		for i := 0; i < 100; i++ {
			wg.Add(1)

			go func(i int) {
				defer wg.Done()

				m.Add(newCell(fmt.Sprintf("test %d", i%10), "acme-vc-api", "P-256", OutcomePassed))
			}(i)
		}

		wg.Wait()

		require.Equal(t, 10, m.Summary().Total)
	})
}

func TestMatrixRowsAndColumns(t *testing.T) {
	m := NewMatrix("ecdsa-rdfc-2019")

	m.Add(newCell("verifies a valid credential", "orbit", "P-384", OutcomePassed))
	m.Add(newCell("issues a valid credential", "acme-vc-api", "P-256", OutcomePassed))
	m.Add(newCell("issues a valid credential", "orbit", "P-384", OutcomePassed))

	require.Equal(t, []string{"issues a valid credential", "verifies a valid credential"}, m.Rows())
	require.Equal(t, []string{"acme-vc-api (P-256)", "orbit (P-384)"}, m.Columns())

	require.Nil(t, m.CellAt("verifies a valid credential", "acme-vc-api (P-256)"))
}

func TestMatrixSummary(t *testing.T) {
	m := NewMatrix("ecdsa-rdfc-2019")

	m.Add(newCell("test 1", "acme-vc-api", "P-256", OutcomePassed))
	m.Add(newCell("test 2", "acme-vc-api", "P-256", OutcomeFailed))
	m.Add(newCell("test 3", "acme-vc-api", "P-256", OutcomeSkipped))
	m.Add(newCell("test 4", "acme-vc-api", "P-256", OutcomePassed))

	s := m.Summary()

	require.Equal(t, 4, s.Total)
	require.Equal(t, 2, s.Passed)
	require.Equal(t, 1, s.Failed)
	require.Equal(t, 1, s.Skipped)
}

func TestMatrixDocument(t *testing.T) {
	m := NewMatrix("ecdsa-sd-2023")

	slow := newCell("issues a valid credential", "acme-vc-api", "P-256", OutcomePassed)
	slow.Duration = 300 * time.Millisecond

	fast := newCell("verifies a valid credential", "acme-vc-api", "P-256", OutcomePassed)
	fast.Duration = 100 * time.Millisecond

	m.Add(slow)
	m.Add(fast)

	doc := m.Document()

	require.Equal(t, "ecdsa-sd-2023", doc.Suite)
	require.False(t, doc.Generated.IsZero())
	require.Equal(t, 2, doc.Summary.Total)
	require.Len(t, doc.Rows, 2)
	require.Equal(t, "issues a valid credential", doc.Rows[0].TestName)
	require.NotNil(t, doc.Rows[0].Cells["acme-vc-api (P-256)"])

	require.Len(t, doc.Latency, 1)
	require.Equal(t, "acme-vc-api (P-256)", doc.Latency[0].Name)
	require.Equal(t, 200*time.Millisecond, doc.Latency[0].Avg)
	require.Equal(t, 300*time.Millisecond, doc.Latency[0].Max)
	require.Equal(t, 100*time.Millisecond, doc.Latency[0].Min)
}

func TestWriteJSON(t *testing.T) {
	m := NewMatrix("ecdsa-rdfc-2019")

	m.Add(newCell("issues a valid credential", "acme-vc-api", "P-256", OutcomePassed))

	var buf bytes.Buffer

	require.NoError(t, m.WriteJSON(&buf))

	doc := &Document{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), doc))

	require.Equal(t, "ecdsa-rdfc-2019", doc.Suite)
	require.Equal(t, []string{"acme-vc-api (P-256)"}, doc.Columns)
	require.Len(t, doc.Rows, 1)
}

func TestWriteSummary(t *testing.T) {
	m := NewMatrix("ecdsa-rdfc-2019")

	m.Add(newCell("issues a valid credential", "acme-vc-api", "P-256", OutcomePassed))
	m.Add(&Cell{
		TestName:       "rejects credential with tampered proofValue",
		Implementation: "orbit",
		KeyType:        "P-384",
		Outcome:        OutcomeFailed,
		Message:        "expected rejection but the credential verified",
	})

	var buf bytes.Buffer

	require.NoError(t, m.WriteSummary(&buf))

	out := buf.String()

	require.Contains(t, out, "Suite: ecdsa-rdfc-2019")
	require.Contains(t, out, "Total: 2  Passed: 1  Failed: 1  Skipped: 0")
	require.Contains(t, out,
		"FAILED [orbit (P-384)] rejects credential with tampered proofValue: expected rejection but the credential verified")
}

func newCell(testName, implementation, keyType string, outcome Outcome) *Cell {
	return &Cell{
		TestName:       testName,
		Implementation: implementation,
		KeyType:        keyType,
		Outcome:        outcome,
	}
}
