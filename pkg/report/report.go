/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package report aggregates test case outcomes into the conformance matrix:
// one row per test name, one column per implementation and key type.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/greenpau/go-calculator"
)

// Outcome is the result of a single test case.
type Outcome string

const (
	OutcomePassed  Outcome = "passed"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// Cell is one cell of the conformance matrix.
type Cell struct {
	TestName       string        `json:"testName"`
	Implementation string        `json:"implementation"`
	KeyType        string        `json:"keyType"`
	Outcome        Outcome       `json:"outcome"`
	Message        string        `json:"message,omitempty"`
	Duration       time.Duration `json:"duration,omitempty"`
}

// ColumnID returns the matrix column of the cell.
func (c *Cell) ColumnID() string {
	return fmt.Sprintf("%s (%s)", c.Implementation, c.KeyType)
}

// Summary counts cells by outcome.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Metric holds the latency statistics of one matrix column.
type Metric struct {
	Name string        `json:"name"`
	Avg  time.Duration `json:"avg"`
	Max  time.Duration `json:"max"`
	Min  time.Duration `json:"min"`
}

// Row is one matrix row with its cells keyed by column.
type Row struct {
	TestName string           `json:"testName"`
	Cells    map[string]*Cell `json:"cells"`
}

// Document is the serialized form of the matrix.
type Document struct {
	Suite     string    `json:"suite,omitempty"`
	Generated time.Time `json:"generated"`
	Summary   *Summary  `json:"summary"`
	Columns   []string  `json:"columns"`
	Rows      []*Row    `json:"rows"`
	Latency   []*Metric `json:"latency,omitempty"`
}

type cellKey struct {
	row    string
	column string
}

// Matrix collects cells from concurrently running test cases.
type Matrix struct {
	suiteName string

	mutex sync.RWMutex
	cells map[cellKey]*Cell
}

// NewMatrix returns an empty matrix.
func NewMatrix(suiteName string) *Matrix {
	return &Matrix{
		suiteName: suiteName,
		cells:     make(map[cellKey]*Cell),
	}
}

// Add annotates a cell. When the cell was already annotated the worse outcome
// wins, so a single failing case marks the cell failed.
func (m *Matrix) Add(cell *Cell) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	key := cellKey{row: cell.TestName, column: cell.ColumnID()}

	existing, ok := m.cells[key]
	if !ok || outcomeRank(cell.Outcome) > outcomeRank(existing.Outcome) {
		m.cells[key] = cell
	}
}

// CellAt returns the cell at the given row and column, or nil.
func (m *Matrix) CellAt(testName, columnID string) *Cell {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return m.cells[cellKey{row: testName, column: columnID}]
}

// Rows returns the sorted test names.
func (m *Matrix) Rows() []string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return m.keys(func(k cellKey) string { return k.row })
}

// Columns returns the sorted column IDs.
func (m *Matrix) Columns() []string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return m.keys(func(k cellKey) string { return k.column })
}

func (m *Matrix) keys(part func(cellKey) string) []string {
	seen := make(map[string]struct{})

	var out []string

	for k := range m.cells {
		if _, ok := seen[part(k)]; !ok {
			seen[part(k)] = struct{}{}

			out = append(out, part(k))
		}
	}

	sort.Strings(out)

	return out
}

// Summary returns the outcome counts.
func (m *Matrix) Summary() *Summary {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	s := &Summary{}

	for _, cell := range m.cells {
		s.Total++

		switch cell.Outcome {
		case OutcomePassed:
			s.Passed++
		case OutcomeFailed:
			s.Failed++
		case OutcomeSkipped:
			s.Skipped++
		}
	}

	return s
}

// Document builds the serializable form of the matrix.
func (m *Matrix) Document() *Document {
	doc := &Document{
		Suite:     m.suiteName,
		Generated: time.Now().UTC(),
		Summary:   m.Summary(),
		Columns:   m.Columns(),
		Latency:   m.latency(),
	}

	m.mutex.RLock()
	defer m.mutex.RUnlock()

	rows := make(map[string]*Row)

	for key, cell := range m.cells {
		row, ok := rows[key.row]
		if !ok {
			row = &Row{TestName: key.row, Cells: make(map[string]*Cell)}
			rows[key.row] = row

			doc.Rows = append(doc.Rows, row)
		}

		row.Cells[key.column] = cell
	}

	sort.Slice(doc.Rows, func(i, j int) bool {
		return doc.Rows[i].TestName < doc.Rows[j].TestName
	})

	return doc
}

func (m *Matrix) latency() []*Metric {
	m.mutex.RLock()

	data := make(map[string][]int64)

	for key, cell := range m.cells {
		if cell.Duration > 0 {
			data[key.column] = append(data[key.column], cell.Duration.Milliseconds())
		}
	}

	m.mutex.RUnlock()

	var out []*Metric

	for column, values := range data {
		calc := calculator.NewInt64(values)

		out = append(out, &Metric{
			Name: column,
			Avg:  time.Duration(calc.Mean().Register.Mean) * time.Millisecond,
			Max:  time.Duration(calc.Max().Register.MaxValue) * time.Millisecond,
			Min:  time.Duration(calc.Min().Register.MinValue) * time.Millisecond,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})

	return out
}

// WriteJSON writes the matrix as an indented JSON document.
func (m *Matrix) WriteJSON(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(m.Document()); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	return nil
}

// WriteSummary writes a short human readable summary, listing failed cells.
func (m *Matrix) WriteSummary(w io.Writer) error {
	doc := m.Document()

	if doc.Suite != "" {
		if _, err := fmt.Fprintf(w, "Suite: %s\n", doc.Suite); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}

	_, err := fmt.Fprintf(w, "Total: %d  Passed: %d  Failed: %d  Skipped: %d\n",
		doc.Summary.Total, doc.Summary.Passed, doc.Summary.Failed, doc.Summary.Skipped)
	if err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	for _, row := range doc.Rows {
		for _, column := range doc.Columns {
			cell, ok := row.Cells[column]
			if !ok || cell.Outcome != OutcomeFailed {
				continue
			}

			if _, err = fmt.Fprintf(w, "FAILED [%s] %s: %s\n", column, row.TestName, cell.Message); err != nil {
				return fmt.Errorf("write summary: %w", err)
			}
		}
	}

	return nil
}

func outcomeRank(outcome Outcome) int {
	switch outcome {
	case OutcomeFailed:
		return 2
	case OutcomeSkipped:
		return 1
	case OutcomePassed:
		return 0
	default:
		return 0
	}
}
