// Package memory is a ReportWriter that keeps the report in process. It is
// used when no spreadsheet is configured and in tests.
package memory

import (
	"context"
	"slices"
	"sync"

	ports "financecalc/internal/sheets"
)

type Store struct {
	mu     sync.Mutex
	rows   [][]string
	writes int
}

var (
	_ ports.ReportWriter = (*Store)(nil)
	_ ports.ReportReader = (*Store)(nil)
)

func New() *Store {
	return &Store{}
}

func (s *Store) WriteReport(_ context.Context, rows [][]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = cloneRows(rows)
	s.writes++
	return nil
}

func (s *Store) ReadReport(_ context.Context) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneRows(s.rows), nil
}

// Writes returns how many reports were written.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func cloneRows(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = slices.Clone(r)
	}
	return out
}
