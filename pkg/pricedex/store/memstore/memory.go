package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/cognicore/pricedex/pkg/pricedex/store"
)

// Store is an in-memory implementation of store.Store for tests.
type Store struct {
	mu      sync.RWMutex
	records map[string]store.Record
	runs    []store.ImportRun

	// Optional fault injection for tests.
	GetErr  error
	ScanErr error
	BulkErr error
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		records: make(map[string]store.Record),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// BulkUpsert inserts or overwrites records keyed by code.
func (s *Store) BulkUpsert(ctx context.Context, records []store.Record) (int, error) {
	if s.BulkErr != nil {
		return 0, s.BulkErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, r := range records {
		if r.Code == "" {
			continue
		}
		s.records[r.Code] = r
		count++
	}
	return count, nil
}

// GetByCode returns a record by its exact code.
func (s *Store) GetByCode(ctx context.Context, code string) (store.Record, bool, error) {
	if s.GetErr != nil {
		return store.Record{}, false, s.GetErr
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if r, ok := s.records[code]; ok {
		return r, true, nil
	}
	return store.Record{}, false, nil
}

// ScanByArticle returns records whose lowercased article contains term.
// Results are sorted by lowercased article then code so scans are
// deterministic, mirroring index iteration order in the SQLite store.
func (s *Store) ScanByArticle(ctx context.Context, term string) ([]store.Record, error) {
	if s.ScanErr != nil {
		return nil, s.ScanErr
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(term)
	var results []store.Record
	for _, r := range s.records {
		if strings.Contains(r.ArticleLower(), needle) {
			results = append(results, r)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i].ArticleLower(), results[j].ArticleLower()
		if a != b {
			return a < b
		}
		return results[i].Code < results[j].Code
	})
	return results, nil
}

// RecordImportRun appends an import run to the audit trail.
func (s *Store) RecordImportRun(ctx context.Context, run store.ImportRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs = append(s.runs, run)
	return nil
}

// ImportHistory returns import runs, newest first.
func (s *Store) ImportHistory(ctx context.Context, limit int) ([]store.ImportRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}

	runs := make([]store.ImportRun, len(s.runs))
	copy(runs, s.runs)
	sort.Slice(runs, func(i, j int) bool { return runs[i].ID > runs[j].ID })
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// Purge drops every record and the audit trail.
func (s *Store) Purge(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]store.Record)
	s.runs = nil
	return nil
}

// Len reports the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
