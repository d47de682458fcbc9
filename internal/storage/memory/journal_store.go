// Package memory provides in-memory journal storage for tests and for
// running without PostgreSQL.
package memory

import (
	"context"
	"sort"
	"sync"

	"pump-sniper/internal/domain"
	"pump-sniper/internal/storage"
)

// JournalStore is an in-memory implementation of storage.JournalStore.
type JournalStore struct {
	mu   sync.RWMutex
	data map[string]*domain.JournalEntry // keyed by entry ID
}

// NewJournalStore creates a new in-memory journal store.
func NewJournalStore() *JournalStore {
	return &JournalStore{
		data: make(map[string]*domain.JournalEntry),
	}
}

// Compile-time interface check.
var _ storage.JournalStore = (*JournalStore)(nil)

// Insert appends a journal entry. Returns ErrDuplicateKey if the ID exists.
func (s *JournalStore) Insert(_ context.Context, e *domain.JournalEntry) error {
	if e == nil || e.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[e.ID]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *e
	s.data[e.ID] = &cp
	return nil
}

// GetByMint returns all entries for a mint, oldest first.
func (s *JournalStore) GetByMint(_ context.Context, mint string) ([]*domain.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.JournalEntry
	for _, e := range s.data {
		if e.Mint == mint {
			cp := *e
			out = append(out, &cp)
		}
	}
	sortByTime(out)
	return out, nil
}

// GetByTimeRange returns entries within [start, end], oldest first.
func (s *JournalStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.JournalEntry
	for _, e := range s.data {
		if e.TimestampMs >= start && e.TimestampMs <= end {
			cp := *e
			out = append(out, &cp)
		}
	}
	sortByTime(out)
	return out, nil
}

// sortByTime orders entries by timestamp then ID for deterministic output.
func sortByTime(entries []*domain.JournalEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].TimestampMs != entries[j].TimestampMs {
			return entries[i].TimestampMs < entries[j].TimestampMs
		}
		return entries[i].ID < entries[j].ID
	})
}
