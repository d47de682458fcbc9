// Package storage defines the persistence interfaces for the trade journal.
package storage

import (
	"context"

	"pump-sniper/internal/domain"
)

// JournalStore is the append-only record of confirmed trades. Journal
// writes must never block or fail trading; callers log errors and move on.
type JournalStore interface {
	// Insert appends a journal entry. Returns ErrDuplicateKey if the entry
	// ID already exists.
	Insert(ctx context.Context, e *domain.JournalEntry) error

	// GetByMint returns all entries for a mint, oldest first.
	GetByMint(ctx context.Context, mint string) ([]*domain.JournalEntry, error)

	// GetByTimeRange returns entries with TimestampMs in [start, end],
	// oldest first.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.JournalEntry, error)
}
