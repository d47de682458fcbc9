package postgres

import (
	"context"
	"fmt"

	"pump-sniper/internal/domain"
	"pump-sniper/internal/storage"
)

// JournalStore implements storage.JournalStore using PostgreSQL.
type JournalStore struct {
	pool *Pool
}

// NewJournalStore creates a new JournalStore.
func NewJournalStore(pool *Pool) *JournalStore {
	return &JournalStore{pool: pool}
}

// Compile-time interface check.
var _ storage.JournalStore = (*JournalStore)(nil)

// Insert appends a journal entry. Returns ErrDuplicateKey if the ID exists.
func (s *JournalStore) Insert(ctx context.Context, e *domain.JournalEntry) error {
	if e == nil || e.ID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO trade_journal (
			id, mint, side, amount_sol, token_qty,
			signature, mode, exit_reason, timestamp_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.pool.Exec(ctx, query,
		e.ID, e.Mint, string(e.Side), e.AmountSOL, e.TokenQty,
		e.Signature, e.Mode, e.ExitReason, e.TimestampMs,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

// GetByMint returns all entries for a mint, oldest first.
func (s *JournalStore) GetByMint(ctx context.Context, mint string) ([]*domain.JournalEntry, error) {
	query := `
		SELECT id, mint, side, amount_sol, token_qty,
		       signature, mode, exit_reason, timestamp_ms
		FROM trade_journal
		WHERE mint = $1
		ORDER BY timestamp_ms, id
	`
	return s.query(ctx, query, mint)
}

// GetByTimeRange returns entries within [start, end], oldest first.
func (s *JournalStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.JournalEntry, error) {
	query := `
		SELECT id, mint, side, amount_sol, token_qty,
		       signature, mode, exit_reason, timestamp_ms
		FROM trade_journal
		WHERE timestamp_ms >= $1 AND timestamp_ms <= $2
		ORDER BY timestamp_ms, id
	`
	return s.query(ctx, query, start, end)
}

// query runs a SELECT over the journal columns and scans the rows.
func (s *JournalStore) query(ctx context.Context, query string, args ...interface{}) ([]*domain.JournalEntry, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var out []*domain.JournalEntry
	for rows.Next() {
		var e domain.JournalEntry
		var side string
		if err := rows.Scan(
			&e.ID, &e.Mint, &side, &e.AmountSOL, &e.TokenQty,
			&e.Signature, &e.Mode, &e.ExitReason, &e.TimestampMs,
		); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		e.Side = domain.TradeSide(side)
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal rows: %w", err)
	}
	return out, nil
}
