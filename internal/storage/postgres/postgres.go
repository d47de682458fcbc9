// Package postgres provides PostgreSQL-backed journal storage.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool wraps pgxpool.Pool for dependency injection.
type Pool struct {
	*pgxpool.Pool
}

// NewPool creates a new Postgres connection pool.
func NewPool(ctx context.Context, dsn string) (*Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() {
	p.Pool.Close()
}

// journalSchema creates the trade journal table.
const journalSchema = `
CREATE TABLE IF NOT EXISTS trade_journal (
	id           TEXT PRIMARY KEY,
	mint         TEXT NOT NULL,
	side         TEXT NOT NULL,
	amount_sol   DOUBLE PRECISION NOT NULL,
	token_qty    DOUBLE PRECISION NOT NULL,
	signature    TEXT NOT NULL,
	mode         TEXT NOT NULL,
	exit_reason  TEXT NOT NULL DEFAULT '',
	timestamp_ms BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trade_journal_mint ON trade_journal (mint);
CREATE INDEX IF NOT EXISTS idx_trade_journal_ts ON trade_journal (timestamp_ms);
`

// EnsureSchema creates the journal table if it does not exist.
func EnsureSchema(ctx context.Context, pool *Pool) error {
	if _, err := pool.Exec(ctx, journalSchema); err != nil {
		return fmt.Errorf("apply journal schema: %w", err)
	}
	return nil
}

// PostgreSQL error codes
const pgErrUniqueViolation = "23505" // unique_violation

// isDuplicateKeyError checks if error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgErrUniqueViolation
	}

	return false
}
