package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bakehouse-erp/bakehouse-erp/internal/shared"
)

// WithTx executes a function within a RepeatableRead transaction. Serialization
// failures and deadlocks surface as shared.ErrConcurrencyConflict so callers can
// retry the whole operation.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return MapConflict(err)
	}

	if err := tx.Commit(ctx); err != nil {
		if conflict := MapConflict(err); errors.Is(conflict, shared.ErrConcurrencyConflict) {
			return conflict
		}
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	return nil
}

// WithTxRetry runs WithTx and transparently retries conflicting transactions up
// to attempts times. Non-conflict errors abort immediately.
func WithTxRetry(ctx context.Context, pool *pgxpool.Pool, attempts int, fn func(pgx.Tx) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		err = WithTx(ctx, pool, fn)
		if err == nil || !errors.Is(err, shared.ErrConcurrencyConflict) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return err
}

// MapConflict translates Postgres serialization failures (40001) and deadlocks
// (40P01) into the shared retryable error; other errors pass through unchanged.
func MapConflict(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "40001" || pgErr.Code == "40P01" {
			return fmt.Errorf("%w: %s", shared.ErrConcurrencyConflict, pgErr.Code)
		}
	}
	return err
}
