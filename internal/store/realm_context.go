package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// WithRealmContext runs fn inside a transaction with the app.current_realm
// session variable set, so row-level-security policies scoping every
// realm-owned table evaluate against the right tenant. SET LOCAL is
// transaction-scoped, so the setting never leaks to another request
// sharing the same pooled connection.
func WithRealmContext(ctx context.Context, pool *pgxpool.Pool, realmID uuid.UUID, fn func(tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.current_realm', $1, true)", realmID.String()); err != nil {
		return fmt.Errorf("failed to set realm context: %w", err)
	}

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ExecInRealmContext is a convenience wrapper for a single realm-scoped
// statement. Prefer WithRealmContext directly for multi-statement work.
func ExecInRealmContext(ctx context.Context, pool *pgxpool.Pool, realmID uuid.UUID, sql string, args ...interface{}) error {
	return WithRealmContext(ctx, pool, realmID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, sql, args...)
		return err
	})
}
