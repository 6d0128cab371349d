package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TransientPostgresStore implements Transient on an UNLOGGED table, so the
// write-ahead-log cost of this inherently disposable data is avoided; the
// table is emptied by crash recovery, losing in-flight records. Default
// backend when REDIS_URL is unset.
type TransientPostgresStore struct {
	pool *pgxpool.Pool
}

func NewTransientPostgresStore(pool *pgxpool.Pool) *TransientPostgresStore {
	return &TransientPostgresStore{pool: pool}
}

func (s *TransientPostgresStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	const q = `
		INSERT INTO transient_records (key, value, attempt_count, expires_at)
		VALUES ($1, $2, 0, now() + $3::interval)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, attempt_count = 0, expires_at = EXCLUDED.expires_at`
	_, err := s.pool.Exec(ctx, q, key, value, fmt.Sprintf("%d seconds", int64(ttl.Seconds())))
	if err != nil {
		return fmt.Errorf("failed to store transient record: %w", err)
	}
	return nil
}

func (s *TransientPostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM transient_records WHERE key = $1 AND expires_at > now()`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTransientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load transient record: %w", err)
	}
	return value, nil
}

func (s *TransientPostgresStore) Delete(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM transient_records WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("failed to delete transient record: %w", err)
	}
	return nil
}

func (s *TransientPostgresStore) IncrementAttempt(ctx context.Context, key string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`UPDATE transient_records SET attempt_count = attempt_count + 1
		 WHERE key = $1 AND expires_at > now() RETURNING attempt_count`, key).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrTransientNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment attempt counter: %w", err)
	}
	return count, nil
}

// DeleteExpired sweeps rows past expires_at. Nothing in this repository
// calls it; Get and IncrementAttempt already ignore expired rows.
func (s *TransientPostgresStore) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM transient_records WHERE expires_at < now()`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired transient records: %w", err)
	}
	return tag.RowsAffected(), nil
}
