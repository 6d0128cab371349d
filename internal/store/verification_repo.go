package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type VerificationRepo struct {
	pool *pgxpool.Pool
}

func NewVerificationRepo(pool *pgxpool.Pool) *VerificationRepo {
	return &VerificationRepo{pool: pool}
}

func (r *VerificationRepo) Create(ctx context.Context, v VerificationToken) error {
	const q = `INSERT INTO verification_tokens (token_hash, user_id, realm_id, type, expires_at) VALUES ($1,$2,$3,$4,$5)`
	_, err := r.pool.Exec(ctx, q, v.TokenHash, v.UserID, v.RealmID, v.Type, v.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to store verification token: %w", err)
	}
	return nil
}

// ConsumeByHash deletes and returns the token in one statement, so a
// second validation attempt against the same raw token always misses.
func (r *VerificationRepo) ConsumeByHash(ctx context.Context, tokenHash string, typ VerificationTokenType) (VerificationToken, error) {
	const q = `
		DELETE FROM verification_tokens
		WHERE token_hash = $1 AND type = $2
		RETURNING token_hash, user_id, realm_id, type, expires_at`
	var v VerificationToken
	err := r.pool.QueryRow(ctx, q, tokenHash, typ).Scan(&v.TokenHash, &v.UserID, &v.RealmID, &v.Type, &v.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return VerificationToken{}, ErrNotFound
	}
	if err != nil {
		return VerificationToken{}, fmt.Errorf("failed to consume verification token: %w", err)
	}
	return v, nil
}

// DeleteForUser invalidates every outstanding token of a type for a user,
// called when a new one of the same type is issued so stale links die.
func (r *VerificationRepo) DeleteForUser(ctx context.Context, userID uuid.UUID, typ VerificationTokenType) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM verification_tokens WHERE user_id = $1 AND type = $2`, userID, typ)
	if err != nil {
		return fmt.Errorf("failed to invalidate prior verification tokens: %w", err)
	}
	return nil
}

func (r *VerificationRepo) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM verification_tokens WHERE expires_at < now()`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired verification tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
