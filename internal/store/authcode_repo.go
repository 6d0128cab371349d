package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrAlreadyConsumed is returned when an authorization code (or any other
// single-use row) has already been used.
var ErrAlreadyConsumed = errors.New("already consumed")

type AuthCodeRepo struct {
	pool *pgxpool.Pool
}

func NewAuthCodeRepo(pool *pgxpool.Pool) *AuthCodeRepo {
	return &AuthCodeRepo{pool: pool}
}

func (r *AuthCodeRepo) Create(ctx context.Context, ac AuthorizationCode) error {
	const q = `
		INSERT INTO authorization_codes (code, realm_id, client_id, user_id, session_id, redirect_uri, scopes,
			nonce, code_challenge, code_challenge_method, expires_at, consumed)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,false)`
	_, err := r.pool.Exec(ctx, q, ac.Code, ac.RealmID, ac.ClientID, ac.UserID, ac.SessionID, ac.RedirectURI,
		ac.Scopes, ac.Nonce, ac.CodeChallenge, ac.CodeChallengeMethod, ac.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to store authorization code: %w", err)
	}
	return nil
}

// ConsumeAndGet atomically marks the code consumed and returns its prior
// state, so the OAuth core can validate redirect_uri/PKCE/expiry against a
// value it knows was the FIRST read of a fresh code. A second caller
// racing the same code gets ErrAlreadyConsumed, never a duplicate token.
func (r *AuthCodeRepo) ConsumeAndGet(ctx context.Context, code string) (AuthorizationCode, error) {
	const q = `
		UPDATE authorization_codes
		SET consumed = true
		WHERE code = $1 AND consumed = false
		RETURNING code, realm_id, client_id, user_id, session_id, redirect_uri, scopes, nonce,
			code_challenge, code_challenge_method, expires_at, consumed`

	var ac AuthorizationCode
	err := r.pool.QueryRow(ctx, q, code).Scan(&ac.Code, &ac.RealmID, &ac.ClientID, &ac.UserID, &ac.SessionID,
		&ac.RedirectURI, &ac.Scopes, &ac.Nonce, &ac.CodeChallenge, &ac.CodeChallengeMethod,
		&ac.ExpiresAt, &ac.Consumed)
	if errors.Is(err, pgx.ErrNoRows) {
		// Either the code never existed or it was already consumed; either
		// way the caller must not issue a token, and distinguishing the
		// two doesn't change that, so a lookup here would just be a
		// TOCTOU race against the UPDATE above.
		return AuthorizationCode{}, ErrAlreadyConsumed
	}
	if err != nil {
		return AuthorizationCode{}, fmt.Errorf("failed to consume authorization code: %w", err)
	}
	if time.Now().After(ac.ExpiresAt) {
		return ac, fmt.Errorf("authorization code expired")
	}
	return ac, nil
}

// DeleteExpired removes authorization codes past ExpiresAt. Nothing in
// this repository calls it.
func (r *AuthCodeRepo) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM authorization_codes WHERE expires_at < now()`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired authorization codes: %w", err)
	}
	return tag.RowsAffected(), nil
}
