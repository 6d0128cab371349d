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

// ErrTokenReused is returned by RotateRefreshToken when the presented
// refresh token has already been rotated away (revoked=true). The caller
// treats this as a replay signal and revokes the entire token family.
var ErrTokenReused = errors.New("refresh token reuse detected")

const refreshTokenColumns = `id, realm_id, session_id, user_id, client_id, token_hash, scopes, is_offline, revoked, expires_at, created_at`

type SessionRepo struct {
	pool *pgxpool.Pool
}

func NewSessionRepo(pool *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{pool: pool}
}

func (r *SessionRepo) CreateLoginSession(ctx context.Context, s LoginSession) (LoginSession, error) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	const q = `
		INSERT INTO login_sessions (id, realm_id, user_id, token_hash, ip_address, user_agent, expires_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7, now())
		RETURNING id, realm_id, user_id, token_hash, ip_address, user_agent, expires_at, created_at`
	row := r.pool.QueryRow(ctx, q, s.ID, s.RealmID, s.UserID, s.TokenHash, s.IPAddress, s.UserAgent, s.ExpiresAt)
	return scanLoginSession(row)
}

func scanLoginSession(row pgx.Row) (LoginSession, error) {
	var s LoginSession
	err := row.Scan(&s.ID, &s.RealmID, &s.UserID, &s.TokenHash, &s.IPAddress, &s.UserAgent, &s.ExpiresAt, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return LoginSession{}, ErrNotFound
	}
	if err != nil {
		return LoginSession{}, fmt.Errorf("failed to scan login session: %w", err)
	}
	return s, nil
}

func (r *SessionRepo) GetLoginSessionByTokenHash(ctx context.Context, tokenHash string) (LoginSession, error) {
	const q = `SELECT id, realm_id, user_id, token_hash, ip_address, user_agent, expires_at, created_at
		FROM login_sessions WHERE token_hash = $1 AND expires_at > now()`
	row := r.pool.QueryRow(ctx, q, tokenHash)
	return scanLoginSession(row)
}

// DeleteLoginSession ends an SSO session; backchannel logout is triggered
// by the caller (internal/oidc's Core.EndSession), not here.
func (r *SessionRepo) DeleteLoginSession(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM login_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete login session: %w", err)
	}
	return nil
}

// SessionsByUser lists a user's active SSO sessions, newest first.
func (r *SessionRepo) SessionsByUser(ctx context.Context, userID uuid.UUID) ([]LoginSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, realm_id, user_id, token_hash, ip_address, user_agent, expires_at, created_at
		 FROM login_sessions WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user sessions: %w", err)
	}
	defer rows.Close()

	var sessions []LoginSession
	for rows.Next() {
		var s LoginSession
		if err := rows.Scan(&s.ID, &s.RealmID, &s.UserID, &s.TokenHash, &s.IPAddress, &s.UserAgent, &s.ExpiresAt, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan login session row: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// DeleteAllUserSessions deletes every SSO session belonging to a user;
// their bound (non-offline) refresh tokens are revoked separately by the
// caller before this runs, since session deletion alone doesn't touch
// offline tokens by design.
func (r *SessionRepo) DeleteAllUserSessions(ctx context.Context, userID uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM login_sessions WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete user sessions: %w", err)
	}
	return nil
}

func (r *SessionRepo) CreateRefreshToken(ctx context.Context, rt RefreshToken) (RefreshToken, error) {
	if rt.ID == uuid.Nil {
		rt.ID = uuid.New()
	}
	const q = `
		INSERT INTO refresh_tokens (id, realm_id, session_id, user_id, client_id, token_hash, scopes, is_offline, revoked, expires_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,false,$9, now())
		RETURNING ` + refreshTokenColumns
	row := r.pool.QueryRow(ctx, q, rt.ID, rt.RealmID, rt.SessionID, rt.UserID, rt.ClientID, rt.TokenHash, rt.Scopes, rt.IsOffline, rt.ExpiresAt)
	return scanRefreshToken(row)
}

// GetRefreshTokenByHash looks up a refresh token's current row without
// consuming it, e.g. so a caller can decide rotation lifetime (ordinary
// vs. offline) before committing to the rotation itself.
func (r *SessionRepo) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (RefreshToken, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE token_hash = $1`, tokenHash)
	return scanRefreshToken(row)
}

func scanRefreshToken(row pgx.Row) (RefreshToken, error) {
	var rt RefreshToken
	err := row.Scan(&rt.ID, &rt.RealmID, &rt.SessionID, &rt.UserID, &rt.ClientID, &rt.TokenHash, &rt.Scopes,
		&rt.IsOffline, &rt.Revoked, &rt.ExpiresAt, &rt.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return RefreshToken{}, ErrNotFound
	}
	if err != nil {
		return RefreshToken{}, fmt.Errorf("failed to scan refresh token: %w", err)
	}
	return rt, nil
}

// RotateRefreshToken is the heart of refresh-token rotation: it
// atomically revokes the presented token (only if it was not
// already revoked) and inserts its successor in the same row-locked
// transaction, so two concurrent exchanges of the same token can never
// both succeed. The loser sees ErrTokenReused.
func (r *SessionRepo) RotateRefreshToken(ctx context.Context, oldTokenHash string, next RefreshToken) (RefreshToken, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return RefreshToken{}, fmt.Errorf("failed to begin rotation transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var old RefreshToken
	lockQ := `SELECT ` + refreshTokenColumns + ` FROM refresh_tokens WHERE token_hash = $1 FOR UPDATE`
	err = tx.QueryRow(ctx, lockQ, oldTokenHash).Scan(&old.ID, &old.RealmID, &old.SessionID, &old.UserID, &old.ClientID,
		&old.TokenHash, &old.Scopes, &old.IsOffline, &old.Revoked, &old.ExpiresAt, &old.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return RefreshToken{}, ErrNotFound
	}
	if err != nil {
		return RefreshToken{}, fmt.Errorf("failed to lock refresh token: %w", err)
	}
	if old.Revoked {
		return RefreshToken{}, ErrTokenReused
	}
	if time.Now().After(old.ExpiresAt) {
		return RefreshToken{}, fmt.Errorf("refresh token expired")
	}

	if _, err := tx.Exec(ctx, `UPDATE refresh_tokens SET revoked = true WHERE id = $1`, old.ID); err != nil {
		return RefreshToken{}, fmt.Errorf("failed to revoke old refresh token: %w", err)
	}

	if next.ID == uuid.Nil {
		next.ID = uuid.New()
	}
	// An empty scope list on the incoming request means "keep what the
	// token already had"; RFC 6749 §6 only lets a refresh narrow scope,
	// never silently drop it by omission.
	if len(next.Scopes) == 0 {
		next.Scopes = old.Scopes
	}
	insertQ := `
		INSERT INTO refresh_tokens (id, realm_id, session_id, user_id, client_id, token_hash, scopes, is_offline, revoked, expires_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,false,$9, now())
		RETURNING ` + refreshTokenColumns
	row := tx.QueryRow(ctx, insertQ, next.ID, old.RealmID, old.SessionID, old.UserID, next.ClientID, next.TokenHash,
		next.Scopes, old.IsOffline, next.ExpiresAt)
	created, err := scanRefreshToken(row)
	if err != nil {
		return RefreshToken{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return RefreshToken{}, fmt.Errorf("failed to commit rotation: %w", err)
	}
	return created, nil
}

// RevokeSessionTokens revokes every refresh token issued under a session,
// for logout and backchannel-logout fan-out. Offline tokens are excluded
// unless includeOffline is set, matching the spec's "offline tokens
// survive SSO logout" rule.
func (r *SessionRepo) RevokeSessionTokens(ctx context.Context, sessionID uuid.UUID, includeOffline bool) error {
	q := `UPDATE refresh_tokens SET revoked = true WHERE session_id = $1 AND revoked = false`
	if !includeOffline {
		q += ` AND is_offline = false`
	}
	if _, err := r.pool.Exec(ctx, q, sessionID); err != nil {
		return fmt.Errorf("failed to revoke session tokens: %w", err)
	}
	return nil
}

func (r *SessionRepo) RevokeRefreshTokenByHash(ctx context.Context, tokenHash string) error {
	_, err := r.pool.Exec(ctx, `UPDATE refresh_tokens SET revoked = true WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

// OfflineTokensByUser enumerates a user's still-active offline tokens,
// independent of whether their origin SSO session still exists, so they
// stay individually revocable after SSO logout per spec.md §4.10.
func (r *SessionRepo) OfflineTokensByUser(ctx context.Context, userID uuid.UUID) ([]RefreshToken, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+refreshTokenColumns+` FROM refresh_tokens
		 WHERE user_id = $1 AND is_offline = true AND revoked = false
		 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list offline tokens: %w", err)
	}
	defer rows.Close()

	var tokens []RefreshToken
	for rows.Next() {
		var rt RefreshToken
		if err := rows.Scan(&rt.ID, &rt.RealmID, &rt.SessionID, &rt.UserID, &rt.ClientID, &rt.TokenHash, &rt.Scopes,
			&rt.IsOffline, &rt.Revoked, &rt.ExpiresAt, &rt.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan offline token row: %w", err)
		}
		tokens = append(tokens, rt)
	}
	return tokens, rows.Err()
}

// RevokeRefreshTokenForUser revokes a specific refresh token by id,
// scoped to userID so one user can't revoke another's token by guessing
// an id.
func (r *SessionRepo) RevokeRefreshTokenForUser(ctx context.Context, userID, tokenID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE refresh_tokens SET revoked = true WHERE id = $1 AND user_id = $2`, tokenID, userID)
	if err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
