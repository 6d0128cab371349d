package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/authme/core/internal/crypto"
	"github.com/authme/core/internal/store"
	"github.com/google/uuid"
)

// refreshTokenStore is the slice of SessionRepo the Refresher needs.
type refreshTokenStore interface {
	CreateRefreshToken(ctx context.Context, rt store.RefreshToken) (store.RefreshToken, error)
	GetRefreshTokenByHash(ctx context.Context, tokenHash string) (store.RefreshToken, error)
	RotateRefreshToken(ctx context.Context, oldTokenHash string, next store.RefreshToken) (store.RefreshToken, error)
	RevokeRefreshTokenByHash(ctx context.Context, tokenHash string) error
	RevokeSessionTokens(ctx context.Context, sessionID uuid.UUID, includeOffline bool) error
	OfflineTokensByUser(ctx context.Context, userID uuid.UUID) ([]store.RefreshToken, error)
	RevokeRefreshTokenForUser(ctx context.Context, userID, tokenID uuid.UUID) error
}

const offlineScope = "offline_access"

// Refresher issues and rotates refresh tokens and the offline tokens
// layered on top of them, per spec.md §4.10: an SSO session has zero or
// more refresh tokens each bound to a single client; offline tokens
// (scope contains "offline_access") keep SessionID only as an origin
// pointer and survive the session's deletion.
type Refresher struct {
	repo refreshTokenStore
}

func NewRefresher(repo *store.SessionRepo) *Refresher {
	return &Refresher{repo: repo}
}

// Issue creates a new refresh token bound to sessionID and clientID.
// isOffline must be true iff "offline_access" is in scopes; callers
// decide that by scope resolution, not this package.
func (f *Refresher) Issue(ctx context.Context, realmID, sessionID, userID, clientID uuid.UUID, scopes []string, lifetime time.Duration, isOffline bool) (rawToken string, rt store.RefreshToken, err error) {
	rawToken, err = crypto.GenerateSecureToken(sessionTokenBytes)
	if err != nil {
		return "", store.RefreshToken{}, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	rt, err = f.repo.CreateRefreshToken(ctx, store.RefreshToken{
		RealmID:   realmID,
		SessionID: sessionID,
		UserID:    userID,
		ClientID:  clientID,
		TokenHash: crypto.HashToken(rawToken),
		Scopes:    scopes,
		IsOffline: isOffline,
		ExpiresAt: time.Now().Add(lifetime),
	})
	if err != nil {
		return "", store.RefreshToken{}, fmt.Errorf("failed to create refresh token: %w", err)
	}
	return rawToken, rt, nil
}

// Peek looks up a refresh token by its raw value without consuming it,
// so a caller can decide the rotated successor's lifetime (ordinary vs.
// offline) before calling Rotate.
func (f *Refresher) Peek(ctx context.Context, rawToken string) (store.RefreshToken, error) {
	rt, err := f.repo.GetRefreshTokenByHash(ctx, crypto.HashToken(rawToken))
	if err != nil {
		return store.RefreshToken{}, err
	}
	return rt, nil
}

// ErrReused is returned by Rotate when the presented refresh token had
// already been rotated away; the caller must treat this as a replay and
// revoke the whole token family (its bound session, per §4.10).
var ErrReused = store.ErrTokenReused

// Rotate exchanges rawToken for a freshly minted successor, carrying
// forward the predecessor's session/user/offline-ness. On reuse it
// returns ErrReused without creating anything.
func (f *Refresher) Rotate(ctx context.Context, rawToken string, clientID uuid.UUID, scopes []string, lifetime time.Duration) (newRawToken string, rt store.RefreshToken, err error) {
	newRawToken, err = crypto.GenerateSecureToken(sessionTokenBytes)
	if err != nil {
		return "", store.RefreshToken{}, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	rt, err = f.repo.RotateRefreshToken(ctx, crypto.HashToken(rawToken), store.RefreshToken{
		ClientID:  clientID,
		TokenHash: crypto.HashToken(newRawToken),
		Scopes:    scopes,
		ExpiresAt: time.Now().Add(lifetime),
	})
	if errors.Is(err, store.ErrTokenReused) {
		return "", store.RefreshToken{}, ErrReused
	}
	if err != nil {
		return "", store.RefreshToken{}, err
	}
	return newRawToken, rt, nil
}

// Revoke revokes a single refresh token by its raw value, e.g. for
// RFC 7009 token revocation.
func (f *Refresher) Revoke(ctx context.Context, rawToken string) error {
	if err := f.repo.RevokeRefreshTokenByHash(ctx, crypto.HashToken(rawToken)); err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

// RevokeSessionFamily revokes every refresh token bound to a session,
// offline tokens included; used when a reuse attempt is detected and the
// whole family must be burned, not just the one token.
func (f *Refresher) RevokeSessionFamily(ctx context.Context, sessionID uuid.UUID) error {
	if err := f.repo.RevokeSessionTokens(ctx, sessionID, true); err != nil {
		return fmt.Errorf("failed to revoke token family: %w", err)
	}
	return nil
}

// OfflineTokens enumerates a user's active offline tokens, independent of
// whether their origin session still exists.
func (f *Refresher) OfflineTokens(ctx context.Context, userID uuid.UUID) ([]store.RefreshToken, error) {
	tokens, err := f.repo.OfflineTokensByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list offline tokens: %w", err)
	}
	return tokens, nil
}

// RevokeOfflineToken revokes one of userID's offline tokens by id. It is
// scoped to userID so a user cannot revoke another user's token.
func (f *Refresher) RevokeOfflineToken(ctx context.Context, userID, tokenID uuid.UUID) error {
	if err := f.repo.RevokeRefreshTokenForUser(ctx, userID, tokenID); err != nil {
		return fmt.Errorf("failed to revoke offline token: %w", err)
	}
	return nil
}

// IsOfflineScope reports whether scopes requests offline access.
func IsOfflineScope(scopes []string) bool {
	for _, s := range scopes {
		if s == offlineScope {
			return true
		}
	}
	return false
}
