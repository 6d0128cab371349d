// Package session implements the browser SSO session (Login Session
// Store) and the refresh-token/offline-token lifecycle built on top of
// it.
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

var ErrInvalidSession = errors.New("invalid or expired session")

const (
	// DefaultCookieLifetime is the SSO session lifetime for a normal
	// login; RememberMeLifetime extends it for "remember me" logins.
	DefaultCookieLifetime = 10 * time.Hour
	RememberMeLifetime    = 30 * 24 * time.Hour
	sessionTokenBytes     = 32 // 256 bits
)

// loginSessionStore is the slice of SessionRepo the Store needs for SSO
// session lifecycle management.
type loginSessionStore interface {
	CreateLoginSession(ctx context.Context, s store.LoginSession) (store.LoginSession, error)
	GetLoginSessionByTokenHash(ctx context.Context, tokenHash string) (store.LoginSession, error)
	DeleteLoginSession(ctx context.Context, id uuid.UUID) error
	SessionsByUser(ctx context.Context, userID uuid.UUID) ([]store.LoginSession, error)
	DeleteAllUserSessions(ctx context.Context, userID uuid.UUID) error
	RevokeSessionTokens(ctx context.Context, sessionID uuid.UUID, includeOffline bool) error
}

// Store creates and validates SSO sessions. The caller owns cookie
// transport (name, path scoping to /realms/{name}, HttpOnly/Secure
// flags); Store only deals in raw tokens and LoginSession rows.
type Store struct {
	repo loginSessionStore
}

func NewStore(repo *store.SessionRepo) *Store {
	return &Store{repo: repo}
}

// Create issues a new SSO session and returns the raw token to set as
// the cookie value; only its SHA-256 hash is persisted.
func (s *Store) Create(ctx context.Context, realmID, userID uuid.UUID, ip, userAgent string, rememberMe bool) (rawToken string, sess store.LoginSession, err error) {
	rawToken, err = crypto.GenerateSecureToken(sessionTokenBytes)
	if err != nil {
		return "", store.LoginSession{}, fmt.Errorf("failed to generate session token: %w", err)
	}

	lifetime := DefaultCookieLifetime
	if rememberMe {
		lifetime = RememberMeLifetime
	}

	sess, err = s.repo.CreateLoginSession(ctx, store.LoginSession{
		RealmID:   realmID,
		UserID:    userID,
		TokenHash: crypto.HashToken(rawToken),
		IPAddress: ip,
		UserAgent: userAgent,
		ExpiresAt: time.Now().Add(lifetime),
	})
	if err != nil {
		return "", store.LoginSession{}, fmt.Errorf("failed to create login session: %w", err)
	}
	return rawToken, sess, nil
}

// Validate hashes rawToken and looks up the session, additionally
// checking it belongs to realmID and the user is enabled. Any mismatch —
// not found, expired, wrong realm, disabled user — collapses to
// ErrInvalidSession; the caller never learns which.
func (s *Store) Validate(ctx context.Context, realmID uuid.UUID, rawToken string, user store.User) (store.LoginSession, error) {
	sess, err := s.repo.GetLoginSessionByTokenHash(ctx, crypto.HashToken(rawToken))
	if errors.Is(err, store.ErrNotFound) {
		return store.LoginSession{}, ErrInvalidSession
	}
	if err != nil {
		return store.LoginSession{}, fmt.Errorf("failed to load session: %w", err)
	}
	if sess.RealmID != realmID || sess.UserID != user.ID || !user.Enabled {
		return store.LoginSession{}, ErrInvalidSession
	}
	return sess, nil
}

// Lookup resolves a raw cookie token to its session without a candidate
// user to check against, for the authorization endpoint's "is there
// already an SSO session on this browser" check, before it knows which
// user that might be. ExpiresAt is checked explicitly since the caller
// never goes through Validate's user/realm comparison for this path.
func (s *Store) Lookup(ctx context.Context, realmID uuid.UUID, rawToken string) (store.LoginSession, error) {
	sess, err := s.repo.GetLoginSessionByTokenHash(ctx, crypto.HashToken(rawToken))
	if errors.Is(err, store.ErrNotFound) {
		return store.LoginSession{}, ErrInvalidSession
	}
	if err != nil {
		return store.LoginSession{}, fmt.Errorf("failed to load session: %w", err)
	}
	if sess.RealmID != realmID || time.Now().After(sess.ExpiresAt) {
		return store.LoginSession{}, ErrInvalidSession
	}
	return sess, nil
}

// EndSession deletes an SSO session and revokes its bound non-offline
// refresh tokens, per spec.md §4.10. Offline tokens are untouched.
func (s *Store) EndSession(ctx context.Context, sessionID uuid.UUID) error {
	if err := s.repo.RevokeSessionTokens(ctx, sessionID, false); err != nil {
		return fmt.Errorf("failed to revoke session tokens: %w", err)
	}
	if err := s.repo.DeleteLoginSession(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// EndAllUserSessions deletes every SSO session of a user and revokes
// every refresh token bound to them (offline tokens excluded, see
// OfflineTokens for those).
func (s *Store) EndAllUserSessions(ctx context.Context, userID uuid.UUID) error {
	sessions, err := s.repo.SessionsByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list user sessions: %w", err)
	}
	for _, sess := range sessions {
		if err := s.repo.RevokeSessionTokens(ctx, sess.ID, false); err != nil {
			return fmt.Errorf("failed to revoke tokens for session %s: %w", sess.ID, err)
		}
	}
	if err := s.repo.DeleteAllUserSessions(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete user sessions: %w", err)
	}
	return nil
}
