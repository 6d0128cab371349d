// Package verify implements one-shot, hashed verification tokens backing
// email verification, password reset, and forced password change.
package verify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/authme/core/internal/crypto"
	"github.com/authme/core/internal/store"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("verification token invalid or expired")

const (
	tokenBytes = 32 // 256 bits
	ttlEmailVerification = 24 * time.Hour
	ttlPasswordReset     = 1 * time.Hour
	ttlChangePassword    = 1 * time.Hour
)

func defaultTTL(typ store.VerificationTokenType) time.Duration {
	switch typ {
	case store.VerificationPasswordReset:
		return ttlPasswordReset
	case store.VerificationChangePassword:
		return ttlChangePassword
	default:
		return ttlEmailVerification
	}
}

// tokenStore is the slice of VerificationRepo Tokens needs.
type tokenStore interface {
	Create(ctx context.Context, v store.VerificationToken) error
	ConsumeByHash(ctx context.Context, tokenHash string, typ store.VerificationTokenType) (store.VerificationToken, error)
	DeleteForUser(ctx context.Context, userID uuid.UUID, typ store.VerificationTokenType) error
}

// Tokens issues and consumes single-use verification links.
type Tokens struct {
	repo tokenStore
}

func NewTokens(repo *store.VerificationRepo) *Tokens {
	return &Tokens{repo: repo}
}

// Issue invalidates any outstanding token of the same type for the user
// (so an old emailed link stops working once a new one is requested) and
// creates a fresh one, returning the raw token to embed in the link.
func (t *Tokens) Issue(ctx context.Context, realmID, userID uuid.UUID, typ store.VerificationTokenType) (rawToken string, err error) {
	if err := t.repo.DeleteForUser(ctx, userID, typ); err != nil {
		return "", fmt.Errorf("failed to invalidate prior tokens: %w", err)
	}

	rawToken, err = crypto.GenerateSecureToken(tokenBytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate verification token: %w", err)
	}

	err = t.repo.Create(ctx, store.VerificationToken{
		TokenHash: crypto.HashToken(rawToken),
		UserID:    userID,
		RealmID:   realmID,
		Type:      typ,
		ExpiresAt: time.Now().Add(defaultTTL(typ)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to store verification token: %w", err)
	}
	return rawToken, nil
}

// Consume validates and deletes rawToken in one step; a second call with
// the same token always returns ErrInvalidToken.
func (t *Tokens) Consume(ctx context.Context, rawToken string, typ store.VerificationTokenType) (store.VerificationToken, error) {
	v, err := t.repo.ConsumeByHash(ctx, crypto.HashToken(rawToken), typ)
	if errors.Is(err, store.ErrNotFound) {
		return store.VerificationToken{}, ErrInvalidToken
	}
	if err != nil {
		return store.VerificationToken{}, fmt.Errorf("failed to consume verification token: %w", err)
	}
	if time.Now().After(v.ExpiresAt) {
		return store.VerificationToken{}, ErrInvalidToken
	}
	return v, nil
}
