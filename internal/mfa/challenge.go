package mfa

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/authme/core/internal/crypto"
	"github.com/authme/core/internal/store"
	"github.com/google/uuid"
)

const (
	challengeTTL         = 5 * time.Minute
	challengeMaxAttempts = 5
	challengeKeyPrefix   = "mfa-challenge:"
)

var (
	ErrChallengeNotFound = errors.New("mfa challenge not found or expired")
	ErrChallengeExceeded = errors.New("mfa challenge attempt limit exceeded")
)

// Challenge bridges password verification and the TOTP/recovery-code
// step: a random 256-bit token stored server-side, carrying the
// in-flight OAuth parameters so the flow can resume after the second
// factor succeeds.
type Challenge struct {
	UserID      uuid.UUID
	RealmID     uuid.UUID
	OAuthParams map[string]string
}

// Challenges issues and tracks MfaChallenge tokens against a Transient
// backend (Postgres or Redis).
type Challenges struct {
	transient store.Transient
}

func NewChallenges(transient store.Transient) *Challenges {
	return &Challenges{transient: transient}
}

// Create stores a new challenge and returns the opaque token the
// browser carries to the TOTP page.
func (c *Challenges) Create(ctx context.Context, ch Challenge) (string, error) {
	token, err := crypto.GenerateSecureToken(32)
	if err != nil {
		return "", fmt.Errorf("failed to generate mfa challenge token: %w", err)
	}
	if err := store.PutJSON(ctx, c.transient, challengeKeyPrefix+token, ch, challengeTTL); err != nil {
		return "", fmt.Errorf("failed to store mfa challenge: %w", err)
	}
	return token, nil
}

// Get loads the challenge for token without consuming it.
func (c *Challenges) Get(ctx context.Context, token string) (Challenge, error) {
	var ch Challenge
	err := store.GetJSON(ctx, c.transient, challengeKeyPrefix+token, &ch)
	if errors.Is(err, store.ErrTransientNotFound) {
		return Challenge{}, ErrChallengeNotFound
	}
	if err != nil {
		return Challenge{}, fmt.Errorf("failed to load mfa challenge: %w", err)
	}
	return ch, nil
}

// RecordAttempt increments the challenge's attempt counter and reports
// whether the attempt budget is already exhausted. Callers should check
// this before attempting TOTP/recovery-code validation so the counter
// can't be bypassed by skipping straight to Get.
func (c *Challenges) RecordAttempt(ctx context.Context, token string) error {
	count, err := c.transient.IncrementAttempt(ctx, challengeKeyPrefix+token)
	if err != nil {
		return fmt.Errorf("failed to record mfa challenge attempt: %w", err)
	}
	if count > challengeMaxAttempts {
		_ = c.transient.Delete(ctx, challengeKeyPrefix+token)
		return ErrChallengeExceeded
	}
	return nil
}

// Invalidate deletes the challenge unconditionally, called once it has
// been consumed by a successful verification or explicitly abandoned.
func (c *Challenges) Invalidate(ctx context.Context, token string) error {
	return c.transient.Delete(ctx, challengeKeyPrefix+token)
}
