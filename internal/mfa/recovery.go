package mfa

import (
	"context"
	"fmt"

	"github.com/authme/core/internal/crypto"
	"github.com/authme/core/internal/store"
	"github.com/google/uuid"
)

// recoveryStore is the slice of CredentialRepo that RecoveryCodes needs.
type recoveryStore interface {
	ReplaceRecoveryCodes(ctx context.Context, userID uuid.UUID, codeHashes []string) error
	ConsumeRecoveryCode(ctx context.Context, userID uuid.UUID, codeHash string) (bool, error)
}

// RecoveryCodes wraps the recovery-code table for a TOTP-enrolled user.
// Codes are generated once (at enrolment, via TOTPEngine, or on demand
// here) and hashed before storage; the plaintext form is shown to the
// user exactly once and never stored.
type RecoveryCodes struct {
	credentials recoveryStore
}

func NewRecoveryCodes(credentials *store.CredentialRepo) *RecoveryCodes {
	return &RecoveryCodes{credentials: credentials}
}

// Regenerate discards any existing recovery codes and issues a fresh set
// of codeCount codes, returning them in plaintext.
func (r *RecoveryCodes) Regenerate(ctx context.Context, userID uuid.UUID) ([]string, error) {
	plain, hashed, err := generateRecoveryCodes(codeCount)
	if err != nil {
		return nil, err
	}
	if err := r.credentials.ReplaceRecoveryCodes(ctx, userID, hashed); err != nil {
		return nil, fmt.Errorf("failed to store recovery codes: %w", err)
	}
	return plain, nil
}

// Consume marks the recovery code matching rawCode as used, if it exists
// and has not been used before. It reports whether the code was valid;
// a used or unknown code leaves the ledger untouched.
func (r *RecoveryCodes) Consume(ctx context.Context, userID uuid.UUID, rawCode string) (bool, error) {
	ok, err := r.credentials.ConsumeRecoveryCode(ctx, userID, crypto.HashToken(rawCode))
	if err != nil {
		return false, fmt.Errorf("failed to consume recovery code: %w", err)
	}
	return ok, nil
}
