// Package mfa implements the TOTP enrolment/verification flow, recovery
// codes, and the challenge tokens that bridge password verification and
// the second factor.
package mfa

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/authme/core/internal/crypto"
	"github.com/authme/core/internal/store"
	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

var (
	ErrNotEnrolled  = errors.New("totp not enrolled")
	ErrInvalidCode  = errors.New("invalid totp code")
	ErrAlreadySetUp = errors.New("totp already enabled")
)

const (
	period     = 30 * time.Second
	digits     = otp.DigitsSix
	skewSteps  = 1 // one adjacent window on either side
	secretSize = 20 // 160 bits
	codeCount  = 10
)

// totpStore is the slice of CredentialRepo that TOTPEngine needs; the
// seam exists so tests can swap in a fake instead of a live database.
type totpStore interface {
	GetTOTP(ctx context.Context, userID uuid.UUID) (store.UserCredentialTOTP, error)
	UpsertTOTP(ctx context.Context, c store.UserCredentialTOTP) error
	DeleteTOTP(ctx context.Context, userID uuid.UUID) error
	ReplaceRecoveryCodes(ctx context.Context, userID uuid.UUID, codeHashes []string) error
	AdvanceTOTPStep(ctx context.Context, userID uuid.UUID, step int64) (bool, error)
}

// TOTPEngine drives enrolment and verification. Secrets are encrypted at
// rest under the realm master key before they are ever written to
// storage; the key never leaves this package's call stack.
type TOTPEngine struct {
	credentials totpStore
	masterKey   crypto.MasterKey
}

func NewTOTPEngine(credentials *store.CredentialRepo, masterKey crypto.MasterKey) *TOTPEngine {
	return &TOTPEngine{credentials: credentials, masterKey: masterKey}
}

// PendingEnrollment is the material returned to the client to render a
// QR code; the secret is held only in memory until the first valid code
// completes enrolment.
type PendingEnrollment struct {
	Secret    string // Base32, shown as a fallback to scanning the QR
	OTPAuthURI string
}

// CreatePending generates a random secret and returns the otpauth:// URI
// for provisioning an authenticator app. Nothing is persisted yet —
// enrolment only completes once the user proves possession by posting a
// valid code via CompleteEnrollment.
func CreatePending(issuer, accountName string) (PendingEnrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountName,
		Period:      uint(period.Seconds()),
		SecretSize:  uint(secretSize),
		Digits:      digits,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return PendingEnrollment{}, fmt.Errorf("failed to generate totp secret: %w", err)
	}
	return PendingEnrollment{Secret: key.Secret(), OTPAuthURI: key.String()}, nil
}

// CompleteEnrollment verifies code against the pending secret and, on
// success, encrypts the secret at rest, enables the credential, and
// generates and stores 10 hashed recovery codes. The plaintext recovery
// codes are returned exactly once.
func (e *TOTPEngine) CompleteEnrollment(ctx context.Context, userID uuid.UUID, pending PendingEnrollment, code string) ([]string, error) {
	existing, err := e.credentials.GetTOTP(ctx, userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing totp credential: %w", err)
	}
	if existing.Enabled {
		return nil, ErrAlreadySetUp
	}

	if !totp.Validate(code, pending.Secret) {
		return nil, ErrInvalidCode
	}

	encrypted, err := crypto.Encrypt(e.masterKey, pending.Secret)
	if err != nil {
		return nil, fmt.Errorf("failed to seal totp secret: %w", err)
	}

	if err := e.credentials.UpsertTOTP(ctx, store.UserCredentialTOTP{
		UserID:          userID,
		EncryptedSecret: encrypted,
		Algorithm:       "SHA1",
		Digits:          6,
		Period:          int(period.Seconds()),
		Enabled:         true,
	}); err != nil {
		return nil, fmt.Errorf("failed to store totp credential: %w", err)
	}

	codes, hashes, err := generateRecoveryCodes(codeCount)
	if err != nil {
		return nil, err
	}
	if err := e.credentials.ReplaceRecoveryCodes(ctx, userID, hashes); err != nil {
		return nil, fmt.Errorf("failed to store recovery codes: %w", err)
	}
	return codes, nil
}

func generateRecoveryCodes(n int) (plain, hashed []string, err error) {
	plain, err = crypto.GenerateRecoveryCodes(n)
	if err != nil {
		return nil, nil, err
	}
	hashed = make([]string, len(plain))
	for i, c := range plain {
		hashed[i] = crypto.HashToken(c)
	}
	return plain, hashed, nil
}

// VerifyTOTP checks code against the user's enrolled secret, accepting
// the current 30-second window and one adjacent window on either side.
// A per-user last-used-step counter rejects replay of a code already
// accepted for that step or an earlier one, even if clock skew would
// otherwise allow it back in.
func (e *TOTPEngine) VerifyTOTP(ctx context.Context, userID uuid.UUID, code string) (bool, error) {
	cred, err := e.credentials.GetTOTP(ctx, userID)
	if errors.Is(err, store.ErrNotFound) || !cred.Enabled {
		return false, ErrNotEnrolled
	}
	if err != nil {
		return false, fmt.Errorf("failed to load totp credential: %w", err)
	}

	secret, err := crypto.Decrypt(e.masterKey, cred.EncryptedSecret)
	if err != nil {
		return false, fmt.Errorf("failed to unseal totp secret: %w", err)
	}

	periodSecs := int64(cred.Period)
	if periodSecs <= 0 {
		periodSecs = int64(period.Seconds())
	}
	currentStep := time.Now().Unix() / periodSecs

	for skew := int64(-skewSteps); skew <= skewSteps; skew++ {
		step := currentStep + skew
		if step <= cred.LastUsedStep {
			continue // already consumed this step or an earlier one
		}
		ok, err := totp.ValidateCustom(code, secret, time.Unix(step*periodSecs, 0), totp.ValidateOpts{
			Period:    uint(periodSecs),
			Skew:      0,
			Digits:    digits,
			Algorithm: otp.AlgorithmSHA1,
		})
		if err != nil {
			return false, fmt.Errorf("failed to validate totp code: %w", err)
		}
		if !ok {
			continue
		}
		advanced, err := e.credentials.AdvanceTOTPStep(ctx, userID, step)
		if err != nil {
			return false, fmt.Errorf("failed to advance totp step: %w", err)
		}
		return advanced, nil
	}
	return false, nil
}

// Disable removes a user's TOTP credential entirely.
func (e *TOTPEngine) Disable(ctx context.Context, userID uuid.UUID) error {
	return e.credentials.DeleteTOTP(ctx, userID)
}

// IsEnrolled reports whether userID has an active TOTP credential.
func (e *TOTPEngine) IsEnrolled(ctx context.Context, userID uuid.UUID) (bool, error) {
	cred, err := e.credentials.GetTOTP(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check totp enrollment: %w", err)
	}
	return cred.Enabled, nil
}
