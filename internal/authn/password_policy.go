package authn

import (
	"context"
	"fmt"
	"time"
	"unicode"

	"github.com/authme/core/internal/crypto"
	"github.com/authme/core/internal/store"
	"github.com/google/uuid"
)

// PasswordPolicy enforces a realm's complexity, history, and max-age
// rules for password changes.
type PasswordPolicy struct {
	credentials *store.CredentialRepo
	hasher      crypto.PasswordHasher
}

func NewPasswordPolicy(credentials *store.CredentialRepo, hasher crypto.PasswordHasher) *PasswordPolicy {
	return &PasswordPolicy{credentials: credentials, hasher: hasher}
}

// Validate checks password against the realm's complexity policy and
// returns every violation found, not just the first.
func (p *PasswordPolicy) Validate(policy store.PasswordPolicy, password string) (valid bool, errs []string) {
	if len(password) < policy.MinLength {
		errs = append(errs, fmt.Sprintf("password must be at least %d characters", policy.MinLength))
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	if policy.RequireUppercase && !hasUpper {
		errs = append(errs, "password must contain an uppercase letter")
	}
	if policy.RequireLowercase && !hasLower {
		errs = append(errs, "password must contain a lowercase letter")
	}
	if policy.RequireDigits && !hasDigit {
		errs = append(errs, "password must contain a digit")
	}
	if policy.RequireSpecial && !hasSpecial {
		errs = append(errs, "password must contain a special character")
	}

	return len(errs) == 0, errs
}

// IsExpired reports whether the realm enforces max password age and the
// user's password is past it.
func (p *PasswordPolicy) IsExpired(user store.User, policy store.PasswordPolicy) bool {
	if policy.MaxAgeDays <= 0 {
		return false
	}
	return time.Now().After(user.PasswordChangedAt.Add(time.Duration(policy.MaxAgeDays) * 24 * time.Hour))
}

// CheckHistory reports whether newPassword matches any of the user's last
// n recorded password hashes, in which case the change must be rejected.
func (p *PasswordPolicy) CheckHistory(ctx context.Context, userID uuid.UUID, newPassword string, n int) (bool, error) {
	if n <= 0 {
		return false, nil
	}
	hashes, err := p.credentials.RecentPasswordHashes(ctx, userID, n)
	if err != nil {
		return false, fmt.Errorf("failed to check password history: %w", err)
	}
	for _, h := range hashes {
		if p.hasher.Verify(h, newPassword) == nil {
			return true, nil
		}
	}
	return false, nil
}

// RecordHistory appends the hash that is being replaced (not the new one)
// to the history table and prunes it to the realm's retention count.
func (p *PasswordPolicy) RecordHistory(ctx context.Context, userID, realmID uuid.UUID, oldHash string, n int) error {
	if oldHash == "" {
		return nil
	}
	if err := p.credentials.AddPasswordHistory(ctx, store.PasswordHistory{
		UserID:       userID,
		RealmID:      realmID,
		PasswordHash: oldHash,
	}); err != nil {
		return fmt.Errorf("failed to record password history: %w", err)
	}
	return p.credentials.PruneOldPasswordHistory(ctx, userID, n)
}
