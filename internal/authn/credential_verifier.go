package authn

import (
	"context"
	"errors"
	"fmt"

	"github.com/authme/core/internal/crypto"
	"github.com/authme/core/internal/ldapfed"
	"github.com/authme/core/internal/store"
)

// CredentialVerifier authenticates a username/password pair against the
// local password hash or, for federated users, a delegated directory
// bind. The "user not found" path runs a dummy Argon2id verify, so it
// costs about as much as checking a real password and response latency
// does not reveal whether a username exists. A disabled or locked account
// is rejected without any hash computation.
type CredentialVerifier struct {
	users       *store.UserRepo
	guard       *BruteForceGuard
	hasher      crypto.PasswordHasher
	federation  ldapfed.Verifier
}

func NewCredentialVerifier(users *store.UserRepo, guard *BruteForceGuard, hasher crypto.PasswordHasher, federation ldapfed.Verifier) *CredentialVerifier {
	if federation == nil {
		federation = ldapfed.NoopVerifier{}
	}
	return &CredentialVerifier{users: users, guard: guard, hasher: hasher, federation: federation}
}

// Verify implements the Credential Verifier's decision algorithm: look up
// the user, consult the Brute-Force Guard, check the password (or
// delegate to federation), and record the outcome.
func (v *CredentialVerifier) Verify(ctx context.Context, realm store.Realm, username, password, ip string) (store.User, error) {
	user, err := v.users.GetByUsername(ctx, realm.ID, username)
	if errors.Is(err, store.ErrNotFound) {
		crypto.VerifyDummy(password)
		return store.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return store.User{}, fmt.Errorf("failed to look up user: %w", err)
	}

	if !user.Enabled {
		return store.User{}, ErrAccountDisabled
	}

	// Attempt holds a per-user lock across the count-check and the
	// resulting insert/clear, so the password/federation check below runs
	// serialized against any other concurrent attempt for this user.
	checkErr := v.guard.Attempt(ctx, realm, user.ID, ip, func() error {
		if user.FederationLink != "" {
			ok, _, ferr := v.federation.Verify(ctx, realm.ID.String(), user.Username, password)
			if ferr != nil {
				return fmt.Errorf("federation bind failed: %w", ferr)
			}
			if !ok {
				return ErrInvalidCredentials
			}
			return nil
		}

		if user.PasswordHash == "" {
			crypto.VerifyDummy(password)
			return ErrInvalidCredentials
		}
		if herr := v.hasher.Verify(user.PasswordHash, password); herr != nil {
			return ErrInvalidCredentials
		}
		return nil
	})
	if checkErr != nil {
		return store.User{}, checkErr
	}
	return user, nil
}
