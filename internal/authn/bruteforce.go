package authn

import (
	"context"
	"fmt"
	"time"

	"github.com/authme/core/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// BruteForceGuard derives lock state from the LoginFailure rows recorded
// for a (realm, user) pair, and appends/clears those rows. The hard
// serialization guarantee — two parallel bad attempts can't both slip
// past maxLoginFailures — comes from Attempt running the count-check and
// the resulting insert/delete inside one transaction that holds a
// FOR UPDATE lock on the user's row for its whole duration, so a second
// concurrent attempt for the same user blocks until the first has
// recorded its outcome and re-reads a count that already includes it.
type BruteForceGuard struct {
	credentials *store.CredentialRepo
}

func NewBruteForceGuard(credentials *store.CredentialRepo) *BruteForceGuard {
	return &BruteForceGuard{credentials: credentials}
}

// Attempt runs check while holding the per-user brute-force lock: it
// rejects immediately with ErrAccountLocked if the realm's policy already
// locks userID out, otherwise it calls check (expected to verify a
// password or bind to a federated directory) and records a failure or
// clears the counter depending on whether check returns an error. The
// error check returns is propagated unchanged past the locked case.
func (g *BruteForceGuard) Attempt(ctx context.Context, realm store.Realm, userID uuid.UUID, ip string, check func() error) error {
	policy := realm.BruteForcePolicy
	if !policy.Enabled {
		return check()
	}

	return g.credentials.WithLoginFailureLock(ctx, realm.ID, userID, func(tx pgx.Tx) error {
		locked, err := g.checkLockedLocked(ctx, tx, policy, userID)
		if err != nil {
			return fmt.Errorf("failed to check lockout state: %w", err)
		}
		if locked {
			return ErrAccountLocked
		}

		if checkErr := check(); checkErr != nil {
			if err := g.credentials.RecordLoginFailure(ctx, tx, store.LoginFailure{
				UserID: userID, RealmID: realm.ID, IPAddress: ip,
			}); err != nil {
				return fmt.Errorf("failed to record login failure: %w", err)
			}
			return checkErr
		}

		if err := g.credentials.ClearLoginFailures(ctx, tx, userID); err != nil {
			return fmt.Errorf("failed to clear login failures: %w", err)
		}
		return nil
	})
}

// checkLockedLocked evaluates the lockout decision against failures
// counted inside tx, which must already hold the per-user lock Attempt
// takes.
func (g *BruteForceGuard) checkLockedLocked(ctx context.Context, tx pgx.Tx, policy store.BruteForcePolicy, userID uuid.UUID) (bool, error) {
	since := time.Now().Add(-policy.FailureResetTime)
	count, err := g.credentials.CountRecentLoginFailures(ctx, tx, userID, since)
	if err != nil {
		return false, err
	}
	if count < policy.MaxLoginFailures {
		return false, nil
	}

	// Permanent lockout: cumulative failures within the reset window have
	// crossed the permanent threshold, independent of lockoutDuration.
	if policy.PermanentLockoutAfter > 0 && count >= policy.PermanentLockoutAfter {
		return true, nil
	}

	lastFailure, err := g.credentials.LatestLoginFailureAt(ctx, tx, userID)
	if err != nil {
		return false, err
	}
	if lastFailure.IsZero() {
		return false, nil
	}
	return time.Now().Before(lastFailure.Add(policy.LockoutDuration)), nil
}

