package authn_test

import (
	"context"
	"testing"
	"time"

	"github.com/authme/core/internal/authn"
	"github.com/authme/core/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHasher substitutes a near-instant plaintext compare for Argon2id so
// the history test below isn't paying ~100ms per hash.
type fakeHasher struct{}

func (fakeHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }
func (fakeHasher) Verify(hash, password string) error {
	if hash == "hashed:"+password {
		return nil
	}
	return assert.AnError
}

func TestPasswordPolicy_Validate(t *testing.T) {
	policy := store.PasswordPolicy{
		MinLength:        10,
		RequireUppercase: true,
		RequireLowercase: true,
		RequireDigits:    true,
		RequireSpecial:   true,
	}
	pp := authn.NewPasswordPolicy(nil, nil)

	valid, errs := pp.Validate(policy, "Abcdef1234!")
	assert.True(t, valid)
	assert.Empty(t, errs)

	valid, errs = pp.Validate(policy, "short1!")
	assert.False(t, valid)
	assert.NotEmpty(t, errs)

	valid, errs = pp.Validate(policy, "alllowercase1234!")
	assert.False(t, valid)
	assert.Contains(t, errs, "password must contain an uppercase letter")
}

func TestPasswordPolicy_IsExpired(t *testing.T) {
	pp := authn.NewPasswordPolicy(nil, nil)

	neverExpires := store.PasswordPolicy{MaxAgeDays: 0}
	user := store.User{PasswordChangedAt: time.Now().Add(-1000 * 24 * time.Hour)}
	assert.False(t, pp.IsExpired(user, neverExpires))

	expiring := store.PasswordPolicy{MaxAgeDays: 90}
	staleUser := store.User{PasswordChangedAt: time.Now().Add(-100 * 24 * time.Hour)}
	assert.True(t, pp.IsExpired(staleUser, expiring))

	freshUser := store.User{PasswordChangedAt: time.Now().Add(-1 * time.Hour)}
	assert.False(t, pp.IsExpired(freshUser, expiring))
}

// TestPasswordPolicy_CheckHistory covers property 8: a password matching
// any of the user's last n recorded hashes is rejected, and one that
// doesn't match any of them (including history past the retention count)
// is allowed.
func TestPasswordPolicy_CheckHistory(t *testing.T) {
	pool := setupTestPool(t)
	defer pool.Close()
	realmID, userID := createTestRealmAndUser(t, pool)

	credentials := store.NewCredentialRepo(pool)
	pp := authn.NewPasswordPolicy(credentials, fakeHasher{})
	ctx := context.Background()

	const historyCount = 3
	oldPasswords := []string{"correct-horse-1", "correct-horse-2", "correct-horse-3", "correct-horse-4"}
	for _, pw := range oldPasswords {
		hash, err := fakeHasher{}.Hash(pw)
		require.NoError(t, err)
		require.NoError(t, credentials.AddPasswordHistory(ctx, store.PasswordHistory{
			UserID: userID, RealmID: realmID, PasswordHash: hash,
		}))
		time.Sleep(10 * time.Millisecond) // keep created_at strictly increasing for the ORDER BY below
	}
	require.NoError(t, credentials.PruneOldPasswordHistory(ctx, userID, historyCount))

	reused, err := pp.CheckHistory(ctx, userID, "correct-horse-4", historyCount)
	require.NoError(t, err)
	assert.True(t, reused, "most recent retained password must be flagged as reused")

	reused, err = pp.CheckHistory(ctx, userID, "correct-horse-1", historyCount)
	require.NoError(t, err)
	assert.False(t, reused, "pruned-away password must not count as reused")

	reused, err = pp.CheckHistory(ctx, userID, "never-used-before", historyCount)
	require.NoError(t, err)
	assert.False(t, reused)

	reused, err = pp.CheckHistory(ctx, userID, "correct-horse-4", 0)
	require.NoError(t, err)
	assert.False(t, reused, "n<=0 disables history checking entirely")
}
