package mfa

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/authme/core/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransient is an in-memory store.Transient used to test Challenges
// without a Postgres or Redis backend.
type fakeTransient struct {
	mu       sync.Mutex
	values   map[string][]byte
	attempts map[string]int
}

func newFakeTransient() *fakeTransient {
	return &fakeTransient{values: make(map[string][]byte), attempts: make(map[string]int)}
}

func (f *fakeTransient) Put(_ context.Context, key string, value []byte, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	f.attempts[key] = 0
	return nil
}

func (f *fakeTransient) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	if !ok {
		return nil, store.ErrTransientNotFound
	}
	return v, nil
}

func (f *fakeTransient) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.values, key)
	delete(f.attempts, key)
	return nil
}

func (f *fakeTransient) IncrementAttempt(_ context.Context, key string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.values[key]; !ok {
		return 0, store.ErrTransientNotFound
	}
	f.attempts[key]++
	return f.attempts[key], nil
}

func TestChallenges_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	challenges := NewChallenges(newFakeTransient())

	userID, realmID := uuid.New(), uuid.New()
	token, err := challenges.Create(ctx, Challenge{UserID: userID, RealmID: realmID, OAuthParams: map[string]string{"client_id": "web"}})
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	got, err := challenges.Get(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, userID, got.UserID)
	assert.Equal(t, "web", got.OAuthParams["client_id"])
}

func TestChallenges_Get_NotFound(t *testing.T) {
	challenges := NewChallenges(newFakeTransient())
	_, err := challenges.Get(context.Background(), "unknown-token")
	assert.ErrorIs(t, err, ErrChallengeNotFound)
}

func TestChallenges_RecordAttempt_ExceedsLimit(t *testing.T) {
	ctx := context.Background()
	challenges := NewChallenges(newFakeTransient())

	token, err := challenges.Create(ctx, Challenge{UserID: uuid.New(), RealmID: uuid.New()})
	require.NoError(t, err)

	for i := 0; i < challengeMaxAttempts; i++ {
		require.NoError(t, challenges.RecordAttempt(ctx, token))
	}

	err = challenges.RecordAttempt(ctx, token)
	assert.ErrorIs(t, err, ErrChallengeExceeded)

	_, err = challenges.Get(ctx, token)
	assert.ErrorIs(t, err, ErrChallengeNotFound, "exceeding the attempt limit must invalidate the challenge")
}

func TestChallenges_Invalidate(t *testing.T) {
	ctx := context.Background()
	challenges := NewChallenges(newFakeTransient())

	token, err := challenges.Create(ctx, Challenge{UserID: uuid.New(), RealmID: uuid.New()})
	require.NoError(t, err)

	require.NoError(t, challenges.Invalidate(ctx, token))
	_, err = challenges.Get(ctx, token)
	assert.ErrorIs(t, err, ErrChallengeNotFound)
}
