package consent

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

type fakeLedgerStore struct {
	grants map[[2]uuid.UUID][]string
}

func newFakeLedgerStore() *fakeLedgerStore {
	return &fakeLedgerStore{grants: make(map[[2]uuid.UUID][]string)}
}

func (f *fakeLedgerStore) Get(ctx context.Context, userID, clientID uuid.UUID) (store.UserConsent, error) {
	scopes, ok := f.grants[[2]uuid.UUID{userID, clientID}]
	if !ok {
		return store.UserConsent{}, store.ErrNotFound
	}
	return store.UserConsent{UserID: userID, ClientID: clientID, Scopes: scopes}, nil
}

func (f *fakeLedgerStore) Grant(ctx context.Context, userID, clientID uuid.UUID, scopes []string) error {
	key := [2]uuid.UUID{userID, clientID}
	existing := make(map[string]bool)
	for _, s := range f.grants[key] {
		existing[s] = true
	}
	for _, s := range scopes {
		existing[s] = true
	}
	merged := make([]string, 0, len(existing))
	for s := range existing {
		merged = append(merged, s)
	}
	f.grants[key] = merged
	return nil
}

func (f *fakeLedgerStore) Revoke(ctx context.Context, userID, clientID uuid.UUID) error {
	delete(f.grants, [2]uuid.UUID{userID, clientID})
	return nil
}

func TestLedger_HasConsent_NoPriorGrant(t *testing.T) {
	l := &Ledger{repo: newFakeLedgerStore()}
	ok, err := l.HasConsent(context.Background(), uuid.New(), uuid.New(), []string{"profile"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLedger_GrantThenHasConsent(t *testing.T) {
	ctx := context.Background()
	l := &Ledger{repo: newFakeLedgerStore()}
	userID, clientID := uuid.New(), uuid.New()

	require.NoError(t, l.Grant(ctx, userID, clientID, []string{"openid", "profile"}))

	ok, err := l.HasConsent(ctx, userID, clientID, []string{"openid"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.HasConsent(ctx, userID, clientID, []string{"openid", "email"})
	require.NoError(t, err)
	assert.False(t, ok, "email was never granted")
}

func TestLedger_Grant_UnionsRatherThanNarrows(t *testing.T) {
	ctx := context.Background()
	l := &Ledger{repo: newFakeLedgerStore()}
	userID, clientID := uuid.New(), uuid.New()

	require.NoError(t, l.Grant(ctx, userID, clientID, []string{"openid", "profile"}))
	require.NoError(t, l.Grant(ctx, userID, clientID, []string{"openid"}))

	ok, err := l.HasConsent(ctx, userID, clientID, []string{"profile"})
	require.NoError(t, err)
	assert.True(t, ok, "a narrower re-consent must not revoke the prior broader grant")
}

func TestLedger_Revoke(t *testing.T) {
	ctx := context.Background()
	l := &Ledger{repo: newFakeLedgerStore()}
	userID, clientID := uuid.New(), uuid.New()

	require.NoError(t, l.Grant(ctx, userID, clientID, []string{"openid"}))
	require.NoError(t, l.Revoke(ctx, userID, clientID))

	ok, err := l.HasConsent(ctx, userID, clientID, []string{"openid"})
	require.NoError(t, err)
	assert.False(t, ok)
}

// fakeTransient is an in-memory store.Transient, mirroring internal/mfa's
// test fake.
type fakeTransient struct {
	mu     sync.Mutex
	values map[string][]byte
}

func newFakeTransient() *fakeTransient {
	return &fakeTransient{values: make(map[string][]byte)}
}

func (f *fakeTransient) Put(_ context.Context, key string, value []byte, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
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
	return nil
}

func (f *fakeTransient) IncrementAttempt(_ context.Context, key string) (int, error) {
	return 0, nil
}

func TestRequests_CreateAndGet_RotatesID(t *testing.T) {
	ctx := context.Background()
	reqs := NewRequests(newFakeTransient())

	userID, clientID := uuid.New(), uuid.New()
	id, err := reqs.Create(ctx, Request{
		UserID: userID, ClientID: clientID, ClientName: "web", RealmName: "acme",
		Scopes: []string{"openid", "profile"}, OAuthParams: map[string]string{"state": "xyz"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	got, newID, err := reqs.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, userID, got.UserID)
	assert.Equal(t, "web", got.ClientName)
	assert.NotEqual(t, id, newID, "reading a consent request must rotate its id")

	_, _, err = reqs.Get(ctx, id)
	assert.ErrorIs(t, err, ErrRequestNotFound, "the old id must no longer work after rotation")

	again, _, err := reqs.Get(ctx, newID)
	require.NoError(t, err)
	assert.Equal(t, got.OAuthParams, again.OAuthParams)
}

func TestRequests_Get_NotFound(t *testing.T) {
	reqs := NewRequests(newFakeTransient())
	_, _, err := reqs.Get(context.Background(), "unknown-id")
	assert.ErrorIs(t, err, ErrRequestNotFound)
}

func TestRequests_Invalidate(t *testing.T) {
	ctx := context.Background()
	reqs := NewRequests(newFakeTransient())
	id, err := reqs.Create(ctx, Request{UserID: uuid.New(), ClientID: uuid.New()})
	require.NoError(t, err)

	require.NoError(t, reqs.Invalidate(ctx, id))

	_, _, err = reqs.Get(ctx, id)
	assert.ErrorIs(t, err, ErrRequestNotFound)
}
