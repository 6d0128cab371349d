package token

import (
	"context"
	"testing"

	"github.com/authme/core/internal/crypto"
	"github.com/authme/core/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSigningKeyStore struct {
	keys map[uuid.UUID]store.RealmSigningKey
}

func newFakeSigningKeyStore() *fakeSigningKeyStore {
	return &fakeSigningKeyStore{keys: make(map[uuid.UUID]store.RealmSigningKey)}
}

func (f *fakeSigningKeyStore) Active(_ context.Context, realmID uuid.UUID) ([]store.RealmSigningKey, error) {
	var out []store.RealmSigningKey
	for _, k := range f.keys {
		if k.RealmID == realmID && k.Active {
			out = append(out, k)
		}
	}
	// newest-first isn't meaningful with a single fake insert order, the
	// production repo sorts by created_at DESC; no test here signs while a
	// realm has more than one active key, so ordering doesn't matter.
	return out, nil
}

func (f *fakeSigningKeyStore) Create(_ context.Context, k store.RealmSigningKey) (store.RealmSigningKey, error) {
	if k.ID == uuid.Nil {
		k.ID = uuid.New()
	}
	f.keys[k.ID] = k
	return k, nil
}

func (f *fakeSigningKeyStore) Deactivate(_ context.Context, id uuid.UUID) error {
	k := f.keys[id]
	k.Active = false
	f.keys[id] = k
	return nil
}

func testMasterKey(t *testing.T) crypto.MasterKey {
	t.Helper()
	hexKey, err := crypto.GenerateMasterKey()
	require.NoError(t, err)
	key, err := crypto.ParseMasterKey(hexKey)
	require.NoError(t, err)
	return key
}

func TestKeySet_RotateThenSigning(t *testing.T) {
	ctx := context.Background()
	fake := newFakeSigningKeyStore()
	ks := &KeySet{repo: fake, masterKey: testMasterKey(t)}

	realmID := uuid.New()
	_, err := ks.Signing(ctx, realmID)
	assert.ErrorIs(t, err, ErrNoActiveKey)

	created, err := ks.Rotate(ctx, realmID)
	require.NoError(t, err)
	assert.True(t, created.Active)
	assert.NotEmpty(t, created.Kid)

	signing, err := ks.Signing(ctx, realmID)
	require.NoError(t, err)
	assert.Equal(t, created.Kid, signing.Kid)

	decrypted, err := ks.DecryptPrivateKey(signing)
	require.NoError(t, err)
	assert.Contains(t, decrypted, "PRIVATE KEY")
}

func TestKeySet_Deactivate(t *testing.T) {
	ctx := context.Background()
	fake := newFakeSigningKeyStore()
	ks := &KeySet{repo: fake, masterKey: testMasterKey(t)}

	realmID := uuid.New()
	created, err := ks.Rotate(ctx, realmID)
	require.NoError(t, err)

	require.NoError(t, ks.Deactivate(ctx, created.ID))

	_, err = ks.Signing(ctx, realmID)
	assert.ErrorIs(t, err, ErrNoActiveKey)
}
