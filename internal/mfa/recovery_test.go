package mfa

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecoveryStore struct {
	hashes map[string]bool // codeHash -> used
}

func newFakeRecoveryStore() *fakeRecoveryStore {
	return &fakeRecoveryStore{hashes: make(map[string]bool)}
}

func (f *fakeRecoveryStore) ReplaceRecoveryCodes(_ context.Context, _ uuid.UUID, codeHashes []string) error {
	f.hashes = make(map[string]bool, len(codeHashes))
	for _, h := range codeHashes {
		f.hashes[h] = false
	}
	return nil
}

func (f *fakeRecoveryStore) ConsumeRecoveryCode(_ context.Context, _ uuid.UUID, codeHash string) (bool, error) {
	used, ok := f.hashes[codeHash]
	if !ok || used {
		return false, nil
	}
	f.hashes[codeHash] = true
	return true, nil
}

func TestRecoveryCodes_RegenerateAndConsume(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRecoveryStore()
	rc := &RecoveryCodes{credentials: fake}

	codes, err := rc.Regenerate(ctx, uuid.New())
	require.NoError(t, err)
	require.Len(t, codes, codeCount)

	ok, err := rc.Consume(ctx, uuid.New(), codes[0])
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = rc.Consume(ctx, uuid.New(), codes[0])
	require.NoError(t, err)
	assert.False(t, ok, "a recovery code must not be usable twice")
}

func TestRecoveryCodes_ConsumeUnknownCode(t *testing.T) {
	fake := newFakeRecoveryStore()
	rc := &RecoveryCodes{credentials: fake}

	ok, err := rc.Consume(context.Background(), uuid.New(), "not-a-real-code")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGenerateRecoveryCodes_HashedDistinctly(t *testing.T) {
	_, hashes, err := generateRecoveryCodes(5)
	require.NoError(t, err)
	require.Len(t, hashes, 5)
	seen := make(map[string]bool)
	for _, h := range hashes {
		assert.False(t, seen[h])
		seen[h] = true
		assert.NotEqual(t, "", h)
	}
}
