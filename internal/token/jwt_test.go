package token

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssuer_MintAndVerify(t *testing.T) {
	ctx := context.Background()
	fake := newFakeSigningKeyStore()
	ks := &KeySet{repo: fake, masterKey: testMasterKey(t)}
	realmID := uuid.New()
	_, err := ks.Rotate(ctx, realmID)
	require.NoError(t, err)

	issuer := NewIssuer(ks, "https://auth.example.com/realms/acme")

	userID := uuid.New()
	signed, err := issuer.Mint(ctx, realmID, userID.String(), []string{"web"}, time.Minute, Claims{
		ClientID: "web",
		Scope:    "openid profile",
		Email:    "alice@example.com",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, signed)

	claims, err := issuer.Verify(ctx, realmID, signed)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, realmID, claims.RealmID)
}

func TestIssuer_Verify_RejectsTamperedToken(t *testing.T) {
	ctx := context.Background()
	fake := newFakeSigningKeyStore()
	ks := &KeySet{repo: fake, masterKey: testMasterKey(t)}
	realmID := uuid.New()
	_, err := ks.Rotate(ctx, realmID)
	require.NoError(t, err)

	issuer := NewIssuer(ks, "https://auth.example.com/realms/acme")
	signed, err := issuer.Mint(ctx, realmID, "user-1", []string{"web"}, time.Minute, Claims{})
	require.NoError(t, err)

	tampered := signed[:len(signed)-2] + "xx"
	_, err = issuer.Verify(ctx, realmID, tampered)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssuer_Verify_RejectsExpiredToken(t *testing.T) {
	ctx := context.Background()
	fake := newFakeSigningKeyStore()
	ks := &KeySet{repo: fake, masterKey: testMasterKey(t)}
	realmID := uuid.New()
	_, err := ks.Rotate(ctx, realmID)
	require.NoError(t, err)

	issuer := NewIssuer(ks, "https://auth.example.com/realms/acme")
	signed, err := issuer.Mint(ctx, realmID, "user-1", []string{"web"}, -time.Minute, Claims{})
	require.NoError(t, err)

	_, err = issuer.Verify(ctx, realmID, signed)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestIssuer_Verify_UnknownKidAfterDeactivation(t *testing.T) {
	ctx := context.Background()
	fake := newFakeSigningKeyStore()
	ks := &KeySet{repo: fake, masterKey: testMasterKey(t)}
	realmID := uuid.New()
	created, err := ks.Rotate(ctx, realmID)
	require.NoError(t, err)

	issuer := NewIssuer(ks, "https://auth.example.com/realms/acme")
	signed, err := issuer.Mint(ctx, realmID, "user-1", []string{"web"}, time.Minute, Claims{})
	require.NoError(t, err)

	require.NoError(t, ks.Deactivate(ctx, created.ID))

	_, err = issuer.Verify(ctx, realmID, signed)
	assert.ErrorIs(t, err, ErrInvalidToken, "a key pulled from the active set must fail verification")
}
