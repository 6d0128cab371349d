package oidc

import (
	"context"
	"testing"

	"github.com/authme/core/internal/crypto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRevoke_AuthenticatedClientAlwaysSucceeds(t *testing.T) {
	client := confidentialClient("rp", "s3cret")
	refresher := newFakeRefresher()
	c := &Core{Clients: newFakeClients(client), Refresher: refresher, hasher: crypto.NewArgon2idHasher()}
	realm := testRealm()

	raw, _, err := refresher.Issue(context.Background(), realm.ID, uuid.Nil, uuid.New(), client.ID, nil, 0, false)
	require.NoError(t, err)

	require.NoError(t, c.Revoke(context.Background(), realm, "rp", "s3cret", raw))
	_, ok := refresher.tokens[raw]
	assert.False(t, ok)
}

func TestRevoke_UnknownTokenStillReturnsNoError(t *testing.T) {
	client := confidentialClient("rp", "s3cret")
	refresher := newFakeRefresher()
	c := &Core{Clients: newFakeClients(client), Refresher: refresher, hasher: crypto.NewArgon2idHasher()}
	realm := testRealm()

	require.NoError(t, c.Revoke(context.Background(), realm, "rp", "s3cret", "never-issued"))
}

func TestRevoke_BadClientCredentialsRejected(t *testing.T) {
	client := confidentialClient("rp", "s3cret")
	c := &Core{Clients: newFakeClients(client), Refresher: newFakeRefresher(), hasher: crypto.NewArgon2idHasher()}
	realm := testRealm()

	err := c.Revoke(context.Background(), realm, "rp", "wrong", "sometoken")
	assert.Equal(t, ErrInvalidClient, err)
}

func TestRevoke_EmptyTokenRejected(t *testing.T) {
	client := confidentialClient("rp", "s3cret")
	c := &Core{Clients: newFakeClients(client), Refresher: newFakeRefresher(), hasher: crypto.NewArgon2idHasher()}
	realm := testRealm()

	err := c.Revoke(context.Background(), realm, "rp", "s3cret", "")
	assert.Equal(t, ErrInvalidRequest, err)
}
