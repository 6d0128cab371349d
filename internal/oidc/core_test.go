package oidc

import (
	"context"
	"testing"

	"github.com/authme/core/internal/crypto"
	"github.com/authme/core/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCore(clients *fakeClients, users *fakeUsers) *Core {
	return &Core{
		Clients: clients,
		Users:   users,
		Issuer:  newFakeIssuer(),
		Roles:   NoRoles{},
		hasher:  crypto.NewArgon2idHasher(),
	}
}

func confidentialClient(clientID, secret string) store.Client {
	hash, _ := crypto.NewArgon2idHasher().Hash(secret)
	return store.Client{
		ID: uuid.New(), ClientID: clientID, ClientType: store.ClientTypeConfidential,
		ClientSecretHash: hash,
		GrantTypes:       []store.GrantType{store.GrantAuthorizationCode, store.GrantRefreshToken},
		DefaultScopes:    []string{ScopeOpenID},
		OptionalScopes:   []string{ScopeEmail, ScopeProfile, ScopeRoles, ScopeOfflineAccess},
		RedirectURIs:     []string{"https://rp.example.com/callback"},
	}
}

func publicClient(clientID string) store.Client {
	return store.Client{
		ID: uuid.New(), ClientID: clientID, ClientType: store.ClientTypePublic,
		GrantTypes:     []store.GrantType{store.GrantAuthorizationCode},
		DefaultScopes:  []string{ScopeOpenID},
		OptionalScopes: []string{ScopeEmail},
		RedirectURIs:   []string{"https://rp.example.com/callback"},
	}
}

func TestAuthenticateClient_PublicNoSecretRequired(t *testing.T) {
	client := publicClient("public-app")
	c := newTestCore(newFakeClients(client), newFakeUsers())

	got, err := c.authenticateClient(context.Background(), uuid.New(), "public-app", "")
	require.Nil(t, err)
	assert.Equal(t, client.ID, got.ID)
}

func TestAuthenticateClient_ConfidentialRequiresSecret(t *testing.T) {
	client := confidentialClient("rp", "s3cret")
	c := newTestCore(newFakeClients(client), newFakeUsers())

	_, err := c.authenticateClient(context.Background(), uuid.New(), "rp", "")
	require.NotNil(t, err)
	assert.Equal(t, ErrInvalidClient, err)

	_, err = c.authenticateClient(context.Background(), uuid.New(), "rp", "wrong")
	require.NotNil(t, err)

	got, err := c.authenticateClient(context.Background(), uuid.New(), "rp", "s3cret")
	require.Nil(t, err)
	assert.Equal(t, client.ID, got.ID)
}

func TestAuthenticateClient_UnknownClient(t *testing.T) {
	c := newTestCore(newFakeClients(), newFakeUsers())
	_, err := c.authenticateClient(context.Background(), uuid.New(), "nope", "")
	require.NotNil(t, err)
	assert.Equal(t, ErrInvalidClient, err)
}

func TestIssueAccessAndID_SkipsIDTokenWithoutOpenIDScope(t *testing.T) {
	client := publicClient("app")
	user := store.User{ID: uuid.New(), Email: "a@example.com", Enabled: true}
	c := newTestCore(newFakeClients(client), newFakeUsers(user))

	access, id, err := c.issueAccessAndID(context.Background(), uuid.New(), client, user, []string{ScopeEmail}, "", "", 0)
	require.NoError(t, err)
	assert.NotEmpty(t, access)
	assert.Empty(t, id)
}

func TestIssueAccessAndID_IncludesIDTokenAndATHashWithOpenIDScope(t *testing.T) {
	client := publicClient("app")
	user := store.User{ID: uuid.New(), Email: "a@example.com", Enabled: true}
	c := newTestCore(newFakeClients(client), newFakeUsers(user))
	issuer := c.Issuer.(*fakeIssuer)

	access, id, err := c.issueAccessAndID(context.Background(), uuid.New(), client, user, []string{ScopeOpenID}, "sid-1", "nonce-1", 0)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	idClaims := issuer.minted[id]
	require.NotNil(t, idClaims)
	assert.Equal(t, atHash(access), idClaims.ATHash)
	assert.Equal(t, "nonce-1", idClaims.Nonce)
	assert.Equal(t, "sid-1", idClaims.SID)
}

func TestBuildClaims_RoleScopeShapesNestedRoleAccess(t *testing.T) {
	client := publicClient("app")
	user := store.User{ID: uuid.New()}
	c := newTestCore(newFakeClients(client), newFakeUsers(user))
	c.Roles = stubRoles{realm: []string{"admin"}, client: []string{"viewer"}}

	claims := c.buildClaims(context.Background(), uuid.New(), client, user, []string{ScopeRoles}, "", "")
	require.NotNil(t, claims.RealmAccess)
	assert.Equal(t, []string{"admin"}, claims.RealmAccess.Roles)
	require.Contains(t, claims.ResourceAccess, client.ClientID)
	assert.Equal(t, []string{"viewer"}, claims.ResourceAccess[client.ClientID].Roles)
}

func TestBuildClaims_NoRolesResolverYieldsNoRoleClaims(t *testing.T) {
	client := publicClient("app")
	user := store.User{ID: uuid.New()}
	c := newTestCore(newFakeClients(client), newFakeUsers(user))

	claims := c.buildClaims(context.Background(), uuid.New(), client, user, []string{ScopeRoles}, "", "")
	assert.Nil(t, claims.RealmAccess)
	assert.Nil(t, claims.ResourceAccess)
}

type stubRoles struct {
	realm  []string
	client []string
}

func (s stubRoles) RealmRoles(ctx context.Context, realmID, userID uuid.UUID) ([]string, error) {
	return s.realm, nil
}

func (s stubRoles) ClientRoles(ctx context.Context, clientPK, userID uuid.UUID) ([]string, error) {
	return s.client, nil
}
