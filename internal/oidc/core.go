package oidc

import (
	"context"
	"fmt"
	"time"

	"github.com/authme/core/internal/authn"
	"github.com/authme/core/internal/consent"
	"github.com/authme/core/internal/crypto"
	"github.com/authme/core/internal/session"
	"github.com/authme/core/internal/store"
	"github.com/authme/core/internal/token"
	"github.com/google/uuid"
)

// Core wires every store-layer primitive and supporting package the
// authorization and token endpoints need into one dependency set. It has
// no knowledge of HTTP; the transport layer parses a request into one of
// this package's request structs and renders whichever of *Error or the
// returned value comes back. Every field is a narrow interface rather
// than the concrete store/package type, so tests can swap in in-memory
// fakes; production wiring passes the real *store.ClientRepo and friends
// straight through, since each satisfies its interface structurally.
type Core struct {
	Clients     clientStore
	Users       userStore
	AuthCodes   authCodeStore
	DeviceCodes deviceCodeStore

	Sessions   sessionStore
	Refresher  refresher
	Consent    consentLedger
	Verifier   credentialVerifier
	Roles      RoleResolver
	Dispatcher dispatcher

	Issuer tokenIssuer
	hasher crypto.PasswordHasher

	IssuerURL string // exact "iss" value, e.g. "https://auth.example.com/realms/acme"
}

func NewCore(clients *store.ClientRepo, users *store.UserRepo, authCodes *store.AuthCodeRepo,
	deviceCodes *store.DeviceCodeRepo, sessions *session.Store, refresher *session.Refresher,
	ledger *consent.Ledger, verifier *authn.CredentialVerifier, roles RoleResolver,
	notifier dispatcher, issuer *token.Issuer, issuerURL string) *Core {
	if roles == nil {
		roles = NoRoles{}
	}
	return &Core{
		Clients: clients, Users: users, AuthCodes: authCodes, DeviceCodes: deviceCodes,
		Sessions: sessions, Refresher: refresher, Consent: ledger, Verifier: verifier,
		Roles: roles, Dispatcher: notifier, Issuer: issuer, IssuerURL: issuerURL,
		hasher: crypto.NewArgon2idHasher(),
	}
}

// authenticateClient resolves clientID and, for confidential clients,
// verifies clientSecret. Public clients present no secret at all; a
// confidential client presenting a blank or wrong secret is rejected.
func (c *Core) authenticateClient(ctx context.Context, realmID uuid.UUID, clientID, clientSecret string) (store.Client, *Error) {
	client, err := c.Clients.GetByClientID(ctx, realmID, clientID)
	if err != nil {
		return store.Client{}, ErrInvalidClient
	}
	if client.ClientType == store.ClientTypeConfidential {
		if clientSecret == "" {
			return store.Client{}, ErrInvalidClient
		}
		if verr := c.hasher.Verify(client.ClientSecretHash, clientSecret); verr != nil {
			return store.Client{}, ErrInvalidClient
		}
	}
	return client, nil
}

// issueAccessAndID mints an access token, and an ID token when scopes
// include "openid". subject is the resource owner's user id for every
// grant except client_credentials, where it is the service account's.
func (c *Core) issueAccessAndID(ctx context.Context, realmID uuid.UUID, client store.Client, user store.User, scopes []string, sid, nonce string, lifetime time.Duration) (accessToken, idToken string, err error) {
	accessClaims := c.buildClaims(ctx, realmID, client, user, scopes, sid, "")
	accessToken, err = c.Issuer.Mint(ctx, realmID, user.ID.String(), []string{client.ClientID}, lifetime, accessClaims)
	if err != nil {
		return "", "", fmt.Errorf("failed to mint access token: %w", err)
	}

	if !hasScope(scopes, ScopeOpenID) {
		return accessToken, "", nil
	}

	idClaims := c.buildClaims(ctx, realmID, client, user, scopes, sid, nonce)
	idClaims.ATHash = atHash(accessToken)
	idToken, err = c.Issuer.Mint(ctx, realmID, user.ID.String(), []string{client.ClientID}, lifetime, idClaims)
	if err != nil {
		return "", "", fmt.Errorf("failed to mint id token: %w", err)
	}
	return accessToken, idToken, nil
}

// buildClaims shapes the realm_access/resource_access role claims and the
// profile/email claims per the granted scope set. Roles storage is out of
// core scope (see RoleResolver); a NoRoles resolver yields empty role
// claims without failing the mint.
func (c *Core) buildClaims(ctx context.Context, realmID uuid.UUID, client store.Client, user store.User, scopes []string, sid, nonce string) token.Claims {
	claims := token.Claims{
		ClientID: client.ClientID,
		Scope:    scopeString(scopes),
		SID:      sid,
		Nonce:    nonce,
	}
	if sid != "" {
		claims.AuthTime = time.Now().Unix()
	}

	if hasScope(scopes, ScopeEmail) {
		claims.Email = user.Email
	}

	if hasScope(scopes, ScopeRoles) {
		if realmRoles, err := c.Roles.RealmRoles(ctx, realmID, user.ID); err == nil && len(realmRoles) > 0 {
			claims.RealmAccess = &token.RoleAccess{Roles: realmRoles}
		}
		if clientRoles, err := c.Roles.ClientRoles(ctx, client.ID, user.ID); err == nil && len(clientRoles) > 0 {
			claims.ResourceAccess = map[string]token.RoleAccess{
				client.ClientID: {Roles: clientRoles},
			}
		}
	}

	return claims
}
