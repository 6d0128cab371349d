package oidc

import (
	"context"
	"errors"
	"fmt"

	"github.com/authme/core/internal/crypto"
	"github.com/authme/core/internal/session"
	"github.com/authme/core/internal/store"
	"github.com/google/uuid"
)

// TokenRequest is the parsed POST /token body; only the fields relevant
// to GrantType need be set.
type TokenRequest struct {
	GrantType    string
	ClientID     string
	ClientSecret string
	IP           string

	// authorization_code
	Code         string
	RedirectURI  string
	CodeVerifier string

	// refresh_token
	RefreshToken string

	// client_credentials and password
	Scope []string

	// password
	Username string
	Password string

	// urn:ietf:params:oauth:grant-type:device_code
	DeviceCode string
}

// TokenResponse is the RFC 6749 §5.1 successful token response.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// Token dispatches a token-endpoint request to the handler for its grant
// type. The returned error is either an *Error (safe to serialize
// directly as the RFC 6749 §5.2 error body) or an opaque internal error
// the caller should log and answer with a generic server_error.
func (c *Core) Token(ctx context.Context, realm store.Realm, req TokenRequest) (*TokenResponse, error) {
	switch store.GrantType(req.GrantType) {
	case store.GrantAuthorizationCode:
		return c.authorizationCodeGrant(ctx, realm, req)
	case store.GrantRefreshToken:
		return c.refreshTokenGrant(ctx, realm, req)
	case store.GrantClientCredentials:
		return c.clientCredentialsGrant(ctx, realm, req)
	case store.GrantPassword:
		return c.passwordGrant(ctx, realm, req)
	case store.GrantDeviceCode:
		return c.deviceCodeGrant(ctx, realm, req)
	default:
		return nil, ErrUnsupportedGrantType
	}
}

func (c *Core) authorizationCodeGrant(ctx context.Context, realm store.Realm, req TokenRequest) (*TokenResponse, error) {
	client, cerr := c.authenticateClient(ctx, realm.ID, req.ClientID, req.ClientSecret)
	if cerr != nil {
		return nil, cerr
	}
	if !client.SupportsGrant(store.GrantAuthorizationCode) {
		return nil, ErrUnauthorizedClient
	}

	ac, err := c.AuthCodes.ConsumeAndGet(ctx, req.Code)
	if err != nil {
		return nil, ErrInvalidGrant
	}
	if ac.ClientID != client.ID || ac.RedirectURI != req.RedirectURI {
		return nil, ErrInvalidGrant
	}
	if !crypto.VerifyCodeChallenge(req.CodeVerifier, crypto.PKCEMethodS256, ac.CodeChallenge) {
		return nil, ErrInvalidGrant
	}

	user, uerr := c.Users.GetByID(ctx, realm.ID, ac.UserID)
	if uerr != nil || !user.Enabled {
		return nil, ErrInvalidGrant
	}

	var sid string
	if ac.SessionID != nil {
		sid = ac.SessionID.String()
	}

	accessToken, idToken, merr := c.issueAccessAndID(ctx, realm.ID, client, user, ac.Scopes, sid, ac.Nonce, realm.AccessTokenLifespan)
	if merr != nil {
		return nil, merr
	}

	resp := &TokenResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(realm.AccessTokenLifespan.Seconds()),
		IDToken:     idToken,
		Scope:       scopeString(ac.Scopes),
	}

	if client.SupportsGrant(store.GrantRefreshToken) && ac.SessionID != nil {
		isOffline := session.IsOfflineScope(ac.Scopes)
		lifetime := realm.RefreshTokenLifespan
		if isOffline {
			lifetime = realm.OfflineTokenLifespan
		}
		rawRefresh, _, rerr := c.Refresher.Issue(ctx, realm.ID, *ac.SessionID, user.ID, client.ID, ac.Scopes, lifetime, isOffline)
		if rerr != nil {
			return nil, fmt.Errorf("failed to issue refresh token: %w", rerr)
		}
		resp.RefreshToken = rawRefresh
	}
	return resp, nil
}

func (c *Core) refreshTokenGrant(ctx context.Context, realm store.Realm, req TokenRequest) (*TokenResponse, error) {
	client, cerr := c.authenticateClient(ctx, realm.ID, req.ClientID, req.ClientSecret)
	if cerr != nil {
		return nil, cerr
	}
	if !client.SupportsGrant(store.GrantRefreshToken) {
		return nil, ErrUnauthorizedClient
	}
	if req.RefreshToken == "" {
		return nil, ErrInvalidRequest
	}

	current, perr := c.Refresher.Peek(ctx, req.RefreshToken)
	if perr != nil {
		return nil, ErrInvalidGrant
	}
	lifetime := realm.RefreshTokenLifespan
	if current.IsOffline {
		lifetime = realm.OfflineTokenLifespan
	}

	newRaw, rt, err := c.Refresher.Rotate(ctx, req.RefreshToken, client.ID, nil, lifetime)
	if errors.Is(err, session.ErrReused) {
		// A replayed refresh token burns its whole session family;
		// the caller must not be handed a token either way.
		if current.SessionID != uuid.Nil {
			if rerr := c.Refresher.RevokeSessionFamily(ctx, current.SessionID); rerr != nil {
				return nil, fmt.Errorf("failed to revoke session family after reuse: %w", rerr)
			}
		}
		return nil, ErrInvalidGrant
	}
	if err != nil {
		return nil, ErrInvalidGrant
	}

	user, uerr := c.Users.GetByID(ctx, realm.ID, rt.UserID)
	if uerr != nil || !user.Enabled {
		return nil, ErrInvalidGrant
	}

	var sid string
	if rt.SessionID != uuid.Nil {
		sid = rt.SessionID.String()
	}

	accessToken, idToken, merr := c.issueAccessAndID(ctx, realm.ID, client, user, rt.Scopes, sid, "", realm.AccessTokenLifespan)
	if merr != nil {
		return nil, merr
	}

	return &TokenResponse{
		AccessToken:  accessToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(realm.AccessTokenLifespan.Seconds()),
		RefreshToken: newRaw,
		IDToken:      idToken,
		Scope:        scopeString(rt.Scopes),
	}, nil
}

func (c *Core) clientCredentialsGrant(ctx context.Context, realm store.Realm, req TokenRequest) (*TokenResponse, error) {
	client, cerr := c.authenticateClient(ctx, realm.ID, req.ClientID, req.ClientSecret)
	if cerr != nil {
		return nil, cerr
	}
	if !client.SupportsGrant(store.GrantClientCredentials) || client.ServiceAccountUserID == nil {
		return nil, ErrUnauthorizedClient
	}

	scopes, serr := ResolveScopes(client, req.Scope)
	if serr != nil {
		return nil, serr
	}

	user, uerr := c.Users.GetByID(ctx, realm.ID, *client.ServiceAccountUserID)
	if uerr != nil {
		return nil, fmt.Errorf("failed to load service account user: %w", uerr)
	}

	// client_credentials has no end-user and no session; openid/id_token
	// make no sense here, so access-only regardless of requested scope.
	accessClaims := c.buildClaims(ctx, realm.ID, client, user, scopes, "", "")
	accessToken, err := c.Issuer.Mint(ctx, realm.ID, user.ID.String(), []string{client.ClientID}, realm.AccessTokenLifespan, accessClaims)
	if err != nil {
		return nil, fmt.Errorf("failed to mint access token: %w", err)
	}

	return &TokenResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(realm.AccessTokenLifespan.Seconds()),
		Scope:       scopeString(scopes),
	}, nil
}

func (c *Core) passwordGrant(ctx context.Context, realm store.Realm, req TokenRequest) (*TokenResponse, error) {
	client, cerr := c.authenticateClient(ctx, realm.ID, req.ClientID, req.ClientSecret)
	if cerr != nil {
		return nil, cerr
	}
	if !client.SupportsGrant(store.GrantPassword) {
		return nil, ErrUnauthorizedClient
	}

	scopes, serr := ResolveScopes(client, req.Scope)
	if serr != nil {
		return nil, serr
	}

	user, verr := c.Verifier.Verify(ctx, realm, req.Username, req.Password, req.IP)
	if verr != nil {
		return nil, ErrInvalidGrant
	}

	accessToken, idToken, merr := c.issueAccessAndID(ctx, realm.ID, client, user, scopes, "", "", realm.AccessTokenLifespan)
	if merr != nil {
		return nil, merr
	}

	resp := &TokenResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(realm.AccessTokenLifespan.Seconds()),
		IDToken:     idToken,
		Scope:       scopeString(scopes),
	}

	// The password grant has no browser SSO session to bind a refresh
	// token to; its refresh tokens are session-less (SessionID left the
	// zero UUID) and revocable only individually or as offline tokens.
	if client.SupportsGrant(store.GrantRefreshToken) {
		isOffline := session.IsOfflineScope(scopes)
		lifetime := realm.RefreshTokenLifespan
		if isOffline {
			lifetime = realm.OfflineTokenLifespan
		}
		rawRefresh, _, rerr := c.Refresher.Issue(ctx, realm.ID, uuid.Nil, user.ID, client.ID, scopes, lifetime, isOffline)
		if rerr != nil {
			return nil, fmt.Errorf("failed to issue refresh token: %w", rerr)
		}
		resp.RefreshToken = rawRefresh
	}
	return resp, nil
}
