package oidc

import (
	"context"
	"fmt"
	"time"

	"github.com/authme/core/internal/crypto"
	"github.com/authme/core/internal/store"
	"github.com/google/uuid"
)

const authorizationCodeTTL = 60 * time.Second

// AuthorizeRequest is the parsed GET /auth query string.
type AuthorizeRequest struct {
	ResponseType        string
	ClientID            string
	RedirectURI         string
	Scope               []string
	State               string
	Nonce               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// ValidationError distinguishes failures discovered before the client and
// redirect_uri are confirmed (where the only safe response is an error
// page) from failures discovered after (where RFC 6749 requires
// delivering the error via redirect_uri's query string instead).
type ValidationError struct {
	Err            *Error
	SafeToRedirect bool
}

func (v *ValidationError) Error() string { return v.Err.Error() }

func preRedirectErr(err *Error) *ValidationError {
	return &ValidationError{Err: err, SafeToRedirect: false}
}

func postRedirectErr(err *Error) *ValidationError {
	return &ValidationError{Err: err, SafeToRedirect: true}
}

// ValidateAuthorizeRequest checks an authorization request against the
// registered client, validating the redirect_uri first so every
// subsequent failure can be reported by redirecting back to the client
// with an error, per RFC 6749 §4.1.2.1.
func (c *Core) ValidateAuthorizeRequest(ctx context.Context, realmID uuid.UUID, req AuthorizeRequest) (store.Client, []string, *ValidationError) {
	client, err := c.Clients.GetByClientID(ctx, realmID, req.ClientID)
	if err != nil {
		return store.Client{}, nil, preRedirectErr(ErrInvalidClient)
	}
	if req.RedirectURI == "" || !client.ValidRedirectURI(req.RedirectURI) {
		return store.Client{}, nil, preRedirectErr(ErrInvalidRequest)
	}

	if req.ResponseType != "code" {
		return store.Client{}, nil, postRedirectErr(newErr("unsupported_response_type", "only the \"code\" response type is supported"))
	}
	if !client.SupportsGrant(store.GrantAuthorizationCode) {
		return store.Client{}, nil, postRedirectErr(ErrUnauthorizedClient)
	}

	if req.CodeChallenge == "" {
		return store.Client{}, nil, postRedirectErr(ErrInvalidRequest)
	}
	if req.CodeChallengeMethod != string(crypto.PKCEMethodS256) {
		return store.Client{}, nil, postRedirectErr(newErr("invalid_request", "code_challenge_method must be S256"))
	}

	scopes, serr := ResolveScopes(client, req.Scope)
	if serr != nil {
		return store.Client{}, nil, postRedirectErr(serr)
	}

	return client, scopes, nil
}

// NeedsConsent reports whether the consent screen must be shown: clients
// configured with RequireConsent always need it unless the user already
// granted every requested scope.
func (c *Core) NeedsConsent(ctx context.Context, client store.Client, userID uuid.UUID, scopes []string) (bool, error) {
	if !client.RequireConsent {
		return false, nil
	}
	has, err := c.Consent.HasConsent(ctx, userID, client.ID, scopes)
	if err != nil {
		return false, fmt.Errorf("failed to check consent: %w", err)
	}
	return !has, nil
}

// IssueAuthorizationCode persists a single-use authorization code bound
// to the resource owner, the SSO session that approved it, the
// validated redirect_uri, the granted scopes, and the PKCE challenge the
// token endpoint must later verify.
func (c *Core) IssueAuthorizationCode(ctx context.Context, realmID uuid.UUID, client store.Client, userID uuid.UUID, sessionID uuid.UUID, scopes []string, req AuthorizeRequest) (string, error) {
	code, err := crypto.GenerateSecureToken(32)
	if err != nil {
		return "", fmt.Errorf("failed to generate authorization code: %w", err)
	}
	ac := store.AuthorizationCode{
		Code:                code,
		RealmID:             realmID,
		ClientID:            client.ID,
		UserID:              userID,
		SessionID:           &sessionID,
		RedirectURI:         req.RedirectURI,
		Scopes:              scopes,
		Nonce:               req.Nonce,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		ExpiresAt:           time.Now().Add(authorizationCodeTTL),
	}
	if err := c.AuthCodes.Create(ctx, ac); err != nil {
		return "", fmt.Errorf("failed to store authorization code: %w", err)
	}
	return code, nil
}
