package oidc

import (
	"context"
	"fmt"
	"time"

	"github.com/authme/core/internal/crypto"
	"github.com/authme/core/internal/session"
	"github.com/authme/core/internal/store"
	"github.com/google/uuid"
)

const (
	deviceCodeTTL      = 10 * time.Minute
	devicePollInterval = 5 * time.Second
)

// DeviceAuthorizationResponse is the RFC 8628 §3.2 device authorization
// response.
type DeviceAuthorizationResponse struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURI         string `json:"verification_uri"`
	VerificationURIComplete string `json:"verification_uri_complete"`
	ExpiresIn               int64  `json:"expires_in"`
	Interval                int64  `json:"interval"`
}

// InitiateDeviceAuthorization handles GET /auth/device: it registers a
// fresh device_code/user_code pair; the requesting device displays the
// user_code and polls with the device_code while the user approves on a
// second device.
func (c *Core) InitiateDeviceAuthorization(ctx context.Context, realmID uuid.UUID, client store.Client, requested []string) (*DeviceAuthorizationResponse, error) {
	if !client.SupportsGrant(store.GrantDeviceCode) {
		return nil, ErrUnauthorizedClient
	}
	scopes, serr := ResolveScopes(client, requested)
	if serr != nil {
		return nil, serr
	}

	deviceCode, err := crypto.GenerateSecureToken(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate device code: %w", err)
	}
	userCode, err := crypto.GenerateUserCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate user code: %w", err)
	}

	d := store.DeviceCode{
		DeviceCode: deviceCode,
		UserCode:   userCode,
		RealmID:    realmID,
		ClientID:   client.ID,
		Scopes:     scopes,
		Interval:   devicePollInterval,
		ExpiresAt:  time.Now().Add(deviceCodeTTL),
		Status:     store.DeviceCodePending,
	}
	if err := c.DeviceCodes.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("failed to store device code: %w", err)
	}

	verificationURI := c.IssuerURL + "/device"
	return &DeviceAuthorizationResponse{
		DeviceCode:              deviceCode,
		UserCode:                userCode,
		VerificationURI:         verificationURI,
		VerificationURIComplete: verificationURI + "?user_code=" + userCode,
		ExpiresIn:               int64(deviceCodeTTL.Seconds()),
		Interval:                int64(devicePollInterval.Seconds()),
	}, nil
}

// ApproveDeviceUserCode completes POST /auth/device/verify for an
// authenticated browser user who approved the code; it binds the device
// code to that user so the next poll can issue tokens for them.
func (c *Core) ApproveDeviceUserCode(ctx context.Context, userCode string, userID uuid.UUID) error {
	if err := c.DeviceCodes.Approve(ctx, userCode, userID); err != nil {
		return fmt.Errorf("failed to approve device code: %w", err)
	}
	return nil
}

// DenyDeviceUserCode rejects a device code the user declined to approve.
func (c *Core) DenyDeviceUserCode(ctx context.Context, userCode string) error {
	if err := c.DeviceCodes.Deny(ctx, userCode); err != nil {
		return fmt.Errorf("failed to deny device code: %w", err)
	}
	return nil
}

// GetDeviceByUserCode loads a device code for the verification page to
// display (client name, requested scopes) before the user decides.
func (c *Core) GetDeviceByUserCode(ctx context.Context, userCode string) (store.DeviceCode, error) {
	return c.DeviceCodes.GetByUserCode(ctx, userCode)
}

func (c *Core) deviceCodeGrant(ctx context.Context, realm store.Realm, req TokenRequest) (*TokenResponse, error) {
	client, cerr := c.authenticateClient(ctx, realm.ID, req.ClientID, req.ClientSecret)
	if cerr != nil {
		return nil, cerr
	}
	if !client.SupportsGrant(store.GrantDeviceCode) {
		return nil, ErrUnauthorizedClient
	}
	if req.DeviceCode == "" {
		return nil, ErrInvalidRequest
	}

	d, err := c.DeviceCodes.GetByDeviceCode(ctx, req.DeviceCode)
	if err != nil {
		return nil, ErrInvalidGrant
	}
	if d.ClientID != client.ID {
		return nil, ErrInvalidGrant
	}
	if time.Now().After(d.ExpiresAt) {
		_ = c.DeviceCodes.Delete(ctx, req.DeviceCode)
		return nil, ErrExpiredToken
	}

	switch d.Status {
	case store.DeviceCodePending:
		return nil, ErrAuthorizationPending
	case store.DeviceCodeDenied:
		_ = c.DeviceCodes.Delete(ctx, req.DeviceCode)
		return nil, ErrAccessDenied
	case store.DeviceCodeApproved:
		// fall through to token issuance
	default:
		return nil, ErrInvalidGrant
	}

	if d.UserID == nil {
		return nil, ErrInvalidGrant
	}
	user, uerr := c.Users.GetByID(ctx, realm.ID, *d.UserID)
	if uerr != nil || !user.Enabled {
		return nil, ErrInvalidGrant
	}

	accessToken, idToken, merr := c.issueAccessAndID(ctx, realm.ID, client, user, d.Scopes, "", "", realm.AccessTokenLifespan)
	if merr != nil {
		return nil, merr
	}

	resp := &TokenResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(realm.AccessTokenLifespan.Seconds()),
		IDToken:     idToken,
		Scope:       scopeString(d.Scopes),
	}

	// Device flow has no browser SSO session either; same session-less
	// refresh token shape as the password grant.
	if client.SupportsGrant(store.GrantRefreshToken) {
		isOffline := session.IsOfflineScope(d.Scopes)
		lifetime := realm.RefreshTokenLifespan
		if isOffline {
			lifetime = realm.OfflineTokenLifespan
		}
		rawRefresh, _, rerr := c.Refresher.Issue(ctx, realm.ID, uuid.Nil, user.ID, client.ID, d.Scopes, lifetime, isOffline)
		if rerr != nil {
			return nil, fmt.Errorf("failed to issue refresh token: %w", rerr)
		}
		resp.RefreshToken = rawRefresh
	}

	// Single-use: once tokens are issued the device_code cannot be
	// polled again to mint a second token pair.
	_ = c.DeviceCodes.Delete(ctx, req.DeviceCode)
	return resp, nil
}
