package oidc

import (
	"context"
	"time"

	"github.com/authme/core/internal/store"
	"github.com/authme/core/internal/token"
	"github.com/google/uuid"
)

// The interfaces below are the narrow slices of each store/package
// dependency Core actually calls. *store.ClientRepo et al. satisfy them
// structurally, so production wiring passes the concrete repos straight
// through; tests pass in-memory fakes instead, the same seam pattern
// internal/session and internal/consent already use one layer down.

type clientStore interface {
	GetByClientID(ctx context.Context, realmID uuid.UUID, clientID string) (store.Client, error)
	ListBackchannelSubscribers(ctx context.Context, realmID uuid.UUID) ([]store.Client, error)
}

type userStore interface {
	GetByID(ctx context.Context, realmID, id uuid.UUID) (store.User, error)
}

type authCodeStore interface {
	Create(ctx context.Context, ac store.AuthorizationCode) error
	ConsumeAndGet(ctx context.Context, code string) (store.AuthorizationCode, error)
}

type deviceCodeStore interface {
	Create(ctx context.Context, d store.DeviceCode) error
	GetByDeviceCode(ctx context.Context, deviceCode string) (store.DeviceCode, error)
	GetByUserCode(ctx context.Context, userCode string) (store.DeviceCode, error)
	Approve(ctx context.Context, userCode string, userID uuid.UUID) error
	Deny(ctx context.Context, userCode string) error
	Delete(ctx context.Context, deviceCode string) error
}

type sessionStore interface {
	EndSession(ctx context.Context, sessionID uuid.UUID) error
}

type refresher interface {
	Issue(ctx context.Context, realmID, sessionID, userID, clientID uuid.UUID, scopes []string, lifetime time.Duration, isOffline bool) (string, store.RefreshToken, error)
	Peek(ctx context.Context, rawToken string) (store.RefreshToken, error)
	Rotate(ctx context.Context, rawToken string, clientID uuid.UUID, scopes []string, lifetime time.Duration) (string, store.RefreshToken, error)
	Revoke(ctx context.Context, rawToken string) error
	RevokeSessionFamily(ctx context.Context, sessionID uuid.UUID) error
}

type consentLedger interface {
	HasConsent(ctx context.Context, userID, clientID uuid.UUID, requested []string) (bool, error)
}

type credentialVerifier interface {
	Verify(ctx context.Context, realm store.Realm, username, password, ip string) (store.User, error)
}

type tokenIssuer interface {
	Mint(ctx context.Context, realmID uuid.UUID, subject string, audience []string, ttl time.Duration, claims token.Claims) (string, error)
	Verify(ctx context.Context, realmID uuid.UUID, tokenString string) (*token.Claims, error)
}
