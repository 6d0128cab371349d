package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/authme/core/internal/crypto"
	"github.com/authme/core/internal/store"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrUnknownKid   = errors.New("unknown signing key")
)

// RoleAccess is the {"roles": [...]} shape nested under both
// realm_access and each entry of resource_access.
type RoleAccess struct {
	Roles []string `json:"roles"`
}

// Claims is the payload shape for access and ID tokens. ClientID and
// Scope carry the token-endpoint grant context; RealmAccess and
// ResourceAccess are assembled from the caller's role resolution before
// minting and are omitted entirely when the "roles" scope wasn't granted.
type Claims struct {
	RealmID        uuid.UUID             `json:"rid,omitempty"`
	ClientID       string                `json:"azp,omitempty"`
	Scope          string                `json:"scope,omitempty"`
	RealmAccess    *RoleAccess           `json:"realm_access,omitempty"`
	ResourceAccess map[string]RoleAccess `json:"resource_access,omitempty"`
	Email          string                `json:"email,omitempty"`
	Nonce          string                `json:"nonce,omitempty"`
	ATHash         string                `json:"at_hash,omitempty"` // ID token only: left-half(SHA-256(access_token)), base64url
	AuthTime       int64                 `json:"auth_time,omitempty"`
	SID            string                `json:"sid,omitempty"` // SSO session id, for backchannel logout correlation
	// Events carries the OpenID Connect Back-Channel Logout 1.0 "events"
	// claim, e.g. {"http://schemas.openid.net/event/backchannel-logout": {}}.
	// Only ever set on logout_token, never on access/ID tokens.
	Events map[string]struct{} `json:"events,omitempty"`
	jwt.RegisteredClaims
}

// BackchannelLogoutEvent is the member name OIDC Back-Channel Logout 1.0
// requires inside a logout_token's "events" claim.
const BackchannelLogoutEvent = "http://schemas.openid.net/event/backchannel-logout"

// Issuer mints and verifies RS256 JWTs for one realm using its active
// signing keys.
type Issuer struct {
	keys      *KeySet
	issuerURL string // e.g. "https://auth.example.com/realms/acme"
}

func NewIssuer(keys *KeySet, issuerURL string) *Issuer {
	return &Issuer{keys: keys, issuerURL: issuerURL}
}

// Mint signs claims with the realm's current signing key, stamping
// standard registered claims (iss, iat, nbf, exp, jti) and the key's kid
// into the JWT header.
func (iss *Issuer) Mint(ctx context.Context, realmID uuid.UUID, subject string, audience []string, ttl time.Duration, claims Claims) (string, error) {
	key, err := iss.keys.Signing(ctx, realmID)
	if err != nil {
		return "", err
	}
	privPEM, err := iss.keys.DecryptPrivateKey(key)
	if err != nil {
		return "", err
	}
	priv, err := crypto.DecodePrivateKeyPEM(privPEM)
	if err != nil {
		return "", fmt.Errorf("failed to decode signing key: %w", err)
	}

	now := time.Now()
	claims.RealmID = realmID
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    iss.issuerURL,
		Audience:  jwt.ClaimStrings(audience),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = key.Kid
	signed, err := token.SignedString(priv)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a JWT issued for realmID, checking
// signature, expiry, and issuer, and resolving the signing key by the
// token's kid header against the realm's active key set (so rotation
// doesn't invalidate tokens signed under a still-active previous key).
func (iss *Issuer) Verify(ctx context.Context, realmID uuid.UUID, tokenString string) (*Claims, error) {
	keys, err := iss.keys.Active(ctx, realmID)
	if err != nil {
		return nil, err
	}
	byKid := make(map[string]store.RealmSigningKey, len(keys))
	for _, k := range keys {
		byKid[k.Kid] = k
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		kid, _ := t.Header["kid"].(string)
		row, ok := byKid[kid]
		if !ok {
			return nil, ErrUnknownKid
		}
		return crypto.DecodePublicKeyPEM(row.PublicKeyPEM)
	}, jwt.WithIssuer(iss.issuerURL))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
