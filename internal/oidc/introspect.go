package oidc

import (
	"context"

	"github.com/authme/core/internal/store"
	"github.com/google/uuid"
)

// IntrospectionResponse is the RFC 7662 §2.2 response shape. Every field
// but Active is omitted when the token is not active, per §2.2's "other
// fields MAY be omitted" combined with never leaking claims for a dead
// token.
type IntrospectionResponse struct {
	Active    bool   `json:"active"`
	Subject   string `json:"sub,omitempty"`
	Audience  string `json:"aud,omitempty"`
	Expiry    int64  `json:"exp,omitempty"`
	IssuedAt  int64  `json:"iat,omitempty"`
	Scope     string `json:"scope,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	Username  string `json:"username,omitempty"`
	TokenType string `json:"token_type,omitempty"`
}

// Introspect implements POST /token/introspect: the caller must
// authenticate as a registered client, but any client may introspect any
// token issued in the realm (the spec places no narrower ownership check
// on introspection).
func (c *Core) Introspect(ctx context.Context, realm store.Realm, callerClientID, callerClientSecret, tokenString string) (*IntrospectionResponse, error) {
	if _, cerr := c.authenticateClient(ctx, realm.ID, callerClientID, callerClientSecret); cerr != nil {
		return nil, cerr
	}

	claims, err := c.Issuer.Verify(ctx, realm.ID, tokenString)
	if err != nil {
		return &IntrospectionResponse{Active: false}, nil
	}

	resp := &IntrospectionResponse{
		Active:    true,
		Subject:   claims.Subject,
		Scope:     claims.Scope,
		ClientID:  claims.ClientID,
		TokenType: "Bearer",
	}
	if len(claims.Audience) > 0 {
		resp.Audience = claims.Audience[0]
	}
	if claims.ExpiresAt != nil {
		resp.Expiry = claims.ExpiresAt.Unix()
	}
	if claims.IssuedAt != nil {
		resp.IssuedAt = claims.IssuedAt.Unix()
	}

	if subjectID, perr := uuid.Parse(claims.Subject); perr == nil {
		if user, uerr := c.Users.GetByID(ctx, realm.ID, subjectID); uerr == nil {
			resp.Username = user.Username
		}
	}
	return resp, nil
}
