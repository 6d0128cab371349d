package oidc

import (
	"context"

	"github.com/authme/core/internal/store"
)

// Revoke implements POST /revoke per RFC 7009: it always answers success
// to the caller (§2.2 "the server responds with HTTP status code 200")
// regardless of whether the token existed, had already been revoked, or
// named an unsupported token_type_hint; only the client credentials and
// the presence of a token (an empty one is ErrInvalidRequest) are
// actually validated.
func (c *Core) Revoke(ctx context.Context, realm store.Realm, clientID, clientSecret, tokenStr string) error {
	if _, cerr := c.authenticateClient(ctx, realm.ID, clientID, clientSecret); cerr != nil {
		return cerr
	}
	if tokenStr == "" {
		return ErrInvalidRequest
	}
	// Access tokens are stateless RS256 JWTs with no server-side record
	// to delete; only a refresh token hash can actually be revoked here.
	// Attempting the revoke unconditionally and ignoring "not found" is
	// what RFC 7009 §2.2 asks for.
	_ = c.Refresher.Revoke(ctx, tokenStr)
	return nil
}
