package oidc

import (
	"context"
	"errors"
	"strings"

	"github.com/authme/core/internal/store"
	"github.com/authme/core/internal/token"
	"github.com/google/uuid"
)

// ErrUserInfoUnauthorized maps to a 401 with a WWW-Authenticate: Bearer
// challenge, per OpenID Connect Core 5.3.3.
var ErrUserInfoUnauthorized = errors.New("missing or invalid access token")

// UserInfoResponse is the OpenID Connect Core 5.3.2 claims set. Fields
// beyond "sub" are only populated when the access token's scope granted
// them.
type UserInfoResponse struct {
	Subject           string                      `json:"sub"`
	Email             string                      `json:"email,omitempty"`
	EmailVerified     bool                        `json:"email_verified,omitempty"`
	PreferredUsername string                      `json:"preferred_username,omitempty"`
	GivenName         string                      `json:"given_name,omitempty"`
	FamilyName        string                      `json:"family_name,omitempty"`
	RealmAccess       *token.RoleAccess           `json:"realm_access,omitempty"`
	ResourceAccess    map[string]token.RoleAccess `json:"resource_access,omitempty"`
}

// UserInfo implements GET /userinfo: it verifies the bearer access token
// and shapes profile claims from the live user record plus the token's
// granted scope; role claims (realm_access, resource_access) are copied
// from the token itself.
func (c *Core) UserInfo(ctx context.Context, realm store.Realm, accessToken string) (*UserInfoResponse, error) {
	claims, err := c.Issuer.Verify(ctx, realm.ID, accessToken)
	if err != nil {
		return nil, ErrUserInfoUnauthorized
	}

	userID, perr := uuid.Parse(claims.Subject)
	if perr != nil {
		return nil, ErrUserInfoUnauthorized
	}
	user, uerr := c.Users.GetByID(ctx, realm.ID, userID)
	if uerr != nil || !user.Enabled {
		return nil, ErrUserInfoUnauthorized
	}

	resp := &UserInfoResponse{Subject: claims.Subject}
	scopes := strings.Fields(claims.Scope)
	if hasScope(scopes, ScopeEmail) {
		resp.Email = user.Email
		resp.EmailVerified = user.EmailVerified
	}
	if hasScope(scopes, ScopeProfile) {
		resp.PreferredUsername = user.Username
		resp.GivenName = user.FirstName
		resp.FamilyName = user.LastName
	}
	if hasScope(scopes, ScopeRoles) {
		resp.RealmAccess = claims.RealmAccess
		resp.ResourceAccess = claims.ResourceAccess
	}
	return resp, nil
}
