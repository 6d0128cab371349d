package oidc

import (
	"context"
	"strings"

	"github.com/authme/core/internal/store"
	"github.com/google/uuid"
)

const (
	ScopeOpenID        = "openid"
	ScopeProfile       = "profile"
	ScopeEmail         = "email"
	ScopeRoles         = "roles"
	ScopeOfflineAccess = "offline_access"
)

// RoleResolver supplies the role claims a token carries. Full role/group
// storage and assignment is the admin CRUD surface (deliberately out of
// core scope); this interface is the seam the core needs to shape
// `realm_access.roles` / `resource_access.{clientId}.roles` without
// owning that storage itself.
type RoleResolver interface {
	RealmRoles(ctx context.Context, realmID, userID uuid.UUID) ([]string, error)
	ClientRoles(ctx context.Context, clientPK, userID uuid.UUID) ([]string, error)
}

// NoRoles is the default RoleResolver when a deployment hasn't wired a
// real one: every user has no role claims, which is a safe default for
// an RP that doesn't consume roles.
type NoRoles struct{}

func (NoRoles) RealmRoles(context.Context, uuid.UUID, uuid.UUID) ([]string, error)  { return nil, nil }
func (NoRoles) ClientRoles(context.Context, uuid.UUID, uuid.UUID) ([]string, error) { return nil, nil }

// ResolveScopes computes the effective scope set for a token request:
// every default scope always applies, optional scopes apply only when
// explicitly requested, and anything the client doesn't declare at all
// is rejected outright.
func ResolveScopes(client store.Client, requested []string) (granted []string, err *Error) {
	allowed := make(map[string]bool, len(client.DefaultScopes)+len(client.OptionalScopes))
	for _, s := range client.DefaultScopes {
		allowed[s] = true
	}
	optional := make(map[string]bool, len(client.OptionalScopes))
	for _, s := range client.OptionalScopes {
		optional[s] = true
		allowed[s] = true
	}

	result := make(map[string]bool, len(client.DefaultScopes))
	for _, s := range client.DefaultScopes {
		result[s] = true
	}
	for _, s := range requested {
		if !allowed[s] {
			return nil, ErrInvalidScope
		}
		result[s] = true
	}

	out := make([]string, 0, len(result))
	for s := range result {
		out = append(out, s)
	}
	return out, nil
}

func hasScope(scopes []string, want string) bool {
	for _, s := range scopes {
		if s == want {
			return true
		}
	}
	return false
}

func scopeString(scopes []string) string {
	return strings.Join(scopes, " ")
}
