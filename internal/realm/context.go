// Package realm resolves the {realmName} path segment of every request
// into a loaded Realm, caches it briefly, and exposes typed context
// accessors the rest of the core uses to stay realm-scoped.
package realm

import (
	"context"
	"fmt"

	"github.com/authme/core/internal/store"
)

// contextKey is a private type so keys here can never collide with
// another package's context value.
type contextKey string

const realmKey contextKey = "realm"

// WithRealm attaches a loaded realm to ctx.
func WithRealm(ctx context.Context, r store.Realm) context.Context {
	return context.WithValue(ctx, realmKey, r)
}

// FromContext extracts the realm attached by the resolver middleware.
func FromContext(ctx context.Context) (store.Realm, error) {
	v := ctx.Value(realmKey)
	if v == nil {
		return store.Realm{}, fmt.Errorf("realm not found in context")
	}
	r, ok := v.(store.Realm)
	if !ok {
		return store.Realm{}, fmt.Errorf("realm context value has wrong type: %T", v)
	}
	return r, nil
}

// MustFromContext extracts the realm and panics if absent. Safe to use
// anywhere downstream of the realm-resolver middleware, which guarantees
// it is set before any handler runs.
func MustFromContext(ctx context.Context) store.Realm {
	r, err := FromContext(ctx)
	if err != nil {
		panic(fmt.Sprintf("realm: %v", err))
	}
	return r
}
