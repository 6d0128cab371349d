package oidc

import (
	"testing"

	"github.com/authme/core/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scopeClient() store.Client {
	return store.Client{
		DefaultScopes:  []string{ScopeOpenID},
		OptionalScopes: []string{ScopeEmail, ScopeProfile},
	}
}

func TestResolveScopes_DefaultsAlwaysGranted(t *testing.T) {
	granted, err := ResolveScopes(scopeClient(), nil)
	require.Nil(t, err)
	assert.ElementsMatch(t, []string{ScopeOpenID}, granted)
}

func TestResolveScopes_OptionalGrantedOnlyWhenRequested(t *testing.T) {
	granted, err := ResolveScopes(scopeClient(), []string{ScopeEmail})
	require.Nil(t, err)
	assert.ElementsMatch(t, []string{ScopeOpenID, ScopeEmail}, granted)
}

func TestResolveScopes_UndeclaredScopeRejected(t *testing.T) {
	_, err := ResolveScopes(scopeClient(), []string{"admin"})
	require.NotNil(t, err)
	assert.Equal(t, ErrInvalidScope, err)
}

func TestHasScope(t *testing.T) {
	assert.True(t, hasScope([]string{ScopeOpenID, ScopeEmail}, ScopeEmail))
	assert.False(t, hasScope([]string{ScopeOpenID}, ScopeEmail))
}

func TestScopeString(t *testing.T) {
	assert.Equal(t, "openid email", scopeString([]string{ScopeOpenID, ScopeEmail}))
	assert.Equal(t, "", scopeString(nil))
}
