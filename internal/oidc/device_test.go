package oidc

import (
	"context"
	"testing"
	"time"

	"github.com/authme/core/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deviceCore(client store.Client, users *fakeUsers) (*Core, *fakeDeviceCodes) {
	devices := newFakeDeviceCodes()
	c := &Core{
		Clients:     newFakeClients(client),
		Users:       users,
		DeviceCodes: devices,
		Refresher:   newFakeRefresher(),
		Issuer:      newFakeIssuer(),
		Roles:       NoRoles{},
		IssuerURL:   "https://auth.example.com/realms/acme",
	}
	return c, devices
}

func deviceClient() store.Client {
	return store.Client{
		ID: uuid.New(), ClientID: "tv-app", ClientType: store.ClientTypePublic,
		GrantTypes:     []store.GrantType{store.GrantDeviceCode, store.GrantRefreshToken},
		DefaultScopes:  []string{ScopeOpenID},
		OptionalScopes: []string{ScopeOfflineAccess},
	}
}

func TestInitiateDeviceAuthorization_Success(t *testing.T) {
	client := deviceClient()
	c, devices := deviceCore(client, newFakeUsers())

	resp, err := c.InitiateDeviceAuthorization(context.Background(), uuid.New(), client, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.DeviceCode)
	assert.NotEmpty(t, resp.UserCode)
	assert.Contains(t, resp.VerificationURIComplete, resp.UserCode)
	assert.Len(t, devices.byDeviceCode, 1)
}

func TestInitiateDeviceAuthorization_ClientNotGranted(t *testing.T) {
	client := deviceClient()
	client.GrantTypes = []store.GrantType{store.GrantAuthorizationCode}
	c, _ := deviceCore(client, newFakeUsers())

	_, err := c.InitiateDeviceAuthorization(context.Background(), uuid.New(), client, nil)
	assert.Equal(t, ErrUnauthorizedClient, err)
}

func TestDeviceCodeGrant_PendingReturnsAuthorizationPending(t *testing.T) {
	client := deviceClient()
	c, devices := deviceCore(client, newFakeUsers())
	realm := testRealm()

	devices.byDeviceCode["dc1"] = store.DeviceCode{
		DeviceCode: "dc1", UserCode: "ABCD-EFGH", ClientID: client.ID,
		Status: store.DeviceCodePending, ExpiresAt: time.Now().Add(time.Minute),
	}

	_, err := c.Token(context.Background(), realm, TokenRequest{
		GrantType: string(store.GrantDeviceCode), ClientID: "tv-app", DeviceCode: "dc1",
	})
	assert.Equal(t, ErrAuthorizationPending, err)
}

func TestDeviceCodeGrant_DeniedDeletesAndReturnsAccessDenied(t *testing.T) {
	client := deviceClient()
	c, devices := deviceCore(client, newFakeUsers())
	realm := testRealm()

	devices.byDeviceCode["dc1"] = store.DeviceCode{
		DeviceCode: "dc1", UserCode: "ABCD-EFGH", ClientID: client.ID,
		Status: store.DeviceCodeDenied, ExpiresAt: time.Now().Add(time.Minute),
	}

	_, err := c.Token(context.Background(), realm, TokenRequest{
		GrantType: string(store.GrantDeviceCode), ClientID: "tv-app", DeviceCode: "dc1",
	})
	assert.Equal(t, ErrAccessDenied, err)
	_, ok := devices.byDeviceCode["dc1"]
	assert.False(t, ok)
}

func TestDeviceCodeGrant_ExpiredDeletesAndReturnsExpiredToken(t *testing.T) {
	client := deviceClient()
	c, devices := deviceCore(client, newFakeUsers())
	realm := testRealm()

	devices.byDeviceCode["dc1"] = store.DeviceCode{
		DeviceCode: "dc1", UserCode: "ABCD-EFGH", ClientID: client.ID,
		Status: store.DeviceCodeApproved, ExpiresAt: time.Now().Add(-time.Minute),
	}

	_, err := c.Token(context.Background(), realm, TokenRequest{
		GrantType: string(store.GrantDeviceCode), ClientID: "tv-app", DeviceCode: "dc1",
	})
	assert.Equal(t, ErrExpiredToken, err)
	_, ok := devices.byDeviceCode["dc1"]
	assert.False(t, ok)
}

func TestDeviceCodeGrant_ApprovedIssuesTokensAndSingleUses(t *testing.T) {
	client := deviceClient()
	user := store.User{ID: uuid.New(), Enabled: true}
	c, devices := deviceCore(client, newFakeUsers(user))
	realm := testRealm()

	devices.byDeviceCode["dc1"] = store.DeviceCode{
		DeviceCode: "dc1", UserCode: "ABCD-EFGH", ClientID: client.ID, UserID: &user.ID,
		Status: store.DeviceCodeApproved, ExpiresAt: time.Now().Add(time.Minute),
		Scopes: []string{ScopeOpenID},
	}

	resp, err := c.Token(context.Background(), realm, TokenRequest{
		GrantType: string(store.GrantDeviceCode), ClientID: "tv-app", DeviceCode: "dc1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)

	_, ok := devices.byDeviceCode["dc1"]
	assert.False(t, ok, "device code must be single-use")
}

func TestApproveAndDenyDeviceUserCode(t *testing.T) {
	client := deviceClient()
	c, devices := deviceCore(client, newFakeUsers())

	devices.byDeviceCode["dc1"] = store.DeviceCode{DeviceCode: "dc1", UserCode: "ABCD-EFGH", Status: store.DeviceCodePending}
	userID := uuid.New()
	require.NoError(t, c.ApproveDeviceUserCode(context.Background(), "ABCD-EFGH", userID))
	d, err := c.GetDeviceByUserCode(context.Background(), "ABCD-EFGH")
	require.NoError(t, err)
	assert.Equal(t, store.DeviceCodeApproved, d.Status)
	require.NotNil(t, d.UserID)
	assert.Equal(t, userID, *d.UserID)

	devices.byDeviceCode["dc2"] = store.DeviceCode{DeviceCode: "dc2", UserCode: "WXYZ-1234", Status: store.DeviceCodePending}
	require.NoError(t, c.DenyDeviceUserCode(context.Background(), "WXYZ-1234"))
	d2, err := c.GetDeviceByUserCode(context.Background(), "WXYZ-1234")
	require.NoError(t, err)
	assert.Equal(t, store.DeviceCodeDenied, d2.Status)
}
