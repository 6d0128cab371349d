package oidc

import (
	"context"
	"testing"

	"github.com/authme/core/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndSession_RevokesAndNotifiesSubscribers(t *testing.T) {
	subscriber := store.Client{ID: uuid.New(), ClientID: "rp1", BackchannelLogoutURI: "https://rp1.example.com/logout"}
	unsubscribed := store.Client{ID: uuid.New(), ClientID: "rp2"}
	realm := testRealm()
	refresher := newFakeRefresher()
	sessions := newFakeSessions()
	dispatcher := &fakeDispatcher{}

	c := &Core{
		Clients:    newFakeClients(subscriber, unsubscribed),
		Sessions:   sessions,
		Refresher:  refresher,
		Dispatcher: dispatcher,
	}

	sess := store.LoginSession{ID: uuid.New(), UserID: uuid.New(), RealmID: realm.ID}
	require.NoError(t, c.EndSession(context.Background(), realm, sess))

	assert.True(t, sessions.ended[sess.ID])
	assert.True(t, refresher.revoked[sess.ID])
	require.Len(t, dispatcher.calls, 1)
	assert.Equal(t, sess.ID.String(), dispatcher.calls[0].sid)
	require.Len(t, dispatcher.calls[0].targets, 1)
	assert.Equal(t, subscriber.ID, dispatcher.calls[0].targets[0].ClientID)
	assert.Equal(t, subscriber.BackchannelLogoutURI, dispatcher.calls[0].targets[0].URI)
	assert.Equal(t, sess.UserID.String(), dispatcher.calls[0].targets[0].Subject)
}

func TestEndSession_NoDispatcherSkipsFanOutWithoutError(t *testing.T) {
	realm := testRealm()
	c := &Core{
		Clients:   newFakeClients(),
		Sessions:  newFakeSessions(),
		Refresher: newFakeRefresher(),
	}

	sess := store.LoginSession{ID: uuid.New(), UserID: uuid.New(), RealmID: realm.ID}
	require.NoError(t, c.EndSession(context.Background(), realm, sess))
}

func TestEndSession_NoSubscribersSkipsNotify(t *testing.T) {
	realm := testRealm()
	dispatcher := &fakeDispatcher{}
	c := &Core{
		Clients:    newFakeClients(store.Client{ID: uuid.New(), ClientID: "rp2"}),
		Sessions:   newFakeSessions(),
		Refresher:  newFakeRefresher(),
		Dispatcher: dispatcher,
	}

	sess := store.LoginSession{ID: uuid.New(), UserID: uuid.New(), RealmID: realm.ID}
	require.NoError(t, c.EndSession(context.Background(), realm, sess))
	assert.Empty(t, dispatcher.calls)
}
