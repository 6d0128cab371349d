package oidc

import (
	"context"

	"github.com/authme/core/internal/backchannel"
	"github.com/authme/core/internal/store"
)

// dispatcher is the slice of backchannel.Dispatcher the core needs, kept
// narrow so tests can swap in a fake that records calls instead of
// spinning up a worker pool and an HTTP client.
type dispatcher interface {
	Notify(ctx context.Context, sid string, targets []backchannel.Target)
}

// EndSession implements GET|POST /logout: it destroys the SSO session,
// revokes every refresh token bound to it (ordinary and offline alike),
// and fans out OpenID Connect Back-Channel Logout 1.0 notifications to
// every client in the realm that registered a backchannel_logout_uri.
// The fan-out is detached from the request: Dispatcher.Notify enqueues
// and returns, so a slow or dead relying party never delays the
// user-visible logout response.
func (c *Core) EndSession(ctx context.Context, realm store.Realm, sess store.LoginSession) error {
	sid := sess.ID.String()

	if err := c.Refresher.RevokeSessionFamily(ctx, sess.ID); err != nil {
		return err
	}
	if err := c.Sessions.EndSession(ctx, sess.ID); err != nil {
		return err
	}

	if c.Dispatcher == nil {
		return nil
	}
	subscribers, err := c.Clients.ListBackchannelSubscribers(ctx, realm.ID)
	if err != nil {
		// The session is already gone; a failure to enumerate subscribers
		// must not fail the logout the user is waiting on.
		return nil
	}
	if len(subscribers) == 0 {
		return nil
	}

	targets := make([]backchannel.Target, 0, len(subscribers))
	for _, client := range subscribers {
		targets = append(targets, backchannel.Target{
			RealmID:  realm.ID,
			ClientID: client.ID,
			URI:      client.BackchannelLogoutURI,
			Subject:  sess.UserID.String(),
		})
	}
	c.Dispatcher.Notify(ctx, sid, targets)
	return nil
}
