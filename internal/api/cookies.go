package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/authme/core/internal/store"
)

const ssoCookieName = "AUTHME_SESSION"

// setSessionCookie writes the SSO session cookie scoped to this realm's
// path, so a session for one realm is never sent on requests to another.
func (s *Server) setSessionCookie(w http.ResponseWriter, realmName, rawToken string, lifetime time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     ssoCookieName,
		Value:    rawToken,
		Path:     "/realms/" + realmName,
		Expires:  time.Now().Add(lifetime),
		HttpOnly: true,
		Secure:   s.cookiesSecure(),
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSessionCookie expires the SSO session cookie for realmName.
func (s *Server) clearSessionCookie(w http.ResponseWriter, realmName string) {
	http.SetCookie(w, &http.Cookie{
		Name:     ssoCookieName,
		Value:    "",
		Path:     "/realms/" + realmName,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cookiesSecure(),
		SameSite: http.SameSiteLaxMode,
	})
}

func sessionCookie(r *http.Request) (string, bool) {
	c, err := r.Cookie(ssoCookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func (s *Server) cookiesSecure() bool {
	return strings.HasPrefix(s.baseURL, "https://")
}

// resolveSession validates the browser's SSO session cookie, if any, and
// loads its user, returning both alongside ctx (which is passed back
// unchanged; nothing is stored on it). ok is false whenever there is no
// usable session: missing cookie, expired/unknown token, or a disabled
// user.
func (s *Server) resolveSession(ctx context.Context, r *http.Request, rlm store.Realm) (context.Context, store.LoginSession, store.User, bool) {
	rawToken, ok := sessionCookie(r)
	if !ok {
		return ctx, store.LoginSession{}, store.User{}, false
	}
	sess, err := s.sessions.Lookup(ctx, rlm.ID, rawToken)
	if err != nil {
		return ctx, store.LoginSession{}, store.User{}, false
	}
	user, err := s.users.GetByID(ctx, rlm.ID, sess.UserID)
	if err != nil || !user.Enabled {
		return ctx, store.LoginSession{}, store.User{}, false
	}
	return ctx, sess, user, true
}
