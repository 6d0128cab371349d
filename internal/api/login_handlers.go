package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/authme/core/internal/api/helpers"
	custommiddleware "github.com/authme/core/internal/api/middleware"
	"github.com/authme/core/internal/authn"
	"github.com/authme/core/internal/events"
	"github.com/authme/core/internal/mfa"
	"github.com/authme/core/internal/oidc"
	"github.com/authme/core/internal/realm"
	"github.com/authme/core/internal/session"
	"github.com/authme/core/internal/store"
)

const nextParamKey = "next"

// LoginPageHandler renders the credential form. It carries every
// AuthorizeRequest field, plus an optional "next" redirect target for
// flows (like device verification) that have no client context at all,
// as hidden fields so the POST handler can resume exactly where the
// authorization request left off.
func (s *Server) LoginPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rlm := realm.MustFromContext(r.Context())
		req := parseAuthorizeRequest(r)
		hidden := authorizeRequestValues(req)
		if next := r.URL.Query().Get(nextParamKey); next != "" {
			hidden.Set(nextParamKey, next)
		}
		s.renderLoginForm(w, r, http.StatusOK, rlm.Name, hidden, "")
	}
}

func (s *Server) renderLoginForm(w http.ResponseWriter, r *http.Request, status int, realmName string, hidden url.Values, errMsg string) {
	fields := `
<label>Username <input type="text" name="username" required autofocus></label><br>
<label>Password <input type="password" name="password" required></label><br>
<label><input type="checkbox" name="remember_me"> Remember me</label><br>
<button type="submit">Log in</button>`
	renderForm(w, status, "Log in", "/realms/"+realmName+"/login", csrfTokenOf(r), errMsg, hidden, fields)
}

// LoginSubmitHandler verifies credentials, enforces MFA when required,
// establishes the SSO session, and either resumes the authorization
// request (consent or code issuance) or, for context-less logins,
// redirects to the carried "next" URL.
func (s *Server) LoginSubmitHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		rlm := realm.MustFromContext(ctx)
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form body", http.StatusBadRequest)
			return
		}

		req := authorizeRequestFromForm(r)
		next := r.FormValue(nextParamKey)
		username := r.FormValue("username")
		password := r.FormValue("password")
		rememberMe := r.FormValue("remember_me") == "on" || r.FormValue("remember_me") == "true"
		ip := helpers.GetRealIP(r)

		user, verr := s.verifier.Verify(ctx, rlm, username, password, ip)
		if verr != nil {
			s.recorder.RecordLoginEvent(ctx, events.LoginEvent{
				RealmID: rlm.ID, Type: events.TypeLoginFailed, IP: ip, Error: verr.Error(),
			})
			hidden := authorizeRequestValues(req)
			if next != "" {
				hidden.Set(nextParamKey, next)
			}
			s.renderLoginForm(w, r, http.StatusUnauthorized, rlm.Name, hidden, loginErrorMessage(verr))
			return
		}

		if rlm.RequireEmailVerification && !user.EmailVerified {
			hidden := authorizeRequestValues(req)
			if next != "" {
				hidden.Set(nextParamKey, next)
			}
			s.renderLoginForm(w, r, http.StatusForbidden, rlm.Name, hidden, "verify your email address before logging in")
			return
		}

		enrolled, eerr := s.totp.IsEnrolled(ctx, user.ID)
		if eerr != nil {
			s.Logger.Error("failed to check totp enrollment", "error", eerr, "realm", rlm.Name)
			helpers500(w)
			return
		}

		if rlm.MFARequired || enrolled {
			params := authorizeRequestToParams(req)
			if next != "" {
				params[nextParamKey] = next
			}
			token, cerr := s.challenges.Create(ctx, mfa.Challenge{
				UserID: user.ID, RealmID: rlm.ID, OAuthParams: params,
			})
			if cerr != nil {
				s.Logger.Error("failed to create mfa challenge", "error", cerr, "realm", rlm.Name)
				helpers500(w)
				return
			}
			s.recorder.RecordLoginEvent(ctx, events.LoginEvent{RealmID: rlm.ID, Type: events.TypeMFAChallenge, UserID: &user.ID, IP: ip})
			http.Redirect(w, r, "/realms/"+rlm.Name+"/mfa?token="+token, http.StatusFound)
			return
		}

		s.establishSessionAndResume(ctx, w, r, rlm, user, ip, rememberMe, req, next)
	}
}

// establishSessionAndResume creates the SSO session, sets its cookie,
// records the success event, and either follows next (a context-less
// login, e.g. device verification) or resumes the authorization
// request that brought the browser to the login page.
func (s *Server) establishSessionAndResume(ctx context.Context, w http.ResponseWriter, r *http.Request, rlm store.Realm, user store.User, ip string, rememberMe bool, req oidc.AuthorizeRequest, next string) {
	lifetime := session.DefaultCookieLifetime
	if rememberMe {
		lifetime = session.RememberMeLifetime
	}
	rawToken, sess, err := s.sessions.Create(ctx, rlm.ID, user.ID, ip, r.UserAgent(), rememberMe)
	if err != nil {
		s.Logger.Error("failed to create sso session", "error", err, "realm", rlm.Name)
		helpers500(w)
		return
	}
	s.setSessionCookie(w, rlm.Name, rawToken, lifetime)
	s.recorder.RecordLoginEvent(ctx, events.LoginEvent{RealmID: rlm.ID, Type: events.TypeLoginSuccess, UserID: &user.ID, IP: ip})
	custommiddleware.SetSentryUser(user.ID.String(), ip)

	if next != "" {
		http.Redirect(w, r, next, http.StatusFound)
		return
	}

	svc := s.servicesFor(rlm)
	client, scopes, verr := svc.core.ValidateAuthorizeRequest(ctx, rlm.ID, req)
	if verr != nil {
		http.Error(w, verr.Err.Description, http.StatusBadRequest)
		return
	}
	s.finishAuthorize(ctx, w, r, rlm, svc, client, user, sess.ID, scopes, req)
}

func loginErrorMessage(err error) string {
	switch {
	case errors.Is(err, authn.ErrAccountLocked):
		return "account temporarily locked due to repeated failed attempts"
	case errors.Is(err, authn.ErrAccountDisabled):
		return "account disabled"
	default:
		return "invalid username or password"
	}
}
