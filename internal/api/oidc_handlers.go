package api

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/authme/core/internal/api/helpers"
	"github.com/authme/core/internal/oidc"
	"github.com/authme/core/internal/realm"
)

// AuthorizeHandler implements GET /auth: if the browser already carries
// a valid SSO session for this realm it resumes straight to
// finishAuthorize, otherwise it redirects to the login page carrying the
// authorization request as hidden/query fields.
func (s *Server) AuthorizeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		rlm := realm.MustFromContext(ctx)
		req := parseAuthorizeRequest(r)

		svc := s.servicesFor(rlm)
		client, scopes, verr := svc.core.ValidateAuthorizeRequest(ctx, rlm.ID, req)
		if verr != nil {
			s.respondAuthorizeError(w, r, req, verr)
			return
		}

		ctx, sess, user, ok := s.resolveSession(ctx, r, rlm)
		if !ok {
			s.redirectToLogin(w, r, rlm.Name, req)
			return
		}

		s.finishAuthorize(ctx, w, r, rlm, svc, client, user, sess.ID, scopes, req)
	}
}

func (s *Server) redirectToLogin(w http.ResponseWriter, r *http.Request, realmName string, req oidc.AuthorizeRequest) {
	http.Redirect(w, r, "/realms/"+realmName+"/login?"+authorizeRequestValues(req).Encode(), http.StatusFound)
}

// respondAuthorizeError reports a validation failure. Per RFC 6749
// §4.1.2.1, once the client and redirect_uri are confirmed valid the
// error belongs in the redirect, never in a page the client never sees.
func (s *Server) respondAuthorizeError(w http.ResponseWriter, r *http.Request, req oidc.AuthorizeRequest, verr *oidc.ValidationError) {
	if verr.SafeToRedirect && req.RedirectURI != "" {
		q := url.Values{"error": {verr.Err.Code}, "error_description": {verr.Err.Description}}
		if req.State != "" {
			q.Set("state", req.State)
		}
		http.Redirect(w, r, req.RedirectURI+"?"+q.Encode(), http.StatusFound)
		return
	}
	http.Error(w, verr.Err.Description, http.StatusBadRequest)
}

// TokenHandler implements POST /token for every grant type Core.Token
// dispatches on. Per RFC 6749 §2.3.1, client credentials may arrive
// either as form fields or HTTP Basic auth; both are accepted.
func (s *Server) TokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		rlm := realm.MustFromContext(ctx)
		if err := r.ParseForm(); err != nil {
			helpers.RespondOAuthError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
			return
		}

		clientID, clientSecret := r.FormValue("client_id"), r.FormValue("client_secret")
		if basicID, basicSecret, ok := r.BasicAuth(); ok {
			clientID, clientSecret = basicID, basicSecret
		}

		req := oidc.TokenRequest{
			GrantType:    r.FormValue("grant_type"),
			ClientID:     clientID,
			ClientSecret: clientSecret,
			IP:           helpers.GetRealIP(r),
			Code:         r.FormValue("code"),
			RedirectURI:  r.FormValue("redirect_uri"),
			CodeVerifier: r.FormValue("code_verifier"),
			RefreshToken: r.FormValue("refresh_token"),
			Scope:        strings.Fields(r.FormValue("scope")),
			Username:     r.FormValue("username"),
			Password:     r.FormValue("password"),
			DeviceCode:   r.FormValue("device_code"),
		}

		svc := s.servicesFor(rlm)
		resp, err := svc.core.Token(ctx, rlm, req)
		if err != nil {
			status := http.StatusBadRequest
			if oerr, ok := err.(*oidc.Error); ok {
				if oerr.Code == "invalid_client" {
					status = http.StatusUnauthorized
				}
				helpers.RespondOAuthError(w, status, oerr.Code, oerr.Description)
				return
			}
			s.Logger.Error("token endpoint failure", "error", err, "realm", rlm.Name)
			helpers.RespondOAuthError(w, http.StatusInternalServerError, "server_error", "internal server error")
			return
		}
		helpers.RespondJSON(w, http.StatusOK, resp)
	}
}

// IntrospectHandler implements POST /token/introspect per RFC 7662.
func (s *Server) IntrospectHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		rlm := realm.MustFromContext(ctx)
		if err := r.ParseForm(); err != nil {
			helpers.RespondOAuthError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
			return
		}
		clientID, clientSecret := r.FormValue("client_id"), r.FormValue("client_secret")
		if basicID, basicSecret, ok := r.BasicAuth(); ok {
			clientID, clientSecret = basicID, basicSecret
		}

		svc := s.servicesFor(rlm)
		resp, err := svc.core.Introspect(ctx, rlm, clientID, clientSecret, r.FormValue("token"))
		if err != nil {
			if oerr, ok := err.(*oidc.Error); ok {
				helpers.RespondOAuthError(w, http.StatusUnauthorized, oerr.Code, oerr.Description)
				return
			}
			s.Logger.Error("introspection failure", "error", err, "realm", rlm.Name)
			helpers.RespondOAuthError(w, http.StatusInternalServerError, "server_error", "internal server error")
			return
		}
		helpers.RespondJSON(w, http.StatusOK, resp)
	}
}

// RevokeHandler implements POST /revoke per RFC 7009.
func (s *Server) RevokeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		rlm := realm.MustFromContext(ctx)
		if err := r.ParseForm(); err != nil {
			helpers.RespondOAuthError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
			return
		}
		clientID, clientSecret := r.FormValue("client_id"), r.FormValue("client_secret")
		if basicID, basicSecret, ok := r.BasicAuth(); ok {
			clientID, clientSecret = basicID, basicSecret
		}

		svc := s.servicesFor(rlm)
		if err := svc.core.Revoke(ctx, rlm, clientID, clientSecret, r.FormValue("token")); err != nil {
			if oerr, ok := err.(*oidc.Error); ok {
				helpers.RespondOAuthError(w, http.StatusUnauthorized, oerr.Code, oerr.Description)
				return
			}
			s.Logger.Error("revocation failure", "error", err, "realm", rlm.Name)
			helpers.RespondOAuthError(w, http.StatusInternalServerError, "server_error", "internal server error")
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// UserInfoHandler implements GET /userinfo per OpenID Connect Core 5.3.
func (s *Server) UserInfoHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		rlm := realm.MustFromContext(ctx)
		token := bearerToken(r)
		if token == "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="`+rlm.Name+`"`)
			helpers.RespondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		svc := s.servicesFor(rlm)
		resp, err := svc.core.UserInfo(ctx, rlm, token)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="`+rlm.Name+`", error="invalid_token"`)
			helpers.RespondError(w, http.StatusUnauthorized, "invalid or expired access token")
			return
		}
		helpers.RespondJSON(w, http.StatusOK, resp)
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
		return auth[len(prefix):]
	}
	return ""
}

// EndSessionHandler implements GET|POST /logout: it tears down the SSO
// session named by the browser's session cookie, if any, and always
// clears the cookie regardless of whether a session was found.
func (s *Server) EndSessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		rlm := realm.MustFromContext(ctx)

		rawToken, ok := sessionCookie(r)
		if ok {
			if sess, serr := s.sessions.Lookup(ctx, rlm.ID, rawToken); serr == nil {
				svc := s.servicesFor(rlm)
				if err := svc.core.EndSession(ctx, rlm, sess); err != nil {
					s.Logger.Error("failed to end session", "error", err, "realm", rlm.Name)
				}
			}
		}
		s.clearSessionCookie(w, rlm.Name)

		if redirectURI := r.URL.Query().Get("post_logout_redirect_uri"); redirectURI != "" {
			http.Redirect(w, r, redirectURI, http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
