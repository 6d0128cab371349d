package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/authme/core/internal/crypto"
)

// CookieName is the CSRF double-submit cookie's name, exported so the
// transport layer can read it back when rendering a form's hidden
// csrf_token field.
const CookieName = "authme_csrf"

const csrfCookieName = CookieName

type csrfContextKey struct{}

// CSRFTokenFromContext returns the token this request's cookie carries
// (freshly minted or pre-existing), for handlers rendering a form's
// hidden csrf_token field. It is always set downstream of CSRF.
func CSRFTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(csrfContextKey{}).(string)
	return token
}

// CSRF implements the double-submit cookie pattern for the
// browser-rendered login/consent/device-verification forms: it sets a
// random token cookie and requires state-changing requests to echo it
// back in the X-CSRF-Token header or, failing that, the csrf_token form
// field, so a cross-origin form post can't
// forge one without first reading the cookie.
func CSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(csrfCookieName)
		var token string
		if err != nil || cookie.Value == "" {
			token, err = crypto.GenerateSecureToken(32)
			if err != nil {
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}
			http.SetCookie(w, &http.Cookie{
				Name:     csrfCookieName,
				Value:    token,
				Path:     "/",
				HttpOnly: false,
				SameSite: http.SameSiteLaxMode,
			})
		} else {
			token = cookie.Value
		}

		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			header := r.Header.Get("X-CSRF-Token")
			if header == "" {
				header = r.FormValue("csrf_token")
			}
			if header == "" || subtle.ConstantTimeCompare([]byte(header), []byte(token)) != 1 {
				http.Error(w, "csrf token mismatch", http.StatusForbidden)
				return
			}
		}
		ctx := context.WithValue(r.Context(), csrfContextKey{}, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
