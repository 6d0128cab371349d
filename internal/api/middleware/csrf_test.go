package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoCSRFToken(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte(CSRFTokenFromContext(r.Context())))
}

func TestCSRF_GETSetsCookieAndContextToken(t *testing.T) {
	handler := CSRF(http.HandlerFunc(echoCSRFToken))

	r := httptest.NewRequest(http.MethodGet, "/login", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	resp := w.Result()
	require.Len(t, resp.Cookies(), 1)
	cookie := resp.Cookies()[0]
	assert.Equal(t, CookieName, cookie.Name)
	assert.NotEmpty(t, cookie.Value)
	assert.Equal(t, cookie.Value, w.Body.String())
}

func TestCSRF_PostWithoutTokenIsForbidden(t *testing.T) {
	handler := CSRF(http.HandlerFunc(echoCSRFToken))

	r := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(""))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCSRF_PostWithMatchingCookieAndFormTokenSucceeds(t *testing.T) {
	handler := CSRF(http.HandlerFunc(echoCSRFToken))

	// First request mints the cookie.
	getReq := httptest.NewRequest(http.MethodGet, "/login", nil)
	getW := httptest.NewRecorder()
	handler.ServeHTTP(getW, getReq)
	token := getW.Result().Cookies()[0].Value

	form := url.Values{"csrf_token": {token}}
	postReq := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	postReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	postReq.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	postW := httptest.NewRecorder()
	handler.ServeHTTP(postW, postReq)

	assert.Equal(t, http.StatusOK, postW.Code)
	assert.Equal(t, token, postW.Body.String())
}

func TestCSRF_PostWithMismatchedTokenIsForbidden(t *testing.T) {
	handler := CSRF(http.HandlerFunc(echoCSRFToken))

	r := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("csrf_token=wrong"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.AddCookie(&http.Cookie{Name: CookieName, Value: "correct-token"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusForbidden, w.Code)
}
