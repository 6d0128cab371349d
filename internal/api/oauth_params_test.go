package api

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/authme/core/internal/oidc"
	"github.com/stretchr/testify/assert"
)

func sampleAuthorizeRequest() oidc.AuthorizeRequest {
	return oidc.AuthorizeRequest{
		ResponseType:        "code",
		ClientID:            "client-1",
		RedirectURI:         "https://app.example.com/callback",
		Scope:               []string{"openid", "profile"},
		State:               "xyz",
		Nonce:               "nonce-1",
		CodeChallenge:       "challenge",
		CodeChallengeMethod: "S256",
	}
}

func TestParseAuthorizeRequest_FromQueryString(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/auth?response_type=code&client_id=client-1&redirect_uri=https://app.example.com/callback&scope=openid+profile&state=xyz&nonce=nonce-1&code_challenge=challenge&code_challenge_method=S256", nil)
	got := parseAuthorizeRequest(r)
	assert.Equal(t, sampleAuthorizeRequest(), got)
}

func TestAuthorizeRequestValues_RoundTripsThroughForm(t *testing.T) {
	req := sampleAuthorizeRequest()
	values := authorizeRequestValues(req)

	r := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(values.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	got := authorizeRequestFromForm(r)
	assert.Equal(t, req, got)
}

func TestAuthorizeRequestParams_RoundTrip(t *testing.T) {
	req := sampleAuthorizeRequest()
	params := authorizeRequestToParams(req)
	got := authorizeRequestFromParams(params)
	assert.Equal(t, req, got)
}

func TestAuthorizeRequestValues_EmptyScopeOmitsNothing(t *testing.T) {
	req := oidc.AuthorizeRequest{ClientID: "c", RedirectURI: "https://x/cb"}
	v := authorizeRequestValues(req)
	assert.Equal(t, "", v.Get("scope"))
	assert.Equal(t, url.Values{
		"response_type":         {""},
		"client_id":             {"c"},
		"redirect_uri":          {"https://x/cb"},
		"scope":                 {""},
		"state":                 {""},
		"nonce":                 {""},
		"code_challenge":        {""},
		"code_challenge_method": {""},
	}, v)
}
