package api

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/authme/core/internal/oidc"
)

// parseAuthorizeRequest parses the GET /auth query string into an
// AuthorizeRequest.
func parseAuthorizeRequest(r *http.Request) oidc.AuthorizeRequest {
	q := r.URL.Query()
	return oidc.AuthorizeRequest{
		ResponseType:        q.Get("response_type"),
		ClientID:            q.Get("client_id"),
		RedirectURI:         q.Get("redirect_uri"),
		Scope:               strings.Fields(q.Get("scope")),
		State:               q.Get("state"),
		Nonce:               q.Get("nonce"),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: q.Get("code_challenge_method"),
	}
}

// authorizeRequestFromForm re-parses the hidden fields a login/MFA/
// consent form round-trips, mirroring parseAuthorizeRequest's query-
// string shape so the same AuthorizeRequest survives the whole flow
// without a server-side stash.
func authorizeRequestFromForm(r *http.Request) oidc.AuthorizeRequest {
	return oidc.AuthorizeRequest{
		ResponseType:        r.FormValue("response_type"),
		ClientID:            r.FormValue("client_id"),
		RedirectURI:         r.FormValue("redirect_uri"),
		Scope:               strings.Fields(r.FormValue("scope")),
		State:               r.FormValue("state"),
		Nonce:               r.FormValue("nonce"),
		CodeChallenge:       r.FormValue("code_challenge"),
		CodeChallengeMethod: r.FormValue("code_challenge_method"),
	}
}

// authorizeRequestValues renders req back into the query/form encoding
// the hidden-field round trip and the post-redirect error path share.
func authorizeRequestValues(req oidc.AuthorizeRequest) url.Values {
	v := url.Values{}
	v.Set("response_type", req.ResponseType)
	v.Set("client_id", req.ClientID)
	v.Set("redirect_uri", req.RedirectURI)
	v.Set("scope", strings.Join(req.Scope, " "))
	v.Set("state", req.State)
	v.Set("nonce", req.Nonce)
	v.Set("code_challenge", req.CodeChallenge)
	v.Set("code_challenge_method", req.CodeChallengeMethod)
	return v
}

// authorizeRequestToParams flattens req into the string map an
// mfa.Challenge/consent.Request carries across its transient-store round
// trip, since both are JSON-encoded as map[string]string.
func authorizeRequestToParams(req oidc.AuthorizeRequest) map[string]string {
	v := authorizeRequestValues(req)
	m := make(map[string]string, len(v))
	for key := range v {
		m[key] = v.Get(key)
	}
	return m
}

// authorizeRequestFromParams is authorizeRequestToParams's inverse.
func authorizeRequestFromParams(m map[string]string) oidc.AuthorizeRequest {
	return oidc.AuthorizeRequest{
		ResponseType:        m["response_type"],
		ClientID:            m["client_id"],
		RedirectURI:         m["redirect_uri"],
		Scope:               strings.Fields(m["scope"]),
		State:               m["state"],
		Nonce:               m["nonce"],
		CodeChallenge:       m["code_challenge"],
		CodeChallengeMethod: m["code_challenge_method"],
	}
}
