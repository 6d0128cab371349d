package oidc

import "github.com/authme/core/internal/store"

// DiscoveryDocument is the OpenID Provider Configuration served at
// /realms/{name}/.well-known/openid-configuration.
type DiscoveryDocument struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	UserinfoEndpoint                  string   `json:"userinfo_endpoint"`
	JWKSURI                           string   `json:"jwks_uri"`
	IntrospectionEndpoint             string   `json:"introspection_endpoint"`
	RevocationEndpoint                string   `json:"revocation_endpoint"`
	EndSessionEndpoint                string   `json:"end_session_endpoint"`
	DeviceAuthorizationEndpoint       string   `json:"device_authorization_endpoint"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	SubjectTypesSupported             []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported  []string `json:"id_token_signing_alg_values_supported"`
	ScopesSupported                   []string `json:"scopes_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
	BackchannelLogoutSupported        bool     `json:"backchannel_logout_supported"`
}

// Discovery builds the discovery document for a realm whose issuer URL
// base is baseURL, e.g. "https://auth.example.com/realms/acme".
func Discovery(baseURL string) DiscoveryDocument {
	return DiscoveryDocument{
		Issuer:                      baseURL,
		AuthorizationEndpoint:       baseURL + "/auth",
		TokenEndpoint:               baseURL + "/token",
		UserinfoEndpoint:            baseURL + "/userinfo",
		JWKSURI:                     baseURL + "/jwks",
		IntrospectionEndpoint:       baseURL + "/token/introspect",
		RevocationEndpoint:          baseURL + "/revoke",
		EndSessionEndpoint:          baseURL + "/logout",
		DeviceAuthorizationEndpoint: baseURL + "/auth/device",
		ResponseTypesSupported:      []string{"code"},
		GrantTypesSupported: []string{
			string(store.GrantAuthorizationCode), string(store.GrantRefreshToken), string(store.GrantClientCredentials),
			string(store.GrantPassword), string(store.GrantDeviceCode),
		},
		SubjectTypesSupported:             []string{"public"},
		IDTokenSigningAlgValuesSupported:  []string{"RS256"},
		ScopesSupported:                   []string{ScopeOpenID, ScopeProfile, ScopeEmail, ScopeRoles, ScopeOfflineAccess},
		TokenEndpointAuthMethodsSupported: []string{"client_secret_post", "client_secret_basic"},
		CodeChallengeMethodsSupported:     []string{"S256"},
		BackchannelLogoutSupported:        true,
	}
}
