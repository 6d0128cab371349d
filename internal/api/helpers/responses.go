// Package helpers holds small HTTP request/response utilities shared by
// every handler in internal/api.
package helpers

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// RespondJSON writes a JSON response with the given status code.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// RespondError writes a generic {"error": message} JSON body.
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, map[string]string{"error": message})
}

// OAuthError is the RFC 6749 §5.2 error body: {"error", "error_description"}.
type OAuthError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// RespondOAuthError writes an OAuth/OIDC protocol error body. Token
// endpoint errors are always 400 except invalid_client, which RFC 6749
// §5.2 allows (and Keycloak-style providers use) as 401.
func RespondOAuthError(w http.ResponseWriter, status int, code, description string) {
	RespondJSON(w, status, OAuthError{Error: code, ErrorDescription: description})
}
