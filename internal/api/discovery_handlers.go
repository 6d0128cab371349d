package api

import (
	"net/http"

	"github.com/authme/core/internal/api/helpers"
	"github.com/authme/core/internal/oidc"
	"github.com/authme/core/internal/realm"
)

// DiscoveryHandler serves the OpenID Provider Configuration document for
// the realm resolved from the URL.
func (s *Server) DiscoveryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rlm := realm.MustFromContext(r.Context())
		doc := oidc.Discovery(s.baseURL + "/realms/" + rlm.Name)
		helpers.RespondJSON(w, http.StatusOK, doc)
	}
}

// JWKSHandler serves the realm's active signing keys as a JWK Set.
func (s *Server) JWKSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rlm := realm.MustFromContext(r.Context())
		svc := s.servicesFor(rlm)

		body, err := svc.keys.JWKS(r.Context(), rlm.ID)
		if err != nil {
			s.Logger.Error("failed to build jwks", "error", err, "realm", rlm.Name)
			helpers.RespondError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}
}
