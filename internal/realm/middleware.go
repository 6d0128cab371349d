package realm

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Middleware resolves the "realmName" chi URL parameter into a loaded
// Realm, rejecting the request with 404 if it doesn't exist or 403 if it
// is disabled, and otherwise attaching it to the request context for
// every downstream handler and component to read via FromContext.
func Middleware(resolver *Resolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			name := chi.URLParam(r, "realmName")
			if name == "" {
				http.Error(w, "realm not specified", http.StatusNotFound)
				return
			}

			rlm, err := resolver.Resolve(r.Context(), name)
			switch {
			case errors.Is(err, ErrNotFound):
				http.Error(w, "realm not found", http.StatusNotFound)
				return
			case errors.Is(err, ErrDisabled):
				http.Error(w, "realm disabled", http.StatusForbidden)
				return
			case err != nil:
				logger.Error("failed to resolve realm", "realm", name, "error", err)
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithRealm(r.Context(), rlm)))
		})
	}
}
