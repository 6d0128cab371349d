package api

import (
	"context"
	"net/http"
	"time"

	"github.com/authme/core/internal/api/helpers"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthHandler pings the pool so readiness reflects real database
// connectivity rather than only process liveness.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Pool == nil {
			w.WriteHeader(http.StatusOK)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.Pool.Ping(ctx); err != nil {
			s.Logger.Error("health_check_failed", "error", err, "detail", "database_unreachable")
			helpers.RespondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  "service temporarily unavailable",
			})
			return
		}

		helpers.RespondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}
}

// MetricsHandler exposes the process's Prometheus registry, including
// the request metrics recorded by middleware.Metrics.
func (s *Server) MetricsHandler() http.Handler {
	return promhttp.Handler()
}
