package middleware

import (
	"net/http"
	"strconv"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "authme",
		Name:      "http_request_duration_seconds",
		Help:      "Latency of HTTP requests, by route, method and status code.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method", "status"})

	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authme",
		Name:      "http_requests_total",
		Help:      "Count of HTTP requests, by route, method and status code.",
	}, []string{"route", "method", "status"})
)

func init() {
	prometheus.MustRegister(requestDuration, requestsTotal)
}

// Metrics records request latency and counts for every route registered
// through chi, keyed by the route pattern (not the raw path, which would
// blow up cardinality with path parameters like realm/client ids).
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chimw.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := strconv.Itoa(ww.Status())
		requestDuration.WithLabelValues(route, r.Method, status).Observe(time.Since(start).Seconds())
		requestsTotal.WithLabelValues(route, r.Method, status).Inc()
	})
}
