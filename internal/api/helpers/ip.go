package helpers

import (
	"net"
	"net/http"
	"strings"
)

// GetRealIP extracts the client's address, preferring X-Forwarded-For /
// X-Real-IP over RemoteAddr since the process normally sits behind a
// reverse proxy terminating TLS.
func GetRealIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, p := range strings.Split(xff, ",") {
			if ip := strings.TrimSpace(p); net.ParseIP(ip) != nil {
				return ip
			}
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if ip := strings.TrimSpace(xri); net.ParseIP(ip) != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}
