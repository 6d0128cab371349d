package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/authme/core/internal/api/helpers"
	"golang.org/x/time/rate"
)

// IPRateLimiter throttles requests per client IP independently, guarding
// the login and token endpoints against credential-stuffing / grant
// brute-forcing alongside the account-level Brute-Force Guard.
type IPRateLimiter struct {
	limiters sync.Map // string -> *rate.Limiter
	rps      rate.Limit
	burst    int
}

// NewIPRateLimiter builds a limiter allowing rps requests per second per
// IP, with burst allowance. A background goroutine periodically clears
// the tracked IPs so memory doesn't grow unbounded for a long-lived
// process.
func NewIPRateLimiter(rps rate.Limit, burst int) *IPRateLimiter {
	l := &IPRateLimiter{rps: rps, burst: burst}
	go l.cleanupLoop()
	return l
}

func (l *IPRateLimiter) limiterFor(ip string) *rate.Limiter {
	if v, ok := l.limiters.Load(ip); ok {
		return v.(*rate.Limiter)
	}
	limiter := rate.NewLimiter(l.rps, l.burst)
	actual, _ := l.limiters.LoadOrStore(ip, limiter)
	return actual.(*rate.Limiter)
}

func (l *IPRateLimiter) cleanupLoop() {
	for {
		time.Sleep(10 * time.Minute)
		l.limiters.Range(func(key, _ any) bool {
			l.limiters.Delete(key)
			return true
		})
	}
}

// Middleware enforces the per-IP rate limit, answering 429 once
// exhausted.
func (l *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.limiterFor(helpers.GetRealIP(r)).Allow() {
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
