package server

import (
	"net/http"
	"strings"

	"github.com/callwave/callwave/outbound"
)

// restRatePerSecond and restReservoir bound how hard one client IP may hit
// the control surface; independent of outbound.Controller's own provider-
// facing rate limit, but reusing the same token-bucket type rather than
// hand-rolling a second limiter, per the teacher's rateLimitMiddleware
// (pkg/server/providers/rest/server.go) generalized from its bespoke
// per-minute counter to outbound.RateLimiter's existing token bucket.
const (
	restRatePerSecond = 50
	restReservoir     = 100
)

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)

		s.mu.Lock()
		limiter, ok := s.rateLimiters[ip]
		if !ok {
			limiter = outbound.NewRateLimiter(restRatePerSecond, restReservoir, 0)
			s.rateLimiters[ip] = limiter
		}
		s.mu.Unlock()

		if !limiter.Allow() {
			writeJSON(w, http.StatusTooManyRequests, envelope{Error: &apiError{Message: "rate limit exceeded"}})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}
