// Package ratelimit throttles abuse-prone endpoints per client.
package ratelimit

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"scholarship-service/common/httputil"
)

// Limiter reports whether one more hit on key fits into limit per window.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) bool
}

// Middleware rejects requests over the limit with 429. Requests with an
// empty key pass through, as does everything when no limiter or limit is set.
func Middleware(limiter Limiter, scope string, keyFn func(*http.Request) string, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)
			if key == "" || limiter == nil || limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			if !limiter.Allow(r.Context(), scope+":"+key, limit, window) {
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
				httputil.RespondWithError(w, http.StatusTooManyRequests, httputil.KindRateLimited, "too many requests, try again later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the first X-Forwarded-For hop, falling back to the peer address.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
