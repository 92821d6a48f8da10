package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/docsearch/pkg/httputil"
	"github.com/platinummonkey/docsearch/pkg/observability"
)

// RateLimit rejects clients that exceed limiter with 429. Clients are keyed
// by IP address. Limiter errors let the request through.
func RateLimit(limiter Limiter) func(http.Handler) http.Handler {
	cfg := limiter.Config()
	limitHeader := strconv.Itoa(cfg.RequestsPerWindow + cfg.BurstSize)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := "ip:" + ClientIP(r)

			allowed, err := limiter.Allow(ctx, key)
			if err != nil {
				observability.FromContext(ctx).WithError(err).Warn("rate limiter unavailable, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", limitHeader)
			if !allowed {
				retryAfter := int(cfg.WindowDuration.Round(time.Second).Seconds())
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("Retry-After", strconv.Itoa(max(retryAfter, 1)))
				httputil.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			if remaining, err := limiter.Remaining(ctx, key); err == nil {
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the originating client address: the first
// X-Forwarded-For hop, then X-Real-IP, then the connection's remote host.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
