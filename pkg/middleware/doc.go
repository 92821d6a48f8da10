// Package middleware provides per-client rate limiting for the HTTP API.
//
// RateLimiter keeps token buckets in memory and suits a single instance;
// DistributedRateLimiter counts requests in Redis so that several instances
// share one budget. Both plug into RateLimit:
//
//	limiter := middleware.NewRateLimiter(&middleware.RateLimitConfig{
//		RequestsPerWindow: 600,
//		WindowDuration:    time.Minute,
//		BurstSize:         60,
//	})
//	limiter.StartCleanup(ctx)
//	handler = middleware.RateLimit(limiter)(handler)
//
// Rejected requests get 429 with Retry-After and X-RateLimit-* headers.
package middleware
