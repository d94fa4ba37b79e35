// SPDX-License-Identifier: MIT

package api

import (
	"fmt"
	"net/http"
	"time"

	"dario.cat/mergo"
	"github.com/go-chi/httprate"
)

// RateLimitConfig holds configuration for rate limiting middleware.
type RateLimitConfig struct {
	// RequestLimit is the maximum number of requests allowed in the window.
	// Zero disables rate limiting.
	RequestLimit int
	// WindowSize is the time window for rate limiting
	WindowSize time.Duration
	// KeyFunc extracts the rate limit key from the request.
	// If nil, defaults to IP-based rate limiting
	KeyFunc func(r *http.Request) (string, error)
}

// DefaultRateLimit allows 120 requests per minute per client IP.
func DefaultRateLimit() RateLimitConfig {
	return RateLimitConfig{RequestLimit: 120, WindowSize: time.Minute}
}

// RateLimit creates a sliding window rate limiter using httprate. Zero
// fields of cfg take their DefaultRateLimit values.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	// both sides are RateLimitConfig, so Merge cannot fail
	_ = mergo.Merge(&cfg, DefaultRateLimit())
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = httprate.KeyByIP
	}

	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowSize,
		httprate.WithKeyFuncs(keyFunc),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(cfg.WindowSize.Seconds())))
			writeJSON(w, http.StatusTooManyRequests, map[string]string{
				"error":  "rate_limit_exceeded",
				"detail": "Too many requests. Please try again later.",
			})
		}),
	)
}
