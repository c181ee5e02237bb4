package ratelimit

import (
	"net/http"

	"golang.org/x/time/rate"
)

// New returns a token-bucket limiter allowing rps requests per second with the
// given burst size.
func New(rps float64, burst int) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// Middleware returns chi-compatible middleware that rejects requests with 429
// once the limiter is exhausted. Download endpoints sit behind this so a burst
// of pipeline invocations cannot starve the host.
func Middleware(limiter *rate.Limiter) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
