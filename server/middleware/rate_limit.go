// Package middleware holds HTTP middleware helpers shared by the API surface.
package middleware

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	apperr "github.com/recollecthq/recollect/server/internal/errors"
)

const (
	defaultRequestsPerSecond = 10
	defaultBurst             = 20
)

// RateLimiter keeps one token bucket per key (user id or client address).
type RateLimiter struct {
	mu     sync.Mutex
	limits map[string]*rate.Limiter
	rps    int
	burst  int
}

// NewRateLimiter creates a limiter granting rps requests per second per key
// with the given burst. Non-positive values fall back to the defaults.
func NewRateLimiter(rps, burst int) *RateLimiter {
	if rps <= 0 {
		rps = defaultRequestsPerSecond
	}
	if burst <= 0 {
		burst = defaultBurst
	}
	return &RateLimiter{
		limits: make(map[string]*rate.Limiter),
		rps:    rps,
		burst:  burst,
	}
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if limiter, ok := rl.limits[key]; ok {
		return limiter
	}
	limiter := rate.NewLimiter(rate.Every(time.Second/time.Duration(rl.rps)), rl.burst)
	rl.limits[key] = limiter
	return limiter
}

// Check consumes one token for the key. It returns a RATE_LIMIT_EXCEEDED
// service error when the key's bucket is empty.
func (rl *RateLimiter) Check(key string) error {
	if !rl.getLimiter(key).Allow() {
		return apperr.RateLimitExceeded("rate limit exceeded")
	}
	return nil
}
