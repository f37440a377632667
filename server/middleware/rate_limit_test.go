package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "github.com/recollecthq/recollect/server/internal/errors"
)

func TestRateLimiterExhaustsBurst(t *testing.T) {
	limiter := NewRateLimiter(1, 3)

	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.Check("user-1"))
	}

	err := limiter.Check("user-1")
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.ErrCodeRateLimitExceeded))
}

func TestRateLimiterIsolatesKeys(t *testing.T) {
	limiter := NewRateLimiter(1, 1)

	require.NoError(t, limiter.Check("user-1"))
	require.Error(t, limiter.Check("user-1"))

	// A different key has its own bucket.
	assert.NoError(t, limiter.Check("user-2"))
}

func TestRateLimiterDefaultsOnInvalidConfig(t *testing.T) {
	limiter := NewRateLimiter(0, -1)

	assert.Equal(t, defaultRequestsPerSecond, limiter.rps)
	assert.Equal(t, defaultBurst, limiter.burst)
}
