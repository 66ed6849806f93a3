package api

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter defines the interface for rate limiting implementations
type RateLimiter interface {
	// Wait blocks until it's safe to make another API call or ctx is done
	Wait(ctx context.Context) error
}

// IntervalRateLimiter enforces a minimum delay between calls
type IntervalRateLimiter struct {
	limiter *rate.Limiter
}

// NewIntervalRateLimiter creates a limiter allowing one call per minDelay
func NewIntervalRateLimiter(minDelay time.Duration) *IntervalRateLimiter {
	return &IntervalRateLimiter{
		limiter: rate.NewLimiter(rate.Every(minDelay), 1),
	}
}

// Wait blocks until the next call is allowed
func (rl *IntervalRateLimiter) Wait(ctx context.Context) error {
	return rl.limiter.Wait(ctx)
}

// NoOpRateLimiter implements the RateLimiter interface but performs no rate limiting
type NoOpRateLimiter struct{}

// NewNoOpRateLimiter creates a rate limiter that performs no limiting
func NewNoOpRateLimiter() *NoOpRateLimiter {
	return &NoOpRateLimiter{}
}

// Wait only reports context cancellation
func (rl *NoOpRateLimiter) Wait(ctx context.Context) error {
	return ctx.Err()
}
