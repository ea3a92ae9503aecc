// Package ratelimit throttles mapping-function invocations that reach out to
// shared external resources.
package ratelimit

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

type Limiter struct {
	limiter *rate.Limiter
}

// New allows callsPerSecond invocations with a burst of one; 0 or a negative
// rate disables throttling.
func New(callsPerSecond float64) *Limiter {
	if callsPerSecond <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(callsPerSecond), 1)}
}

// Wait blocks until the next invocation may start or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

// Allow is non-blocking and useful for checking throttling.
func (l *Limiter) Allow() bool {
	return l == nil || l.limiter.Allow()
}

// Limit reports the configured rate, 0 meaning unlimited.
func (l *Limiter) Limit() float64 {
	if l == nil {
		return 0
	}
	limit := l.limiter.Limit()
	if limit == rate.Inf {
		return 0
	}
	return float64(limit)
}
