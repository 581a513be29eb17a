package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter enforces a global outbound-send rate shared by all dispatcher
// workers, so the pool's total throughput stays under the transport's
// quota regardless of worker count.
// Burst is set equal to the rate so no extra burst capacity is allowed
// beyond the configured per-second maximum.
type Limiter struct {
	l *rate.Limiter
}

// New creates a Limiter granting sendsPerSec tokens per second.
func New(sendsPerSec int) *Limiter {
	return &Limiter{l: rate.NewLimiter(rate.Limit(sendsPerSec), sendsPerSec)}
}

// Wait blocks until the limiter grants a token.
// Called by each worker immediately before the send call.
// Returns a non-nil error only if ctx is cancelled while waiting.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.l.Wait(ctx)
}
