package model

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited throttles Generate calls of a wrapped model with a token bucket.
type RateLimited struct {
	next    Model
	limiter *rate.Limiter
}

// WithRateLimit wraps m so at most rps calls per second (with burst) start.
// A non-positive rps returns m unchanged.
func WithRateLimit(m Model, rps float64, burst int) Model {
	if rps <= 0 {
		return m
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{next: m, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Generate waits for a token and delegates.
func (r *RateLimited) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return Failed(fmt.Errorf("rate limit: %w", err))
	}
	return r.next.Generate(ctx, req)
}

// Info implements Model.
func (r *RateLimited) Info() Info { return r.next.Info() }
