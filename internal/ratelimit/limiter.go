// Package ratelimit spaces outbound requests to stay under the API's budget.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/sschnei8/predictionMarketExploro/internal/metrics"
)

// DefaultRequestsPerSecond stays two under Kalshi's advertised 20 req/s.
const DefaultRequestsPerSecond = 18

// Limiter enforces a minimum interval of 1/rps between request starts. The
// first request is never delayed.
type Limiter struct {
	rps float64
	lim *rate.Limiter
}

// New returns a limiter for rps requests per second. rps <= 0 disables limiting.
func New(rps float64) *Limiter {
	if rps <= 0 {
		return &Limiter{lim: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Limiter{
		rps: rps,
		lim: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// Interval returns the minimum spacing between request starts.
func (l *Limiter) Interval() time.Duration {
	if l.rps <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / l.rps)
}

// Wait blocks until the next request may start.
func (l *Limiter) Wait(ctx context.Context) error {
	start := time.Now()
	if err := l.lim.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}
	metrics.RateLimitWait.Observe(time.Since(start).Seconds())
	return nil
}
