package data

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/sawpanic/swingrun/internal/domain/market"
)

// RateLimitedSource throttles calls to an upstream source with a token bucket
type RateLimitedSource struct {
	next    BarSource
	limiter *rate.Limiter
}

// NewRateLimitedSource allows rps fetches per second with the given burst
func NewRateLimitedSource(next BarSource, rps float64, burst int) *RateLimitedSource {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	return &RateLimitedSource{next: next, limiter: rate.NewLimiter(limit, burst)}
}

// Bars waits for a token, then delegates
func (s *RateLimitedSource) Bars(ctx context.Context, symbol string) (market.Series, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return s.next.Bars(ctx, symbol)
}
