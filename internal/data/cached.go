package data

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/swingrun/internal/domain/market"
)

// BarCache stores whole symbol histories
type BarCache interface {
	Get(ctx context.Context, symbol string) (market.Series, bool, error)
	Set(ctx context.Context, symbol string, bars market.Series) error
}

// CachedSource is a read-through cache in front of a slower source. Cache
// failures are logged and bypassed, never returned.
type CachedSource struct {
	next  BarSource
	cache BarCache
}

// NewCachedSource wraps next with cache
func NewCachedSource(next BarSource, cache BarCache) *CachedSource {
	return &CachedSource{next: next, cache: cache}
}

// Bars serves from cache when possible, otherwise fetches and populates it
func (s *CachedSource) Bars(ctx context.Context, symbol string) (market.Series, error) {
	sym := NormalizeSymbol(symbol)

	bars, hit, err := s.cache.Get(ctx, sym)
	if err != nil {
		log.Warn().Err(err).Str("symbol", sym).Msg("Bar cache read failed")
	}
	if hit {
		return bars, nil
	}

	bars, err = s.next.Bars(ctx, sym)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, sym, bars); err != nil {
		log.Warn().Err(err).Str("symbol", sym).Msg("Bar cache write failed")
	}
	return bars, nil
}
