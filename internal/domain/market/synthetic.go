package market

import (
	"math"
	"math/rand"
	"time"
)

// SyntheticConfig describes a deterministic generated price path
type SyntheticConfig struct {
	Bars       int       // number of daily bars
	Start      time.Time // timestamp of the first bar
	StartPrice float64   // first close
	Drift      float64   // per-bar drift, e.g. 0.0005 = 0.05%/day
	Volatility float64   // per-bar noise scale, e.g. 0.015
	CycleBars  int       // period of the superimposed sine cycle (0 disables)
	CycleAmp   float64   // cycle amplitude as a fraction of price
	Seed       int64     // noise seed; identical seeds give identical series
}

// DefaultSyntheticConfig returns a one-year trending-with-cycles path
func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{
		Bars:       260,
		Start:      time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC),
		StartPrice: 100,
		Drift:      0.0006,
		Volatility: 0.012,
		CycleBars:  40,
		CycleAmp:   0.06,
		Seed:       42,
	}
}

// Synthetic builds a deterministic daily series. Weekends are skipped so the
// year breakdowns and holding-day counts look like real equity data.
func Synthetic(cfg SyntheticConfig) Series {
	if cfg.Bars <= 0 {
		return Series{}
	}
	if cfg.StartPrice <= 0 {
		cfg.StartPrice = 100
	}
	if cfg.Start.IsZero() {
		cfg.Start = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	out := make(Series, 0, cfg.Bars)
	ts := cfg.Start
	trend := cfg.StartPrice
	prevClose := cfg.StartPrice

	for i := 0; i < cfg.Bars; i++ {
		for ts.Weekday() == time.Saturday || ts.Weekday() == time.Sunday {
			ts = ts.AddDate(0, 0, 1)
		}

		trend *= 1 + cfg.Drift + cfg.Volatility*rng.NormFloat64()
		cycle := 0.0
		if cfg.CycleBars > 0 {
			cycle = cfg.CycleAmp * math.Sin(2*math.Pi*float64(i)/float64(cfg.CycleBars))
		}
		close := math.Max(0.01, trend*(1+cycle))

		open := prevClose * (1 + cfg.Volatility*0.3*rng.NormFloat64())
		if i == 0 {
			open = close
		}
		spread := math.Abs(cfg.Volatility*rng.NormFloat64())*close + close*0.002
		high := math.Max(open, close) + spread*rng.Float64()
		low := math.Min(open, close) - spread*rng.Float64()
		if low <= 0 {
			low = math.Min(open, close) * 0.99
		}

		out = append(out, Bar{
			Timestamp: ts,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    1_000_000 * (1 + 0.5*rng.Float64()),
		})
		prevClose = close
		ts = ts.AddDate(0, 0, 1)
	}
	return out
}

// Flat builds n identical bars at price p, one per calendar day
func Flat(n int, p float64, start time.Time) Series {
	out := make(Series, n)
	for i := range out {
		out[i] = Bar{
			Timestamp: start.AddDate(0, 0, i),
			Open:      p,
			High:      p,
			Low:       p,
			Close:     p,
			Volume:    1_000_000,
		}
	}
	return out
}
