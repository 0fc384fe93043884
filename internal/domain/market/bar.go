package market

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Bar represents one OHLCV period (a trading day for the daily engine)
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Series is an ascending, duplicate-free sequence of bars for one symbol.
// Series values are never mutated by the engine, strategies or trainer.
type Series []Bar

var (
	ErrEmptySeries   = errors.New("series is empty")
	ErrUnorderedBars = errors.New("bars are not in ascending timestamp order")
)

// Through returns the causally visible prefix bars[0..i] inclusive.
// The returned slice has its capacity clipped to its length, so an append on
// the prefix allocates instead of overwriting (or exposing) later bars.
func (s Series) Through(i int) Series {
	if i < 0 {
		return s[:0:0]
	}
	if i >= len(s) {
		i = len(s) - 1
	}
	return s[: i+1 : i+1]
}

// Window returns the trailing n bars of the series (fewer if the series is shorter)
func (s Series) Window(n int) Series {
	if n <= 0 {
		return s[:0:0]
	}
	if n >= len(s) {
		return s
	}
	return s[len(s)-n:]
}

// Last returns the most recent bar and false when the series is empty
func (s Series) Last() (Bar, bool) {
	if len(s) == 0 {
		return Bar{}, false
	}
	return s[len(s)-1], true
}

// Closes projects closing prices
func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Close
	}
	return out
}

// Highs projects high prices
func (s Series) Highs() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.High
	}
	return out
}

// Lows projects low prices
func (s Series) Lows() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Low
	}
	return out
}

// Volumes projects traded volume
func (s Series) Volumes() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Volume
	}
	return out
}

// Validate checks ordering and OHLC sanity: prices are positive and open and
// close sit inside [low, high]. Gaps between trading days are
// tolerated; duplicates and reversed timestamps are not.
func (s Series) Validate() error {
	if len(s) == 0 {
		return ErrEmptySeries
	}
	for i, b := range s {
		day := b.Timestamp.Format("2006-01-02")
		if b.High < b.Low {
			return fmt.Errorf("bar %d (%s): high %.4f below low %.4f", i, day, b.High, b.Low)
		}
		if b.Open <= 0 || b.Close <= 0 || b.Low <= 0 {
			return fmt.Errorf("bar %d (%s): non-positive price", i, day)
		}
		if b.Low > math.Min(b.Open, b.Close) || b.High < math.Max(b.Open, b.Close) {
			return fmt.Errorf("bar %d (%s): open %.4f/close %.4f outside range [%.4f, %.4f]", i, day, b.Open, b.Close, b.Low, b.High)
		}
		if i > 0 && !b.Timestamp.After(s[i-1].Timestamp) {
			return fmt.Errorf("bar %d (%s): %w", i, b.Timestamp.Format("2006-01-02"), ErrUnorderedBars)
		}
	}
	return nil
}
