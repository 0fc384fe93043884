package indicators

import (
	"math"

	"github.com/sawpanic/swingrun/internal/domain/market"
)

// SMA is the simple moving average of the last period closes
func SMA(bars market.Series, period int) Optional[float64] {
	if period <= 0 || len(bars) < period {
		return None[float64]()
	}
	return Some(mean(bars.Closes()[len(bars)-period:]))
}

// EMA is the exponential moving average of closes, seeded with the SMA of
// the first period closes and smoothed with k = 2/(period+1).
func EMA(bars market.Series, period int) Optional[float64] {
	series := emaSeries(bars.Closes(), period)
	if len(series) == 0 {
		return None[float64]()
	}
	return Some(series[len(series)-1])
}

// VWAP is the volume-weighted typical price over the last period bars.
// A non-positive period uses the whole series.
func VWAP(bars market.Series, period int) Optional[float64] {
	if period <= 0 {
		period = len(bars)
	}
	if len(bars) == 0 || len(bars) < period {
		return None[float64]()
	}

	pv, vol := 0.0, 0.0
	for _, b := range bars[len(bars)-period:] {
		typical := (b.High + b.Low + b.Close) / 3
		pv += typical * b.Volume
		vol += b.Volume
	}
	if vol <= 0 {
		return None[float64]()
	}
	return Some(pv / vol)
}

// StdDev is the population standard deviation of the last period closes
func StdDev(bars market.Series, period int) Optional[float64] {
	if period <= 0 || len(bars) < period {
		return None[float64]()
	}
	return Some(stddev(bars.Closes()[len(bars)-period:]))
}

// emaSeries returns EMA values aligned so that out[0] corresponds to
// values[period-1]. It returns nil when there are fewer than period values.
func emaSeries(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}
	out := make([]float64, 0, len(values)-period+1)
	out = append(out, mean(values[:period]))
	k := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		prev := out[len(out)-1]
		out = append(out, (values[i]-prev)*k+prev)
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := mean(xs)
	variance := 0.0
	for _, x := range xs {
		variance += (x - m) * (x - m)
	}
	return math.Sqrt(variance / float64(len(xs)))
}
