package indicators

import (
	"math"
	"sort"

	"github.com/sawpanic/swingrun/internal/domain/market"
)

const (
	pivotWing        = 2     // bars each side of a swing point
	clusterTolerance = 0.005 // pivots within 0.5% merge into one level
	levelLookback    = 120
)

// Level is a clustered price zone built from swing points
type Level struct {
	Price   float64 `json:"price"`
	Touches int     `json:"touches"`
}

// LevelsResult holds the nearest support below and resistance above the
// latest close together with every clustered level.
type LevelsResult struct {
	Support     Optional[float64] `json:"support"`
	Resistance  Optional[float64] `json:"resistance"`
	Supports    []Level           `json:"supports"`
	Resistances []Level           `json:"resistances"`
}

// SwingHighs returns indices whose high is not exceeded by the wing bars on
// either side. The last wing bars can never qualify, so only confirmed swings
// are reported.
func SwingHighs(bars market.Series, wing int) []int {
	idx := []int{}
	for i := wing; i < len(bars)-wing; i++ {
		isHigh := true
		for j := i - wing; j <= i+wing; j++ {
			if j != i && bars[j].High > bars[i].High {
				isHigh = false
				break
			}
		}
		if isHigh {
			idx = append(idx, i)
		}
	}
	return idx
}

// SwingLows is symmetric to SwingHighs
func SwingLows(bars market.Series, wing int) []int {
	idx := []int{}
	for i := wing; i < len(bars)-wing; i++ {
		isLow := true
		for j := i - wing; j <= i+wing; j++ {
			if j != i && bars[j].Low < bars[i].Low {
				isLow = false
				break
			}
		}
		if isLow {
			idx = append(idx, i)
		}
	}
	return idx
}

// ClusterLevels merges prices lying within tolerance of a running cluster mean.
// Non-positive and non-finite prices are ignored.
func ClusterLevels(prices []float64, tolerance float64) []Level {
	sorted := make([]float64, 0, len(prices))
	for _, p := range prices {
		if p > 0 && !math.IsInf(p, 0) {
			sorted = append(sorted, p)
		}
	}
	if len(sorted) == 0 {
		return nil
	}
	sort.Float64s(sorted)

	levels := []Level{}
	sum, count := sorted[0], 1
	for _, p := range sorted[1:] {
		center := sum / float64(count)
		if math.Abs(p-center)/center <= tolerance {
			sum += p
			count++
			continue
		}
		levels = append(levels, Level{Price: center, Touches: count})
		sum, count = p, 1
	}
	levels = append(levels, Level{Price: sum / float64(count), Touches: count})
	return levels
}

// SupportResistance finds clustered swing levels over the trailing lookback
// window. Requires 2*wing+1 bars.
func SupportResistance(bars market.Series) Optional[LevelsResult] {
	if len(bars) < 2*pivotWing+1 {
		return None[LevelsResult]()
	}
	window := bars.Window(levelLookback)
	price := window[len(window)-1].Close

	var lows, highs []float64
	for _, i := range SwingLows(window, pivotWing) {
		lows = append(lows, window[i].Low)
	}
	for _, i := range SwingHighs(window, pivotWing) {
		highs = append(highs, window[i].High)
	}

	res := LevelsResult{
		Support:     None[float64](),
		Resistance:  None[float64](),
		Supports:    ClusterLevels(lows, clusterTolerance),
		Resistances: ClusterLevels(highs, clusterTolerance),
	}

	for _, l := range res.Supports {
		if l.Price < price {
			res.Support = Some(l.Price) // ascending, so the last one below wins
		}
	}
	for i := len(res.Resistances) - 1; i >= 0; i-- {
		if l := res.Resistances[i]; l.Price > price {
			res.Resistance = Some(l.Price)
		}
	}
	return Some(res)
}

// PriorRange returns the highest high and lowest low of the n bars before
// the latest bar. Requires n+1 bars.
func PriorRange(bars market.Series, n int) (Optional[float64], Optional[float64]) {
	if n <= 0 || len(bars) < n+1 {
		return None[float64](), None[float64]()
	}
	hi, lo := math.Inf(-1), math.Inf(1)
	for _, b := range bars[len(bars)-1-n : len(bars)-1] {
		hi = math.Max(hi, b.High)
		lo = math.Min(lo, b.Low)
	}
	return Some(hi), Some(lo)
}

// VolumeAverage is the mean volume of the n bars before the latest bar
func VolumeAverage(bars market.Series, n int) Optional[float64] {
	if n <= 0 || len(bars) < n+1 {
		return None[float64]()
	}
	return Some(mean(bars.Volumes()[len(bars)-1-n : len(bars)-1]))
}

// VolumeRatio is the latest volume divided by VolumeAverage
func VolumeRatio(bars market.Series, n int) Optional[float64] {
	avg, ok := VolumeAverage(bars, n).Get()
	if !ok || avg <= 0 {
		return None[float64]()
	}
	return Some(bars[len(bars)-1].Volume / avg)
}
