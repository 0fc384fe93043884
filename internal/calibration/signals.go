package calibration

import (
	"math"

	"github.com/sawpanic/swingrun/internal/domain/indicators"
	"github.com/sawpanic/swingrun/internal/domain/market"
	"github.com/sawpanic/swingrun/internal/strategy"
)

// Candidate is a signal from the simplified generator the trainer uses in
// place of the full strategy set
type Candidate struct {
	Strategy  string
	Direction strategy.Direction
	Score     float64
}

// GenerateCandidate looks at the last bar of prefix and reports an SMA20/50
// crossover (trend_follow) or an RSI extreme (mean_reversion). A crossover
// takes precedence when both fire.
func GenerateCandidate(prefix market.Series) (Candidate, bool) {
	if len(prefix) < 51 {
		return Candidate{}, false
	}
	rsi, okRSI := indicators.RSI(prefix, indicators.RSIPeriod).Get()

	if c, ok := trendCross(prefix, rsi, okRSI); ok {
		return c, true
	}
	if !okRSI {
		return Candidate{}, false
	}

	switch {
	case rsi < 30:
		return Candidate{
			Strategy:  strategy.NameMeanReversion,
			Direction: strategy.Long,
			Score:     clamp(0, 100, 50+(30-rsi)*2),
		}, true
	case rsi > 70:
		return Candidate{
			Strategy:  strategy.NameMeanReversion,
			Direction: strategy.Short,
			Score:     clamp(0, 100, 50+(rsi-70)*2),
		}, true
	}
	return Candidate{}, false
}

func trendCross(prefix market.Series, rsi float64, okRSI bool) (Candidate, bool) {
	prev := prefix[:len(prefix)-1]
	fast, ok1 := indicators.SMA(prefix, 20).Get()
	slow, ok2 := indicators.SMA(prefix, 50).Get()
	prevFast, ok3 := indicators.SMA(prev, 20).Get()
	prevSlow, ok4 := indicators.SMA(prev, 50).Get()
	if !ok1 || !ok2 || !ok3 || !ok4 || slow == 0 {
		return Candidate{}, false
	}

	var dir strategy.Direction
	switch {
	case prevFast <= prevSlow && fast > slow:
		dir = strategy.Long
	case prevFast >= prevSlow && fast < slow:
		dir = strategy.Short
	default:
		return Candidate{}, false
	}

	gapPct := math.Abs(fast-slow) / slow * 100
	score := 60 + math.Min(25, gapPct*25)
	if okRSI && (rsi-50)*dir.Sign() > 0 {
		score += 10
	}
	return Candidate{Strategy: strategy.NameTrendFollow, Direction: dir, Score: clamp(0, 100, score)}, true
}

func clamp(lo, hi, x float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
