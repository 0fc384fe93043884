package indicators

import (
	"math"

	"github.com/sawpanic/swingrun/internal/domain/market"
)

// Standard periods used by the snapshot
const (
	RSIPeriod = 14
	ATRPeriod = 14
	ADXPeriod = 14
)

// RSI calculates the Relative Strength Index over closes using Wilder smoothing
// of average gain and loss. Requires period+1 bars.
func RSI(bars market.Series, period int) Optional[float64] {
	if period <= 0 || len(bars) < period+1 {
		return None[float64]()
	}

	avgGain := 0.0
	avgLoss := 0.0
	for i := 1; i <= period; i++ {
		change := bars[i].Close - bars[i-1].Close
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	// Wilder's smoothing for the remainder
	alpha := 1.0 / float64(period)
	for i := period + 1; i < len(bars); i++ {
		change := bars[i].Close - bars[i-1].Close
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = avgGain*(1-alpha) + gain*alpha
		avgLoss = avgLoss*(1-alpha) + loss*alpha
	}

	if avgLoss == 0 {
		if avgGain == 0 {
			return Some(50.0) // flat prices
		}
		return Some(100.0)
	}

	rs := avgGain / avgLoss
	return Some(100.0 - (100.0 / (1.0 + rs)))
}

// TrueRange returns max(H-L, |H-prevC|, |L-prevC|)
func TrueRange(cur market.Bar, prevClose float64) float64 {
	hl := cur.High - cur.Low
	hc := math.Abs(cur.High - prevClose)
	lc := math.Abs(cur.Low - prevClose)
	return math.Max(hl, math.Max(hc, lc))
}

// ATR calculates the Average True Range as the simple mean of the last
// period true ranges. Requires period+1 bars.
func ATR(bars market.Series, period int) Optional[float64] {
	if period <= 0 || len(bars) < period+1 {
		return None[float64]()
	}

	sum := 0.0
	for i := len(bars) - period; i < len(bars); i++ {
		sum += TrueRange(bars[i], bars[i-1].Close)
	}
	return Some(sum / float64(period))
}

// ATRPercent expresses ATR as a percentage of the latest close
func ATRPercent(bars market.Series, period int) Optional[float64] {
	atr, ok := ATR(bars, period).Get()
	last, _ := bars.Last()
	if !ok || last.Close <= 0 {
		return None[float64]()
	}
	return Some(atr / last.Close * 100.0)
}

// TrendStrength classifies ADX readings
type TrendStrength string

const (
	TrendStrong   TrendStrength = "strong"   // ADX >= 40
	TrendModerate TrendStrength = "moderate" // ADX >= 25
	TrendWeak     TrendStrength = "weak"     // ADX >= 15
	TrendNone     TrendStrength = "none"
)

// ClassifyADX maps an ADX value onto a trend strength bucket
func ClassifyADX(adx float64) TrendStrength {
	switch {
	case adx >= 40:
		return TrendStrong
	case adx >= 25:
		return TrendModerate
	case adx >= 15:
		return TrendWeak
	default:
		return TrendNone
	}
}

// ADXResult holds the directional movement system readings
type ADXResult struct {
	ADX      float64       `json:"adx"`
	PlusDI   float64       `json:"plus_di"`
	MinusDI  float64       `json:"minus_di"`
	Strength TrendStrength `json:"strength"`
}

// ADX calculates the Average Directional Index with Wilder smoothing of true
// range and directional movement, then Wilder smoothing of DX.
// Requires 2*period+1 bars.
func ADX(bars market.Series, period int) Optional[ADXResult] {
	if period <= 0 || len(bars) < period*2+1 {
		return None[ADXResult]()
	}

	n := len(bars) - 1
	trueRanges := make([]float64, n)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)

	for i := 1; i < len(bars); i++ {
		cur, prev := bars[i], bars[i-1]
		trueRanges[i-1] = TrueRange(cur, prev.Close)

		upMove := cur.High - prev.High
		downMove := prev.Low - cur.Low
		if upMove > downMove && upMove > 0 {
			plusDM[i-1] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i-1] = downMove
		}
	}

	// Seed smoothed sums over the first period
	smTR, smPlus, smMinus := 0.0, 0.0, 0.0
	for i := 0; i < period; i++ {
		smTR += trueRanges[i]
		smPlus += plusDM[i]
		smMinus += minusDM[i]
	}

	directional := func() (pdi, mdi, dx float64) {
		if smTR <= 0 {
			return 0, 0, 0
		}
		pdi = 100.0 * smPlus / smTR
		mdi = 100.0 * smMinus / smTR
		if sum := pdi + mdi; sum > 0 {
			dx = 100.0 * math.Abs(pdi-mdi) / sum
		}
		return pdi, mdi, dx
	}

	pdi, mdi, dx := directional()
	dxs := []float64{dx}
	p := float64(period)
	for i := period; i < n; i++ {
		smTR = smTR - smTR/p + trueRanges[i]
		smPlus = smPlus - smPlus/p + plusDM[i]
		smMinus = smMinus - smMinus/p + minusDM[i]
		pdi, mdi, dx = directional()
		dxs = append(dxs, dx)
	}

	// ADX seeds with the mean of the first period DX values
	adx := 0.0
	for i := 0; i < period; i++ {
		adx += dxs[i]
	}
	adx /= p
	for i := period; i < len(dxs); i++ {
		adx = (adx*(p-1) + dxs[i]) / p
	}

	return Some(ADXResult{
		ADX:      adx,
		PlusDI:   pdi,
		MinusDI:  mdi,
		Strength: ClassifyADX(adx),
	})
}
