package indicators

import (
	"math"

	"github.com/sawpanic/swingrun/internal/domain/market"
)

// MACD periods
const (
	MACDFast   = 12
	MACDSlow   = 26
	MACDSignal = 9
)

// Cross describes a line crossing its signal on the latest bar
type Cross string

const (
	CrossBullish Cross = "bullish"
	CrossBearish Cross = "bearish"
	CrossNone    Cross = "none"
)

// MACDResult holds the MACD triple plus the crossover state
type MACDResult struct {
	MACD      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
	Cross     Cross   `json:"cross"`
}

// MACD computes EMA(fast)-EMA(slow) with an EMA(signal) signal line.
// Requires slow+signal-1 bars; the crossover needs one more.
func MACD(bars market.Series, fast, slow, signal int) Optional[MACDResult] {
	if fast <= 0 || slow <= fast || signal <= 0 || len(bars) < slow+signal-1 {
		return None[MACDResult]()
	}

	closes := bars.Closes()
	fastEMA := emaSeries(closes, fast)
	slowEMA := emaSeries(closes, slow)

	// Align both on the slow series: slowEMA[j] is closes[slow-1+j]
	offset := slow - fast
	line := make([]float64, len(slowEMA))
	for j := range slowEMA {
		line[j] = fastEMA[j+offset] - slowEMA[j]
	}

	sig := emaSeries(line, signal)
	if len(sig) == 0 {
		return None[MACDResult]()
	}

	last := len(sig) - 1
	macd := line[len(line)-1]
	res := MACDResult{
		MACD:      macd,
		Signal:    sig[last],
		Histogram: macd - sig[last],
		Cross:     CrossNone,
	}
	if last > 0 {
		prevHist := line[len(line)-2] - sig[last-1]
		switch {
		case prevHist <= 0 && res.Histogram > 0:
			res.Cross = CrossBullish
		case prevHist >= 0 && res.Histogram < 0:
			res.Cross = CrossBearish
		}
	}
	return Some(res)
}

// StochasticResult holds %K and its %D smoothing
type StochasticResult struct {
	K float64 `json:"k"`
	D float64 `json:"d"`
}

// Stochastic computes the fast %K over kPeriod and %D as the SMA of the last
// dPeriod %K readings. Requires kPeriod+dPeriod-1 bars.
func Stochastic(bars market.Series, kPeriod, dPeriod int) Optional[StochasticResult] {
	if kPeriod <= 0 || dPeriod <= 0 || len(bars) < kPeriod+dPeriod-1 {
		return None[StochasticResult]()
	}

	ks := make([]float64, 0, dPeriod)
	for end := len(bars) - dPeriod + 1; end <= len(bars); end++ {
		window := bars[end-kPeriod : end]
		hi, lo := math.Inf(-1), math.Inf(1)
		for _, b := range window {
			hi = math.Max(hi, b.High)
			lo = math.Min(lo, b.Low)
		}
		k := 50.0
		if hi > lo {
			k = (window[len(window)-1].Close - lo) / (hi - lo) * 100
		}
		ks = append(ks, k)
	}

	return Some(StochasticResult{K: ks[len(ks)-1], D: mean(ks)})
}

// BollingerResult holds the band set and %B of the latest close
type BollingerResult struct {
	Upper     float64 `json:"upper"`
	Middle    float64 `json:"middle"`
	Lower     float64 `json:"lower"`
	PercentB  float64 `json:"percent_b"`
	Bandwidth float64 `json:"bandwidth"`
}

// Bollinger computes SMA(period) ± mult·stddev with %B = (price-lower)/(upper-lower)
func Bollinger(bars market.Series, period int, mult float64) Optional[BollingerResult] {
	if period <= 0 || len(bars) < period {
		return None[BollingerResult]()
	}

	window := bars.Closes()[len(bars)-period:]
	mid := mean(window)
	sd := stddev(window)
	upper := mid + mult*sd
	lower := mid - mult*sd
	price := window[len(window)-1]

	pctB := 0.5
	if upper > lower {
		pctB = (price - lower) / (upper - lower)
	}
	bandwidth := 0.0
	if mid != 0 {
		bandwidth = (upper - lower) / mid
	}

	return Some(BollingerResult{
		Upper:     upper,
		Middle:    mid,
		Lower:     lower,
		PercentB:  pctB,
		Bandwidth: bandwidth,
	})
}
