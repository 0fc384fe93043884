package regime

import (
	"github.com/sawpanic/swingrun/internal/domain/indicators"
	"github.com/sawpanic/swingrun/internal/domain/market"
)

// Thresholds for signal-time regime tagging
const (
	TrendingADX        = 25.0 // ADX above this = trending
	HighVolATRPercent  = 2.0  // ATR% above this = high volatility
	CalibrationWindow  = 20   // trailing bars for the calibration volatility regime
	CalibrationLowVol  = 1.0  // ATR% below this = low_vol
	CalibrationHighVol = 3.0  // ATR% above this = high_vol
)

// Trend is the trending/choppy half of a backtest regime tag
type Trend string

const (
	Trending Trend = "trending"
	Choppy   Trend = "choppy"
)

// Volatility labels. The backtest uses high/low only; the calibration
// trainer adds a normal band between its two thresholds.
type Volatility string

const (
	HighVol   Volatility = "high_vol"
	NormalVol Volatility = "normal"
	LowVol    Volatility = "low_vol"
)

// Tag is the regime captured when a signal fires. It is stored on the trade
// and never recomputed afterwards.
type Tag struct {
	Trend      Trend      `json:"trend"`
	Volatility Volatility `json:"volatility"`
	ADX        float64    `json:"adx"`
	ATRPercent float64    `json:"atr_percent"`
}

// Labels returns the breakdown keys this tag contributes to
func (t Tag) Labels() []string {
	return []string{string(t.Trend), string(t.Volatility)}
}

// Classify tags the snapshot: trending when ADX > 25, high volatility when
// ATR% > 2. Missing readings fall back to the conservative side (choppy,
// low volatility).
func Classify(snap indicators.Snapshot) Tag {
	tag := Tag{Trend: Choppy, Volatility: LowVol}

	if adx, ok := snap.ADX.Get(); ok {
		tag.ADX = adx.ADX
		if adx.ADX > TrendingADX {
			tag.Trend = Trending
		}
	}
	if atrPct, ok := snap.ATRPercent.Get(); ok {
		tag.ATRPercent = atrPct
		if atrPct > HighVolATRPercent {
			tag.Volatility = HighVol
		}
	}
	return tag
}

// CalibrationVolatility tags the volatility regime used by the calibration
// trainer from the mean true range of the trailing window ending at the last
// bar of the prefix, as a percentage of its close. A prefix too short for the
// window is tagged normal.
func CalibrationVolatility(prefix market.Series) Volatility {
	atrPct, ok := indicators.ATRPercent(prefix, CalibrationWindow).Get()
	if !ok {
		return NormalVol
	}
	switch {
	case atrPct < CalibrationLowVol:
		return LowVol
	case atrPct > CalibrationHighVol:
		return HighVol
	default:
		return NormalVol
	}
}
