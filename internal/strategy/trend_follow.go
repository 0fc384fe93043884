package strategy

import (
	"github.com/sawpanic/swingrun/internal/domain/indicators"
)

// NameTrendFollow identifies the trend-following strategy
const NameTrendFollow = "trend_follow"

// TrendFollow rides an aligned EMA9 / SMA20 / SMA50 stack confirmed by ADX
type TrendFollow struct{}

// NewTrendFollow creates the trend-following strategy
func NewTrendFollow() *TrendFollow { return &TrendFollow{} }

func (t *TrendFollow) Name() string { return NameTrendFollow }

func (t *TrendFollow) IsApplicable(snap indicators.Snapshot) bool {
	return snap.EMA9.Valid() && snap.SMA20.Valid() && snap.SMA50.Valid() && snap.ADX.Valid()
}

func (t *TrendFollow) Analyze(snap indicators.Snapshot) Signal {
	ema9, ok1 := snap.EMA9.Get()
	sma20, ok2 := snap.SMA20.Get()
	sma50, ok3 := snap.SMA50.Get()
	adx, ok4 := snap.ADX.Get()
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return noSignal(NameTrendFollow, "insufficient history for moving-average stack")
	}

	var dir Direction
	switch {
	case ema9 > sma20 && sma20 > sma50 && snap.Price > ema9:
		dir = Long
	case ema9 < sma20 && sma20 < sma50 && snap.Price < ema9:
		dir = Short
	default:
		return noSignal(NameTrendFollow, "moving averages not stacked")
	}

	c := &scorecard{}
	c.add(40, "EMA9/SMA20/SMA50 stacked %s", dir)

	switch adx.Strength {
	case indicators.TrendStrong:
		c.add(30, "strong trend (ADX %.1f)", adx.ADX)
	case indicators.TrendModerate:
		c.add(20, "moderate trend (ADX %.1f)", adx.ADX)
	case indicators.TrendNone:
		c.add(-15, "no trend strength (ADX %.1f)", adx.ADX)
	}

	if (dir == Long && adx.PlusDI > adx.MinusDI) || (dir == Short && adx.MinusDI > adx.PlusDI) {
		c.add(10, "directional index agrees")
	}
	if ich, ok := snap.Ichimoku.Get(); ok {
		if (dir == Long && snap.Price > ich.CloudTop()) || (dir == Short && snap.Price < ich.CloudBottom()) {
			c.add(10, "price beyond Ichimoku cloud")
		}
	}
	if macd, ok := snap.MACD.Get(); ok && macd.Histogram*dir.Sign() > 0 {
		c.add(10, "MACD histogram confirms")
	}
	if rsi, ok := snap.RSI.Get(); ok && ((dir == Long && rsi > 80) || (dir == Short && rsi < 20)) {
		c.add(-15, "RSI %.1f exhausted", rsi)
	}

	sig := c.signal(NameTrendFollow, dir)
	sig.Invalidation = indicators.Some(sma50)
	return withATRLevels(sig, snap, 1.5, 3.0)
}
