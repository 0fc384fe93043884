package strategy

import (
	"fmt"

	"github.com/sawpanic/swingrun/internal/domain/indicators"
)

// NameMeanReversion identifies the mean-reversion strategy
const NameMeanReversion = "mean_reversion"

// MeanReversion fades RSI / Bollinger extremes back toward the 20-day mean
type MeanReversion struct{}

// NewMeanReversion creates the mean-reversion strategy
func NewMeanReversion() *MeanReversion { return &MeanReversion{} }

func (m *MeanReversion) Name() string { return NameMeanReversion }

func (m *MeanReversion) IsApplicable(snap indicators.Snapshot) bool {
	return snap.RSI.Valid() && snap.Bollinger.Valid() && snap.SMA20.Valid()
}

func (m *MeanReversion) Analyze(snap indicators.Snapshot) Signal {
	rsi, okRSI := snap.RSI.Get()
	bb, okBB := snap.Bollinger.Get()
	sma20, okSMA := snap.SMA20.Get()
	if !okRSI || !okBB || !okSMA {
		return noSignal(NameMeanReversion, "insufficient history for RSI/Bollinger")
	}

	oversold := rsi < 30 || bb.PercentB < 0
	overbought := rsi > 70 || bb.PercentB > 1

	var dir Direction
	switch {
	case oversold && !overbought:
		dir = Long
	case overbought && !oversold:
		dir = Short
	default:
		return noSignal(NameMeanReversion, fmt.Sprintf("no stretch to fade (RSI %.1f, %%B %.2f)", rsi, bb.PercentB))
	}

	c := &scorecard{}
	c.add(40, "stretched %s (RSI %.1f, %%B %.2f)", map[Direction]string{Long: "oversold", Short: "overbought"}[dir], rsi, bb.PercentB)

	if (dir == Long && rsi < 30 && bb.PercentB < 0) || (dir == Short && rsi > 70 && bb.PercentB > 1) {
		c.add(20, "RSI and Bollinger both extreme")
	}
	if st, ok := snap.Stochastic.Get(); ok && ((dir == Long && st.K < 20) || (dir == Short && st.K > 80)) {
		c.add(10, "stochastic %%K %.1f confirms", st.K)
	}
	if lv, ok := snap.Levels.Get(); ok && dir == Long {
		if support, ok := lv.Support.Get(); ok && (snap.Price-support)/snap.Price <= 0.02 {
			c.add(10, "near support %.2f", support)
		}
	}
	if lv, ok := snap.Levels.Get(); ok && dir == Short {
		if resistance, ok := lv.Resistance.Get(); ok && (resistance-snap.Price)/snap.Price <= 0.02 {
			c.add(10, "near resistance %.2f", resistance)
		}
	}
	if adx, ok := snap.ADX.Get(); ok && adx.Strength == indicators.TrendStrong {
		c.add(-25, "fading a strong trend (ADX %.1f)", adx.ADX)
	}

	sig := c.signal(NameMeanReversion, dir)
	sig = withATRLevels(sig, snap, 1.5, 2.0)
	sig.TargetPrice = indicators.Some(sma20)
	if dir == Long {
		sig.Invalidation = indicators.Some(bb.Lower)
	} else {
		sig.Invalidation = indicators.Some(bb.Upper)
	}
	return sig
}
