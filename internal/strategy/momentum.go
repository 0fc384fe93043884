package strategy

import (
	"fmt"

	"github.com/sawpanic/swingrun/internal/domain/indicators"
)

// NameMomentum identifies the momentum strategy
const NameMomentum = "momentum"

// Momentum trades RSI and MACD agreeing on direction
type Momentum struct{}

// NewMomentum creates the momentum strategy
func NewMomentum() *Momentum { return &Momentum{} }

func (m *Momentum) Name() string { return NameMomentum }

func (m *Momentum) IsApplicable(snap indicators.Snapshot) bool {
	return snap.RSI.Valid() && snap.MACD.Valid()
}

func (m *Momentum) Analyze(snap indicators.Snapshot) Signal {
	rsi, okRSI := snap.RSI.Get()
	macd, okMACD := snap.MACD.Get()
	if !okRSI || !okMACD {
		return noSignal(NameMomentum, "insufficient history for RSI/MACD")
	}

	var dir Direction
	switch {
	case rsi > 50 && macd.MACD > macd.Signal:
		dir = Long
	case rsi < 50 && macd.MACD < macd.Signal:
		dir = Short
	default:
		return noSignal(NameMomentum, fmt.Sprintf("RSI %.1f and MACD disagree on direction", rsi))
	}

	c := &scorecard{}
	c.add(40, "RSI %.1f and MACD aligned %s", rsi, dir)

	if (dir == Long && macd.Cross == indicators.CrossBullish) || (dir == Short && macd.Cross == indicators.CrossBearish) {
		c.add(15, "fresh MACD/signal crossover")
	}

	trendBonus(c, snap, dir, 20)

	if ratio, ok := snap.VolumeRatio.Get(); ok && ratio >= 1.5 {
		c.add(10, "volume %.1fx average", ratio)
	}
	if adx, ok := snap.ADX.Get(); ok && adx.ADX >= 25 {
		c.add(10, "ADX %.1f confirms trend strength", adx.ADX)
	}
	if (dir == Long && rsi > 70) || (dir == Short && rsi < 30) {
		c.add(-10, "RSI %.1f overextended", rsi)
	}

	sig := c.signal(NameMomentum, dir)
	if sma20, ok := snap.SMA20.Get(); ok {
		sig.Invalidation = indicators.Some(sma20)
	}
	return withATRLevels(sig, snap, 1.5, 3.0)
}
