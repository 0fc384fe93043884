package strategy

import (
	"github.com/sawpanic/swingrun/internal/domain/indicators"
)

// NameBreakout identifies the breakout strategy
const NameBreakout = "breakout"

// Breakout trades closes beyond the prior 20-day range on expanding volume
type Breakout struct{}

// NewBreakout creates the breakout strategy
func NewBreakout() *Breakout { return &Breakout{} }

func (b *Breakout) Name() string { return NameBreakout }

func (b *Breakout) IsApplicable(snap indicators.Snapshot) bool {
	return snap.PriorHigh.Valid() && snap.PriorLow.Valid() && snap.ATR.Valid() && snap.VolumeRatio.Valid()
}

func (b *Breakout) Analyze(snap indicators.Snapshot) Signal {
	hi, okHi := snap.PriorHigh.Get()
	lo, okLo := snap.PriorLow.Get()
	atr, okATR := snap.ATR.Get()
	ratio, okVol := snap.VolumeRatio.Get()
	if !okHi || !okLo || !okATR || !okVol {
		return noSignal(NameBreakout, "insufficient history for 20-day range")
	}

	var dir Direction
	var level float64
	switch {
	case snap.Price > hi:
		dir, level = Long, hi
	case snap.Price < lo:
		dir, level = Short, lo
	default:
		return noSignal(NameBreakout, "price inside prior 20-day range")
	}

	c := &scorecard{}
	c.add(45, "close through 20-day level %.2f", level)

	switch {
	case ratio >= 1.5:
		c.add(20, "volume %.1fx average", ratio)
	case ratio >= 1.2:
		c.add(10, "volume %.1fx average", ratio)
	case ratio < 1.0:
		c.add(-10, "breakout on below-average volume (%.1fx)", ratio)
	}

	if atr > 0 {
		if depth := (snap.Price - level) * dir.Sign() / atr; depth >= 0.5 {
			c.add(10, "decisive close %.1f ATR beyond level", depth)
		}
	}

	trendBonus(c, snap, dir, 15)

	if adx, ok := snap.ADX.Get(); ok && adx.Strength == indicators.TrendStrong {
		c.add(10, "strong ADX %.1f", adx.ADX)
	}
	if bb, ok := snap.Bollinger.Get(); ok && ((dir == Long && bb.PercentB > 1) || (dir == Short && bb.PercentB < 0)) {
		c.add(5, "close outside Bollinger band")
	}

	sig := c.signal(NameBreakout, dir)
	sig.Invalidation = indicators.Some(level)
	return withATRLevels(sig, snap, 1.5, 3.0)
}
