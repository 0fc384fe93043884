// Package strategy turns indicator snapshots into directional trade signals.
// Strategies are stateless: the same snapshot always yields the same signal,
// regardless of which other strategies ran before it.
package strategy

import (
	"fmt"
	"math"

	"github.com/sawpanic/swingrun/internal/domain/indicators"
)

// Direction of a signal
type Direction string

const (
	Long  Direction = "long"
	Short Direction = "short"
	None  Direction = "none"
)

// Sign returns +1 for long, -1 for short and 0 otherwise
func (d Direction) Sign() float64 {
	switch d {
	case Long:
		return 1
	case Short:
		return -1
	default:
		return 0
	}
}

// Strategy is the capability every signal generator implements
type Strategy interface {
	Name() string
	// IsApplicable reports whether every indicator the strategy reads is present
	IsApplicable(snap indicators.Snapshot) bool
	// Analyze never fails; ambiguous conditions yield Direction None with a reason
	Analyze(snap indicators.Snapshot) Signal
}

// Signal is a strategy's verdict for one bar
type Signal struct {
	Strategy     string                       `json:"strategy"`
	Direction    Direction                    `json:"direction"`
	Score        float64                      `json:"score"`      // 0-100
	Confidence   float64                      `json:"confidence"` // score/100
	Reasons      []string                     `json:"reasons"`
	Invalidation indicators.Optional[float64] `json:"invalidation"`
	TargetPrice  indicators.Optional[float64] `json:"target_price"`
	StopLoss     indicators.Optional[float64] `json:"stop_loss"`
}

// Actionable reports whether the signal has a direction
func (s Signal) Actionable() bool {
	return s.Direction == Long || s.Direction == Short
}

// noSignal builds the first-class "nothing to do" result
func noSignal(name, reason string) Signal {
	return Signal{
		Strategy:     name,
		Direction:    None,
		Reasons:      []string{reason},
		Invalidation: indicators.None[float64](),
		TargetPrice:  indicators.None[float64](),
		StopLoss:     indicators.None[float64](),
	}
}

// scorecard accumulates condition bonuses and penalties with their reasons
type scorecard struct {
	score   float64
	reasons []string
}

func (c *scorecard) add(points float64, format string, args ...any) {
	c.score += points
	c.reasons = append(c.reasons, fmt.Sprintf("%+.0f %s", points, fmt.Sprintf(format, args...)))
}

func (c *scorecard) signal(name string, dir Direction) Signal {
	score := clampScore(c.score)
	return Signal{
		Strategy:     name,
		Direction:    dir,
		Score:        score,
		Confidence:   score / 100,
		Reasons:      c.reasons,
		Invalidation: indicators.None[float64](),
		TargetPrice:  indicators.None[float64](),
		StopLoss:     indicators.None[float64](),
	}
}

func clampScore(x float64) float64 {
	return math.Max(0, math.Min(100, x))
}

// withATRLevels attaches stop/target at the given ATR multiples when ATR is known
func withATRLevels(sig Signal, snap indicators.Snapshot, stopATR, targetATR float64) Signal {
	atr, ok := snap.ATR.Get()
	if !ok || !sig.Actionable() {
		return sig
	}
	sign := sig.Direction.Sign()
	sig.StopLoss = indicators.Some(snap.Price - sign*stopATR*atr)
	sig.TargetPrice = indicators.Some(snap.Price + sign*targetATR*atr)
	return sig
}

// trendBonus scores alignment of the signal with the moving-average stack
func trendBonus(c *scorecard, snap indicators.Snapshot, dir Direction, points float64) {
	trend, ok := snap.TrendDirection.Get()
	if !ok || trend == indicators.TrendSideways {
		return
	}
	aligned := (dir == Long && trend == indicators.TrendUp) || (dir == Short && trend == indicators.TrendDown)
	if aligned {
		c.add(points, "trend aligned (%s)", trend)
	} else {
		c.add(-points, "trend opposed (%s)", trend)
	}
}
