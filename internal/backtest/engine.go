// Package backtest simulates strategy signals on daily bars, one position at
// a time, with next-bar-open entries and stop/target/time exits.
package backtest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/swingrun/internal/domain/indicators"
	"github.com/sawpanic/swingrun/internal/domain/market"
	"github.com/sawpanic/swingrun/internal/domain/regime"
	"github.com/sawpanic/swingrun/internal/strategy"
)

// Clock interface for time operations (injectable for testing)
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using real time
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC() }

// Recorder receives run and trade events, typically a metrics registry
type Recorder interface {
	BacktestTradeClosed(strategy, exitReason string, won bool)
	BacktestRunFinished(symbol string, trades int, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) BacktestTradeClosed(string, string, bool)          {}
func (nopRecorder) BacktestRunFinished(string, int, time.Duration) {}

// Engine executes single-pass daily backtests. An Engine holds no per-run
// state and may be reused.
type Engine struct {
	config     Config
	strategies []strategy.Strategy
	clock      Clock
	recorder   Recorder
}

// NewEngine validates the config and resolves its strategy names against the registry
func NewEngine(config Config, registry *strategy.Registry) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if registry == nil {
		registry = strategy.Default()
	}
	selected, err := registry.Select(config.Strategies)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return &Engine{
		config:     config,
		strategies: selected,
		clock:      RealClock{},
		recorder:   nopRecorder{},
	}, nil
}

// SetClock sets the clock implementation (for testing)
func (e *Engine) SetClock(clock Clock) {
	e.clock = clock
}

// SetRecorder attaches a run/trade event sink
func (e *Engine) SetRecorder(r Recorder) {
	if r == nil {
		r = nopRecorder{}
	}
	e.recorder = r
}

// Config returns the validated configuration
func (e *Engine) Config() Config {
	return e.config
}

// run holds the mutable state of one pass over the bars
type run struct {
	cfg    Config
	bars   market.Series
	open   *Trade
	trades []Trade
	equity []EquityPoint
	cash   float64
	peak   float64
}

// Run walks the bars once, forward in time. The snapshot for bar i is built
// from bars.Through(i) only, and entries fill at the next bar's open.
//
// Indicators are recomputed from scratch on every flat bar, so a run costs
// O(n^2) in the number of bars with the default full prefix. Setting
// Config.IndicatorLookback caps each snapshot to the trailing window of that
// prefix and makes the run linear.
func (e *Engine) Run(ctx context.Context, bars market.Series) (*Result, error) {
	if err := bars.Validate(); err != nil {
		return nil, fmt.Errorf("backtest %s: %w", e.config.Symbol, err)
	}

	started := e.clock.Now()
	r := &run{
		cfg:  e.config,
		bars: bars,
		cash: e.config.InitialCapital,
		peak: e.config.InitialCapital,
	}

	lastSignalBar := len(bars) - 2
	for i := e.config.WarmupBars; i < len(bars); i++ {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		if r.open != nil {
			if reason, price, ok := r.checkExit(i); ok {
				e.close(r, i, price, reason)
			}
			// Exit bar or still holding: no signal search either way
			continue
		}

		if i > lastSignalBar {
			break
		}

		snap := indicators.Compute(e.prefix(bars, i))
		if !snap.ATR.Valid() {
			continue
		}
		for _, s := range e.strategies {
			if !s.IsApplicable(snap) {
				continue
			}
			sig := s.Analyze(snap)
			if !sig.Actionable() || sig.Score < e.config.MinScore || sig.Confidence < e.config.MinConfidence {
				continue
			}
			e.enter(r, i, snap, sig)
			break
		}
	}

	if r.open != nil {
		last := len(bars) - 1
		e.close(r, last, bars[last].Close, ExitEndOfData)
	}

	result := &Result{
		RunID:      uuid.NewString(),
		Config:     e.config,
		StartedAt:  started,
		FinishedAt: e.clock.Now(),
		Bars:       len(bars),
		Trades:     r.trades,
		Equity:     r.equity,
		Metrics:    ComputeMetrics(r.trades, r.equity, e.config.InitialCapital),
	}
	if result.Trades == nil {
		result.Trades = []Trade{}
	}
	if result.Equity == nil {
		result.Equity = []EquityPoint{}
	}
	if len(bars) > 0 {
		result.FirstBar = bars[0].Timestamp
		result.LastBar = bars[len(bars)-1].Timestamp
	}

	elapsed := result.FinishedAt.Sub(started)
	e.recorder.BacktestRunFinished(e.config.Symbol, len(r.trades), elapsed)
	log.Info().
		Str("run_id", result.RunID).
		Str("symbol", e.config.Symbol).
		Int("bars", len(bars)).
		Int("trades", result.Metrics.TotalTrades).
		Float64("win_rate", result.Metrics.WinRate).
		Float64("total_pnl", result.Metrics.TotalPnl).
		Float64("max_drawdown_pct", result.Metrics.MaxDrawdownPct).
		Dur("elapsed", elapsed).
		Msg("Backtest complete")

	return result, nil
}

// enter opens a position signaled on bar i at the open of bar i+1
// prefix returns the bars visible at index i, trimmed to the configured
// indicator lookback
func (e *Engine) prefix(bars market.Series, i int) market.Series {
	visible := bars.Through(i)
	if n := e.config.IndicatorLookback; n > 0 {
		return visible.Window(n)
	}
	return visible
}

func (e *Engine) enter(r *run, i int, snap indicators.Snapshot, sig strategy.Signal) {
	next := r.bars[i+1]
	sign := sig.Direction.Sign()
	atr, _ := snap.ATR.Get()

	raw := next.Open
	entry := raw * (1 + sign*r.cfg.SlippagePct/100)
	risk := r.cfg.StopATRMultiple * atr

	t := &Trade{
		Strategy:      sig.Strategy,
		Direction:     sig.Direction,
		Score:         sig.Score,
		Reasons:       sig.Reasons,
		SignalIndex:   i,
		SignalDate:    r.bars[i].Timestamp,
		SignalPrice:   r.bars[i].Close,
		EntryIndex:    i + 1,
		EntryDate:     next.Timestamp,
		RawEntryPrice: raw,
		EntryPrice:    entry,
		Shares:        r.cfg.PositionSize / entry,
		StopLoss:      entry - sign*risk,
		TargetPrice:   entry + sign*risk*r.cfg.TargetRMultiple,
		RiskAmount:    risk,
		Regime:        regime.Classify(snap),
	}
	r.open = t

	log.Debug().
		Str("symbol", r.cfg.Symbol).
		Str("strategy", t.Strategy).
		Str("direction", string(t.Direction)).
		Float64("score", t.Score).
		Time("signal_date", t.SignalDate).
		Float64("entry", t.EntryPrice).
		Float64("stop", t.StopLoss).
		Float64("target", t.TargetPrice).
		Msg("Opened position")
}

// checkExit tests bar i against the open position: stop, then target, then
// holding time. Stop and target fill at the open when the bar gaps through them.
func (r *run) checkExit(i int) (ExitReason, float64, bool) {
	t := r.open
	bar := r.bars[i]
	long := t.Direction == strategy.Long

	if r.cfg.UseStopLoss {
		if long && bar.Low <= t.StopLoss {
			return ExitStop, math.Min(bar.Open, t.StopLoss), true
		}
		if !long && bar.High >= t.StopLoss {
			return ExitStop, math.Max(bar.Open, t.StopLoss), true
		}
	}
	if r.cfg.UseTarget {
		if long && bar.High >= t.TargetPrice {
			return ExitTarget, math.Max(bar.Open, t.TargetPrice), true
		}
		if !long && bar.Low <= t.TargetPrice {
			return ExitTarget, math.Min(bar.Open, t.TargetPrice), true
		}
	}
	if i-t.EntryIndex >= r.cfg.DefaultHoldingDays {
		return ExitTime, bar.Close, true
	}
	return "", 0, false
}

// close realizes the open position at bar i and updates the equity curve
func (e *Engine) close(r *run, i int, price float64, reason ExitReason) {
	t := r.open
	r.open = nil

	out, err := CalculateOutcome(OutcomeInput{
		Direction:  string(t.Direction),
		EntryPrice: t.EntryPrice,
		ExitPrice:  price,
		Size:       t.Shares,
	})
	if err != nil {
		// Direction and entry are validated at entry; unreachable in practice
		log.Error().Err(err).Str("strategy", t.Strategy).Msg("Failed to price trade")
	}

	t.ExitIndex = i
	t.ExitDate = r.bars[i].Timestamp
	t.ExitPrice = price
	t.ExitReason = reason
	t.HoldingDays = i - t.EntryIndex
	t.PnlDollars = out.PnlDollars
	t.PnlPercent = out.PnlPercent
	t.Won = out.Result == ResultWin
	if t.RiskAmount > 0 {
		t.RMultiple = (price - t.EntryPrice) * t.Direction.Sign() / t.RiskAmount
	}

	r.cash += t.PnlDollars
	if r.cash > r.peak {
		r.peak = r.cash
	}
	dd := 0.0
	if r.peak > 0 {
		dd = (r.peak - r.cash) / r.peak * 100
	}
	r.equity = append(r.equity, EquityPoint{Date: t.ExitDate, Equity: r.cash, Peak: r.peak, DrawdownPct: dd})
	r.trades = append(r.trades, *t)

	e.recorder.BacktestTradeClosed(t.Strategy, string(reason), t.Won)
	log.Debug().
		Str("symbol", r.cfg.Symbol).
		Str("strategy", t.Strategy).
		Str("exit_reason", string(reason)).
		Int("holding_days", t.HoldingDays).
		Float64("pnl", t.PnlDollars).
		Float64("r_multiple", t.RMultiple).
		Msg("Closed position")
}
