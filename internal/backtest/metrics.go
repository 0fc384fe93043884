package backtest

import (
	"math"
	"strconv"
)

// Breakdown aggregates trades sharing a strategy, year, or regime label
type Breakdown struct {
	Trades   int     `json:"trades"`
	Wins     int     `json:"wins"`
	WinRate  float64 `json:"win_rate"`
	TotalPnl float64 `json:"total_pnl"`
	AvgR     float64 `json:"avg_r"`
	sumR     float64
}

// Metrics summarises a backtest run. Rates are fractions in [0,1]; returns
// and drawdowns are percentages.
type Metrics struct {
	TotalTrades          int     `json:"total_trades"`
	Wins                 int     `json:"wins"`
	Losses               int     `json:"losses"`
	WinRate              float64 `json:"win_rate"`
	GrossProfit          float64 `json:"gross_profit"`
	GrossLoss            float64 `json:"gross_loss"`
	ProfitFactor         Ratio   `json:"profit_factor"`
	TotalPnl             float64 `json:"total_pnl"`
	TotalReturnPct       float64 `json:"total_return_pct"`
	Expectancy           float64 `json:"expectancy"` // mean dollars per trade
	AvgR                 float64 `json:"avg_r"`
	AvgWinR              float64 `json:"avg_win_r"`
	AvgLossR             float64 `json:"avg_loss_r"`
	AvgHoldingDays       float64 `json:"avg_holding_days"`
	MaxDrawdownPct       float64 `json:"max_drawdown_pct"`
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"`
	FinalEquity          float64 `json:"final_equity"`

	ExitReasons map[ExitReason]int   `json:"exit_reasons"`
	ByStrategy  map[string]Breakdown `json:"by_strategy"`
	ByYear      map[string]Breakdown `json:"by_year"`
	ByRegime    map[string]Breakdown `json:"by_regime"`
}

// ComputeMetrics reduces the closed trade list and the recorded equity curve.
// Regime breakdowns use the tag stored on each trade at signal time.
func ComputeMetrics(trades []Trade, equity []EquityPoint, initialCapital float64) Metrics {
	m := Metrics{
		ExitReasons: make(map[ExitReason]int),
		ByStrategy:  make(map[string]Breakdown),
		ByYear:      make(map[string]Breakdown),
		ByRegime:    make(map[string]Breakdown),
		FinalEquity: initialCapital,
	}

	var sumR, sumWinR, sumLossR float64
	var holding int
	streak := 0

	for _, t := range trades {
		m.TotalTrades++
		m.TotalPnl += t.PnlDollars
		m.ExitReasons[t.ExitReason]++
		sumR += t.RMultiple
		holding += t.HoldingDays

		if t.Won {
			m.Wins++
			m.GrossProfit += t.PnlDollars
			sumWinR += t.RMultiple
			streak = 0
		} else {
			m.Losses++
			if t.PnlDollars < 0 {
				m.GrossLoss += t.PnlDollars
			}
			sumLossR += t.RMultiple
			streak++
			if streak > m.MaxConsecutiveLosses {
				m.MaxConsecutiveLosses = streak
			}
		}

		accumulate(m.ByStrategy, t.Strategy, t)
		accumulate(m.ByYear, strconv.Itoa(t.SignalDate.Year()), t)
		for _, label := range t.Regime.Labels() {
			accumulate(m.ByRegime, label, t)
		}
	}

	m.ProfitFactor = profitFactor(m.GrossProfit, m.GrossLoss)

	if m.TotalTrades > 0 {
		n := float64(m.TotalTrades)
		m.WinRate = float64(m.Wins) / n
		m.AvgR = sumR / n
		m.Expectancy = m.TotalPnl / n
		m.AvgHoldingDays = float64(holding) / n
	}
	if m.Wins > 0 {
		m.AvgWinR = sumWinR / float64(m.Wins)
	}
	if m.Losses > 0 {
		m.AvgLossR = sumLossR / float64(m.Losses)
	}
	if initialCapital > 0 {
		m.TotalReturnPct = m.TotalPnl / initialCapital * 100
	}

	for _, p := range equity {
		if p.DrawdownPct > m.MaxDrawdownPct {
			m.MaxDrawdownPct = p.DrawdownPct
		}
	}
	if len(equity) > 0 {
		m.FinalEquity = equity[len(equity)-1].Equity
	}

	finalize(m.ByStrategy)
	finalize(m.ByYear)
	finalize(m.ByRegime)
	return m
}

// profitFactor is gross profit over absolute gross loss; infinite with
// profits and no losses, zero otherwise
func profitFactor(grossProfit, grossLoss float64) Ratio {
	if grossLoss == 0 {
		if grossProfit > 0 {
			return Ratio(math.Inf(1))
		}
		return 0
	}
	return Ratio(grossProfit / math.Abs(grossLoss))
}

func accumulate(into map[string]Breakdown, key string, t Trade) {
	b := into[key]
	b.Trades++
	if t.Won {
		b.Wins++
	}
	b.TotalPnl += t.PnlDollars
	b.sumR += t.RMultiple
	into[key] = b
}

func finalize(m map[string]Breakdown) {
	for k, b := range m {
		if b.Trades > 0 {
			b.WinRate = float64(b.Wins) / float64(b.Trades)
			b.AvgR = b.sumR / float64(b.Trades)
		}
		b.sumR = 0
		m[k] = b
	}
}
