package backtest

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/swingrun/internal/domain/regime"
)

func closedTrade(name string, year int, pnl, r float64, tag regime.Tag) Trade {
	return Trade{
		Strategy:    name,
		SignalDate:  time.Date(year, 3, 1, 0, 0, 0, 0, time.UTC),
		PnlDollars:  pnl,
		RMultiple:   r,
		Won:         pnl > 0,
		HoldingDays: 4,
		ExitReason:  ExitTime,
		Regime:      tag,
	}
}

func TestComputeMetrics(t *testing.T) {
	trending := regime.Tag{Trend: regime.Trending, Volatility: regime.HighVol}
	choppy := regime.Tag{Trend: regime.Choppy, Volatility: regime.LowVol}

	trades := []Trade{
		closedTrade("momentum", 2023, 200, 2, trending),
		closedTrade("momentum", 2023, -100, -1, choppy),
		closedTrade("breakout", 2024, -50, -0.5, choppy),
		closedTrade("breakout", 2024, 300, 3, trending),
	}
	equity := []EquityPoint{
		{Equity: 100200, Peak: 100200},
		{Equity: 100100, Peak: 100200, DrawdownPct: 0.0998},
		{Equity: 100050, Peak: 100200, DrawdownPct: 0.1497},
		{Equity: 100350, Peak: 100350},
	}

	m := ComputeMetrics(trades, equity, 100000)

	assert.Equal(t, 4, m.TotalTrades)
	assert.Equal(t, 2, m.Wins)
	assert.Equal(t, 2, m.Losses)
	assert.Equal(t, 0.5, m.WinRate)
	assert.Equal(t, 500.0, m.GrossProfit)
	assert.Equal(t, -150.0, m.GrossLoss)
	assert.InDelta(t, 500.0/150.0, float64(m.ProfitFactor), 1e-12)
	assert.Equal(t, 350.0, m.TotalPnl)
	assert.InDelta(t, 0.35, m.TotalReturnPct, 1e-12)
	assert.InDelta(t, 87.5, m.Expectancy, 1e-12)
	assert.InDelta(t, 0.875, m.AvgR, 1e-12)
	assert.InDelta(t, 2.5, m.AvgWinR, 1e-12)
	assert.InDelta(t, -0.75, m.AvgLossR, 1e-12)
	assert.Equal(t, 4.0, m.AvgHoldingDays)
	assert.Equal(t, 2, m.MaxConsecutiveLosses)
	assert.Equal(t, 0.1497, m.MaxDrawdownPct)
	assert.Equal(t, 100350.0, m.FinalEquity)
	assert.Equal(t, 4, m.ExitReasons[ExitTime])

	require.Contains(t, m.ByStrategy, "momentum")
	assert.Equal(t, 2, m.ByStrategy["momentum"].Trades)
	assert.Equal(t, 0.5, m.ByStrategy["momentum"].WinRate)
	assert.InDelta(t, 0.5, m.ByStrategy["momentum"].AvgR, 1e-12)

	assert.Equal(t, 250.0, m.ByYear["2024"].TotalPnl)
	assert.Equal(t, 100.0, m.ByYear["2023"].TotalPnl)

	assert.Equal(t, 2, m.ByRegime["trending"].Trades)
	assert.Equal(t, 1.0, m.ByRegime["trending"].WinRate)
	assert.Equal(t, 2, m.ByRegime["high_vol"].Trades)
	assert.Equal(t, 0.0, m.ByRegime["choppy"].WinRate)
	assert.Equal(t, 2, m.ByRegime["low_vol"].Trades)
}

func TestProfitFactorEdgeCases(t *testing.T) {
	assert.True(t, math.IsInf(float64(profitFactor(100, 0)), 1))
	assert.Equal(t, Ratio(0), profitFactor(0, 0))
	assert.Equal(t, Ratio(0), profitFactor(0, -50))
	assert.Equal(t, Ratio(2), profitFactor(100, -50))
}

func TestRatioJSON(t *testing.T) {
	b, err := json.Marshal(Ratio(math.Inf(1)))
	require.NoError(t, err)
	assert.Equal(t, `"Infinity"`, string(b))

	var r Ratio
	require.NoError(t, json.Unmarshal(b, &r))
	assert.True(t, math.IsInf(float64(r), 1))

	b, err = json.Marshal(Ratio(1.5))
	require.NoError(t, err)
	assert.Equal(t, `1.5`, string(b))
}

func TestConsecutiveLossStreakResetsOnWin(t *testing.T) {
	tag := regime.Tag{Trend: regime.Choppy, Volatility: regime.LowVol}
	var trades []Trade
	for _, pnl := range []float64{-1, -1, 5, -1, -1, -1, 2, -1} {
		trades = append(trades, closedTrade("x", 2024, pnl, pnl, tag))
	}
	m := ComputeMetrics(trades, nil, 1000)
	assert.Equal(t, 3, m.MaxConsecutiveLosses)
	assert.Equal(t, 1000.0, m.FinalEquity)
}
