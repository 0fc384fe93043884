package indicators

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/swingrun/internal/domain/market"
)

func barsFromCloses(closes ...float64) market.Series {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make(market.Series, len(closes))
	for i, c := range closes {
		out[i] = market.Bar{
			Timestamp: start.AddDate(0, 0, i),
			Open:      c,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    1000,
		}
	}
	return out
}

func ramp(n int, from, step float64) market.Series {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = from + step*float64(i)
	}
	return barsFromCloses(closes...)
}

func TestSMA(t *testing.T) {
	bars := ramp(20, 1, 1)

	v, ok := SMA(bars, 20).Get()
	require.True(t, ok)
	assert.InDelta(t, 10.5, v, 1e-9)

	assert.False(t, SMA(bars, 21).Valid(), "insufficient history must be None, not zero")
}

func TestEMA_ConstantSeries(t *testing.T) {
	bars := market.Flat(30, 42, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	v, ok := EMA(bars, 9).Get()
	require.True(t, ok)
	assert.InDelta(t, 42.0, v, 1e-9)
	assert.False(t, EMA(bars[:8], 9).Valid())
}

func TestRSI(t *testing.T) {
	tests := []struct {
		name  string
		bars  market.Series
		want  float64
		valid bool
	}{
		{name: "all_gains", bars: ramp(30, 100, 1), want: 100, valid: true},
		{name: "all_losses", bars: ramp(30, 100, -1), want: 0, valid: true},
		{name: "flat", bars: ramp(30, 100, 0), want: 50, valid: true},
		{name: "insufficient", bars: ramp(14, 100, 1), valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := RSI(tt.bars, RSIPeriod).Get()
			assert.Equal(t, tt.valid, ok)
			if tt.valid {
				assert.InDelta(t, tt.want, v, 1e-9)
			}
		})
	}
}

func TestRSI_Bounded(t *testing.T) {
	bars := market.Synthetic(market.DefaultSyntheticConfig())
	for i := 20; i < len(bars); i += 7 {
		v, ok := RSI(bars.Through(i), RSIPeriod).Get()
		require.True(t, ok)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 100.0)
	}
}

func TestATR(t *testing.T) {
	bars := ramp(20, 100, 0) // high-low = 2 on every bar

	v, ok := ATR(bars, ATRPeriod).Get()
	require.True(t, ok)
	assert.InDelta(t, 2.0, v, 1e-9)

	pct, ok := ATRPercent(bars, ATRPeriod).Get()
	require.True(t, ok)
	assert.InDelta(t, 2.0, pct, 1e-9)

	assert.False(t, ATR(bars[:14], ATRPeriod).Valid())
}

func TestTrueRange_UsesPreviousClose(t *testing.T) {
	cur := market.Bar{High: 105, Low: 103, Close: 104}
	assert.InDelta(t, 5.0, TrueRange(cur, 100), 1e-9) // gap up: high - prevClose
	assert.InDelta(t, 2.0, TrueRange(cur, 104), 1e-9)
}

func TestADX_StrongUptrend(t *testing.T) {
	bars := ramp(60, 100, 2)

	res, ok := ADX(bars, ADXPeriod).Get()
	require.True(t, ok)
	assert.Greater(t, res.PlusDI, res.MinusDI)
	assert.InDelta(t, 100.0, res.ADX, 1e-6)
	assert.Equal(t, TrendStrong, res.Strength)

	assert.False(t, ADX(bars[:28], ADXPeriod).Valid())
	assert.True(t, ADX(bars[:29], ADXPeriod).Valid())
}

func TestClassifyADX(t *testing.T) {
	assert.Equal(t, TrendStrong, ClassifyADX(40))
	assert.Equal(t, TrendModerate, ClassifyADX(25))
	assert.Equal(t, TrendWeak, ClassifyADX(15))
	assert.Equal(t, TrendNone, ClassifyADX(14.9))
}

func TestMACD(t *testing.T) {
	rising := ramp(60, 100, 1)

	res, ok := MACD(rising, MACDFast, MACDSlow, MACDSignal).Get()
	require.True(t, ok)
	assert.Greater(t, res.MACD, 0.0)
	assert.InDelta(t, res.MACD-res.Signal, res.Histogram, 1e-12)

	assert.False(t, MACD(rising[:33], MACDFast, MACDSlow, MACDSignal).Valid())
	assert.True(t, MACD(rising[:34], MACDFast, MACDSlow, MACDSignal).Valid())
}

func TestMACD_BullishCross(t *testing.T) {
	closes := make([]float64, 0, 80)
	for i := 0; i < 60; i++ {
		closes = append(closes, 200-0.03*float64(i*i)) // accelerating decline keeps the histogram negative
	}
	bars := barsFromCloses(closes...)

	found := false
	for i := 0; i < 20 && !found; i++ {
		closes = append(closes, closes[len(closes)-1]+8)
		bars = barsFromCloses(closes...)
		res, ok := MACD(bars, MACDFast, MACDSlow, MACDSignal).Get()
		require.True(t, ok)
		if res.Cross == CrossBullish {
			found = true
			assert.Greater(t, res.Histogram, 0.0)
		}
	}
	assert.True(t, found, "sharp reversal should produce a bullish crossover")
}

func TestStochastic(t *testing.T) {
	bars := ramp(20, 100, 1)
	// close sits 1 below the window high, low is 15 below the close
	res, ok := Stochastic(bars, StochK, StochD).Get()
	require.True(t, ok)
	assert.Greater(t, res.K, 90.0)
	assert.LessOrEqual(t, res.K, 100.0)
	assert.False(t, Stochastic(bars[:15], StochK, StochD).Valid())
}

func TestBollinger(t *testing.T) {
	flat := ramp(20, 50, 0)
	res, ok := Bollinger(flat, 20, 2).Get()
	require.True(t, ok)
	assert.InDelta(t, 50.0, res.Middle, 1e-9)
	assert.InDelta(t, res.Upper, res.Lower, 1e-9)
	assert.InDelta(t, 0.5, res.PercentB, 1e-9)

	rising := ramp(20, 50, 1)
	res, ok = Bollinger(rising, 20, 2).Get()
	require.True(t, ok)
	assert.Greater(t, res.PercentB, 0.5)
	assert.InDelta(t, (rising[19].Close-res.Lower)/(res.Upper-res.Lower), res.PercentB, 1e-12)
}

func TestVWAP(t *testing.T) {
	bars := barsFromCloses(10, 20)
	bars[1].Volume = 3000

	v, ok := VWAP(bars, 0).Get()
	require.True(t, ok)
	// typical prices equal closes here: (10*1000 + 20*3000) / 4000
	assert.InDelta(t, 17.5, v, 1e-9)
}

func TestSwingPointsAndClusters(t *testing.T) {
	bars := barsFromCloses(100, 101, 105, 101, 100, 99, 95, 99, 100, 101, 105.3, 101, 100)

	assert.Equal(t, []int{2, 10}, SwingHighs(bars, 2))
	assert.Equal(t, []int{6}, SwingLows(bars, 2))

	levels := ClusterLevels([]float64{106, 106.3, 110}, 0.005)
	require.Len(t, levels, 2)
	assert.Equal(t, 2, levels[0].Touches)
	assert.InDelta(t, 106.15, levels[0].Price, 1e-9)
	assert.Equal(t, 1, levels[1].Touches)
}

func TestClusterLevelsIgnoresNonPositivePrices(t *testing.T) {
	levels := ClusterLevels([]float64{0, 0, 50, 50.1, math.NaN(), -3}, 0.01)
	require.Len(t, levels, 1)
	assert.Equal(t, 2, levels[0].Touches)
	assert.InDelta(t, 50.05, levels[0].Price, 1e-9)
	assert.False(t, math.IsNaN(levels[0].Price))

	assert.Empty(t, ClusterLevels([]float64{0, -1}, 0.01))
}

func TestSupportResistance(t *testing.T) {
	bars := barsFromCloses(100, 101, 105, 101, 100, 99, 95, 99, 100, 101, 105.3, 101, 100)

	res, ok := SupportResistance(bars).Get()
	require.True(t, ok)

	support, ok := res.Support.Get()
	require.True(t, ok)
	assert.InDelta(t, 94.0, support, 1e-9) // swing low bar has low = close - 1

	resistance, ok := res.Resistance.Get()
	require.True(t, ok)
	assert.InDelta(t, (106+106.3)/2, resistance, 1e-9)
}

func TestVolumeRatioAndPriorRange(t *testing.T) {
	bars := ramp(21, 100, 1)
	bars[20].Volume = 2000

	ratio, ok := VolumeRatio(bars, 20).Get()
	require.True(t, ok)
	assert.InDelta(t, 2.0, ratio, 1e-9)

	hi, lo := PriorRange(bars, 20)
	h, ok := hi.Get()
	require.True(t, ok)
	assert.InDelta(t, 120.0, h, 1e-9) // bar 19 high, excluding the latest bar
	l, _ := lo.Get()
	assert.InDelta(t, 99.0, l, 1e-9)
}

func TestIchimoku(t *testing.T) {
	bars := ramp(78, 100, 1)
	res, ok := Ichimoku(bars).Get()
	require.True(t, ok)
	assert.Greater(t, res.Tenkan, res.Kijun, "faster midpoint leads in an uptrend")
	assert.Greater(t, bars[77].Close, res.CloudTop())
	assert.False(t, Ichimoku(bars[:77]).Valid())
}

func TestCompute_InsufficientHistoryIsNone(t *testing.T) {
	s := Compute(ramp(10, 100, 1))

	assert.Equal(t, 10, s.Bars)
	assert.Equal(t, 109.0, s.Price)
	assert.False(t, s.SMA20.Valid())
	assert.False(t, s.SMA50.Valid())
	assert.False(t, s.TrendDirection.Valid())
	assert.False(t, s.ADX.Valid())
	assert.True(t, s.EMA9.Valid())
}

func TestCompute_FullHistory(t *testing.T) {
	bars := market.Synthetic(market.DefaultSyntheticConfig())
	s := Compute(bars)

	assert.True(t, s.SMA50.Valid())
	assert.True(t, s.RSI.Valid())
	assert.True(t, s.MACD.Valid())
	assert.True(t, s.ATR.Valid())
	assert.True(t, s.Bollinger.Valid())
	assert.True(t, s.ADX.Valid())
	assert.True(t, s.Ichimoku.Valid())
	assert.True(t, s.TrendDirection.Valid())
	assert.Equal(t, bars[len(bars)-1].Timestamp, s.Timestamp)
}

func TestCompute_Uptrend(t *testing.T) {
	s := Compute(ramp(60, 100, 1))
	dir, ok := s.TrendDirection.Get()
	require.True(t, ok)
	assert.Equal(t, TrendUp, dir)
}

func TestOptional_JSON(t *testing.T) {
	type payload struct {
		A Optional[float64] `json:"a"`
		B Optional[float64] `json:"b"`
	}

	data, err := json.Marshal(payload{A: Some(1.5), B: None[float64]()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1.5,"b":null}`, string(data))

	var back payload
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, 1.5, back.A.OrElse(0))
	assert.False(t, back.B.Valid())
}
