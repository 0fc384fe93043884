package calibration

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/swingrun/internal/data"
	"github.com/sawpanic/swingrun/internal/domain/market"
	"github.com/sawpanic/swingrun/internal/strategy"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var trainTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type recorderSpy struct {
	calls   int
	samples int
	applied bool
}

func (r *recorderSpy) CalibrationFinished(samples int, applied bool, _ time.Duration) {
	r.calls++
	r.samples = samples
	r.applied = applied
}

func samplesFor(strat, reg string, n, hits int, score, winRet, lossRet float64) []Sample {
	out := make([]Sample, n)
	for i := range out {
		s := Sample{Symbol: "X", Index: i, Strategy: strat, Regime: reg, Score: score}
		if i < hits {
			s.Hit, s.ReturnPct = true, winRet
		} else {
			s.ReturnPct = lossRet
		}
		out[i] = s
	}
	return out
}

func TestConfidenceFactor(t *testing.T) {
	assert.InDelta(t, 1.08, ConfidenceFactor(0.58, 892), 1e-9)
	assert.Equal(t, 1.0, ConfidenceFactor(0.58, 150))
	assert.Equal(t, 1.0, ConfidenceFactor(0.9, MinSampleSizePerBucket-1))
	assert.Equal(t, 1.5, ConfidenceFactor(1.0, 1000))
	assert.Equal(t, 0.5, ConfidenceFactor(0.0, 1000))
}

func TestStrategyWeight_Clamped(t *testing.T) {
	assert.InDelta(t, 1.3, StrategyWeight(0.6, 2), 1e-9)
	assert.Equal(t, 1.5, StrategyWeight(0.9, 10))
	assert.Equal(t, 0.5, StrategyWeight(0.1, -10))
}

func TestBucketIndex(t *testing.T) {
	assert.Equal(t, 0, BucketIndex(0))
	assert.Equal(t, 0, BucketIndex(9.99))
	assert.Equal(t, 5, BucketIndex(55))
	assert.Equal(t, 9, BucketIndex(99.5))
	assert.Equal(t, 9, BucketIndex(100))
	assert.Equal(t, 0, BucketIndex(-3))
}

func TestReduce_BucketSupport(t *testing.T) {
	var samples []Sample
	samples = append(samples, samplesFor("trend_follow", "normal", 1000, 580, 55, 1, -1)...)
	samples = append(samples, samplesFor("trend_follow", "normal", 150, 120, 75, 1, -1)...)

	red := Reduce(samples)
	require.Len(t, red.Curve, BucketCount)

	supported := red.Curve[5]
	assert.Equal(t, 50, supported.ScoreBucketMin)
	assert.Equal(t, 59, supported.ScoreBucketMax)
	assert.Equal(t, 1000, supported.SampleSize)
	assert.InDelta(t, 0.58, supported.WinRate, 1e-9)
	assert.InDelta(t, 1.08, supported.ConfidenceFactor, 1e-9)

	thin := red.Curve[7]
	assert.Equal(t, 150, thin.SampleSize)
	assert.Equal(t, 1.0, thin.ConfidenceFactor)

	empty := red.Curve[0]
	assert.Zero(t, empty.SampleSize)
	assert.Equal(t, 1.0, empty.ConfidenceFactor)
}

func TestReduce_WeightsFavorWinningStrategy(t *testing.T) {
	var samples []Sample
	samples = append(samples, samplesFor("trend_follow", "normal", 100, 80, 55, 10, -1)...)
	samples = append(samples, samplesFor("mean_reversion", "normal", 100, 20, 55, 1, -10)...)

	red := Reduce(samples)
	assert.InDelta(t, 0.5, red.Base.WinRate, 1e-9)
	assert.Equal(t, 1.5, red.Weights["trend_follow"]["normal"])
	assert.Equal(t, 0.5, red.Weights["mean_reversion"]["normal"])
	assert.InDelta(t, 0.65, red.Calibrated.WinRate, 1e-9)

	cmp := Gate(red)
	assert.True(t, cmp.CalibrationApplied)
	assert.Contains(t, cmp.Reason, "beats")
}

func TestGate_TieAndRegressionReject(t *testing.T) {
	tie := Reduction{
		Base:       Stats{N: 10, WinRate: 0.55, AvgReturn: 0.4},
		Calibrated: Stats{N: 10, WinRate: 0.55, AvgReturn: 0.9},
	}
	assert.False(t, Gate(tie).CalibrationApplied)

	worse := Reduction{
		Base:       Stats{N: 10, WinRate: 0.55},
		Calibrated: Stats{N: 10, WinRate: 0.54},
	}
	cmp := Gate(worse)
	assert.False(t, cmp.CalibrationApplied)
	assert.Contains(t, cmp.Reason, "rejected")
}

func TestProfile_RejectClearsAdjustments(t *testing.T) {
	p := &Profile{
		SchemaVersion:    SchemaVersion,
		Benchmark:        BenchmarkComparison{CalibrationApplied: true},
		StrategyWeights:  Weights{"trend_follow": {"normal": 1.2}},
		CalibrationCurve: []Bucket{{ConfidenceFactor: 1.1}},
	}
	require.NoError(t, p.Check())

	p.reject("regressed")
	assert.False(t, p.Applied())
	assert.Empty(t, p.StrategyWeights)
	assert.Empty(t, p.CalibrationCurve)
	assert.NoError(t, p.Check())

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"strategyWeights":{}`)
	assert.Contains(t, string(raw), `"calibrationCurve":[]`)
}

func TestProfile_CheckRejectsInconsistent(t *testing.T) {
	p := &Profile{SchemaVersion: SchemaVersion, StrategyWeights: Weights{"x": {"normal": 1}}}
	assert.Error(t, p.Check())

	p = EmptyProfile("none", trainTime)
	p.SchemaVersion = 2
	assert.Error(t, p.Check())
}

func TestGenerateCandidate(t *testing.T) {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

	_, ok := GenerateCandidate(market.Flat(50, 100, start))
	assert.False(t, ok, "needs 51 bars")

	_, ok = GenerateCandidate(market.Flat(80, 100, start))
	assert.False(t, ok, "flat prices produce neither a cross nor an extreme")

	// steady decline: RSI pinned at 0, no SMA cross
	falling := market.Flat(80, 100, start)
	for i := range falling {
		p := 200 - float64(i)
		falling[i].Open, falling[i].High, falling[i].Low, falling[i].Close = p, p, p, p
	}
	c, ok := GenerateCandidate(falling)
	require.True(t, ok)
	assert.Equal(t, strategy.NameMeanReversion, c.Strategy)
	assert.Equal(t, strategy.Long, c.Direction)
	assert.Equal(t, 100.0, c.Score)
}

func TestCollectSymbol_Horizon(t *testing.T) {
	cfg := DefaultConfig()
	bars := market.Synthetic(market.SyntheticConfig{
		Bars: 300, StartPrice: 100, Drift: 0.0005, Volatility: 0.015,
		CycleBars: 30, CycleAmp: 0.08, Seed: 3,
	})

	samples := CollectSymbol("abc", bars, cfg)
	require.NotEmpty(t, samples)
	for _, s := range samples {
		assert.GreaterOrEqual(t, s.Index, cfg.WarmupBars)
		assert.Less(t, s.Index+1+cfg.HoldDays, len(bars))

		entry := bars[s.Index+1].Open
		exit := bars[s.Index+1+cfg.HoldDays].Close
		c, ok := GenerateCandidate(bars.Through(s.Index))
		require.True(t, ok)
		assert.InDelta(t, (exit-entry)/entry*100*c.Direction.Sign(), s.ReturnPct, 1e-9)
		assert.Equal(t, s.ReturnPct > 0, s.Hit)
		assert.Equal(t, bars[s.Index].Timestamp, s.SignalDate)
	}
}

func syntheticUniverse(t *testing.T, n int) (*data.MemorySource, []string) {
	t.Helper()
	src := data.NewMemorySource()
	var universe []string
	for i := 0; i < n; i++ {
		sym := fmt.Sprintf("SYM%d", i)
		src.Put(sym, market.Synthetic(market.SyntheticConfig{
			Bars: 400, StartPrice: 50 + float64(i)*10, Drift: 0.0004, Volatility: 0.014,
			CycleBars: 30 + i*5, CycleAmp: 0.07, Seed: int64(100 + i),
		}))
		universe = append(universe, sym)
	}
	return src, universe
}

func newTrainer(t *testing.T, src data.BarSource, workers int) *Trainer {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Workers = workers
	tr, err := NewTrainer(cfg, src)
	require.NoError(t, err)
	tr.SetClock(fixedClock{trainTime})
	return tr
}

func TestTrainer_ProfileInvariants(t *testing.T) {
	src, universe := syntheticUniverse(t, 4)
	src.Put("SHORT", market.Synthetic(market.SyntheticConfig{Bars: 100, StartPrice: 10, Seed: 9}))
	universe = append(universe, "short", "missing", "SYM0")

	tr := newTrainer(t, src, 3)
	spy := &recorderSpy{}
	tr.SetRecorder(spy)

	p, err := tr.Train(context.Background(), universe)
	require.NoError(t, err)
	require.NoError(t, p.Check())

	assert.Equal(t, []string{"SYM0", "SYM1", "SYM2", "SYM3", "SHORT", "MISSING"}, p.Universe)
	assert.Equal(t, SkipInsufficient, p.SkippedSymbols["SHORT"])
	assert.Equal(t, SkipFetchFailed, p.SkippedSymbols["MISSING"])
	assert.Len(t, p.SymbolSamples, 4)

	total := 0
	for _, n := range p.SymbolSamples {
		total += n
	}
	assert.Equal(t, p.SampleCount, total)
	assert.Positive(t, p.SampleCount)

	if p.Applied() {
		assert.Len(t, p.CalibrationCurve, BucketCount)
		assert.NotEmpty(t, p.StrategyWeights)
		assert.Greater(t, p.Benchmark.WinRateCalibrated, p.Benchmark.WinRateBase)
	} else {
		assert.Empty(t, p.CalibrationCurve)
		assert.Empty(t, p.StrategyWeights)
		assert.LessOrEqual(t, p.Benchmark.WinRateCalibrated, p.Benchmark.WinRateBase)
	}

	assert.Equal(t, trainTime, p.CreatedAt)
	assert.False(t, p.DataRange.Start.IsZero())
	assert.True(t, p.DataRange.End.After(p.DataRange.Start))
	assert.NotEmpty(t, p.ID)

	assert.Equal(t, 1, spy.calls)
	assert.Equal(t, p.SampleCount, spy.samples)
	assert.Equal(t, p.Applied(), spy.applied)
}

func TestTrainer_DeterministicAcrossWorkerCounts(t *testing.T) {
	src, universe := syntheticUniverse(t, 5)

	a, err := newTrainer(t, src, 1).Train(context.Background(), universe)
	require.NoError(t, err)
	b, err := newTrainer(t, src, 5).Train(context.Background(), universe)
	require.NoError(t, err)

	ja, err := json.Marshal(a)
	require.NoError(t, err)
	jb, err := json.Marshal(b)
	require.NoError(t, err)
	assert.JSONEq(t, string(ja), string(jb))
	assert.Equal(t, a.ID, b.ID)
}

func TestTrainer_EmptyUniverse(t *testing.T) {
	tr := newTrainer(t, data.NewMemorySource(), 2)
	p, err := tr.Train(context.Background(), []string{" ", ""})
	require.NoError(t, err)
	assert.False(t, p.Applied())
	assert.Equal(t, "empty universe", p.Benchmark.Reason)
	assert.Empty(t, p.StrategyWeights)
	assert.Empty(t, p.CalibrationCurve)
	assert.Zero(t, p.SampleCount)
}

func TestTrainer_NoValidSymbols(t *testing.T) {
	tr := newTrainer(t, data.NewMemorySource(), 2)
	p, err := tr.Train(context.Background(), []string{"AAA", "BBB"})
	require.NoError(t, err)
	assert.False(t, p.Applied())
	assert.Equal(t, "no valid symbols", p.Benchmark.Reason)
	assert.Len(t, p.SkippedSymbols, 2)
}

func TestTrainer_NoSignals(t *testing.T) {
	src := data.NewMemorySource()
	src.Put("FLAT", market.Flat(300, 20, time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)))

	p, err := newTrainer(t, src, 1).Train(context.Background(), []string{"FLAT"})
	require.NoError(t, err)
	assert.False(t, p.Applied())
	assert.Equal(t, "no signals collected", p.Benchmark.Reason)
	assert.Equal(t, 0, p.SymbolSamples["FLAT"])
}

func TestTrainer_Cancelled(t *testing.T) {
	src, universe := syntheticUniverse(t, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p, err := newTrainer(t, src, 2).Train(ctx, universe)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, p)
}

func TestNewTrainer_Validation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workers = 0
	_, err := NewTrainer(cfg, data.NewMemorySource())
	assert.Error(t, err)

	_, err = NewTrainer(DefaultConfig(), nil)
	assert.Error(t, err)
}
