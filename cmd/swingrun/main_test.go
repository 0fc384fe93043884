package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/swingrun/internal/backtest"
	"github.com/sawpanic/swingrun/internal/calibration"
	"github.com/sawpanic/swingrun/internal/config"
	"github.com/sawpanic/swingrun/internal/strategy"
)

func TestSyntheticSourceIsDeterministicPerSymbol(t *testing.T) {
	a := syntheticSource([]string{"spy", "QQQ", ""}, 300)
	b := syntheticSource([]string{"SPY"}, 300)

	ctx := context.Background()
	spyA, err := a.Bars(ctx, "SPY")
	require.NoError(t, err)
	spyB, err := b.Bars(ctx, "SPY")
	require.NoError(t, err)
	qqq, err := a.Bars(ctx, "QQQ")
	require.NoError(t, err)

	assert.Len(t, spyA, 300)
	assert.Equal(t, spyA, spyB)
	assert.NotEqual(t, spyA[len(spyA)-1].Close, qqq[len(qqq)-1].Close)
}

func TestBuildSource_MemoryCache(t *testing.T) {
	cfg := config.Default()
	cfg.Cache.Enabled = true

	src, cleanup, err := buildSource(context.Background(), &cfg, true, []string{"SPY"})
	require.NoError(t, err)
	defer cleanup()

	first, err := src.Bars(context.Background(), "SPY")
	require.NoError(t, err)
	second, err := src.Bars(context.Background(), "SPY")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestOpenStores_FileStore(t *testing.T) {
	cfg := config.Default()
	cfg.Calibration.ProfileDir = t.TempDir()

	s, err := openStores(context.Background(), &cfg)
	require.NoError(t, err)
	defer s.Close()

	assert.NotNil(t, s.profiles)
	assert.Nil(t, s.Backtests())
}

func TestPrintBacktestSummary(t *testing.T) {
	color.NoColor = true

	cfg := backtest.DefaultConfig()
	engine, err := backtest.NewEngine(cfg, strategy.Default())
	require.NoError(t, err)

	src := syntheticSource([]string{"SPY"}, 400)
	bars, err := src.Bars(context.Background(), "SPY")
	require.NoError(t, err)

	result, err := engine.Run(context.Background(), bars)
	require.NoError(t, err)

	var buf bytes.Buffer
	printBacktestSummary(&buf, result, backtest.ArtifactPaths{})
	out := buf.String()
	assert.Contains(t, out, "SwingRun backtest SPY")
	assert.Contains(t, out, "Run ID:")
	assert.Contains(t, out, result.RunID)
}

func TestPrintProfileSummary_Rejected(t *testing.T) {
	color.NoColor = true

	p := calibration.EmptyProfile("no signals collected", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))

	var buf bytes.Buffer
	printProfileSummary(&buf, p)
	out := buf.String()
	assert.Contains(t, out, "Applied:       no (no signals collected)")
	assert.NotContains(t, out, "Strategy weights")
	assert.NotContains(t, out, "Calibration curve")
}

func TestFormatRatio(t *testing.T) {
	assert.Equal(t, "1.50", formatRatio(backtest.Ratio(1.5)))
}

func TestOverridesOnlyApplyWhenSet(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("symbol", "", "")
	fs.Float64("min-score", 0, "")
	fs.Int("workers", 0, "")
	fs.StringSlice("strategies", nil, "")
	require.NoError(t, fs.Parse([]string{"--min-score=0", "--strategies=breakout,momentum"}))

	symbol, minScore, workers := "SPY", 60.0, 4
	strategies := []string{"trend_follow"}
	overrideString(fs, "symbol", &symbol)
	overrideFloat(fs, "min-score", &minScore)
	overrideInt(fs, "workers", &workers)
	overrideStrings(fs, "strategies", &strategies)

	assert.Equal(t, "SPY", symbol)
	assert.Equal(t, 0.0, minScore, "explicit zero wins over config")
	assert.Equal(t, 4, workers)
	assert.Equal(t, []string{"breakout", "momentum"}, strategies)
}
