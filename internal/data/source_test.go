package data

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/swingrun/internal/data/cache"
	"github.com/sawpanic/swingrun/internal/domain/market"
)

var day0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func TestMemorySource(t *testing.T) {
	ctx := context.Background()
	src := NewMemorySource()
	src.Put(" spy ", market.Flat(3, 100, day0))

	bars, err := src.Bars(ctx, "SPY")
	require.NoError(t, err)
	assert.Len(t, bars, 3)

	// Returned slices are copies
	bars[0].Close = -1
	again, _ := src.Bars(ctx, "spy")
	assert.Equal(t, 100.0, again[0].Close)

	_, err = src.Bars(ctx, "QQQ")
	assert.True(t, errors.Is(err, ErrSymbolNotFound))

	syms, err := src.Symbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"SPY"}, syms)
}

const sampleCSV = `Date,Open,High,Low,Adj Close,Volume
2024-01-03,101,102,100,101.5,1200
2024-01-02,100,101,99,100.5,1000
not-a-date,1,1,1,1,1
2024-01-04,101.5,103,101,102.5,
`

func TestCSVSourceRead(t *testing.T) {
	bars, err := NewCSVSource("").Read(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, bars, 3)

	assert.True(t, bars[0].Timestamp.Equal(day0), "rows are sorted ascending")
	assert.Equal(t, 100.5, bars[0].Close)
	assert.Equal(t, 1200.0, bars[1].Volume)
	assert.Equal(t, 0.0, bars[2].Volume)
}

func TestCSVSourceReadPrefersRawClose(t *testing.T) {
	const yahoo = `Date,Open,High,Low,Close,Adj Close,Volume
2024-01-02,500,510,495,505,126.25,2000
2024-01-03,505,512,501,511,127.75,2100
`
	bars, err := NewCSVSource("").Read(strings.NewReader(yahoo))
	require.NoError(t, err)
	require.Len(t, bars, 2)

	assert.Equal(t, 505.0, bars[0].Close, "adjusted close must not replace the raw close")
	assert.Equal(t, 511.0, bars[1].Close)
	for _, b := range bars {
		assert.GreaterOrEqual(t, b.Close, b.Low)
		assert.LessOrEqual(t, b.Close, b.High)
	}
}

func TestCSVSourceReadRejectsCloseOutsideRange(t *testing.T) {
	const body = `date,open,high,low,close
2024-01-02,500,510,495,126.25
`
	_, err := NewCSVSource("").Read(strings.NewReader(body))
	assert.ErrorContains(t, err, "outside range")
}

func TestMapColumnsFirstColumnWins(t *testing.T) {
	cols := mapColumns([]string{"Date", "C", "Close", "Adj Close"})
	assert.Equal(t, 1, cols["close"])
	assert.Equal(t, 3, cols["adj_close"])

	cols = mapColumns([]string{"date", "adj_close"})
	assert.Equal(t, 1, cols["close"], "adjusted close is the fallback when no raw close exists")
}

func TestCSVSourceMissingColumn(t *testing.T) {
	_, err := NewCSVSource("").Read(strings.NewReader("date,open,high,close\n2024-01-02,1,2,1\n"))
	assert.ErrorContains(t, err, `"low"`)
}

func TestCSVSourceFromDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "AAPL.csv"), []byte(sampleCSV), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	src := NewCSVSource(dir)
	ctx := context.Background()

	bars, err := src.Bars(ctx, "aapl")
	require.NoError(t, err)
	assert.Len(t, bars, 3)

	_, err = src.Bars(ctx, "MSFT")
	assert.True(t, errors.Is(err, ErrSymbolNotFound))

	syms, err := src.Symbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL"}, syms)
}

type countingSource struct {
	calls int
	bars  market.Series
}

func (c *countingSource) Bars(context.Context, string) (market.Series, error) {
	c.calls++
	return c.bars, nil
}

func TestRateLimitedSourceHonorsContext(t *testing.T) {
	inner := &countingSource{bars: market.Flat(2, 10, day0)}
	src := NewRateLimitedSource(inner, 0.001, 1)

	_, err := src.Bars(context.Background(), "A")
	require.NoError(t, err)

	// Bucket is empty and refills in ~1000s; a short deadline must fail fast
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = src.Bars(ctx, "B")
	assert.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestRateLimitedSourceUnlimited(t *testing.T) {
	inner := &countingSource{bars: market.Flat(2, 10, day0)}
	src := NewRateLimitedSource(inner, 0, 0)
	for i := 0; i < 5; i++ {
		_, err := src.Bars(context.Background(), "A")
		require.NoError(t, err)
	}
	assert.Equal(t, 5, inner.calls)
}

func TestCachedSource(t *testing.T) {
	inner := &countingSource{bars: market.Flat(4, 10, day0)}
	src := NewCachedSource(inner, cache.NewMemoryBarCache(10, time.Hour))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		bars, err := src.Bars(ctx, "spy")
		require.NoError(t, err)
		assert.Len(t, bars, 4)
	}
	assert.Equal(t, 1, inner.calls)
}
