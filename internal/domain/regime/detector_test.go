package regime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sawpanic/swingrun/internal/domain/indicators"
	"github.com/sawpanic/swingrun/internal/domain/market"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		snap indicators.Snapshot
		want Tag
	}{
		{
			name: "missing_readings_are_conservative",
			snap: indicators.Snapshot{},
			want: Tag{Trend: Choppy, Volatility: LowVol},
		},
		{
			name: "trending_high_vol",
			snap: indicators.Snapshot{
				ADX:        indicators.Some(indicators.ADXResult{ADX: 32}),
				ATRPercent: indicators.Some(2.5),
			},
			want: Tag{Trend: Trending, Volatility: HighVol, ADX: 32, ATRPercent: 2.5},
		},
		{
			name: "thresholds_are_strict",
			snap: indicators.Snapshot{
				ADX:        indicators.Some(indicators.ADXResult{ADX: 25}),
				ATRPercent: indicators.Some(2.0),
			},
			want: Tag{Trend: Choppy, Volatility: LowVol, ADX: 25, ATRPercent: 2.0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.snap))
		})
	}
}

func TestTag_Labels(t *testing.T) {
	tag := Tag{Trend: Trending, Volatility: LowVol}
	assert.Equal(t, []string{"trending", "low_vol"}, tag.Labels())
}

func rangeBars(n int, close, halfRange float64) market.Series {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make(market.Series, n)
	for i := range out {
		out[i] = market.Bar{
			Timestamp: start.AddDate(0, 0, i),
			Open:      close,
			High:      close + halfRange,
			Low:       close - halfRange,
			Close:     close,
			Volume:    1000,
		}
	}
	return out
}

func TestCalibrationVolatility(t *testing.T) {
	assert.Equal(t, LowVol, CalibrationVolatility(rangeBars(30, 100, 0.25)))   // 0.5%
	assert.Equal(t, NormalVol, CalibrationVolatility(rangeBars(30, 100, 1.0))) // 2%
	assert.Equal(t, HighVol, CalibrationVolatility(rangeBars(30, 100, 2.0)))   // 4%
	assert.Equal(t, NormalVol, CalibrationVolatility(rangeBars(10, 100, 2.0)), "short prefix defaults to normal")
}
