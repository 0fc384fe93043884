package indicators

import (
	"time"

	"github.com/sawpanic/swingrun/internal/domain/market"
)

// TrendDirection summarises the moving-average stack
type TrendDirection string

const (
	TrendUp       TrendDirection = "up"
	TrendDown     TrendDirection = "down"
	TrendSideways TrendDirection = "sideways"
)

// Snapshot periods
const (
	BreakoutLookback = 20
	VolumeLookback   = 20
	BollingerPeriod  = 20
	BollingerMult    = 2.0
	StochK           = 14
	StochD           = 3
)

// Snapshot is the read-only indicator view of a bar prefix, as of its last
// bar. Every derived field is Optional: None means insufficient history.
type Snapshot struct {
	Timestamp time.Time `json:"timestamp"`
	Bars      int       `json:"bars"`

	// Price levels
	Price     float64           `json:"price"`
	Open      float64           `json:"open"`
	High      float64           `json:"high"`
	Low       float64           `json:"low"`
	PriorHigh Optional[float64] `json:"prior_high_20"`
	PriorLow  Optional[float64] `json:"prior_low_20"`

	// Trend
	SMA20          Optional[float64]        `json:"sma20"`
	SMA50          Optional[float64]        `json:"sma50"`
	EMA9           Optional[float64]        `json:"ema9"`
	EMA21          Optional[float64]        `json:"ema21"`
	VWAP           Optional[float64]        `json:"vwap"`
	TrendDirection Optional[TrendDirection] `json:"trend_direction"`

	// Momentum
	RSI        Optional[float64]          `json:"rsi"`
	MACD       Optional[MACDResult]       `json:"macd"`
	Stochastic Optional[StochasticResult] `json:"stochastic"`

	// Volatility
	ATR        Optional[float64]         `json:"atr"`
	ATRPercent Optional[float64]         `json:"atr_percent"`
	Bollinger  Optional[BollingerResult] `json:"bollinger"`

	// Volume
	Volume      float64           `json:"volume"`
	VolumeAvg   Optional[float64] `json:"volume_avg_20"`
	VolumeRatio Optional[float64] `json:"volume_ratio"`

	// Levels and trend strength
	Levels   Optional[LevelsResult]   `json:"levels"`
	ADX      Optional[ADXResult]      `json:"adx"`
	Ichimoku Optional[IchimokuResult] `json:"ichimoku"`
}

// Compute builds the snapshot for the last bar of the given prefix. It never
// reads beyond the slice it is handed; callers pass the causal prefix
// (see market.Series.Through).
func Compute(bars market.Series) Snapshot {
	last, ok := bars.Last()
	if !ok {
		return Snapshot{}
	}

	s := Snapshot{
		Timestamp: last.Timestamp,
		Bars:      len(bars),
		Price:     last.Close,
		Open:      last.Open,
		High:      last.High,
		Low:       last.Low,
		Volume:    last.Volume,

		SMA20: SMA(bars, 20),
		SMA50: SMA(bars, 50),
		EMA9:  EMA(bars, 9),
		EMA21: EMA(bars, 21),
		VWAP:  VWAP(bars, 20),

		RSI:        RSI(bars, RSIPeriod),
		MACD:       MACD(bars, MACDFast, MACDSlow, MACDSignal),
		Stochastic: Stochastic(bars, StochK, StochD),

		ATR:        ATR(bars, ATRPeriod),
		ATRPercent: ATRPercent(bars, ATRPeriod),
		Bollinger:  Bollinger(bars, BollingerPeriod, BollingerMult),

		VolumeAvg:   VolumeAverage(bars, VolumeLookback),
		VolumeRatio: VolumeRatio(bars, VolumeLookback),

		Levels:   SupportResistance(bars),
		ADX:      ADX(bars, ADXPeriod),
		Ichimoku: Ichimoku(bars),
	}
	s.PriorHigh, s.PriorLow = PriorRange(bars, BreakoutLookback)
	s.TrendDirection = trendDirection(s.Price, s.SMA20, s.SMA50)
	return s
}

func trendDirection(price float64, sma20, sma50 Optional[float64]) Optional[TrendDirection] {
	fast, ok1 := sma20.Get()
	slow, ok2 := sma50.Get()
	if !ok1 || !ok2 {
		return None[TrendDirection]()
	}
	switch {
	case price > fast && fast > slow:
		return Some(TrendUp)
	case price < fast && fast < slow:
		return Some(TrendDown)
	default:
		return Some(TrendSideways)
	}
}
