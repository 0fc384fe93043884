package indicators

import (
	"math"

	"github.com/sawpanic/swingrun/internal/domain/market"
)

// Ichimoku periods
const (
	TenkanPeriod  = 9
	KijunPeriod   = 26
	SenkouBPeriod = 52
	CloudShift    = 26
)

// IchimokuResult holds the conversion/base lines and the cloud in force at
// the latest bar. The cloud is the one projected CloudShift bars ago, so it
// is built entirely from past bars.
type IchimokuResult struct {
	Tenkan  float64 `json:"tenkan"`
	Kijun   float64 `json:"kijun"`
	SenkouA float64 `json:"senkou_a"`
	SenkouB float64 `json:"senkou_b"`
}

// CloudTop returns the upper edge of the cloud
func (r IchimokuResult) CloudTop() float64 { return math.Max(r.SenkouA, r.SenkouB) }

// CloudBottom returns the lower edge of the cloud
func (r IchimokuResult) CloudBottom() float64 { return math.Min(r.SenkouA, r.SenkouB) }

// Ichimoku requires SenkouBPeriod+CloudShift bars
func Ichimoku(bars market.Series) Optional[IchimokuResult] {
	if len(bars) < SenkouBPeriod+CloudShift {
		return None[IchimokuResult]()
	}

	projected := bars[:len(bars)-CloudShift]
	tenkanThen := midpoint(projected.Window(TenkanPeriod))
	kijunThen := midpoint(projected.Window(KijunPeriod))

	return Some(IchimokuResult{
		Tenkan:  midpoint(bars.Window(TenkanPeriod)),
		Kijun:   midpoint(bars.Window(KijunPeriod)),
		SenkouA: (tenkanThen + kijunThen) / 2,
		SenkouB: midpoint(projected.Window(SenkouBPeriod)),
	})
}

func midpoint(bars market.Series) float64 {
	hi, lo := math.Inf(-1), math.Inf(1)
	for _, b := range bars {
		hi = math.Max(hi, b.High)
		lo = math.Min(lo, b.Low)
	}
	return (hi + lo) / 2
}
