package calibration

import (
	"time"

	"github.com/sawpanic/swingrun/internal/domain/market"
	"github.com/sawpanic/swingrun/internal/domain/regime"
)

// Sample is one simulated outcome
type Sample struct {
	Symbol     string    `json:"symbol"`
	Index      int       `json:"index"`
	SignalDate time.Time `json:"signal_date"`
	Strategy   string    `json:"strategy"`
	Regime     string    `json:"regime"`
	Score      float64   `json:"score"`
	ReturnPct  float64   `json:"return_pct"`
	Hit        bool      `json:"hit"`
}

// CollectSymbol walks one symbol's history. Each candidate at bar i enters
// at bars[i+1].Open and exits at bars[i+1+HoldDays].Close; candidates whose
// exit bar does not exist are dropped. The regime comes from the trailing
// window ending at i.
func CollectSymbol(symbol string, bars market.Series, cfg WalkForwardConfig) []Sample {
	var out []Sample
	for i := cfg.WarmupBars; i+1+cfg.HoldDays < len(bars); i++ {
		prefix := bars.Through(i)
		cand, ok := GenerateCandidate(prefix)
		if !ok {
			continue
		}

		entry := bars[i+1].Open
		exit := bars[i+1+cfg.HoldDays].Close
		if entry <= 0 {
			continue
		}
		ret := (exit - entry) / entry * 100 * cand.Direction.Sign()

		out = append(out, Sample{
			Symbol:     symbol,
			Index:      i,
			SignalDate: bars[i].Timestamp,
			Strategy:   cand.Strategy,
			Regime:     string(regime.CalibrationVolatility(prefix)),
			Score:      cand.Score,
			ReturnPct:  ret,
			Hit:        ret > 0,
		})
	}
	return out
}
