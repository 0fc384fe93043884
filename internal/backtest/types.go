package backtest

import (
	"encoding/json"
	"math"
	"time"

	"github.com/sawpanic/swingrun/internal/domain/regime"
	"github.com/sawpanic/swingrun/internal/strategy"
)

// ExitReason explains why a position was closed
type ExitReason string

const (
	ExitStop      ExitReason = "stop"
	ExitTarget    ExitReason = "target"
	ExitTime      ExitReason = "time"
	ExitEndOfData ExitReason = "end_of_data"
)

// Trade is one simulated round trip. Entry fields are fixed when the
// position opens; exit fields are filled when it closes.
type Trade struct {
	Strategy  string             `json:"strategy"`
	Direction strategy.Direction `json:"direction"`
	Score     float64            `json:"score"`
	Reasons   []string           `json:"reasons"`

	SignalIndex   int        `json:"signal_index"`
	SignalDate    time.Time  `json:"signal_date"`
	SignalPrice   float64    `json:"signal_price"` // close of the signal bar
	EntryIndex    int        `json:"entry_index"`
	EntryDate     time.Time  `json:"entry_date"`
	RawEntryPrice float64    `json:"raw_entry_price"` // open of the bar after the signal
	EntryPrice    float64    `json:"entry_price"`     // raw entry after slippage
	Shares        float64    `json:"shares"`
	StopLoss      float64    `json:"stop_loss"`
	TargetPrice   float64    `json:"target_price"`
	RiskAmount    float64    `json:"risk_amount"` // per share, entry to stop
	Regime        regime.Tag `json:"regime"`

	ExitIndex   int        `json:"exit_index"`
	ExitDate    time.Time  `json:"exit_date"`
	ExitPrice   float64    `json:"exit_price"`
	ExitReason  ExitReason `json:"exit_reason"`
	HoldingDays int        `json:"holding_days"` // bars between entry and exit
	PnlPercent  float64    `json:"pnl_percent"`
	PnlDollars  float64    `json:"pnl_dollars"`
	RMultiple   float64    `json:"r_multiple"`
	Won         bool       `json:"won"`
}

// EquityPoint is the account value after a closed trade
type EquityPoint struct {
	Date        time.Time `json:"date"`
	Equity      float64   `json:"equity"`
	Peak        float64   `json:"peak"`
	DrawdownPct float64   `json:"drawdown_pct"`
}

// Result is the output of one backtest run
type Result struct {
	RunID      string        `json:"run_id"`
	Config     Config        `json:"config"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	FirstBar   time.Time     `json:"first_bar"`
	LastBar    time.Time     `json:"last_bar"`
	Bars       int           `json:"bars"`
	Trades     []Trade       `json:"trades"`
	Equity     []EquityPoint `json:"equity_curve"`
	Metrics    Metrics       `json:"metrics"`
}

// Ratio is a float that survives JSON when infinite
type Ratio float64

// MarshalJSON encodes +Inf as the string "Infinity"
func (r Ratio) MarshalJSON() ([]byte, error) {
	if math.IsInf(float64(r), 1) {
		return []byte(`"Infinity"`), nil
	}
	return json.Marshal(float64(r))
}

// UnmarshalJSON accepts numbers and the string "Infinity"
func (r *Ratio) UnmarshalJSON(data []byte) error {
	if string(data) == `"Infinity"` {
		*r = Ratio(math.Inf(1))
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*r = Ratio(f)
	return nil
}
