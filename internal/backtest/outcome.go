package backtest

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Result labels for a closed position
const (
	ResultWin       = "WIN"
	ResultLoss      = "LOSS"
	ResultBreakeven = "BREAKEVEN"
)

// OutcomeInput describes a round trip. Direction is LONG or SHORT (case-insensitive);
// Size is the quantity held.
type OutcomeInput struct {
	Direction  string
	EntryPrice float64
	ExitPrice  float64
	Size       float64
}

// Outcome is the realized result of a round trip
type Outcome struct {
	PnlDollars float64 `json:"pnl_dollars"`
	PnlPercent float64 `json:"pnl_percent"`
	Result     string  `json:"result"`
}

// CalculateOutcome computes dollar and percent P&L with decimal arithmetic so
// that round prices produce round results (100 -> 110 x 10 is exactly $100).
func CalculateOutcome(in OutcomeInput) (Outcome, error) {
	var sign decimal.Decimal
	switch strings.ToUpper(in.Direction) {
	case "LONG":
		sign = decimal.NewFromInt(1)
	case "SHORT":
		sign = decimal.NewFromInt(-1)
	default:
		return Outcome{}, fmt.Errorf("unknown direction %q", in.Direction)
	}
	if in.EntryPrice <= 0 {
		return Outcome{}, fmt.Errorf("entry price must be positive, got %v", in.EntryPrice)
	}

	entry := decimal.NewFromFloat(in.EntryPrice)
	exit := decimal.NewFromFloat(in.ExitPrice)
	move := exit.Sub(entry).Mul(sign)

	dollars := move.Mul(decimal.NewFromFloat(in.Size))
	percent := move.Div(entry).Mul(decimal.NewFromInt(100))

	result := ResultBreakeven
	switch dollars.Sign() {
	case 1:
		result = ResultWin
	case -1:
		result = ResultLoss
	}

	return Outcome{
		PnlDollars: dollars.InexactFloat64(),
		PnlPercent: percent.InexactFloat64(),
		Result:     result,
	}, nil
}
