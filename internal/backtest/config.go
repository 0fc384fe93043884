package backtest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sawpanic/swingrun/internal/strategy"
)

// MinWarmupBars is the smallest warm-up offset that guarantees the snapshot
// indicators the strategies depend on are populated
const MinWarmupBars = 50

// MinIndicatorLookback is the shortest bounded indicator window allowed. It
// covers the support/resistance and Ichimoku windows and leaves the Wilder and
// EMA recursions several periods to settle.
const MinIndicatorLookback = 250

// ErrInvalidConfig is returned when a backtest configuration cannot be run
var ErrInvalidConfig = errors.New("invalid backtest config")

// Config represents daily backtest configuration
type Config struct {
	Symbol             string   `yaml:"symbol" json:"symbol"`
	Strategies         []string `yaml:"strategies" json:"strategies"`                     // evaluated in this order
	PositionSize       float64  `yaml:"position_size" json:"position_size"`               // dollars committed per trade
	InitialCapital     float64  `yaml:"initial_capital" json:"initial_capital"`           // equity curve starting point
	DefaultHoldingDays int      `yaml:"default_holding_days" json:"default_holding_days"` // time exit, in bars
	TargetRMultiple    float64  `yaml:"target_r_multiple" json:"target_r_multiple"`
	StopATRMultiple    float64  `yaml:"stop_atr_multiple" json:"stop_atr_multiple"`
	UseStopLoss        bool     `yaml:"use_stop_loss" json:"use_stop_loss"`
	UseTarget          bool     `yaml:"use_target" json:"use_target"`
	MinScore           float64  `yaml:"min_score" json:"min_score"`           // 0-100
	MinConfidence      float64  `yaml:"min_confidence" json:"min_confidence"` // 0-1
	SlippagePct        float64  `yaml:"slippage_pct" json:"slippage_pct"`     // percent of the entry open, 0.05 = 0.05%
	WarmupBars         int      `yaml:"warmup_bars" json:"warmup_bars"`
	IndicatorLookback  int      `yaml:"indicator_lookback" json:"indicator_lookback"` // 0 = full causal prefix
}

// DefaultConfig returns default backtest configuration
func DefaultConfig() Config {
	return Config{
		Symbol:             "SPY",
		Strategies:         strategy.Default().Names(),
		PositionSize:       10000,
		InitialCapital:     100000,
		DefaultHoldingDays: 7,
		TargetRMultiple:    2.0,
		StopATRMultiple:    1.5,
		UseStopLoss:        true,
		UseTarget:          true,
		MinScore:           60,
		MinConfidence:      0.6,
		SlippagePct:        0.05,
		WarmupBars:         MinWarmupBars,
	}
}

// Validate reports every problem with the configuration at once
func (c Config) Validate() error {
	var problems []string

	if len(c.Strategies) == 0 {
		problems = append(problems, "at least one strategy is required")
	}
	if c.PositionSize <= 0 {
		problems = append(problems, fmt.Sprintf("position_size must be positive, got %.2f", c.PositionSize))
	}
	if c.InitialCapital <= 0 {
		problems = append(problems, fmt.Sprintf("initial_capital must be positive, got %.2f", c.InitialCapital))
	}
	if c.DefaultHoldingDays <= 0 {
		problems = append(problems, fmt.Sprintf("default_holding_days must be positive, got %d", c.DefaultHoldingDays))
	}
	if c.TargetRMultiple <= 0 {
		problems = append(problems, fmt.Sprintf("target_r_multiple must be positive, got %.2f", c.TargetRMultiple))
	}
	if c.StopATRMultiple <= 0 {
		problems = append(problems, fmt.Sprintf("stop_atr_multiple must be positive, got %.2f", c.StopATRMultiple))
	}
	if c.MinScore < 0 || c.MinScore > 100 {
		problems = append(problems, fmt.Sprintf("min_score must be within [0,100], got %.2f", c.MinScore))
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		problems = append(problems, fmt.Sprintf("min_confidence must be within [0,1], got %.2f", c.MinConfidence))
	}
	if c.SlippagePct < 0 || c.SlippagePct >= 100 {
		problems = append(problems, fmt.Sprintf("slippage_pct must be within [0,100), got %.4f", c.SlippagePct))
	}
	if c.WarmupBars < MinWarmupBars {
		problems = append(problems, fmt.Sprintf("warmup_bars must be at least %d, got %d", MinWarmupBars, c.WarmupBars))
	}
	if c.IndicatorLookback != 0 && c.IndicatorLookback < MinIndicatorLookback {
		problems = append(problems, fmt.Sprintf("indicator_lookback must be 0 or at least %d, got %d", MinIndicatorLookback, c.IndicatorLookback))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
