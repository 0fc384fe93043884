package calibration

import (
	"fmt"
	"strings"
)

// WalkForwardConfig controls the trainer. The window fields are carried into
// the profile for provenance; MinBarsRequired, HoldDays, and WarmupBars
// shape the sample collection.
type WalkForwardConfig struct {
	TrainWindowMonths int `yaml:"train_window_months" json:"trainWindowMonths"`
	TestWindowMonths  int `yaml:"test_window_months" json:"testWindowMonths"`
	StepMonths        int `yaml:"step_months" json:"stepMonths"`
	MinBarsRequired   int `yaml:"min_bars_required" json:"minBarsRequired"`
	HoldDays          int `yaml:"hold_days" json:"holdDays"`
	WarmupBars        int `yaml:"warmup_bars" json:"warmupBars"`
	Workers           int `yaml:"workers" json:"-"`
}

// DefaultConfig returns default walk-forward configuration
func DefaultConfig() WalkForwardConfig {
	return WalkForwardConfig{
		TrainWindowMonths: 24,
		TestWindowMonths:  6,
		StepMonths:        3,
		MinBarsRequired:   252,
		HoldDays:          5,
		WarmupBars:        50,
		Workers:           4,
	}
}

// Validate reports every problem with the configuration at once
func (c WalkForwardConfig) Validate() error {
	var problems []string
	if c.HoldDays <= 0 {
		problems = append(problems, fmt.Sprintf("hold_days must be positive, got %d", c.HoldDays))
	}
	if c.WarmupBars < 50 {
		problems = append(problems, fmt.Sprintf("warmup_bars must be at least 50, got %d", c.WarmupBars))
	}
	if c.MinBarsRequired < c.WarmupBars+c.HoldDays+2 {
		problems = append(problems, fmt.Sprintf("min_bars_required %d leaves no room for a sample", c.MinBarsRequired))
	}
	if c.Workers < 1 {
		problems = append(problems, fmt.Sprintf("workers must be at least 1, got %d", c.Workers))
	}
	if c.TrainWindowMonths < 0 || c.TestWindowMonths < 0 || c.StepMonths < 0 {
		problems = append(problems, "window months must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid walk-forward config: %s", strings.Join(problems, "; "))
	}
	return nil
}
