// Package calibration turns walk-forward simulated outcomes across a symbol
// universe into per-regime strategy weights and a score-to-confidence curve,
// and only activates them when they beat the uncalibrated baseline.
package calibration

import (
	"fmt"
	"time"
)

const (
	// SchemaVersion tags every emitted profile; loaders reject other versions
	SchemaVersion = 1

	// MinSampleSizePerBucket is the support a score bucket needs before its
	// confidence factor departs from 1.0
	MinSampleSizePerBucket = 200

	// BucketWidth is the score span of one calibration bucket
	BucketWidth = 10

	// BucketCount covers scores 0-99; a score of exactly 100 lands in the last bucket
	BucketCount = 10
)

// BenchmarkComparison records the gate decision
type BenchmarkComparison struct {
	WinRateBase         float64 `json:"winRate_base"`
	WinRateCalibrated   float64 `json:"winRate_calibrated"`
	AvgReturnBase       float64 `json:"avgReturn_base"`
	AvgReturnCalibrated float64 `json:"avgReturn_calibrated"`
	CalibrationApplied  bool    `json:"calibrationApplied"`
	Reason              string  `json:"reason"`
}

// Bucket is one point of the calibration curve
type Bucket struct {
	ScoreBucketMin   int     `json:"scoreBucketMin"`
	ScoreBucketMax   int     `json:"scoreBucketMax"`
	WinRate          float64 `json:"winRate"`
	AvgReturn        float64 `json:"avgReturn"`
	SampleSize       int     `json:"sampleSize"`
	ConfidenceFactor float64 `json:"confidenceFactor"`
}

// DataRange spans the bars that produced the samples
type DataRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Weights maps strategy -> regime -> multiplier
type Weights map[string]map[string]float64

// Profile is the versioned calibration artifact. When
// Benchmark.CalibrationApplied is false, StrategyWeights and CalibrationCurve
// are empty.
type Profile struct {
	ID               string              `json:"id"`
	SchemaVersion    int                 `json:"schemaVersion"`
	CreatedAt        time.Time           `json:"createdAt"`
	UpdatedAt        time.Time           `json:"updatedAt"`
	Config           WalkForwardConfig   `json:"walkForwardConfig"`
	Universe         []string            `json:"universe"`
	DataRange        DataRange           `json:"dataRange"`
	SampleCount      int                 `json:"sampleCount"`
	SymbolSamples    map[string]int      `json:"symbolSamples"`
	SkippedSymbols   map[string]string   `json:"skippedSymbols"`
	Benchmark        BenchmarkComparison `json:"benchmark"`
	StrategyWeights  Weights             `json:"strategyWeights"`
	CalibrationCurve []Bucket            `json:"calibrationCurve"`
}

// Applied reports whether the profile's adjustments are active
func (p *Profile) Applied() bool {
	return p != nil && p.Benchmark.CalibrationApplied
}

// Age is the time since the profile was last updated
func (p *Profile) Age(now time.Time) time.Duration {
	return now.Sub(p.UpdatedAt)
}

// reject clears the adjustments so emptiness alone signals "off"
func (p *Profile) reject(reason string) {
	p.Benchmark.CalibrationApplied = false
	p.Benchmark.Reason = reason
	p.StrategyWeights = Weights{}
	p.CalibrationCurve = []Bucket{}
}

// Check reports schema and gating violations of a loaded profile
func (p *Profile) Check() error {
	if p.SchemaVersion != SchemaVersion {
		return fmt.Errorf("unsupported schema version %d (want %d)", p.SchemaVersion, SchemaVersion)
	}
	if !p.Benchmark.CalibrationApplied && (len(p.StrategyWeights) > 0 || len(p.CalibrationCurve) > 0) {
		return fmt.Errorf("profile %s is not applied but carries adjustments", p.ID)
	}
	return nil
}

// EmptyProfile is the sentinel emitted when there is nothing to calibrate:
// an empty universe, no usable symbols, or no signals
func EmptyProfile(reason string, now time.Time) *Profile {
	p := &Profile{
		SchemaVersion:  SchemaVersion,
		CreatedAt:      now,
		UpdatedAt:      now,
		Universe:       []string{},
		SymbolSamples:  map[string]int{},
		SkippedSymbols: map[string]string{},
	}
	p.reject(reason)
	return p
}
