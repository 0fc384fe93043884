package calibration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/sawpanic/swingrun/internal/data"
	applog "github.com/sawpanic/swingrun/internal/log"
)

// Clock interface for time operations (injectable for testing)
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

// Recorder receives trainer events, typically a metrics registry
type Recorder interface {
	CalibrationFinished(samples int, applied bool, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) CalibrationFinished(int, bool, time.Duration) {}

// Skip reasons recorded per symbol
const (
	SkipFetchFailed  = "fetch_failed"
	SkipInvalidBars  = "invalid_bars"
	SkipInsufficient = "insufficient_bars"
)

// Trainer runs the walk-forward calibration over a universe. Symbols are
// fetched and collected concurrently; the reduction starts only after every
// symbol has finished.
type Trainer struct {
	config   WalkForwardConfig
	source   data.BarSource
	clock    Clock
	recorder Recorder
	progress io.Writer
}

// NewTrainer creates a trainer reading bars from source
func NewTrainer(config WalkForwardConfig, source data.BarSource) (*Trainer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if source == nil {
		return nil, errors.New("calibration trainer requires a bar source")
	}
	return &Trainer{
		config:   config,
		source:   source,
		clock:    realClock{},
		recorder: nopRecorder{},
	}, nil
}

// SetClock sets the clock implementation (for testing)
func (t *Trainer) SetClock(c Clock) { t.clock = c }

// SetRecorder attaches an event sink
func (t *Trainer) SetRecorder(r Recorder) {
	if r == nil {
		r = nopRecorder{}
	}
	t.recorder = r
}

// SetProgressOutput renders a progress bar to w while training
func (t *Trainer) SetProgressOutput(w io.Writer) { t.progress = w }

type symbolResult struct {
	samples []Sample
	first   time.Time
	last    time.Time
	skip    string
}

// Train builds a profile for the universe. An empty universe, a universe
// with no usable symbols, or one that yields no signals produces an
// EmptyProfile with a nil error. A cancelled context returns ctx.Err() and
// no profile.
func (t *Trainer) Train(ctx context.Context, universe []string) (*Profile, error) {
	started := t.clock.Now()
	symbols := dedupe(universe)
	if len(symbols) == 0 {
		return EmptyProfile("empty universe", started), nil
	}

	results := make([]symbolResult, len(symbols))
	progress := applog.NewProgressIndicator("calibrate", len(symbols), t.progress)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.config.Workers)
	for idx, sym := range symbols {
		if gctx.Err() != nil {
			break
		}
		idx, sym := idx, sym
		g.Go(func() error {
			res, err := t.collect(gctx, sym)
			if err != nil {
				return err
			}
			results[idx] = res
			progress.Step(sym, res.skip == "")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		progress.Fail(err.Error())
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		progress.Fail(err.Error())
		return nil, err
	}
	progress.Finish()

	profile := &Profile{
		SchemaVersion:  SchemaVersion,
		CreatedAt:      started,
		Config:         t.config,
		Universe:       symbols,
		SymbolSamples:  make(map[string]int),
		SkippedSymbols: make(map[string]string),
	}

	var samples []Sample
	valid := 0
	for i, res := range results {
		sym := symbols[i]
		if res.skip != "" {
			profile.SkippedSymbols[sym] = res.skip
			continue
		}
		valid++
		profile.SymbolSamples[sym] = len(res.samples)
		samples = append(samples, res.samples...)
		if profile.DataRange.Start.IsZero() || res.first.Before(profile.DataRange.Start) {
			profile.DataRange.Start = res.first
		}
		if res.last.After(profile.DataRange.End) {
			profile.DataRange.End = res.last
		}
	}
	profile.SampleCount = len(samples)

	switch {
	case valid == 0:
		return t.finish(t.empty(profile, "no valid symbols"), started), nil
	case len(samples) == 0:
		return t.finish(t.empty(profile, "no signals collected"), started), nil
	}

	red := Reduce(samples)
	profile.Benchmark = Gate(red)
	if profile.Benchmark.CalibrationApplied {
		profile.StrategyWeights = red.Weights
		profile.CalibrationCurve = red.Curve
	} else {
		profile.reject(profile.Benchmark.Reason)
	}

	log.Info().
		Int("symbols", valid).
		Int("samples", len(samples)).
		Float64("win_rate_base", red.Base.WinRate).
		Float64("win_rate_calibrated", red.Calibrated.WinRate).
		Float64("avg_return_base", red.Base.AvgReturn).
		Float64("avg_return_calibrated", red.Calibrated.AvgReturn).
		Bool("applied", profile.Benchmark.CalibrationApplied).
		Msg("Calibration gate decided")

	return t.finish(profile, started), nil
}

// collect fetches and walks one symbol. Only cancellation is returned as an
// error; every other problem becomes a skip reason.
func (t *Trainer) collect(ctx context.Context, sym string) (symbolResult, error) {
	bars, err := t.source.Bars(ctx, sym)
	if err != nil {
		if ctx.Err() != nil {
			return symbolResult{}, ctx.Err()
		}
		log.Warn().Err(err).Str("symbol", sym).Msg("Skipping symbol: fetch failed")
		return symbolResult{skip: SkipFetchFailed}, nil
	}
	if err := bars.Validate(); err != nil {
		log.Warn().Err(err).Str("symbol", sym).Msg("Skipping symbol: invalid bars")
		return symbolResult{skip: SkipInvalidBars}, nil
	}
	if len(bars) < t.config.MinBarsRequired {
		log.Warn().Str("symbol", sym).Int("bars", len(bars)).Int("required", t.config.MinBarsRequired).
			Msg("Skipping symbol: insufficient history")
		return symbolResult{skip: SkipInsufficient}, nil
	}

	samples := CollectSymbol(sym, bars, t.config)
	log.Debug().Str("symbol", sym).Int("bars", len(bars)).Int("samples", len(samples)).Msg("Collected samples")
	return symbolResult{
		samples: samples,
		first:   bars[0].Timestamp,
		last:    bars[len(bars)-1].Timestamp,
	}, nil
}

func (t *Trainer) empty(p *Profile, reason string) *Profile {
	log.Warn().Str("reason", reason).Int("universe", len(p.Universe)).Msg("Emitting empty calibration profile")
	p.reject(reason)
	return p
}

func (t *Trainer) finish(p *Profile, started time.Time) *Profile {
	p.UpdatedAt = t.clock.Now()
	p.ID = profileID(p)
	t.recorder.CalibrationFinished(p.SampleCount, p.Benchmark.CalibrationApplied, p.UpdatedAt.Sub(started))
	return p
}

// profileID is a name-based UUID over the inputs and outcome, so identical
// runs share an ID
func profileID(p *Profile) string {
	fingerprint := fmt.Sprintf("v%d|%+v|%s|%s|%s|%d|%t|%.10f|%.10f",
		p.SchemaVersion, p.Config, strings.Join(p.Universe, ","),
		p.DataRange.Start.Format(time.RFC3339), p.DataRange.End.Format(time.RFC3339),
		p.SampleCount, p.Benchmark.CalibrationApplied,
		p.Benchmark.WinRateBase, p.Benchmark.WinRateCalibrated)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fingerprint)).String()
}

func dedupe(universe []string) []string {
	seen := make(map[string]bool, len(universe))
	out := make([]string, 0, len(universe))
	for _, s := range universe {
		sym := data.NormalizeSymbol(s)
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}
	return out
}
