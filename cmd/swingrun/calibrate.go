package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/swingrun/internal/calibration"
	"github.com/sawpanic/swingrun/internal/config"
	applog "github.com/sawpanic/swingrun/internal/log"
)

func newCalibrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Train a calibration profile over a symbol universe",
		Long: `Collects signal samples from every symbol in the universe, reduces them into
per-(strategy, regime) weights and a score-bucket confidence curve, and gates the
result on whether calibrated selection beats the baseline win rate.

Rejected profiles are still saved; they carry empty weights and curves so the
runtime loader reports OFF and applies no adjustment.`,
		RunE: runCalibrate,
	}

	cmd.Flags().StringSlice("universe", nil, "Symbols to train on (default from config)")
	cmd.Flags().Bool("synthetic", false, "Train on deterministic generated series")
	cmd.Flags().String("csv", "", "Directory of <SYMBOL>.csv daily bars (default from config)")
	cmd.Flags().Int("workers", 0, "Concurrent symbol fetches (default from config)")
	cmd.Flags().Bool("dry-run", false, "Print the profile without saving it")
	return cmd
}

// Calibration pipeline steps, in order
const (
	stepLoadSource = "load_source"
	stepTrain      = "train"
	stepPersist    = "persist"
)

// calibrateOptions carries the per-invocation choices layered over the config
type calibrateOptions struct {
	universe  []string
	synthetic bool
	dryRun    bool
	progress  io.Writer // trainer progress bar, nil for none
	out       io.Writer // profile summary
}

func runCalibrate(cmd *cobra.Command, args []string) error {
	cfg := *appConfig
	opts := calibrateOptions{
		universe: cfg.Calibration.Universe,
		progress: os.Stderr,
		out:      os.Stdout,
	}

	fs := cmd.Flags()
	overrideStrings(fs, "universe", &opts.universe)
	overrideString(fs, "csv", &cfg.Data.CSVDir)
	overrideInt(fs, "workers", &cfg.WalkForward.Workers)
	opts.synthetic, _ = fs.GetBool("synthetic")
	opts.dryRun, _ = fs.GetBool("dry-run")

	_, err := calibrate(cmd.Context(), &cfg, opts)
	return err
}

// calibrate runs load_source, train and persist as one logged pipeline. The
// persist step is skipped on a dry run.
func calibrate(ctx context.Context, cfg *config.AppConfig, opts calibrateOptions) (*applog.StepLogger, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	steps := []string{stepLoadSource, stepTrain}
	if !opts.dryRun {
		steps = append(steps, stepPersist)
	}
	pipeline := applog.NewStepLogger("calibrate", steps)
	fail := func(err error) (*applog.StepLogger, error) {
		pipeline.Fail(err.Error())
		return pipeline, err
	}

	pipeline.StartStep(stepLoadSource)
	src, cleanup, err := buildSource(ctx, cfg, opts.synthetic, opts.universe)
	if err != nil {
		return fail(err)
	}
	defer cleanup()

	trainer, err := calibration.NewTrainer(cfg.WalkForward, src)
	if err != nil {
		return fail(err)
	}
	trainer.SetProgressOutput(opts.progress)

	pipeline.StartStep(stepTrain)
	log.Info().
		Int("symbols", len(opts.universe)).
		Int("workers", cfg.WalkForward.Workers).
		Int("min_bars", cfg.WalkForward.MinBarsRequired).
		Bool("synthetic", opts.synthetic).
		Msg("Starting calibration")

	profile, err := trainer.Train(ctx, opts.universe)
	if err != nil {
		return fail(fmt.Errorf("calibration failed: %w", err))
	}
	if opts.out != nil {
		printProfileSummary(opts.out, profile)
	}

	if opts.dryRun {
		pipeline.Finish()
		return pipeline, nil
	}

	pipeline.StartStep(stepPersist)
	s, err := openStores(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	defer s.Close()

	if err := s.profiles.Save(ctx, profile); err != nil {
		return fail(fmt.Errorf("failed to save profile: %w", err))
	}
	log.Info().
		Str("profile_id", profile.ID).
		Str("store", cfg.Calibration.Store).
		Bool("applied", profile.Applied()).
		Msg("Calibration profile saved")
	pipeline.Finish()
	return pipeline, nil
}

func printProfileSummary(w io.Writer, p *calibration.Profile) {
	header := color.New(color.FgCyan, color.Bold)
	header.Fprintf(w, "\n%s calibration profile %s\n", appName, p.ID)

	fmt.Fprintf(w, "  Schema:        v%d\n", p.SchemaVersion)
	fmt.Fprintf(w, "  Updated:       %s\n", p.UpdatedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "  Universe:      %d symbols, %d skipped\n", len(p.Universe), len(p.SkippedSymbols))
	fmt.Fprintf(w, "  Samples:       %d\n", p.SampleCount)
	fmt.Fprintf(w, "  Base win rate: %.1f%%\n", p.Benchmark.WinRateBase*100)
	fmt.Fprintf(w, "  Calibrated:    %.1f%%\n", p.Benchmark.WinRateCalibrated*100)

	if p.Applied() {
		color.New(color.FgGreen).Fprintf(w, "  Applied:       yes (%s)\n", p.Benchmark.Reason)
	} else {
		color.New(color.FgYellow).Fprintf(w, "  Applied:       no (%s)\n", p.Benchmark.Reason)
	}

	if len(p.StrategyWeights) > 0 {
		header.Fprintln(w, "\n  Strategy weights")
		strategies := make([]string, 0, len(p.StrategyWeights))
		for s := range p.StrategyWeights {
			strategies = append(strategies, s)
		}
		sort.Strings(strategies)
		for _, s := range strategies {
			regimes := make([]string, 0, len(p.StrategyWeights[s]))
			for r := range p.StrategyWeights[s] {
				regimes = append(regimes, r)
			}
			sort.Strings(regimes)
			for _, r := range regimes {
				fmt.Fprintf(w, "    %-15s %-9s %.2f\n", s, r, p.StrategyWeights[s][r])
			}
		}
	}

	if len(p.CalibrationCurve) > 0 {
		header.Fprintln(w, "\n  Calibration curve")
		for _, b := range p.CalibrationCurve {
			fmt.Fprintf(w, "    %3d-%-3d  n=%-5d win %5.1f%%  factor %.2f\n",
				b.ScoreBucketMin, b.ScoreBucketMax, b.SampleSize, b.WinRate*100, b.ConfidenceFactor)
		}
	}

	if len(p.SkippedSymbols) > 0 {
		header.Fprintln(w, "\n  Skipped")
		syms := make([]string, 0, len(p.SkippedSymbols))
		for s := range p.SkippedSymbols {
			syms = append(syms, s)
		}
		sort.Strings(syms)
		for _, s := range syms {
			fmt.Fprintf(w, "    %-8s %s\n", s, p.SkippedSymbols[s])
		}
	}
}
