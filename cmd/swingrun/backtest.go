package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/swingrun/internal/backtest"
	"github.com/sawpanic/swingrun/internal/strategy"
)

func newBacktestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Backtest strategies on one symbol's daily bars",
		Long: `Runs the daily engine over a symbol's bar history: signals on bar close,
entries at the next bar's open, stop/target/time exits, one position at a time.
Writes trades.jsonl and report.md under --out.`,
		RunE: runBacktest,
	}

	cmd.Flags().String("symbol", "", "Symbol to backtest (default from config)")
	cmd.Flags().StringSlice("strategies", nil, "Strategies in evaluation order (default from config)")
	cmd.Flags().String("csv", "", "Directory of <SYMBOL>.csv daily bars (default from config)")
	cmd.Flags().Bool("synthetic", false, "Use a deterministic generated series instead of CSV data")
	cmd.Flags().String("out", "out/backtest", "Artifact output directory")
	cmd.Flags().Float64("min-score", 0, "Minimum signal score, 0-100 (default from config)")
	cmd.Flags().Float64("slippage", 0, "Entry slippage percent (default from config)")
	cmd.Flags().Int("indicator-lookback", 0, "Bound each snapshot to the trailing N bars, 0 = full history (default from config)")
	cmd.Flags().Bool("save", false, "Persist the run to postgres (requires database.enabled)")
	return cmd
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg := appConfig.Backtest

	fs := cmd.Flags()
	overrideString(fs, "symbol", &cfg.Symbol)
	overrideStrings(fs, "strategies", &cfg.Strategies)
	overrideString(fs, "csv", &appConfig.Data.CSVDir)
	overrideFloat(fs, "min-score", &cfg.MinScore)
	overrideFloat(fs, "slippage", &cfg.SlippagePct)
	overrideInt(fs, "indicator-lookback", &cfg.IndicatorLookback)
	cfg.Symbol = strings.ToUpper(cfg.Symbol)

	synthetic, _ := fs.GetBool("synthetic")
	outDir, _ := fs.GetString("out")
	save, _ := fs.GetBool("save")

	absOut, err := filepath.Abs(outDir)
	if err != nil {
		return fmt.Errorf("failed to resolve output directory: %w", err)
	}

	engine, err := backtest.NewEngine(cfg, strategy.Default())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	src, cleanup, err := buildSource(ctx, appConfig, synthetic, []string{cfg.Symbol})
	if err != nil {
		return err
	}
	defer cleanup()

	bars, err := src.Bars(ctx, cfg.Symbol)
	if err != nil {
		return fmt.Errorf("failed to load bars for %s: %w", cfg.Symbol, err)
	}

	log.Info().
		Str("symbol", cfg.Symbol).
		Int("bars", len(bars)).
		Strs("strategies", cfg.Strategies).
		Bool("synthetic", synthetic).
		Msg("Starting backtest")

	result, err := engine.Run(ctx, bars)
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}

	paths, err := backtest.NewWriter(absOut).Write(result)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to write backtest artifacts")
	}

	if save {
		if err := saveRun(ctx, result); err != nil {
			return err
		}
	}

	printBacktestSummary(os.Stdout, result, paths)
	return nil
}

func saveRun(ctx context.Context, result *backtest.Result) error {
	if !appConfig.Database.Enabled {
		return fmt.Errorf("--save requires database.enabled (or PG_ENABLED=true)")
	}
	s, err := openStores(ctx, appConfig)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Backtests().SaveRun(ctx, result); err != nil {
		return fmt.Errorf("failed to persist backtest run: %w", err)
	}
	log.Info().Str("run_id", result.RunID).Int("trades", len(result.Trades)).Msg("Backtest run persisted")
	return nil
}

func printBacktestSummary(w io.Writer, result *backtest.Result, paths backtest.ArtifactPaths) {
	m := result.Metrics
	header := color.New(color.FgCyan, color.Bold)
	good := color.New(color.FgGreen)
	bad := color.New(color.FgRed)

	pnl := good
	if m.TotalPnl < 0 {
		pnl = bad
	}

	header.Fprintf(w, "\n%s backtest %s\n", appName, result.Config.Symbol)
	fmt.Fprintf(w, "  Bars:          %d (%s to %s)\n", result.Bars,
		result.FirstBar.Format("2006-01-02"), result.LastBar.Format("2006-01-02"))
	fmt.Fprintf(w, "  Trades:        %d (%d won, %d lost)\n", m.TotalTrades, m.Wins, m.Losses)
	fmt.Fprintf(w, "  Win rate:      %.1f%%\n", m.WinRate*100)
	fmt.Fprintf(w, "  Profit factor: %s\n", formatRatio(m.ProfitFactor))
	pnl.Fprintf(w, "  Total P&L:     $%.2f (%.2f%%)\n", m.TotalPnl, m.TotalReturnPct)
	fmt.Fprintf(w, "  Avg R:         %.2f\n", m.AvgR)
	fmt.Fprintf(w, "  Max drawdown:  %.2f%%\n", m.MaxDrawdownPct)

	if len(m.ByStrategy) > 0 {
		header.Fprintln(w, "\n  By strategy")
		names := make([]string, 0, len(m.ByStrategy))
		for name := range m.ByStrategy {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			b := m.ByStrategy[name]
			fmt.Fprintf(w, "    %-15s %3d trades  %5.1f%% win  $%.2f\n", name, b.Trades, b.WinRate*100, b.TotalPnl)
		}
	}

	if paths.OutputDir != "" {
		fmt.Fprintf(w, "\n  Artifacts:     %s\n", paths.OutputDir)
	}
	fmt.Fprintf(w, "  Run ID:        %s\n", result.RunID)
}

func formatRatio(r backtest.Ratio) string {
	if math.IsInf(float64(r), 1) {
		return "∞"
	}
	return fmt.Sprintf("%.2f", float64(r))
}
