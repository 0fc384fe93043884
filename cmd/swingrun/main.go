package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sawpanic/swingrun/internal/config"
)

const (
	appName = "SwingRun"
	version = "v0.4.0"
)

var (
	configPath string
	logLevel   string
	appConfig  *config.AppConfig
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "swingrun",
		Short:   "Daily swing-trading backtester and signal calibrator",
		Version: version,
		Long: `SwingRun backtests rule-based swing strategies on daily bars and trains
calibration profiles that reweight strategies by regime and score bucket.

Calibration is an optimization layer: a missing, stale-schema or rejected
profile leaves every multiplier at 1.0.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(logLevel)
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			appConfig = cfg
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/swingrun.yaml", "Path to YAML config (missing file uses defaults)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug|info|warn|error)")

	rootCmd.AddCommand(newBacktestCmd())
	rootCmd.AddCommand(newCalibrateCmd())
	rootCmd.AddCommand(newProfileCmd())
	rootCmd.AddCommand(newServeCmd())
	return rootCmd
}

func setupLogging(level string) {
	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		fmt.Fprintf(os.Stderr, "unknown log level %q, using info\n", level)
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
