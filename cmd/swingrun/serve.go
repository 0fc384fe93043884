package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/swingrun/internal/calibration/runtime"
	httpapi "github.com/sawpanic/swingrun/internal/interfaces/http"
	"github.com/sawpanic/swingrun/internal/metrics"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve calibration lookups, health and metrics over HTTP",
		Long: `Serves calibration status, weights and confidence factors, health and
Prometheus metrics. The loaded profile is cached; send SIGHUP or
POST /calibration/reload after calibrate or profile invalidate to pick up the
change without waiting for the cache TTL.`,
		RunE:  runServe,
	}
	cmd.Flags().String("host", "", "HTTP host (default from config)")
	cmd.Flags().Int("port", 0, "HTTP port (default from config)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	serverCfg := appConfig.HTTP
	overrideString(cmd.Flags(), "host", &serverCfg.Host)
	overrideInt(cmd.Flags(), "port", &serverCfg.Port)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := openStores(ctx, appConfig)
	if err != nil {
		return err
	}
	defer s.Close()

	reg := metrics.NewRegistry()
	loader := runtime.NewLoader(s.profiles, appConfig.Calibration.Loader)
	loader.SetRecorder(reg)

	var health httpapi.HealthChecker
	if s.integration != nil {
		health = s.integration
	}

	server := httpapi.NewServer(serverCfg, loader, reg, health, version)

	rep := loader.Status(ctx)
	log.Info().Str("status", string(rep.Status)).Str("reason", rep.Reason).Msg("Calibration loader ready")

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go reloadOnSignal(ctx, hup, loader)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// reloadOnSignal invalidates the calibration cache each time sig fires, until
// ctx is done
func reloadOnSignal(ctx context.Context, sig <-chan os.Signal, cal httpapi.Calibration) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sig:
			cal.Invalidate()
			rep := cal.Status(ctx)
			log.Info().
				Str("status", string(rep.Status)).
				Str("profile_id", rep.ProfileID).
				Str("reason", rep.Reason).
				Msg("Calibration profile reloaded on SIGHUP")
		}
	}
}
