package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/swingrun/internal/calibration"
	"github.com/sawpanic/swingrun/internal/calibration/runtime"
	"github.com/sawpanic/swingrun/internal/persistence"
)

func newProfileCmd() *cobra.Command {
	profileCmd := &cobra.Command{
		Use:   "profile",
		Short: "Inspect or withdraw stored calibration profiles",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the latest profile (or --id) and the loader status it produces",
		RunE:  runProfileShow,
	}
	showCmd.Flags().String("id", "", "Profile ID (default: latest)")
	showCmd.Flags().Bool("json", false, "Print the raw profile JSON")

	invalidateCmd := &cobra.Command{
		Use:   "invalidate",
		Short: "Withdraw the latest profile so loaders fall back to no adjustment",
		Long: `Clears the latest-profile pointer. Stored profiles are kept and remain
readable with 'profile show --id'. Loaders report MISSING once their cache
expires.`,
		RunE: runProfileInvalidate,
	}

	profileCmd.AddCommand(showCmd, invalidateCmd)
	return profileCmd
}

func runProfileShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id, _ := cmd.Flags().GetString("id")
	asJSON, _ := cmd.Flags().GetBool("json")

	s, err := openStores(ctx, appConfig)
	if err != nil {
		return err
	}
	defer s.Close()

	var p *calibration.Profile
	if id != "" {
		p, err = s.profiles.Get(ctx, id)
	} else {
		p, err = s.profiles.Latest(ctx)
	}
	if errors.Is(err, persistence.ErrNotFound) {
		fmt.Fprintln(os.Stdout, "No calibration profile stored (status MISSING)")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read profile: %w", err)
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	}

	printProfileSummary(os.Stdout, p)

	if id == "" {
		rep := runtime.NewLoader(s.profiles, appConfig.Calibration.Loader).Status(ctx)
		fmt.Fprintf(os.Stdout, "\n  Loader status: %s (%s)\n", rep.Status, rep.Reason)
	}
	return nil
}

func runProfileInvalidate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	s, err := openStores(ctx, appConfig)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.profiles.ClearLatest(ctx); err != nil {
		return fmt.Errorf("failed to invalidate profile: %w", err)
	}
	log.Info().Str("store", appConfig.Calibration.Store).Msg("Latest calibration profile withdrawn")
	return nil
}
