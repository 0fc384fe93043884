package db

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/swingrun/internal/persistence"
)

// Integration picks the profile store: postgres when the database is enabled,
// otherwise JSON files under a local directory
type Integration struct {
	manager  *Manager
	profiles persistence.ProfileStore
}

// NewIntegration opens the database (if enabled) and prepares the profile store
func NewIntegration(config Config, profileDir string) (*Integration, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}
	manager, err := NewManager(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create database manager: %w", err)
	}
	return newIntegration(manager, profileDir)
}

func newIntegration(manager *Manager, profileDir string) (*Integration, error) {
	i := &Integration{manager: manager}
	if manager.IsEnabled() {
		i.profiles = manager.Repository().Profiles
	} else {
		store, err := persistence.NewFileProfileStore(profileDir)
		if err != nil {
			return nil, err
		}
		i.profiles = store
	}

	log.Info().
		Bool("db_enabled", manager.IsEnabled()).
		Str("profile_dir", profileDir).
		Msg("Persistence initialized")
	return i, nil
}

// Profiles returns the active profile store
func (i *Integration) Profiles() persistence.ProfileStore {
	return i.profiles
}

// Backtests returns the backtest repository, or nil when the database is disabled
func (i *Integration) Backtests() persistence.BacktestRepo {
	if !i.manager.IsEnabled() {
		return nil
	}
	return i.manager.Repository().Backtests
}

// Manager returns the database manager
func (i *Integration) Manager() *Manager {
	return i.manager
}

// Health returns the database health status
func (i *Integration) Health(ctx context.Context) persistence.HealthCheck {
	return i.manager.Health().Health(ctx)
}

// Close gracefully shuts down the database connection
func (i *Integration) Close() error {
	if !i.manager.IsEnabled() {
		return nil
	}
	log.Info().Msg("Closing database connection")
	return i.manager.Close()
}
