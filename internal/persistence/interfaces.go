package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/sawpanic/swingrun/internal/backtest"
	"github.com/sawpanic/swingrun/internal/calibration"
)

// ErrNotFound is returned when a store has no matching record
var ErrNotFound = errors.New("not found")

// ProfileStore persists calibration profiles. Every saved profile becomes the
// latest one; ClearLatest withdraws it so loaders fall back to OFF.
type ProfileStore interface {
	// Save writes the profile and marks it latest
	Save(ctx context.Context, p *calibration.Profile) error

	// Latest returns the active profile or ErrNotFound
	Latest(ctx context.Context) (*calibration.Profile, error)

	// Get retrieves a profile by ID or ErrNotFound
	Get(ctx context.Context, id string) (*calibration.Profile, error)

	// ClearLatest withdraws the active profile without deleting history
	ClearLatest(ctx context.Context) error
}

// RunSummary is one stored backtest run without its trades
type RunSummary struct {
	RunID       string    `json:"run_id" db:"run_id"`
	Symbol      string    `json:"symbol" db:"symbol"`
	StartedAt   time.Time `json:"started_at" db:"started_at"`
	FinishedAt  time.Time `json:"finished_at" db:"finished_at"`
	FirstBar    time.Time `json:"first_bar" db:"first_bar"`
	LastBar     time.Time `json:"last_bar" db:"last_bar"`
	TradeCount  int       `json:"trade_count" db:"trade_count"`
	WinRate     float64   `json:"win_rate" db:"win_rate"`
	TotalPnl    float64   `json:"total_pnl" db:"total_pnl"`
	MaxDrawdown float64   `json:"max_drawdown_pct" db:"max_drawdown_pct"`
}

// BacktestRepo stores completed backtest runs and their trades
type BacktestRepo interface {
	// SaveRun stores the run header and all trades atomically
	SaveRun(ctx context.Context, res *backtest.Result) error

	// ListRuns returns the most recent runs for a symbol, newest first
	ListRuns(ctx context.Context, symbol string, limit int) ([]RunSummary, error)

	// Trades returns a run's trades in entry order
	Trades(ctx context.Context, runID string) ([]backtest.Trade, error)
}

// Repository aggregates the persistence interfaces
type Repository struct {
	Profiles  ProfileStore
	Backtests BacktestRepo
}

// HealthCheck represents repository health status
type HealthCheck struct {
	Healthy        bool           `json:"healthy"`
	Errors         []string       `json:"errors,omitempty"`
	ConnectionPool map[string]int `json:"connection_pool"`
	LastCheck      time.Time      `json:"last_check"`
	ResponseTimeMS int64          `json:"response_time_ms"`
}

// RepositoryHealth provides health monitoring for persistence layer
type RepositoryHealth interface {
	// Health returns current repository health status
	Health(ctx context.Context) HealthCheck

	// Ping tests basic connectivity to database
	Ping(ctx context.Context) error
}
