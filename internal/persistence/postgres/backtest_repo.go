package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sawpanic/swingrun/internal/backtest"
	"github.com/sawpanic/swingrun/internal/persistence"
)

// backtestRepo implements BacktestRepo for PostgreSQL
type backtestRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewBacktestRepo creates a new PostgreSQL backtest repository
func NewBacktestRepo(db *sqlx.DB, timeout time.Duration) persistence.BacktestRepo {
	return &backtestRepo{
		db:      db,
		timeout: timeout,
	}
}

// SaveRun stores the run header and its trades in one transaction
func (r *backtestRepo) SaveRun(ctx context.Context, res *backtest.Result) error {
	if res == nil || res.RunID == "" {
		return errors.New("backtest result must have a run ID")
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout*time.Duration(len(res.Trades)/100+1))
	defer cancel()

	configJSON, err := json.Marshal(res.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	metricsJSON, err := json.Marshal(res.Metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO backtest_runs
		(run_id, symbol, started_at, finished_at, first_bar, last_bar, trade_count,
		 win_rate, total_pnl, max_drawdown_pct, config, metrics)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		res.RunID, res.Config.Symbol, res.StartedAt, res.FinishedAt, res.FirstBar, res.LastBar,
		len(res.Trades), res.Metrics.WinRate, res.Metrics.TotalPnl, res.Metrics.MaxDrawdownPct,
		configJSON, metricsJSON)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("duplicate backtest run %s: %w", res.RunID, err)
		}
		return fmt.Errorf("failed to insert backtest run: %w", err)
	}

	if len(res.Trades) == 0 {
		return tx.Commit()
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO backtest_trades
		(run_id, seq, strategy, direction, entry_date, exit_date, exit_reason, pnl_dollars, r_multiple, won, body)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, trade := range res.Trades {
		body, err := json.Marshal(trade)
		if err != nil {
			return fmt.Errorf("failed to marshal trade %d: %w", i, err)
		}
		_, err = stmt.ExecContext(ctx,
			res.RunID, i, trade.Strategy, string(trade.Direction), trade.EntryDate, trade.ExitDate,
			string(trade.ExitReason), trade.PnlDollars, trade.RMultiple, trade.Won, body)
		if err != nil {
			return fmt.Errorf("failed to insert trade %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// ListRuns returns recent runs for a symbol
func (r *backtestRepo) ListRuns(ctx context.Context, symbol string, limit int) ([]persistence.RunSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT run_id, symbol, started_at, finished_at, first_bar, last_bar, trade_count,
		       win_rate, total_pnl, max_drawdown_pct
		FROM backtest_runs
		WHERE symbol = $1
		ORDER BY started_at DESC
		LIMIT $2`

	var runs []persistence.RunSummary
	if err := r.db.SelectContext(ctx, &runs, query, symbol, limit); err != nil {
		return nil, fmt.Errorf("failed to list backtest runs: %w", err)
	}
	return runs, nil
}

// Trades returns a run's trades in the order they were stored
func (r *backtestRepo) Trades(ctx context.Context, runID string) ([]backtest.Trade, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryxContext(ctx, `SELECT body FROM backtest_trades WHERE run_id = $1 ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades for run %s: %w", runID, err)
	}
	defer rows.Close()

	var trades []backtest.Trade
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		var t backtest.Trade
		if err := json.Unmarshal(body, &t); err != nil {
			return nil, fmt.Errorf("failed to decode trade: %w", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trades: %w", err)
	}
	return trades, nil
}
