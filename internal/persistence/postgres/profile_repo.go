package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/swingrun/internal/calibration"
	"github.com/sawpanic/swingrun/internal/persistence"
)

// profileRepo implements ProfileStore for PostgreSQL. The full profile is
// kept as JSONB; the scalar columns exist for listing and auditing.
type profileRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewProfileRepo creates a new PostgreSQL calibration profile repository
func NewProfileRepo(db *sqlx.DB, timeout time.Duration) persistence.ProfileStore {
	return &profileRepo{
		db:      db,
		timeout: timeout,
	}
}

// Save inserts or replaces the profile and makes it the only active one
func (r *profileRepo) Save(ctx context.Context, p *calibration.Profile) error {
	if p == nil || p.ID == "" {
		return errors.New("profile must have an ID")
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE calibration_profiles SET active = FALSE WHERE active`); err != nil {
		return fmt.Errorf("failed to deactivate previous profile: %w", err)
	}

	query := `
		INSERT INTO calibration_profiles
		(id, schema_version, created_at, updated_at, applied, sample_count, body, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
		ON CONFLICT (id) DO UPDATE SET
			schema_version = EXCLUDED.schema_version,
			updated_at = EXCLUDED.updated_at,
			applied = EXCLUDED.applied,
			sample_count = EXCLUDED.sample_count,
			body = EXCLUDED.body,
			active = TRUE`

	if _, err := tx.ExecContext(ctx, query,
		p.ID, p.SchemaVersion, p.CreatedAt, p.UpdatedAt,
		p.Benchmark.CalibrationApplied, p.SampleCount, body); err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}

	return tx.Commit()
}

// Latest returns the active profile
func (r *profileRepo) Latest(ctx context.Context) (*calibration.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT body
		FROM calibration_profiles
		WHERE active
		ORDER BY updated_at DESC
		LIMIT 1`

	return r.scanProfile(r.db.QueryRowxContext(ctx, query), "latest")
}

// Get retrieves a profile by ID
func (r *profileRepo) Get(ctx context.Context, id string) (*calibration.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	return r.scanProfile(r.db.QueryRowxContext(ctx, `SELECT body FROM calibration_profiles WHERE id = $1`, id), id)
}

// ClearLatest deactivates every profile
func (r *profileRepo) ClearLatest(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `UPDATE calibration_profiles SET active = FALSE WHERE active`); err != nil {
		return fmt.Errorf("failed to clear active profile: %w", err)
	}
	return nil
}

func (r *profileRepo) scanProfile(row *sqlx.Row, label string) (*calibration.Profile, error) {
	var body []byte
	if err := row.Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get profile %s: %w", label, err)
	}

	var p calibration.Profile
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("failed to decode profile %s: %w", label, err)
	}
	return &p, nil
}
