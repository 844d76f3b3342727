// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/taskprogress/internal/store"
)

// RunStoreConfig controls the Postgres connection pool used for task_runs.
type RunStoreConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// Pool is the subset of pgxpool.Pool used by RunStore.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// RunStore implements store.RunRepository using Postgres.
type RunStore struct {
	pool Pool
}

// NewRunStore creates a RunStore backed by a new connection pool.
func NewRunStore(ctx context.Context, cfg RunStoreConfig) (*RunStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &RunStore{pool: pool}, nil
}

// NewRunStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewRunStoreWithPool(pool Pool) (*RunStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &RunStore{pool: pool}, nil
}

// Close closes the underlying connection pool.
func (s *RunStore) Close() {
	s.pool.Close()
}

// UpsertRunStart inserts a running row; a repeated start is a no-op.
func (s *RunStore) UpsertRunStart(ctx context.Context, run store.TaskRun) error {
	query := `
		INSERT INTO task_runs (id, name, is_primary, depth, started_at, status, steps, total, last_step, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, '', $5)
		ON CONFLICT (id) DO NOTHING;
	`
	_, err := s.pool.Exec(
		ctx,
		query,
		run.ID,
		run.Name,
		run.Primary,
		run.Depth,
		run.StartedAt,
		string(store.RunRunning),
		run.Total,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert run start: %w", err)
	}
	return nil
}

// RecordSteps increments the step counter and stores the latest step name.
func (s *RunStore) RecordSteps(
	ctx context.Context,
	runID uuid.UUID,
	deltaSteps int64,
	lastStep string,
	at time.Time,
) error {
	query := `
		UPDATE task_runs
		SET steps = steps + $1, last_step = $2, updated_at = GREATEST(updated_at, $3)
		WHERE id = $4;
	`
	res, err := s.pool.Exec(ctx, query, deltaSteps, lastStep, at, runID)
	if err != nil {
		return fmt.Errorf("failed to record steps: %w", err)
	}
	if res.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// CompleteRun marks a run completed, keeping the first finish time.
func (s *RunStore) CompleteRun(ctx context.Context, runID uuid.UUID, finishedAt time.Time) error {
	query := `
		UPDATE task_runs
		SET finished_at = COALESCE(finished_at, $1),
			status = $2,
			updated_at = GREATEST(updated_at, $1)
		WHERE id = $3;
	`
	res, err := s.pool.Exec(ctx, query, finishedAt, string(store.RunCompleted), runID)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if res.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

const selectRunColumns = `
		SELECT id, name, is_primary, depth, started_at, finished_at, status, steps, total, last_step, updated_at
		FROM task_runs`

// GetRun retrieves a single run by its ID.
func (s *RunStore) GetRun(ctx context.Context, runID uuid.UUID) (store.TaskRun, error) {
	query := selectRunColumns + `
		WHERE id = $1;
	`
	run, err := scanRun(s.pool.QueryRow(ctx, query, runID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.TaskRun{}, store.ErrNotFound
		}
		return store.TaskRun{}, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns retrieves runs, newest first, with optional status filtering.
func (s *RunStore) ListRuns(
	ctx context.Context,
	status *store.RunStatus,
	limit,
	offset int,
) ([]store.TaskRun, error) {
	query := selectRunColumns + `
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3;
	`
	var statusArg *string
	if status != nil {
		v := string(*status)
		statusArg = &v
	}
	rows, err := s.pool.Query(ctx, query, statusArg, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []store.TaskRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate run rows: %w", err)
	}
	return runs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (store.TaskRun, error) {
	var (
		run    store.TaskRun
		status string
	)
	err := row.Scan(
		&run.ID,
		&run.Name,
		&run.Primary,
		&run.Depth,
		&run.StartedAt,
		&run.FinishedAt,
		&status,
		&run.Steps,
		&run.Total,
		&run.LastStep,
		&run.UpdatedAt,
	)
	if err != nil {
		return store.TaskRun{}, err
	}
	run.Status = store.RunStatus(status)
	return run, nil
}
