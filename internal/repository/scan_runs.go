package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yourusername/applytrack-api/internal/model"
)

const scanRunColumns = `id, user_id, trigger, started_at, finished_at, fetched, created, alerts, error`

type ScanRunRepo struct {
	pool *pgxpool.Pool
}

func NewScanRunRepo(pool *pgxpool.Pool) *ScanRunRepo {
	return &ScanRunRepo{pool: pool}
}

func scanScanRun(row rowScanner) (*model.ScanRun, error) {
	var s model.ScanRun
	err := row.Scan(&s.ID, &s.UserID, &s.Trigger, &s.StartedAt, &s.FinishedAt,
		&s.Fetched, &s.Created, &s.Alerts, &s.Error)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Start records the beginning of a scan
func (r *ScanRunRepo) Start(ctx context.Context, userID uuid.UUID, trigger string) (*model.ScanRun, error) {
	run, err := scanScanRun(r.pool.QueryRow(ctx, `
		INSERT INTO scan_runs (user_id, trigger) VALUES ($1, $2)
		RETURNING `+scanRunColumns, userID, trigger))
	if err != nil {
		return nil, fmt.Errorf("starting scan run: %w", err)
	}
	return run, nil
}

// Finish writes the counters and error of a completed run
func (r *ScanRunRepo) Finish(ctx context.Context, run *model.ScanRun) error {
	err := r.pool.QueryRow(ctx, `
		UPDATE scan_runs
		SET finished_at = now(), fetched = $2, created = $3, alerts = $4, error = $5
		WHERE id = $1
		RETURNING finished_at
	`, run.ID, run.Fetched, run.Created, run.Alerts, run.Error).Scan(&run.FinishedAt)
	if err != nil {
		return fmt.Errorf("finishing scan run: %w", err)
	}
	return nil
}

// LastStarted returns the most recent run for a user, or nil
func (r *ScanRunRepo) LastStarted(ctx context.Context, userID uuid.UUID) (*model.ScanRun, error) {
	run, err := scanScanRun(r.pool.QueryRow(ctx, `
		SELECT `+scanRunColumns+` FROM scan_runs
		WHERE user_id = $1
		ORDER BY started_at DESC
		LIMIT 1
	`, userID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding last scan run: %w", err)
	}
	return run, nil
}

func (r *ScanRunRepo) List(ctx context.Context, userID uuid.UUID, limit int) ([]model.ScanRun, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+scanRunColumns+` FROM scan_runs
		WHERE user_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`, userID, clampLimit(limit, 20, 100))
	if err != nil {
		return nil, fmt.Errorf("listing scan runs: %w", err)
	}
	defer rows.Close()

	var runs []model.ScanRun
	for rows.Next() {
		run, err := scanScanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}
