package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yourusername/applytrack-api/internal/model"
)

const sourceColumns = `
	id, user_id, kind, name, query, location, feed_url, enabled,
	last_scanned_at, last_error, created_at, updated_at`

type SourceRepo struct {
	pool *pgxpool.Pool
}

func NewSourceRepo(pool *pgxpool.Pool) *SourceRepo {
	return &SourceRepo{pool: pool}
}

func scanSource(row rowScanner) (*model.UserJobSource, error) {
	var s model.UserJobSource
	err := row.Scan(
		&s.ID, &s.UserID, &s.Kind, &s.Name, &s.Query, &s.Location, &s.FeedURL,
		&s.Enabled, &s.LastScannedAt, &s.LastError, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SourceRepo) list(ctx context.Context, userID uuid.UUID, enabledOnly bool) ([]model.UserJobSource, error) {
	query := `SELECT ` + sourceColumns + ` FROM user_job_sources WHERE user_id = $1`
	if enabledOnly {
		query += " AND enabled"
	}
	query += " ORDER BY created_at ASC"

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}
	defer rows.Close()

	var sources []model.UserJobSource
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning source: %w", err)
		}
		sources = append(sources, *s)
	}
	return sources, rows.Err()
}

func (r *SourceRepo) List(ctx context.Context, userID uuid.UUID) ([]model.UserJobSource, error) {
	return r.list(ctx, userID, false)
}

// ListEnabled returns the sources a scan should fetch
func (r *SourceRepo) ListEnabled(ctx context.Context, userID uuid.UUID) ([]model.UserJobSource, error) {
	return r.list(ctx, userID, true)
}

func (r *SourceRepo) FindByID(ctx context.Context, id, userID uuid.UUID) (*model.UserJobSource, error) {
	s, err := scanSource(r.pool.QueryRow(ctx, `
		SELECT `+sourceColumns+` FROM user_job_sources WHERE id = $1 AND user_id = $2
	`, id, userID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding source: %w", err)
	}
	return s, nil
}

func (r *SourceRepo) Create(ctx context.Context, s *model.UserJobSource) (*model.UserJobSource, error) {
	created, err := scanSource(r.pool.QueryRow(ctx, `
		INSERT INTO user_job_sources (user_id, kind, name, query, location, feed_url, enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+sourceColumns,
		s.UserID, s.Kind, s.Name, s.Query, s.Location, s.FeedURL, s.Enabled,
	))
	if err != nil {
		return nil, fmt.Errorf("creating source: %w", err)
	}
	return created, nil
}

func (r *SourceRepo) Update(ctx context.Context, s *model.UserJobSource) (*model.UserJobSource, error) {
	updated, err := scanSource(r.pool.QueryRow(ctx, `
		UPDATE user_job_sources
		SET name = $3, query = $4, location = $5, feed_url = $6, enabled = $7, updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING `+sourceColumns,
		s.ID, s.UserID, s.Name, s.Query, s.Location, s.FeedURL, s.Enabled,
	))
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("updating source: %w", err)
	}
	return updated, nil
}

func (r *SourceRepo) Delete(ctx context.Context, id, userID uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM user_job_sources WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting source: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordResult stamps a source after a fetch; an empty fetchErr clears the last error
func (r *SourceRepo) RecordResult(ctx context.Context, id uuid.UUID, fetchErr string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE user_job_sources SET last_scanned_at = now(), last_error = $2
		WHERE id = $1
	`, id, fetchErr)
	if err != nil {
		return fmt.Errorf("recording source result: %w", err)
	}
	return nil
}
