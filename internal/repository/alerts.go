package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yourusername/applytrack-api/internal/model"
)

const alertColumns = `
	id, user_id, kind, title, body, opportunity_id, application_id,
	follow_up_id, interview_id, read_at, created_at`

type AlertRepo struct {
	pool *pgxpool.Pool
}

func NewAlertRepo(pool *pgxpool.Pool) *AlertRepo {
	return &AlertRepo{pool: pool}
}

func scanAlert(row rowScanner) (*model.Alert, error) {
	var a model.Alert
	err := row.Scan(
		&a.ID, &a.UserID, &a.Kind, &a.Title, &a.Body, &a.OpportunityID,
		&a.ApplicationID, &a.FollowUpID, &a.InterviewID, &a.ReadAt, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Create inserts an alert. Reminder alerts are unique per follow-up and per
// interview; a repeat returns nil without error.
func (r *AlertRepo) Create(ctx context.Context, a *model.Alert) (*model.Alert, error) {
	created, err := scanAlert(r.pool.QueryRow(ctx, `
		INSERT INTO alerts (user_id, kind, title, body, opportunity_id, application_id,
		                    follow_up_id, interview_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT DO NOTHING
		RETURNING `+alertColumns,
		a.UserID, a.Kind, a.Title, a.Body, a.OpportunityID, a.ApplicationID,
		a.FollowUpID, a.InterviewID,
	))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("creating alert: %w", err)
	}
	return created, nil
}

// List returns the newest alerts first
func (r *AlertRepo) List(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]model.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE user_id = $1`
	if unreadOnly {
		query += " AND read_at IS NULL"
	}
	query += " ORDER BY created_at DESC LIMIT $2"

	rows, err := r.pool.Query(ctx, query, userID, clampLimit(limit, 50, 200))
	if err != nil {
		return nil, fmt.Errorf("listing alerts: %w", err)
	}
	defer rows.Close()

	var alerts []model.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning alert: %w", err)
		}
		alerts = append(alerts, *a)
	}
	return alerts, rows.Err()
}

func (r *AlertRepo) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE alerts SET read_at = COALESCE(read_at, now())
		WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return fmt.Errorf("marking alert read: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllRead returns how many alerts changed
func (r *AlertRepo) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE alerts SET read_at = now() WHERE user_id = $1 AND read_at IS NULL
	`, userID)
	if err != nil {
		return 0, fmt.Errorf("marking alerts read: %w", err)
	}
	return result.RowsAffected(), nil
}

func (r *AlertRepo) Delete(ctx context.Context, id, userID uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM alerts WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting alert: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *AlertRepo) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM alerts WHERE user_id = $1 AND read_at IS NULL
	`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting unread alerts: %w", err)
	}
	return n, nil
}
