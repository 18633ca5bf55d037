package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yourusername/applytrack-api/internal/model"
)

const followUpColumns = `
	f.id, f.user_id, f.application_id, f.contact_id, f.title, f.notes, f.channel,
	f.due_at, f.completed_at, f.created_at, f.updated_at,
	COALESCE(a.company, ''), COALESCE(a.position, '')`

type FollowUpRepo struct {
	pool *pgxpool.Pool
}

func NewFollowUpRepo(pool *pgxpool.Pool) *FollowUpRepo {
	return &FollowUpRepo{pool: pool}
}

func scanFollowUp(row rowScanner) (*model.FollowUp, error) {
	var f model.FollowUp
	err := row.Scan(
		&f.ID, &f.UserID, &f.ApplicationID, &f.ContactID, &f.Title, &f.Notes,
		&f.Channel, &f.DueAt, &f.CompletedAt, &f.CreatedAt, &f.UpdatedAt,
		&f.Company, &f.Position,
	)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *FollowUpRepo) query(ctx context.Context, where string, args ...any) ([]model.FollowUp, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+followUpColumns+`
		FROM follow_ups f
		LEFT JOIN applications a ON a.id = f.application_id AND a.user_id = f.user_id
		WHERE `+where+`
		ORDER BY f.due_at ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("listing follow-ups: %w", err)
	}
	defer rows.Close()

	var out []model.FollowUp
	for rows.Next() {
		f, err := scanFollowUp(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning follow-up: %w", err)
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

// List returns a user's follow-ups; dueOnly keeps open ones due by the end of today
func (r *FollowUpRepo) List(ctx context.Context, userID uuid.UUID, dueOnly, includeCompleted bool) ([]model.FollowUp, error) {
	where := "f.user_id = $1"
	if !includeCompleted {
		where += " AND f.completed_at IS NULL"
	}
	if dueOnly {
		where += " AND f.due_at < date_trunc('day', now()) + interval '1 day'"
	}
	return r.query(ctx, where, userID)
}

// ListDueWithin returns open follow-ups across all users due inside the window
// that have not produced a reminder alert yet. Follow-ups of deleted
// applications are left out.
func (r *FollowUpRepo) ListDueWithin(ctx context.Context, window time.Duration) ([]model.FollowUp, error) {
	return r.query(ctx, `f.completed_at IS NULL AND f.due_at < now() + make_interval(secs => $1)
		AND a.deleted_at IS NULL
		AND NOT EXISTS (SELECT 1 FROM alerts al WHERE al.follow_up_id = f.id)`, window.Seconds())
}

func (r *FollowUpRepo) FindByID(ctx context.Context, id, userID uuid.UUID) (*model.FollowUp, error) {
	list, err := r.query(ctx, "f.id = $1 AND f.user_id = $2", id, userID)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return &list[0], nil
}

func (r *FollowUpRepo) Create(ctx context.Context, f *model.FollowUp) (*model.FollowUp, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `
		INSERT INTO follow_ups (user_id, application_id, contact_id, title, notes, channel, due_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, f.UserID, f.ApplicationID, f.ContactID, f.Title, f.Notes, f.Channel, f.DueAt).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("creating follow-up: %w", err)
	}
	return r.FindByID(ctx, id, f.UserID)
}

func (r *FollowUpRepo) Update(ctx context.Context, f *model.FollowUp) (*model.FollowUp, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE follow_ups
		SET application_id = $3, contact_id = $4, title = $5, notes = $6, channel = $7,
		    due_at = $8, updated_at = now()
		WHERE id = $1 AND user_id = $2
	`, f.ID, f.UserID, f.ApplicationID, f.ContactID, f.Title, f.Notes, f.Channel, f.DueAt)
	if err != nil {
		return nil, fmt.Errorf("updating follow-up: %w", err)
	}
	if result.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return r.FindByID(ctx, f.ID, f.UserID)
}

// Complete marks a follow-up done and stamps the linked contact as contacted
func (r *FollowUpRepo) Complete(ctx context.Context, id, userID uuid.UUID) (*model.FollowUp, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var contactID *uuid.UUID
	err = tx.QueryRow(ctx, `
		UPDATE follow_ups SET completed_at = COALESCE(completed_at, now()), updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING contact_id
	`, id, userID).Scan(&contactID)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("completing follow-up: %w", err)
	}

	if contactID != nil {
		_, err = tx.Exec(ctx, `
			UPDATE contacts SET last_contacted_at = now(), updated_at = now()
			WHERE id = $1 AND user_id = $2
		`, *contactID, userID)
		if err != nil {
			return nil, fmt.Errorf("stamping contact: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return r.FindByID(ctx, id, userID)
}

func (r *FollowUpRepo) Delete(ctx context.Context, id, userID uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM follow_ups WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting follow-up: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
