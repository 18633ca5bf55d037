package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yourusername/applytrack-api/internal/model"
)

const applicationColumns = `
	id, user_id, opportunity_id, company, position, location, job_url,
	salary_text, status, applied_at, source, notes, fit_score, resume_id,
	cover_letter_id, is_archived, created_at, updated_at`

type ApplicationRepo struct {
	pool *pgxpool.Pool
}

func NewApplicationRepo(pool *pgxpool.Pool) *ApplicationRepo {
	return &ApplicationRepo{pool: pool}
}

func scanApplication(row rowScanner) (*model.Application, error) {
	var a model.Application
	err := row.Scan(
		&a.ID, &a.UserID, &a.OpportunityID, &a.Company, &a.Position, &a.Location,
		&a.JobURL, &a.SalaryText, &a.Status, &a.AppliedAt, &a.Source, &a.Notes,
		&a.FitScore, &a.ResumeID, &a.CoverLetterID, &a.IsArchived,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// List returns the user's applications, newest activity first
func (r *ApplicationRepo) List(ctx context.Context, userID uuid.UUID, f model.ApplicationFilter) ([]model.Application, error) {
	query := `SELECT ` + applicationColumns + `
		FROM applications
		WHERE user_id = $1 AND deleted_at IS NULL AND is_archived = $2`
	args := []any{userID, f.Archived}
	argIdx := 3

	if f.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, f.Status)
		argIdx++
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		query += fmt.Sprintf(" AND (company ILIKE $%d OR position ILIKE $%d)", argIdx, argIdx)
		args = append(args, "%"+q+"%")
		argIdx++
	}

	query += fmt.Sprintf(" ORDER BY updated_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, clampLimit(f.Limit, 50, 200), max(f.Offset, 0))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing applications: %w", err)
	}
	defer rows.Close()

	var apps []model.Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning application row: %w", err)
		}
		apps = append(apps, *a)
	}
	return apps, rows.Err()
}

// FindByID returns an application owned by the user, or nil
func (r *ApplicationRepo) FindByID(ctx context.Context, id, userID uuid.UUID) (*model.Application, error) {
	a, err := scanApplication(r.pool.QueryRow(ctx, `
		SELECT `+applicationColumns+`
		FROM applications
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
	`, id, userID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding application: %w", err)
	}
	return a, nil
}

// FindByOpportunity returns the live application created from an opportunity, or nil
func (r *ApplicationRepo) FindByOpportunity(ctx context.Context, userID, opportunityID uuid.UUID) (*model.Application, error) {
	a, err := scanApplication(r.pool.QueryRow(ctx, `
		SELECT `+applicationColumns+`
		FROM applications
		WHERE user_id = $1 AND opportunity_id = $2 AND deleted_at IS NULL
	`, userID, opportunityID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding application by opportunity: %w", err)
	}
	return a, nil
}

// Create inserts an application and its first history entry
func (r *ApplicationRepo) Create(ctx context.Context, a *model.Application) (*model.Application, error) {
	if a.Status == "" {
		a.Status = model.StatusApplied
	}
	if a.AppliedAt == nil && a.Status != model.StatusSaved {
		now := time.Now().UTC()
		a.AppliedAt = &now
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	created, err := scanApplication(tx.QueryRow(ctx, `
		INSERT INTO applications (user_id, opportunity_id, company, position, location,
		                          job_url, salary_text, status, applied_at, source, notes,
		                          fit_score, resume_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING `+applicationColumns,
		a.UserID, a.OpportunityID, a.Company, a.Position, a.Location,
		a.JobURL, a.SalaryText, a.Status, a.AppliedAt, a.Source, a.Notes,
		a.FitScore, a.ResumeID,
	))
	if err != nil {
		return nil, fmt.Errorf("creating application: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO status_history (application_id, from_status, to_status, note)
		VALUES ($1, '', $2, 'Created')
	`, created.ID, created.Status)
	if err != nil {
		return nil, fmt.Errorf("recording initial status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return created, nil
}

// Update changes the descriptive fields; status has its own path
func (r *ApplicationRepo) Update(ctx context.Context, a *model.Application) (*model.Application, error) {
	updated, err := scanApplication(r.pool.QueryRow(ctx, `
		UPDATE applications
		SET company = $3, position = $4, location = $5, job_url = $6,
		    salary_text = $7, applied_at = $8, source = $9, notes = $10,
		    resume_id = $11, cover_letter_id = $12, updated_at = now()
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
		RETURNING `+applicationColumns,
		a.ID, a.UserID, a.Company, a.Position, a.Location, a.JobURL,
		a.SalaryText, a.AppliedAt, a.Source, a.Notes, a.ResumeID, a.CoverLetterID,
	))
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("updating application: %w", err)
	}
	return updated, nil
}

// UpdateStatus changes application status and records history
func (r *ApplicationRepo) UpdateStatus(ctx context.Context, id, userID uuid.UUID, newStatus, note string) (*model.Application, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var currentStatus string
	err = tx.QueryRow(ctx, `
		SELECT status FROM applications
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
		FOR UPDATE
	`, id, userID).Scan(&currentStatus)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching current status: %w", err)
	}

	if !model.CanTransition(currentStatus, newStatus) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, currentStatus, newStatus)
	}

	updated, err := scanApplication(tx.QueryRow(ctx, `
		UPDATE applications
		SET status = $3,
		    applied_at = CASE WHEN applied_at IS NULL AND $3 <> 'saved' THEN now() ELSE applied_at END,
		    updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING `+applicationColumns, id, userID, newStatus))
	if err != nil {
		return nil, fmt.Errorf("updating application status: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO status_history (application_id, from_status, to_status, note)
		VALUES ($1, $2, $3, $4)
	`, id, currentStatus, newStatus, note)
	if err != nil {
		return nil, fmt.Errorf("recording status history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return updated, nil
}

// SetArchived archives or restores an application
func (r *ApplicationRepo) SetArchived(ctx context.Context, id, userID uuid.UUID, archived bool) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE applications SET is_archived = $3, updated_at = now()
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
	`, id, userID, archived)
	if err != nil {
		return fmt.Errorf("archiving application: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDelete hides an application; its history stays for reporting
func (r *ApplicationRepo) SoftDelete(ctx context.Context, id, userID uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE applications SET deleted_at = now(), updated_at = now()
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
	`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting application: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetHistory returns status change history for an application
func (r *ApplicationRepo) GetHistory(ctx context.Context, applicationID, userID uuid.UUID) ([]model.StatusHistory, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT h.id, h.application_id, h.from_status, h.to_status, h.note, h.changed_at
		FROM status_history h
		JOIN applications a ON a.id = h.application_id
		WHERE h.application_id = $1 AND a.user_id = $2
		ORDER BY h.changed_at ASC
	`, applicationID, userID)
	if err != nil {
		return nil, fmt.Errorf("fetching status history: %w", err)
	}
	defer rows.Close()

	var history []model.StatusHistory
	for rows.Next() {
		var h model.StatusHistory
		if err := rows.Scan(&h.ID, &h.ApplicationID, &h.FromStatus, &h.ToStatus, &h.Note, &h.ChangedAt); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		history = append(history, h)
	}
	return history, rows.Err()
}

// CountByStatus returns pipeline counts for the dashboard
func (r *ApplicationRepo) CountByStatus(ctx context.Context, userID uuid.UUID) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT status, COUNT(*) FROM applications
		WHERE user_id = $1 AND deleted_at IS NULL AND NOT is_archived
		GROUP BY status
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("counting by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scanning count row: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}
