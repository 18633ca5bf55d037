package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yourusername/applytrack-api/internal/model"
)

const resumeColumns = `
	id, user_id, name, file_name, file_path, mime_type, size_bytes, raw_text,
	kind, parent_resume_id, opportunity_id, is_primary, created_at`

type ResumeRepo struct {
	pool *pgxpool.Pool
}

func NewResumeRepo(pool *pgxpool.Pool) *ResumeRepo {
	return &ResumeRepo{pool: pool}
}

func scanResume(row rowScanner) (*model.Resume, error) {
	var r model.Resume
	err := row.Scan(
		&r.ID, &r.UserID, &r.Name, &r.FileName, &r.FilePath, &r.MimeType,
		&r.SizeBytes, &r.RawText, &r.Kind, &r.ParentResumeID, &r.OpportunityID,
		&r.IsPrimary, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Create stores a résumé. The first résumé a user keeps becomes primary.
func (r *ResumeRepo) Create(ctx context.Context, res *model.Resume) (*model.Resume, error) {
	if res.Kind == "" {
		res.Kind = model.ResumeUploaded
	}
	created, err := scanResume(r.pool.QueryRow(ctx, `
		INSERT INTO resumes (user_id, name, file_name, file_path, mime_type, size_bytes,
		                     raw_text, kind, parent_resume_id, opportunity_id, is_primary)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		        NOT EXISTS (SELECT 1 FROM resumes WHERE user_id = $1 AND is_primary AND deleted_at IS NULL))
		RETURNING `+resumeColumns,
		res.UserID, res.Name, res.FileName, res.FilePath, res.MimeType, res.SizeBytes,
		res.RawText, res.Kind, res.ParentResumeID, res.OpportunityID,
	))
	if err != nil {
		return nil, fmt.Errorf("creating resume: %w", err)
	}
	return created, nil
}

// List returns live résumés without their extracted text
func (r *ResumeRepo) List(ctx context.Context, userID uuid.UUID) ([]model.Resume, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+resumeColumns+`
		FROM resumes
		WHERE user_id = $1 AND deleted_at IS NULL
		ORDER BY is_primary DESC, created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing resumes: %w", err)
	}
	defer rows.Close()

	var resumes []model.Resume
	for rows.Next() {
		res, err := scanResume(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning resume: %w", err)
		}
		res.RawText = ""
		resumes = append(resumes, *res)
	}
	return resumes, rows.Err()
}

func (r *ResumeRepo) FindByID(ctx context.Context, id, userID uuid.UUID) (*model.Resume, error) {
	res, err := scanResume(r.pool.QueryRow(ctx, `
		SELECT `+resumeColumns+` FROM resumes
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
	`, id, userID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding resume: %w", err)
	}
	return res, nil
}

// FindPrimary returns the user's primary résumé, or nil when none is set
func (r *ResumeRepo) FindPrimary(ctx context.Context, userID uuid.UUID) (*model.Resume, error) {
	res, err := scanResume(r.pool.QueryRow(ctx, `
		SELECT `+resumeColumns+` FROM resumes
		WHERE user_id = $1 AND is_primary AND deleted_at IS NULL
	`, userID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding primary resume: %w", err)
	}
	return res, nil
}

// SetPrimary moves the primary flag to one résumé
func (r *ResumeRepo) SetPrimary(ctx context.Context, id, userID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		UPDATE resumes SET is_primary = false
		WHERE user_id = $1 AND is_primary AND id <> $2
	`, userID, id)
	if err != nil {
		return fmt.Errorf("clearing primary resume: %w", err)
	}

	result, err := tx.Exec(ctx, `
		UPDATE resumes SET is_primary = true
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
	`, id, userID)
	if err != nil {
		return fmt.Errorf("setting primary resume: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return tx.Commit(ctx)
}

// SoftDelete hides a résumé and returns its stored file path so the caller can
// remove the file. Deleting the primary promotes the newest remaining one.
func (r *ResumeRepo) SoftDelete(ctx context.Context, id, userID uuid.UUID) (string, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var path string
	var wasPrimary bool
	err = tx.QueryRow(ctx, `
		SELECT file_path, is_primary FROM resumes
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
		FOR UPDATE
	`, id, userID).Scan(&path, &wasPrimary)
	if err == pgx.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("fetching resume: %w", err)
	}

	_, err = tx.Exec(ctx, `UPDATE resumes SET deleted_at = now(), is_primary = false WHERE id = $1`, id)
	if err != nil {
		return "", fmt.Errorf("deleting resume: %w", err)
	}

	if wasPrimary {
		_, err = tx.Exec(ctx, `
			UPDATE resumes SET is_primary = true
			WHERE id = (SELECT id FROM resumes WHERE user_id = $1 AND deleted_at IS NULL
			            ORDER BY created_at DESC LIMIT 1)
		`, userID)
		if err != nil {
			return "", fmt.Errorf("promoting primary resume: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("committing transaction: %w", err)
	}
	return path, nil
}
