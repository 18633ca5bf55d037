package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yourusername/applytrack-api/internal/model"
)

const coverLetterColumns = `
	id, user_id, application_id, opportunity_id, resume_id, title, content,
	tone, provider, created_at, updated_at`

type CoverLetterRepo struct {
	pool *pgxpool.Pool
}

func NewCoverLetterRepo(pool *pgxpool.Pool) *CoverLetterRepo {
	return &CoverLetterRepo{pool: pool}
}

func scanCoverLetter(row rowScanner) (*model.CoverLetter, error) {
	var cl model.CoverLetter
	err := row.Scan(
		&cl.ID, &cl.UserID, &cl.ApplicationID, &cl.OpportunityID, &cl.ResumeID,
		&cl.Title, &cl.Content, &cl.Tone, &cl.Provider, &cl.CreatedAt, &cl.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &cl, nil
}

// Create stores a letter and, when it belongs to an application, links it there
func (r *CoverLetterRepo) Create(ctx context.Context, cl *model.CoverLetter) (*model.CoverLetter, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	created, err := scanCoverLetter(tx.QueryRow(ctx, `
		INSERT INTO cover_letters (user_id, application_id, opportunity_id, resume_id,
		                           title, content, tone, provider)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+coverLetterColumns,
		cl.UserID, cl.ApplicationID, cl.OpportunityID, cl.ResumeID,
		cl.Title, cl.Content, cl.Tone, cl.Provider,
	))
	if err != nil {
		return nil, fmt.Errorf("creating cover letter: %w", err)
	}

	if created.ApplicationID != nil {
		_, err = tx.Exec(ctx, `
			UPDATE applications SET cover_letter_id = $1, updated_at = now()
			WHERE id = $2 AND user_id = $3
		`, created.ID, *created.ApplicationID, created.UserID)
		if err != nil {
			return nil, fmt.Errorf("linking cover letter: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return created, nil
}

func (r *CoverLetterRepo) List(ctx context.Context, userID uuid.UUID, applicationID *uuid.UUID) ([]model.CoverLetter, error) {
	query := `SELECT ` + coverLetterColumns + ` FROM cover_letters WHERE user_id = $1`
	args := []any{userID}
	if applicationID != nil {
		query += " AND application_id = $2"
		args = append(args, *applicationID)
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing cover letters: %w", err)
	}
	defer rows.Close()

	var letters []model.CoverLetter
	for rows.Next() {
		cl, err := scanCoverLetter(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning cover letter: %w", err)
		}
		letters = append(letters, *cl)
	}
	return letters, rows.Err()
}

func (r *CoverLetterRepo) FindByID(ctx context.Context, id, userID uuid.UUID) (*model.CoverLetter, error) {
	cl, err := scanCoverLetter(r.pool.QueryRow(ctx, `
		SELECT `+coverLetterColumns+` FROM cover_letters WHERE id = $1 AND user_id = $2
	`, id, userID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding cover letter: %w", err)
	}
	return cl, nil
}

// Update replaces the editable text of a letter
func (r *CoverLetterRepo) Update(ctx context.Context, id, userID uuid.UUID, title, content string) (*model.CoverLetter, error) {
	cl, err := scanCoverLetter(r.pool.QueryRow(ctx, `
		UPDATE cover_letters SET title = $3, content = $4, updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING `+coverLetterColumns, id, userID, title, content))
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("updating cover letter: %w", err)
	}
	return cl, nil
}

func (r *CoverLetterRepo) Delete(ctx context.Context, id, userID uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM cover_letters WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting cover letter: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
