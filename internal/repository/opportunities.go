package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yourusername/applytrack-api/internal/model"
)

const opportunityColumns = `
	id, user_id, source, external_id, title, company, location, remote, url,
	description, salary_min, salary_max, posted_at, fit_score, fit_summary,
	skills, matched_skills, missing_skills, status, created_at, updated_at`

type OpportunityRepo struct {
	pool *pgxpool.Pool
}

func NewOpportunityRepo(pool *pgxpool.Pool) *OpportunityRepo {
	return &OpportunityRepo{pool: pool}
}

func scanOpportunity(row rowScanner) (*model.JobOpportunity, error) {
	var o model.JobOpportunity
	err := row.Scan(
		&o.ID, &o.UserID, &o.Source, &o.ExternalID, &o.Title, &o.Company,
		&o.Location, &o.Remote, &o.URL, &o.Description, &o.SalaryMin,
		&o.SalaryMax, &o.PostedAt, &o.FitScore, &o.FitSummary,
		&o.Skills, &o.MatchedSkills, &o.MissingSkills, &o.Status, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// Upsert stores a posting for a user, deduplicated by (user, source, external id).
// inserted is false when the posting was already known; in that case only the
// mutable listing fields are refreshed and the user's status and score are kept.
func (r *OpportunityRepo) Upsert(ctx context.Context, userID uuid.UUID, p *model.ScannedPosting) (opp *model.JobOpportunity, inserted bool, err error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO job_opportunities (user_id, source, external_id, title, company,
		                               location, remote, url, description,
		                               salary_min, salary_max, posted_at, skills)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (user_id, source, external_id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			skills = EXCLUDED.skills,
			salary_min = EXCLUDED.salary_min,
			salary_max = EXCLUDED.salary_max,
			updated_at = now()
		RETURNING `+opportunityColumns+`, (xmax = 0)`,
		userID, p.Source, p.ExternalID, p.Title, p.Company, p.Location, p.Remote,
		p.URL, p.Description, p.SalaryMin, p.SalaryMax, p.PostedAt, nonNil(p.Tags),
	)

	var o model.JobOpportunity
	err = row.Scan(
		&o.ID, &o.UserID, &o.Source, &o.ExternalID, &o.Title, &o.Company,
		&o.Location, &o.Remote, &o.URL, &o.Description, &o.SalaryMin,
		&o.SalaryMax, &o.PostedAt, &o.FitScore, &o.FitSummary,
		&o.Skills, &o.MatchedSkills, &o.MissingSkills, &o.Status, &o.CreatedAt, &o.UpdatedAt,
		&inserted,
	)
	if err != nil {
		return nil, false, fmt.Errorf("upserting opportunity: %w", err)
	}
	return &o, inserted, nil
}

// List returns opportunities for a user, best fit first
func (r *OpportunityRepo) List(ctx context.Context, userID uuid.UUID, f model.OpportunityFilter) ([]model.JobOpportunity, error) {
	query := `SELECT ` + opportunityColumns + ` FROM job_opportunities WHERE user_id = $1`
	args := []any{userID}
	argIdx := 2

	if f.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, f.Status)
		argIdx++
	} else {
		query += " AND status <> 'dismissed'"
	}
	if f.Source != "" {
		query += fmt.Sprintf(" AND source = $%d", argIdx)
		args = append(args, f.Source)
		argIdx++
	}
	if f.MinScore > 0 {
		query += fmt.Sprintf(" AND fit_score >= $%d", argIdx)
		args = append(args, f.MinScore)
		argIdx++
	}

	query += fmt.Sprintf(` ORDER BY fit_score DESC NULLS LAST, posted_at DESC NULLS LAST
		LIMIT $%d OFFSET $%d`, argIdx, argIdx+1)
	args = append(args, clampLimit(f.Limit, 30, 200), max(f.Offset, 0))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing opportunities: %w", err)
	}
	defer rows.Close()

	var opps []model.JobOpportunity
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning opportunity: %w", err)
		}
		opps = append(opps, *o)
	}
	return opps, rows.Err()
}

func (r *OpportunityRepo) FindByID(ctx context.Context, id, userID uuid.UUID) (*model.JobOpportunity, error) {
	o, err := scanOpportunity(r.pool.QueryRow(ctx, `
		SELECT `+opportunityColumns+` FROM job_opportunities WHERE id = $1 AND user_id = $2
	`, id, userID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding opportunity: %w", err)
	}
	return o, nil
}

// UpdateStatus sets the user's triage status on an opportunity
func (r *OpportunityRepo) UpdateStatus(ctx context.Context, id, userID uuid.UUID, status string) (*model.JobOpportunity, error) {
	o, err := scanOpportunity(r.pool.QueryRow(ctx, `
		UPDATE job_opportunities SET status = $3, updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING `+opportunityColumns, id, userID, status))
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("updating opportunity status: %w", err)
	}
	return o, nil
}

// UpdateFit stores a fit result on an opportunity
func (r *OpportunityRepo) UpdateFit(ctx context.Context, id uuid.UUID, fit *model.FitResult) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE job_opportunities
		SET fit_score = $2, fit_summary = $3, matched_skills = $4, missing_skills = $5,
		    updated_at = now()
		WHERE id = $1
	`, id, fit.Score, fit.Summary, nonNil(fit.MatchedSkills), nonNil(fit.MissingSkills))
	if err != nil {
		return fmt.Errorf("updating opportunity fit: %w", err)
	}
	return nil
}

func (r *OpportunityRepo) Delete(ctx context.Context, id, userID uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM job_opportunities WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting opportunity: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountNew returns how many untriaged opportunities a user has
func (r *OpportunityRepo) CountNew(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM job_opportunities WHERE user_id = $1 AND status = 'new'
	`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting new opportunities: %w", err)
	}
	return n, nil
}
