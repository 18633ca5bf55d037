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

const interviewColumns = `
	i.id, i.user_id, i.application_id, i.round, i.kind, i.scheduled_at,
	i.duration_minutes, i.location, i.meeting_url, i.outcome, i.notes,
	i.created_at, i.updated_at, a.company, a.position`

type InterviewRepo struct {
	pool *pgxpool.Pool
}

func NewInterviewRepo(pool *pgxpool.Pool) *InterviewRepo {
	return &InterviewRepo{pool: pool}
}

func scanInterview(row rowScanner) (*model.Interview, error) {
	var i model.Interview
	err := row.Scan(
		&i.ID, &i.UserID, &i.ApplicationID, &i.Round, &i.Kind, &i.ScheduledAt,
		&i.DurationMinutes, &i.Location, &i.MeetingURL, &i.Outcome, &i.Notes,
		&i.CreatedAt, &i.UpdatedAt, &i.Company, &i.Position,
	)
	if err != nil {
		return nil, err
	}
	i.Interviewers = []model.Interviewer{}
	return &i, nil
}

func (r *InterviewRepo) queryInterviews(ctx context.Context, where string, args ...any) ([]model.Interview, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+interviewColumns+`
		FROM interviews i
		JOIN applications a ON a.id = i.application_id
		WHERE `+where+`
		ORDER BY i.scheduled_at ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("listing interviews: %w", err)
	}
	defer rows.Close()

	var interviews []model.Interview
	for rows.Next() {
		i, err := scanInterview(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning interview: %w", err)
		}
		interviews = append(interviews, *i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return interviews, r.attachInterviewers(ctx, interviews)
}

// attachInterviewers loads interviewers for a page of interviews in one query
func (r *InterviewRepo) attachInterviewers(ctx context.Context, interviews []model.Interview) error {
	if len(interviews) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(interviews))
	index := make(map[uuid.UUID]int, len(interviews))
	for n, i := range interviews {
		ids[n] = i.ID
		index[i.ID] = n
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, interview_id, contact_id, name, title, email, linkedin_url, notes, created_at
		FROM interviewers
		WHERE interview_id = ANY($1)
		ORDER BY created_at ASC
	`, ids)
	if err != nil {
		return fmt.Errorf("loading interviewers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var iv model.Interviewer
		if err := rows.Scan(&iv.ID, &iv.InterviewID, &iv.ContactID, &iv.Name, &iv.Title,
			&iv.Email, &iv.LinkedInURL, &iv.Notes, &iv.CreatedAt); err != nil {
			return fmt.Errorf("scanning interviewer: %w", err)
		}
		n := index[iv.InterviewID]
		interviews[n].Interviewers = append(interviews[n].Interviewers, iv)
	}
	return rows.Err()
}

// ListByApplication returns every interview round for one application
func (r *InterviewRepo) ListByApplication(ctx context.Context, userID, applicationID uuid.UUID) ([]model.Interview, error) {
	return r.queryInterviews(ctx, "i.user_id = $1 AND i.application_id = $2", userID, applicationID)
}

// ListUpcoming returns interviews scheduled between now and the horizon
func (r *InterviewRepo) ListUpcoming(ctx context.Context, userID uuid.UUID, horizon time.Duration) ([]model.Interview, error) {
	return r.queryInterviews(ctx, `i.user_id = $1 AND i.scheduled_at >= now()
		AND i.scheduled_at < now() + make_interval(secs => $2) AND i.outcome = 'pending'
		AND a.deleted_at IS NULL`, userID, horizon.Seconds())
}

// ListAll returns all of a user's interviews
func (r *InterviewRepo) ListAll(ctx context.Context, userID uuid.UUID) ([]model.Interview, error) {
	return r.queryInterviews(ctx, "i.user_id = $1 AND a.deleted_at IS NULL", userID)
}

// ListStartingWithin returns pending interviews across all users that start
// within the window and have no reminder alert yet
func (r *InterviewRepo) ListStartingWithin(ctx context.Context, window time.Duration) ([]model.Interview, error) {
	return r.queryInterviews(ctx, `i.scheduled_at >= now() AND i.scheduled_at < now() + make_interval(secs => $1)
		AND i.outcome = 'pending' AND a.deleted_at IS NULL
		AND NOT EXISTS (SELECT 1 FROM alerts al WHERE al.interview_id = i.id)`, window.Seconds())
}

func (r *InterviewRepo) FindByID(ctx context.Context, id, userID uuid.UUID) (*model.Interview, error) {
	list, err := r.queryInterviews(ctx, "i.id = $1 AND i.user_id = $2", id, userID)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return &list[0], nil
}

// Create inserts an interview; round defaults to the next round for the application
func (r *InterviewRepo) Create(ctx context.Context, i *model.Interview) (*model.Interview, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `
		INSERT INTO interviews (user_id, application_id, round, kind, scheduled_at,
		                        duration_minutes, location, meeting_url, outcome, notes)
		SELECT $1, $2,
		       CASE WHEN $3 > 0 THEN $3
		            ELSE COALESCE((SELECT MAX(round) FROM interviews WHERE application_id = $2), 0) + 1 END,
		       $4, $5, $6, $7, $8, $9, $10
		RETURNING id
	`, i.UserID, i.ApplicationID, i.Round, i.Kind, i.ScheduledAt, i.DurationMinutes,
		i.Location, i.MeetingURL, i.Outcome, i.Notes,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("creating interview: %w", err)
	}
	return r.FindByID(ctx, id, i.UserID)
}

func (r *InterviewRepo) Update(ctx context.Context, i *model.Interview) (*model.Interview, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE interviews
		SET round = $3, kind = $4, scheduled_at = $5, duration_minutes = $6,
		    location = $7, meeting_url = $8, outcome = $9, notes = $10, updated_at = now()
		WHERE id = $1 AND user_id = $2
	`, i.ID, i.UserID, i.Round, i.Kind, i.ScheduledAt, i.DurationMinutes,
		i.Location, i.MeetingURL, i.Outcome, i.Notes)
	if err != nil {
		return nil, fmt.Errorf("updating interview: %w", err)
	}
	if result.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return r.FindByID(ctx, i.ID, i.UserID)
}

func (r *InterviewRepo) Delete(ctx context.Context, id, userID uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM interviews WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting interview: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AddInterviewer attaches a person to an interview the user owns
func (r *InterviewRepo) AddInterviewer(ctx context.Context, userID uuid.UUID, iv *model.Interviewer) (*model.Interviewer, error) {
	var created model.Interviewer
	err := r.pool.QueryRow(ctx, `
		INSERT INTO interviewers (interview_id, contact_id, name, title, email, linkedin_url, notes)
		SELECT i.id, $3, $4, $5, $6, $7, $8
		FROM interviews i
		WHERE i.id = $1 AND i.user_id = $2
		RETURNING id, interview_id, contact_id, name, title, email, linkedin_url, notes, created_at
	`, iv.InterviewID, userID, iv.ContactID, iv.Name, iv.Title, iv.Email, iv.LinkedInURL, iv.Notes,
	).Scan(&created.ID, &created.InterviewID, &created.ContactID, &created.Name, &created.Title,
		&created.Email, &created.LinkedInURL, &created.Notes, &created.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("adding interviewer: %w", err)
	}
	return &created, nil
}

func (r *InterviewRepo) RemoveInterviewer(ctx context.Context, userID, interviewID, interviewerID uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM interviewers iv
		USING interviews i
		WHERE iv.id = $1 AND iv.interview_id = $2 AND i.id = iv.interview_id AND i.user_id = $3
	`, interviewerID, interviewID, userID)
	if err != nil {
		return fmt.Errorf("removing interviewer: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
