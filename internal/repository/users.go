package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yourusername/applytrack-api/internal/model"
)

const userColumns = `
	id, firebase_uid, email, name, avatar_url, headline, summary, location,
	target_roles, preferred_locations, remote_only, salary_min, salary_max,
	years_experience, min_alert_score, scan_enabled, bookmarklet_token,
	telegram_chat_id, created_at, updated_at`

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func scanUser(row rowScanner) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID, &u.FirebaseUID, &u.Email, &u.Name, &u.AvatarURL, &u.Headline,
		&u.Summary, &u.Location, &u.TargetRoles, &u.PreferredLocations,
		&u.RemoteOnly, &u.SalaryMin, &u.SalaryMax, &u.YearsExperience,
		&u.MinAlertScore, &u.ScanEnabled, &u.BookmarkletToken,
		&u.TelegramChatID, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) findOne(ctx context.Context, where string, arg any) (*model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return u, err
}

// FindByFirebaseUID looks up a user by their Firebase UID
func (r *UserRepo) FindByFirebaseUID(ctx context.Context, firebaseUID string) (*model.User, error) {
	u, err := r.findOne(ctx, "firebase_uid = $1", firebaseUID)
	if err != nil {
		return nil, fmt.Errorf("finding user by firebase uid: %w", err)
	}
	return u, nil
}

// FindByID looks up a user by internal UUID
func (r *UserRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	u, err := r.findOne(ctx, "id = $1", id)
	if err != nil {
		return nil, fmt.Errorf("finding user by id: %w", err)
	}
	return u, nil
}

// FindByBookmarkletToken resolves the owner of a bookmarklet token
func (r *UserRepo) FindByBookmarkletToken(ctx context.Context, token uuid.UUID) (*model.User, error) {
	u, err := r.findOne(ctx, "bookmarklet_token = $1", token)
	if err != nil {
		return nil, fmt.Errorf("finding user by bookmarklet token: %w", err)
	}
	return u, nil
}

// Create inserts a new user
func (r *UserRepo) Create(ctx context.Context, firebaseUID, email, name, avatarURL string) (*model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `
		INSERT INTO users (firebase_uid, email, name, avatar_url)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userColumns, firebaseUID, email, name, avatarURL))
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return u, nil
}

// UpdateProfile updates the descriptive profile fields
func (r *UserRepo) UpdateProfile(ctx context.Context, id uuid.UUID, p *model.User) (*model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `
		UPDATE users
		SET name = $2, headline = $3, summary = $4, location = $5,
		    years_experience = $6, updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns,
		id, p.Name, p.Headline, p.Summary, p.Location, p.YearsExperience,
	))
	if err != nil {
		return nil, fmt.Errorf("updating user profile: %w", err)
	}
	return u, nil
}

// UpdateSettings updates the preferences used by scans and alerts
func (r *UserRepo) UpdateSettings(ctx context.Context, id uuid.UUID, s *model.Settings) (*model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `
		UPDATE users
		SET target_roles = $2, preferred_locations = $3, remote_only = $4,
		    salary_min = $5, salary_max = $6, min_alert_score = $7,
		    scan_enabled = $8, telegram_chat_id = $9, updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns,
		id, nonNil(s.TargetRoles), nonNil(s.PreferredLocations), s.RemoteOnly,
		s.SalaryMin, s.SalaryMax, s.MinAlertScore, s.ScanEnabled, s.TelegramChatID,
	))
	if err != nil {
		return nil, fmt.Errorf("updating user settings: %w", err)
	}
	return u, nil
}

// ApplyExtractedProfile fills empty profile fields and merges target roles
// from a résumé extraction. Fields the user already set are kept.
func (r *UserRepo) ApplyExtractedProfile(ctx context.Context, id uuid.UUID, p *model.ResumeProfile) (*model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `
		UPDATE users
		SET name = CASE WHEN name = '' THEN $2 ELSE name END,
		    headline = CASE WHEN headline = '' THEN $3 ELSE headline END,
		    summary = CASE WHEN summary = '' THEN $4 ELSE summary END,
		    location = CASE WHEN location = '' THEN $5 ELSE location END,
		    years_experience = GREATEST(years_experience, $6),
		    target_roles = ARRAY(SELECT DISTINCT unnest(target_roles || $7::text[])),
		    updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns,
		id, p.Name, p.Headline, p.Summary, p.Location, p.YearsExperience, nonNil(p.TargetRoles),
	))
	if err != nil {
		return nil, fmt.Errorf("applying extracted profile: %w", err)
	}
	return u, nil
}

// RotateBookmarkletToken invalidates the old token and returns the new one
func (r *UserRepo) RotateBookmarkletToken(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var token uuid.UUID
	err := r.pool.QueryRow(ctx, `
		UPDATE users SET bookmarklet_token = gen_random_uuid(), updated_at = now()
		WHERE id = $1
		RETURNING bookmarklet_token
	`, id).Scan(&token)
	if err != nil {
		return uuid.Nil, fmt.Errorf("rotating bookmarklet token: %w", err)
	}
	return token, nil
}

// ListScanEnabled returns users the scheduled sweep should visit, oldest first
func (r *UserRepo) ListScanEnabled(ctx context.Context) ([]model.User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE scan_enabled
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("listing scan-enabled users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user row: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
