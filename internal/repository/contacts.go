package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yourusername/applytrack-api/internal/model"
)

const contactColumns = `
	id, user_id, application_id, name, email, phone, company, title,
	linkedin_url, relationship, notes, last_contacted_at, created_at, updated_at`

type ContactRepo struct {
	pool *pgxpool.Pool
}

func NewContactRepo(pool *pgxpool.Pool) *ContactRepo {
	return &ContactRepo{pool: pool}
}

func scanContact(row rowScanner) (*model.Contact, error) {
	var c model.Contact
	err := row.Scan(
		&c.ID, &c.UserID, &c.ApplicationID, &c.Name, &c.Email, &c.Phone,
		&c.Company, &c.Title, &c.LinkedInURL, &c.Relationship, &c.Notes,
		&c.LastContactedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ContactRepo) List(ctx context.Context, userID uuid.UUID, search string) ([]model.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE user_id = $1`
	args := []any{userID}

	if search != "" {
		query += ` AND (name ILIKE $2 OR company ILIKE $2 OR title ILIKE $2 OR email ILIKE $2)`
		args = append(args, "%"+search+"%")
	}
	query += " ORDER BY company, name"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing contacts: %w", err)
	}
	defer rows.Close()

	var contacts []model.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning contact: %w", err)
		}
		contacts = append(contacts, *c)
	}
	return contacts, rows.Err()
}

func (r *ContactRepo) FindByID(ctx context.Context, id, userID uuid.UUID) (*model.Contact, error) {
	c, err := scanContact(r.pool.QueryRow(ctx, `
		SELECT `+contactColumns+` FROM contacts WHERE id = $1 AND user_id = $2
	`, id, userID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding contact: %w", err)
	}
	return c, nil
}

func (r *ContactRepo) Create(ctx context.Context, c *model.Contact) (*model.Contact, error) {
	created, err := scanContact(r.pool.QueryRow(ctx, `
		INSERT INTO contacts (user_id, application_id, name, email, phone, company, title,
		                      linkedin_url, relationship, notes, last_contacted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+contactColumns,
		c.UserID, c.ApplicationID, c.Name, c.Email, c.Phone, c.Company, c.Title,
		c.LinkedInURL, c.Relationship, c.Notes, c.LastContactedAt,
	))
	if err != nil {
		return nil, fmt.Errorf("creating contact: %w", err)
	}
	return created, nil
}

func (r *ContactRepo) Update(ctx context.Context, c *model.Contact) (*model.Contact, error) {
	updated, err := scanContact(r.pool.QueryRow(ctx, `
		UPDATE contacts
		SET application_id = $3, name = $4, email = $5, phone = $6, company = $7,
		    title = $8, linkedin_url = $9, relationship = $10, notes = $11,
		    last_contacted_at = $12, updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING `+contactColumns,
		c.ID, c.UserID, c.ApplicationID, c.Name, c.Email, c.Phone, c.Company,
		c.Title, c.LinkedInURL, c.Relationship, c.Notes, c.LastContactedAt,
	))
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("updating contact: %w", err)
	}
	return updated, nil
}

func (r *ContactRepo) Delete(ctx context.Context, id, userID uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM contacts WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting contact: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func contactKey(name, company string) string {
	return strings.ToLower(strings.TrimSpace(name)) + "||" + strings.ToLower(strings.TrimSpace(company))
}

// BulkCreate inserts multiple contacts, skipping duplicates (same name+company for the user).
// Returns the count of inserted rows and skipped duplicates.
func (r *ContactRepo) BulkCreate(ctx context.Context, userID uuid.UUID, contacts []model.Contact) (inserted int, skipped int, err error) {
	if len(contacts) == 0 {
		return 0, 0, nil
	}

	existing, err := r.List(ctx, userID, "")
	if err != nil {
		return 0, 0, fmt.Errorf("fetching existing contacts: %w", err)
	}

	seen := make(map[string]bool, len(existing))
	for _, e := range existing {
		seen[contactKey(e.Name, e.Company)] = true
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, c := range contacts {
		key := contactKey(c.Name, c.Company)
		if seen[key] {
			skipped++
			continue
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO contacts (user_id, name, email, company, title, linkedin_url, relationship)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, userID, c.Name, c.Email, c.Company, c.Title, c.LinkedInURL, c.Relationship)
		if err != nil {
			return 0, 0, fmt.Errorf("inserting contact %q: %w", c.Name, err)
		}
		seen[key] = true
		inserted++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("committing transaction: %w", err)
	}
	return inserted, skipped, nil
}
