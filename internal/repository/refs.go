package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrForeignRef is returned when a request points at a row the user does not own
var ErrForeignRef = errors.New("referenced record not found")

// RefError names the request field whose reference failed the ownership check
type RefError struct {
	Field string
}

func (e *RefError) Error() string { return e.Field + " not found" }

func (e *RefError) Unwrap() error { return ErrForeignRef }

type RefKind int

const (
	RefApplication RefKind = iota
	RefOpportunity
	RefResume
	RefCoverLetter
	RefContact
)

var refQueries = map[RefKind]string{
	RefApplication: `SELECT EXISTS (SELECT 1 FROM applications WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL)`,
	RefOpportunity: `SELECT EXISTS (SELECT 1 FROM job_opportunities WHERE id = $1 AND user_id = $2)`,
	RefResume:      `SELECT EXISTS (SELECT 1 FROM resumes WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL)`,
	RefCoverLetter: `SELECT EXISTS (SELECT 1 FROM cover_letters WHERE id = $1 AND user_id = $2)`,
	RefContact:     `SELECT EXISTS (SELECT 1 FROM contacts WHERE id = $1 AND user_id = $2)`,
}

// Ref is one optional foreign key carried by a request body
type Ref struct {
	Field string
	Kind  RefKind
	ID    *uuid.UUID
}

type RefRepo struct {
	pool *pgxpool.Pool
}

func NewRefRepo(pool *pgxpool.Pool) *RefRepo {
	return &RefRepo{pool: pool}
}

// CheckOwned returns a *RefError for the first non-nil ref that does not
// belong to userID
func (r *RefRepo) CheckOwned(ctx context.Context, userID uuid.UUID, refs ...Ref) error {
	for _, ref := range refs {
		if ref.ID == nil {
			continue
		}
		query, ok := refQueries[ref.Kind]
		if !ok {
			return fmt.Errorf("unknown reference kind %d for %s", ref.Kind, ref.Field)
		}
		var owned bool
		if err := r.pool.QueryRow(ctx, query, *ref.ID, userID).Scan(&owned); err != nil {
			return fmt.Errorf("checking %s: %w", ref.Field, err)
		}
		if !owned {
			return &RefError{Field: ref.Field}
		}
	}
	return nil
}
