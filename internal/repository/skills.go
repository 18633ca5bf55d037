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

const skillColumns = `id, user_id, category_id, name, level, years, created_at, updated_at`

type SkillRepo struct {
	pool *pgxpool.Pool
}

func NewSkillRepo(pool *pgxpool.Pool) *SkillRepo {
	return &SkillRepo{pool: pool}
}

func scanSkill(row rowScanner) (*model.Skill, error) {
	var s model.Skill
	err := row.Scan(&s.ID, &s.UserID, &s.CategoryID, &s.Name, &s.Level, &s.Years, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ── Categories ─────────────────────────────────────────

func (r *SkillRepo) ListCategories(ctx context.Context, userID uuid.UUID) ([]model.SkillCategory, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, name, sort_order, created_at
		FROM skill_categories
		WHERE user_id = $1
		ORDER BY sort_order, name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing skill categories: %w", err)
	}
	defer rows.Close()

	var cats []model.SkillCategory
	for rows.Next() {
		var c model.SkillCategory
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.SortOrder, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning skill category: %w", err)
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

func (r *SkillRepo) CreateCategory(ctx context.Context, userID uuid.UUID, name string, sortOrder int) (*model.SkillCategory, error) {
	var c model.SkillCategory
	err := r.pool.QueryRow(ctx, `
		INSERT INTO skill_categories (user_id, name, sort_order)
		VALUES ($1, $2, $3)
		RETURNING id, user_id, name, sort_order, created_at
	`, userID, strings.TrimSpace(name), sortOrder).Scan(&c.ID, &c.UserID, &c.Name, &c.SortOrder, &c.CreatedAt)
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("creating skill category: %w", err)
	}
	return &c, nil
}

func (r *SkillRepo) UpdateCategory(ctx context.Context, id, userID uuid.UUID, name string, sortOrder int) (*model.SkillCategory, error) {
	var c model.SkillCategory
	err := r.pool.QueryRow(ctx, `
		UPDATE skill_categories SET name = $3, sort_order = $4
		WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, name, sort_order, created_at
	`, id, userID, strings.TrimSpace(name), sortOrder).Scan(&c.ID, &c.UserID, &c.Name, &c.SortOrder, &c.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("updating skill category: %w", err)
	}
	return &c, nil
}

// DeleteCategory removes a category; its skills become uncategorized
func (r *SkillRepo) DeleteCategory(ctx context.Context, id, userID uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM skill_categories WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting skill category: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ── Skills ─────────────────────────────────────────────

func (r *SkillRepo) List(ctx context.Context, userID uuid.UUID) ([]model.Skill, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+skillColumns+` FROM skills WHERE user_id = $1 ORDER BY level DESC, name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing skills: %w", err)
	}
	defer rows.Close()

	var skills []model.Skill
	for rows.Next() {
		s, err := scanSkill(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning skill: %w", err)
		}
		skills = append(skills, *s)
	}
	return skills, rows.Err()
}

// ListGrouped returns skills bucketed by category, uncategorized last
func (r *SkillRepo) ListGrouped(ctx context.Context, userID uuid.UUID) ([]model.SkillGroup, error) {
	cats, err := r.ListCategories(ctx, userID)
	if err != nil {
		return nil, err
	}
	skills, err := r.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	return GroupSkills(cats, skills), nil
}

// GroupSkills buckets skills under their categories. Categories keep their
// order and always appear; a nil-category group is appended only when needed.
func GroupSkills(cats []model.SkillCategory, skills []model.Skill) []model.SkillGroup {
	groups := make([]model.SkillGroup, len(cats))
	index := make(map[uuid.UUID]int, len(cats))
	for i := range cats {
		groups[i] = model.SkillGroup{Category: &cats[i], Skills: []model.Skill{}}
		index[cats[i].ID] = i
	}

	var loose []model.Skill
	for _, s := range skills {
		if s.CategoryID != nil {
			if i, ok := index[*s.CategoryID]; ok {
				groups[i].Skills = append(groups[i].Skills, s)
				continue
			}
		}
		loose = append(loose, s)
	}
	if len(loose) > 0 {
		groups = append(groups, model.SkillGroup{Skills: loose})
	}
	return groups
}

func (r *SkillRepo) Create(ctx context.Context, s *model.Skill) (*model.Skill, error) {
	created, err := scanSkill(r.pool.QueryRow(ctx, `
		INSERT INTO skills (user_id, category_id, name, level, years)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+skillColumns,
		s.UserID, s.CategoryID, strings.TrimSpace(s.Name), s.Level, s.Years,
	))
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("creating skill: %w", err)
	}
	return created, nil
}

func (r *SkillRepo) Update(ctx context.Context, s *model.Skill) (*model.Skill, error) {
	updated, err := scanSkill(r.pool.QueryRow(ctx, `
		UPDATE skills SET category_id = $3, name = $4, level = $5, years = $6, updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING `+skillColumns,
		s.ID, s.UserID, s.CategoryID, strings.TrimSpace(s.Name), s.Level, s.Years,
	))
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("updating skill: %w", err)
	}
	return updated, nil
}

func (r *SkillRepo) Delete(ctx context.Context, id, userID uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM skills WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting skill: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MergeExtracted adds skills pulled from a résumé. Categories are created by
// name on demand; an existing skill keeps its category and the higher level.
// Returns how many skills were new.
func (r *SkillRepo) MergeExtracted(ctx context.Context, userID uuid.UUID, extracted []model.ExtractedSkill) (int, error) {
	if len(extracted) == 0 {
		return 0, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	categoryIDs := make(map[string]uuid.UUID)
	added := 0
	for _, es := range extracted {
		name := strings.TrimSpace(es.Name)
		if name == "" {
			continue
		}
		level := min(max(es.Level, 1), 5)

		var categoryID *uuid.UUID
		if catName := strings.TrimSpace(es.Category); catName != "" {
			id, ok := categoryIDs[strings.ToLower(catName)]
			if !ok {
				err := tx.QueryRow(ctx, `
					INSERT INTO skill_categories (user_id, name)
					VALUES ($1, $2)
					ON CONFLICT (user_id, name) DO UPDATE SET name = EXCLUDED.name
					RETURNING id
				`, userID, catName).Scan(&id)
				if err != nil {
					return 0, fmt.Errorf("upserting skill category %q: %w", catName, err)
				}
				categoryIDs[strings.ToLower(catName)] = id
			}
			categoryID = &id
		}

		var inserted bool
		err := tx.QueryRow(ctx, `
			INSERT INTO skills (user_id, category_id, name, level)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id, lower(name)) DO UPDATE
			SET level = GREATEST(skills.level, EXCLUDED.level),
			    category_id = COALESCE(skills.category_id, EXCLUDED.category_id),
			    updated_at = now()
			RETURNING (xmax = 0)
		`, userID, categoryID, name, level).Scan(&inserted)
		if err != nil {
			return 0, fmt.Errorf("upserting skill %q: %w", name, err)
		}
		if inserted {
			added++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}
	return added, nil
}
