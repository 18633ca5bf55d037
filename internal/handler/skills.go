package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/yourusername/applytrack-api/internal/model"
	"github.com/yourusername/applytrack-api/internal/repository"
)

type skillRepository interface {
	ListCategories(ctx context.Context, userID uuid.UUID) ([]model.SkillCategory, error)
	CreateCategory(ctx context.Context, userID uuid.UUID, name string, sortOrder int) (*model.SkillCategory, error)
	UpdateCategory(ctx context.Context, id, userID uuid.UUID, name string, sortOrder int) (*model.SkillCategory, error)
	DeleteCategory(ctx context.Context, id, userID uuid.UUID) error
	ListGrouped(ctx context.Context, userID uuid.UUID) ([]model.SkillGroup, error)
	Create(ctx context.Context, s *model.Skill) (*model.Skill, error)
	Update(ctx context.Context, s *model.Skill) (*model.Skill, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
}

type SkillHandler struct {
	skillRepo skillRepository
}

func NewSkillHandler(skillRepo skillRepository) *SkillHandler {
	return &SkillHandler{skillRepo: skillRepo}
}

type skillRequest struct {
	CategoryID *uuid.UUID `json:"categoryId"`
	Name       string     `json:"name" binding:"required,max=100"`
	Level      int        `json:"level" binding:"omitempty,min=1,max=5"`
	Years      int        `json:"years" binding:"gte=0,lte=60"`
}

type categoryRequest struct {
	Name      string `json:"name" binding:"required,max=100"`
	SortOrder int    `json:"sortOrder"`
}

// List handles GET /skills, grouped by category
func (h *SkillHandler) List(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	groups, err := h.skillRepo.ListGrouped(c.Request.Context(), userID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list skills")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list skills"})
		return
	}

	if groups == nil {
		groups = []model.SkillGroup{}
	}

	c.JSON(http.StatusOK, groups)
}

// Create handles POST /skills
func (h *SkillHandler) Create(c *gin.Context) {
	h.saveSkill(c, uuid.Nil)
}

// Update handles PUT /skills/:id
func (h *SkillHandler) Update(c *gin.Context) {
	skillID, ok := paramID(c, "id", "skill")
	if !ok {
		return
	}
	h.saveSkill(c, skillID)
}

func (h *SkillHandler) saveSkill(c *gin.Context, skillID uuid.UUID) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var req skillRequest
	if !bindJSON(c, &req) {
		return
	}

	level := req.Level
	if level == 0 {
		level = 3
	}
	skill := &model.Skill{
		ID:         skillID,
		UserID:     userID,
		CategoryID: req.CategoryID,
		Name:       strings.TrimSpace(req.Name),
		Level:      level,
		Years:      req.Years,
	}

	var saved *model.Skill
	if skillID == uuid.Nil {
		saved, err = h.skillRepo.Create(c.Request.Context(), skill)
	} else {
		saved, err = h.skillRepo.Update(c.Request.Context(), skill)
	}
	switch {
	case errors.Is(err, repository.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": "Skill already exists"})
		return
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Skill not found"})
		return
	case err != nil:
		log.Error().Err(err).Msg("Failed to save skill")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save skill"})
		return
	}

	c.JSON(http.StatusOK, saved)
}

// Delete handles DELETE /skills/:id
func (h *SkillHandler) Delete(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	skillID, ok := paramID(c, "id", "skill")
	if !ok {
		return
	}

	err = h.skillRepo.Delete(c.Request.Context(), skillID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Skill not found"})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to delete skill")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete skill"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// ListCategories handles GET /skill-categories
func (h *SkillHandler) ListCategories(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	cats, err := h.skillRepo.ListCategories(c.Request.Context(), userID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list skill categories")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list categories"})
		return
	}

	if cats == nil {
		cats = []model.SkillCategory{}
	}

	c.JSON(http.StatusOK, cats)
}

// CreateCategory handles POST /skill-categories
func (h *SkillHandler) CreateCategory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var req categoryRequest
	if !bindJSON(c, &req) {
		return
	}

	cat, err := h.skillRepo.CreateCategory(c.Request.Context(), userID, strings.TrimSpace(req.Name), req.SortOrder)
	if errors.Is(err, repository.ErrDuplicate) {
		c.JSON(http.StatusConflict, gin.H{"error": "Category already exists"})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to create skill category")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create category"})
		return
	}

	c.JSON(http.StatusOK, cat)
}

// UpdateCategory handles PUT /skill-categories/:id
func (h *SkillHandler) UpdateCategory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	catID, ok := paramID(c, "id", "category")
	if !ok {
		return
	}

	var req categoryRequest
	if !bindJSON(c, &req) {
		return
	}

	cat, err := h.skillRepo.UpdateCategory(c.Request.Context(), catID, userID, strings.TrimSpace(req.Name), req.SortOrder)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Category not found"})
		return
	case errors.Is(err, repository.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": "Category already exists"})
		return
	case err != nil:
		log.Error().Err(err).Msg("Failed to update skill category")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update category"})
		return
	}

	c.JSON(http.StatusOK, cat)
}

// DeleteCategory handles DELETE /skill-categories/:id. Its skills become uncategorized.
func (h *SkillHandler) DeleteCategory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	catID, ok := paramID(c, "id", "category")
	if !ok {
		return
	}

	err = h.skillRepo.DeleteCategory(c.Request.Context(), catID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Category not found"})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to delete skill category")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete category"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
