package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/yourusername/applytrack-api/internal/model"
	"github.com/yourusername/applytrack-api/internal/repository"
)

type followUpRepository interface {
	List(ctx context.Context, userID uuid.UUID, dueOnly, includeCompleted bool) ([]model.FollowUp, error)
	Create(ctx context.Context, f *model.FollowUp) (*model.FollowUp, error)
	Update(ctx context.Context, f *model.FollowUp) (*model.FollowUp, error)
	Complete(ctx context.Context, id, userID uuid.UUID) (*model.FollowUp, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
}

type FollowUpHandler struct {
	followUpRepo followUpRepository
	refs         refChecker
}

func NewFollowUpHandler(followUpRepo followUpRepository, refs refChecker) *FollowUpHandler {
	return &FollowUpHandler{followUpRepo: followUpRepo, refs: refs}
}

type followUpRequest struct {
	ApplicationID *uuid.UUID `json:"applicationId"`
	ContactID     *uuid.UUID `json:"contactId"`
	Title         string     `json:"title" binding:"required,max=300"`
	Notes         string     `json:"notes"`
	Channel       string     `json:"channel" binding:"omitempty,follow_up_channel"`
	DueAt         time.Time  `json:"dueAt" binding:"required"`
}

func (r *followUpRequest) refs() []repository.Ref {
	return []repository.Ref{
		{Field: "applicationId", Kind: repository.RefApplication, ID: r.ApplicationID},
		{Field: "contactId", Kind: repository.RefContact, ID: r.ContactID},
	}
}

func (r *followUpRequest) toModel(userID uuid.UUID) *model.FollowUp {
	channel := r.Channel
	if channel == "" {
		channel = "email"
	}
	return &model.FollowUp{
		UserID:        userID,
		ApplicationID: r.ApplicationID,
		ContactID:     r.ContactID,
		Title:         strings.TrimSpace(r.Title),
		Notes:         r.Notes,
		Channel:       channel,
		DueAt:         r.DueAt.UTC(),
	}
}

// List handles GET /follow-ups (?due=true, ?includeCompleted=true)
func (h *FollowUpHandler) List(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	followUps, err := h.followUpRepo.List(c.Request.Context(), userID, queryBool(c, "due"), queryBool(c, "includeCompleted"))
	if err != nil {
		log.Error().Err(err).Msg("Failed to list follow-ups")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list follow-ups"})
		return
	}

	if followUps == nil {
		followUps = []model.FollowUp{}
	}

	c.JSON(http.StatusOK, followUps)
}

// Create handles POST /follow-ups
func (h *FollowUpHandler) Create(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var req followUpRequest
	if !bindJSON(c, &req) {
		return
	}
	if !checkRefs(c, h.refs, userID, req.refs()...) {
		return
	}

	created, err := h.followUpRepo.Create(c.Request.Context(), req.toModel(userID))
	if err != nil {
		log.Error().Err(err).Msg("Failed to create follow-up")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create follow-up"})
		return
	}

	c.JSON(http.StatusOK, created)
}

// Update handles PUT /follow-ups/:id
func (h *FollowUpHandler) Update(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	followUpID, ok := paramID(c, "id", "follow-up")
	if !ok {
		return
	}

	var req followUpRequest
	if !bindJSON(c, &req) {
		return
	}
	if !checkRefs(c, h.refs, userID, req.refs()...) {
		return
	}

	f := req.toModel(userID)
	f.ID = followUpID

	updated, err := h.followUpRepo.Update(c.Request.Context(), f)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Follow-up not found"})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to update follow-up")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update follow-up"})
		return
	}

	c.JSON(http.StatusOK, updated)
}

// Complete handles POST /follow-ups/:id/complete
func (h *FollowUpHandler) Complete(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	followUpID, ok := paramID(c, "id", "follow-up")
	if !ok {
		return
	}

	completed, err := h.followUpRepo.Complete(c.Request.Context(), followUpID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Follow-up not found"})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to complete follow-up")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to complete follow-up"})
		return
	}

	c.JSON(http.StatusOK, completed)
}

// Delete handles DELETE /follow-ups/:id
func (h *FollowUpHandler) Delete(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	followUpID, ok := paramID(c, "id", "follow-up")
	if !ok {
		return
	}

	err = h.followUpRepo.Delete(c.Request.Context(), followUpID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Follow-up not found"})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to delete follow-up")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete follow-up"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
