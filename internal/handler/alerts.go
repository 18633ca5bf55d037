package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/yourusername/applytrack-api/internal/model"
	"github.com/yourusername/applytrack-api/internal/repository"
)

type alertRepository interface {
	List(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]model.Alert, error)
	MarkRead(ctx context.Context, id, userID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
}

type AlertHandler struct {
	alertRepo alertRepository
}

func NewAlertHandler(alertRepo alertRepository) *AlertHandler {
	return &AlertHandler{alertRepo: alertRepo}
}

// List handles GET /alerts (?unread=true)
func (h *AlertHandler) List(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	limit, _ := pageParams(c)
	alerts, err := h.alertRepo.List(c.Request.Context(), userID, queryBool(c, "unread"), limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list alerts")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list alerts"})
		return
	}

	if alerts == nil {
		alerts = []model.Alert{}
	}

	c.JSON(http.StatusOK, alerts)
}

// MarkRead handles POST /alerts/:id/read
func (h *AlertHandler) MarkRead(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	alertID, ok := paramID(c, "id", "alert")
	if !ok {
		return
	}

	err = h.alertRepo.MarkRead(c.Request.Context(), alertID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to mark alert read")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update alert"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"read": true})
}

// MarkAllRead handles POST /alerts/read-all
func (h *AlertHandler) MarkAllRead(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	n, err := h.alertRepo.MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to mark alerts read")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update alerts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"updated": n})
}

// Delete handles DELETE /alerts/:id
func (h *AlertHandler) Delete(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	alertID, ok := paramID(c, "id", "alert")
	if !ok {
		return
	}

	err = h.alertRepo.Delete(c.Request.Context(), alertID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to delete alert")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete alert"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
