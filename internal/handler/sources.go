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
	"github.com/yourusername/applytrack-api/internal/service"
)

const maxScanRuns = 100

type sourceRepository interface {
	List(ctx context.Context, userID uuid.UUID) ([]model.UserJobSource, error)
	Create(ctx context.Context, s *model.UserJobSource) (*model.UserJobSource, error)
	Update(ctx context.Context, s *model.UserJobSource) (*model.UserJobSource, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
}

type scanRunLister interface {
	List(ctx context.Context, userID uuid.UUID, limit int) ([]model.ScanRun, error)
}

type userScanner interface {
	ScanUser(ctx context.Context, userID uuid.UUID, trigger string, force bool) (*model.ScanRun, error)
}

type SourceHandler struct {
	sourceRepo sourceRepository
	runRepo    scanRunLister
	scanner    userScanner
}

func NewSourceHandler(sourceRepo sourceRepository, runRepo scanRunLister, scanner userScanner) *SourceHandler {
	return &SourceHandler{sourceRepo: sourceRepo, runRepo: runRepo, scanner: scanner}
}

type sourceRequest struct {
	Kind     string `json:"kind" binding:"required,source_kind"`
	Name     string `json:"name" binding:"max=100"`
	Query    string `json:"query" binding:"max=200"`
	Location string `json:"location" binding:"max=200"`
	FeedURL  string `json:"feedUrl" binding:"omitempty,url"`
	Enabled  *bool  `json:"enabled"`
}

func (r *sourceRequest) toModel(userID uuid.UUID) *model.UserJobSource {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		name = r.Kind
	}
	enabled := true
	if r.Enabled != nil {
		enabled = *r.Enabled
	}
	return &model.UserJobSource{
		UserID:   userID,
		Kind:     r.Kind,
		Name:     name,
		Query:    strings.TrimSpace(r.Query),
		Location: strings.TrimSpace(r.Location),
		FeedURL:  strings.TrimSpace(r.FeedURL),
		Enabled:  enabled,
	}
}

func bindSource(c *gin.Context, req *sourceRequest) bool {
	if !bindJSON(c, req) {
		return false
	}
	if req.Kind == model.SourceRSS && strings.TrimSpace(req.FeedURL) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "feedUrl is required for rss sources"})
		return false
	}
	return true
}

// List handles GET /sources
func (h *SourceHandler) List(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	sources, err := h.sourceRepo.List(c.Request.Context(), userID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list sources")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list sources"})
		return
	}

	if sources == nil {
		sources = []model.UserJobSource{}
	}

	c.JSON(http.StatusOK, sources)
}

// Create handles POST /sources
func (h *SourceHandler) Create(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var req sourceRequest
	if !bindSource(c, &req) {
		return
	}

	created, err := h.sourceRepo.Create(c.Request.Context(), req.toModel(userID))
	if err != nil {
		log.Error().Err(err).Msg("Failed to create source")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create source"})
		return
	}

	c.JSON(http.StatusOK, created)
}

// Update handles PUT /sources/:id. The kind of a source is fixed at creation.
func (h *SourceHandler) Update(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	sourceID, ok := paramID(c, "id", "source")
	if !ok {
		return
	}

	var req sourceRequest
	if !bindSource(c, &req) {
		return
	}

	src := req.toModel(userID)
	src.ID = sourceID

	updated, err := h.sourceRepo.Update(c.Request.Context(), src)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Source not found"})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to update source")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update source"})
		return
	}

	c.JSON(http.StatusOK, updated)
}

// Delete handles DELETE /sources/:id
func (h *SourceHandler) Delete(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	sourceID, ok := paramID(c, "id", "source")
	if !ok {
		return
	}

	err = h.sourceRepo.Delete(c.Request.Context(), sourceID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Source not found"})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to delete source")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete source"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// Scan handles POST /sources/scan (?force=true skips the throttle)
func (h *SourceHandler) Scan(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	run, err := h.scanner.ScanUser(c.Request.Context(), userID, model.TriggerManual, queryBool(c, "force"))
	if errors.Is(err, service.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		log.Error().Err(err).Str("userId", userID.String()).Msg("Manual scan failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Scan failed"})
		return
	}

	c.JSON(http.StatusOK, run)
}

// Runs handles GET /sources/runs
func (h *SourceHandler) Runs(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	limit := min(max(queryInt(c, "limit", 20), 1), maxScanRuns)
	runs, err := h.runRepo.List(c.Request.Context(), userID, limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list scan runs")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list scan runs"})
		return
	}

	if runs == nil {
		runs = []model.ScanRun{}
	}

	c.JSON(http.StatusOK, runs)
}

type sweeper interface {
	ScanAll(ctx context.Context, trigger string) (service.ScanTotals, error)
	Reminders(ctx context.Context) (int, error)
}

// CronHandler serves the secret-guarded endpoints an external scheduler can hit
type CronHandler struct {
	scans sweeper
}

func NewCronHandler(scans sweeper) *CronHandler {
	return &CronHandler{scans: scans}
}

// Scan handles POST /cron/scan
func (h *CronHandler) Scan(c *gin.Context) {
	totals, err := h.scans.ScanAll(c.Request.Context(), model.TriggerCron)
	if err != nil {
		log.Error().Err(err).Msg("Cron scan failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Scan failed"})
		return
	}

	c.JSON(http.StatusOK, totals)
}

// Reminders handles POST /cron/reminders
func (h *CronHandler) Reminders(c *gin.Context) {
	created, err := h.scans.Reminders(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("Cron reminders failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Reminders failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"alerts": created})
}
