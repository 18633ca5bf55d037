package handler

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/yourusername/applytrack-api/internal/model"
	"github.com/yourusername/applytrack-api/internal/repository"
)

type applicationRepository interface {
	List(ctx context.Context, userID uuid.UUID, f model.ApplicationFilter) ([]model.Application, error)
	FindByID(ctx context.Context, id, userID uuid.UUID) (*model.Application, error)
	FindByOpportunity(ctx context.Context, userID, opportunityID uuid.UUID) (*model.Application, error)
	Create(ctx context.Context, a *model.Application) (*model.Application, error)
	Update(ctx context.Context, a *model.Application) (*model.Application, error)
	UpdateStatus(ctx context.Context, id, userID uuid.UUID, newStatus, note string) (*model.Application, error)
	SetArchived(ctx context.Context, id, userID uuid.UUID, archived bool) error
	SoftDelete(ctx context.Context, id, userID uuid.UUID) error
	GetHistory(ctx context.Context, applicationID, userID uuid.UUID) ([]model.StatusHistory, error)
}

type ApplicationHandler struct {
	appRepo applicationRepository
	refs    refChecker
}

func NewApplicationHandler(appRepo applicationRepository, refs refChecker) *ApplicationHandler {
	return &ApplicationHandler{appRepo: appRepo, refs: refs}
}

type applicationRequest struct {
	Company       string     `json:"company" binding:"required,max=200"`
	Position      string     `json:"position" binding:"required,max=200"`
	Location      string     `json:"location" binding:"max=200"`
	JobURL        string     `json:"jobUrl" binding:"omitempty,url"`
	SalaryText    string     `json:"salaryText" binding:"max=100"`
	Status        string     `json:"status" binding:"omitempty,application_status"`
	AppliedAt     *time.Time `json:"appliedAt"`
	Source        string     `json:"source"`
	Notes         string     `json:"notes"`
	OpportunityID *uuid.UUID `json:"opportunityId"`
	ResumeID      *uuid.UUID `json:"resumeId"`
	CoverLetterID *uuid.UUID `json:"coverLetterId"`
}

func (r *applicationRequest) refs() []repository.Ref {
	return []repository.Ref{
		{Field: "opportunityId", Kind: repository.RefOpportunity, ID: r.OpportunityID},
		{Field: "resumeId", Kind: repository.RefResume, ID: r.ResumeID},
		{Field: "coverLetterId", Kind: repository.RefCoverLetter, ID: r.CoverLetterID},
	}
}

func (r *applicationRequest) toModel(userID uuid.UUID) *model.Application {
	source := strings.TrimSpace(r.Source)
	if source == "" && r.JobURL != "" {
		source = inferSource(r.JobURL)
	}
	return &model.Application{
		UserID:        userID,
		OpportunityID: r.OpportunityID,
		Company:       strings.TrimSpace(r.Company),
		Position:      strings.TrimSpace(r.Position),
		Location:      strings.TrimSpace(r.Location),
		JobURL:        strings.TrimSpace(r.JobURL),
		SalaryText:    r.SalaryText,
		Status:        r.Status,
		AppliedAt:     r.AppliedAt,
		Source:        source,
		Notes:         r.Notes,
		ResumeID:      r.ResumeID,
		CoverLetterID: r.CoverLetterID,
	}
}

// List handles GET /applications
func (h *ApplicationHandler) List(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	status := c.Query("status")
	if status != "" && !model.ValidApplicationStatus(status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
		return
	}

	limit, offset := pageParams(c)
	apps, err := h.appRepo.List(c.Request.Context(), userID, model.ApplicationFilter{
		Status:   status,
		Archived: queryBool(c, "archived"),
		Query:    strings.TrimSpace(c.Query("q")),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to list applications")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list applications"})
		return
	}

	if apps == nil {
		apps = []model.Application{}
	}

	c.JSON(http.StatusOK, apps)
}

// Create handles POST /applications
func (h *ApplicationHandler) Create(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var req applicationRequest
	if !bindJSON(c, &req) {
		return
	}
	if !checkRefs(c, h.refs, userID, req.refs()...) {
		return
	}

	if req.OpportunityID != nil {
		existing, err := h.appRepo.FindByOpportunity(c.Request.Context(), userID, *req.OpportunityID)
		if err != nil {
			log.Error().Err(err).Msg("Failed to check existing application")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create application"})
			return
		}
		if existing != nil {
			c.JSON(http.StatusConflict, gin.H{"error": "An application for this opportunity already exists", "application": existing})
			return
		}
	}

	created, err := h.appRepo.Create(c.Request.Context(), req.toModel(userID))
	if err != nil {
		log.Error().Err(err).Msg("Failed to create application")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create application"})
		return
	}

	log.Info().
		Str("userId", userID.String()).
		Str("applicationId", created.ID.String()).
		Str("status", created.Status).
		Msg("Application created")

	c.JSON(http.StatusOK, created)
}

// Get handles GET /applications/:id
func (h *ApplicationHandler) Get(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	appID, ok := paramID(c, "id", "application")
	if !ok {
		return
	}

	app, err := h.appRepo.FindByID(c.Request.Context(), appID, userID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get application")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get application"})
		return
	}
	if app == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Application not found"})
		return
	}

	c.JSON(http.StatusOK, app)
}

// Update handles PUT /applications/:id. Status changes go through UpdateStatus.
func (h *ApplicationHandler) Update(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	appID, ok := paramID(c, "id", "application")
	if !ok {
		return
	}

	var req applicationRequest
	if !bindJSON(c, &req) {
		return
	}
	if !checkRefs(c, h.refs, userID, req.refs()...) {
		return
	}

	app := req.toModel(userID)
	app.ID = appID

	updated, err := h.appRepo.Update(c.Request.Context(), app)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Application not found"})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to update application")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update application"})
		return
	}

	c.JSON(http.StatusOK, updated)
}

// UpdateStatus changes the application status and records history
// PUT /applications/:id/status
func (h *ApplicationHandler) UpdateStatus(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	appID, ok := paramID(c, "id", "application")
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status" binding:"required,application_status"`
		Note   string `json:"note" binding:"max=1000"`
	}
	if !bindJSON(c, &req) {
		return
	}

	updated, err := h.appRepo.UpdateStatus(c.Request.Context(), appID, userID, req.Status, req.Note)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Application not found"})
		return
	case errors.Is(err, repository.ErrInvalidTransition):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		log.Error().Err(err).Msg("Failed to update application status")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update status"})
		return
	}

	c.JSON(http.StatusOK, updated)
}

// History handles GET /applications/:id/history
func (h *ApplicationHandler) History(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	appID, ok := paramID(c, "id", "application")
	if !ok {
		return
	}

	app, err := h.appRepo.FindByID(c.Request.Context(), appID, userID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get application")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get history"})
		return
	}
	if app == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Application not found"})
		return
	}

	history, err := h.appRepo.GetHistory(c.Request.Context(), appID, userID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get status history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get history"})
		return
	}

	if history == nil {
		history = []model.StatusHistory{}
	}

	c.JSON(http.StatusOK, history)
}

// Archive handles POST /applications/:id/archive
func (h *ApplicationHandler) Archive(c *gin.Context) {
	h.setArchived(c, true)
}

// Unarchive handles POST /applications/:id/unarchive
func (h *ApplicationHandler) Unarchive(c *gin.Context) {
	h.setArchived(c, false)
}

func (h *ApplicationHandler) setArchived(c *gin.Context, archived bool) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	appID, ok := paramID(c, "id", "application")
	if !ok {
		return
	}

	err = h.appRepo.SetArchived(c.Request.Context(), appID, userID, archived)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Application not found"})
		return
	}
	if err != nil {
		log.Error().Err(err).Bool("archived", archived).Msg("Failed to archive application")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update application"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"archived": archived})
}

// Delete handles DELETE /applications/:id
func (h *ApplicationHandler) Delete(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	appID, ok := paramID(c, "id", "application")
	if !ok {
		return
	}

	err = h.appRepo.SoftDelete(c.Request.Context(), appID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Application not found"})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to delete application")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete application"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// inferSource names the job board from the posting URL's host
func inferSource(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "other"
	}
	host := strings.ToLower(u.Hostname())
	for _, board := range []struct{ domain, name string }{
		{"linkedin.com", "linkedin"},
		{"greenhouse.io", "greenhouse"},
		{"lever.co", "lever"},
		{"indeed.com", "indeed"},
		{"glassdoor.com", "glassdoor"},
		{"wellfound.com", "wellfound"},
		{"myworkdayjobs.com", "workday"},
		{"ashbyhq.com", "ashby"},
		{"remotive.com", "remotive"},
		{"adzuna.", "adzuna"},
	} {
		if strings.Contains(host, board.domain) {
			return board.name
		}
	}
	return "other"
}
