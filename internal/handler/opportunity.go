package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/yourusername/applytrack-api/internal/model"
	"github.com/yourusername/applytrack-api/internal/repository"
	"github.com/yourusername/applytrack-api/internal/sources"
)

type opportunityRepository interface {
	Upsert(ctx context.Context, userID uuid.UUID, p *model.ScannedPosting) (*model.JobOpportunity, bool, error)
	List(ctx context.Context, userID uuid.UUID, f model.OpportunityFilter) ([]model.JobOpportunity, error)
	FindByID(ctx context.Context, id, userID uuid.UUID) (*model.JobOpportunity, error)
	UpdateStatus(ctx context.Context, id, userID uuid.UUID, status string) (*model.JobOpportunity, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
}

type opportunityScorer interface {
	ScoreOpportunity(ctx context.Context, user *model.User, opp *model.JobOpportunity) (*model.FitResult, error)
}

type userLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
}

type OpportunityHandler struct {
	oppRepo  opportunityRepository
	appRepo  applicationRepository
	userRepo userLookup
	scorer   opportunityScorer
}

func NewOpportunityHandler(oppRepo opportunityRepository, appRepo applicationRepository, userRepo userLookup, scorer opportunityScorer) *OpportunityHandler {
	return &OpportunityHandler{oppRepo: oppRepo, appRepo: appRepo, userRepo: userRepo, scorer: scorer}
}

// List handles GET /opportunities
func (h *OpportunityHandler) List(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	status := c.Query("status")
	if status != "" && !model.ValidOpportunityStatus(status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
		return
	}

	limit, offset := pageParams(c)
	opps, err := h.oppRepo.List(c.Request.Context(), userID, model.OpportunityFilter{
		Status:   status,
		Source:   c.Query("source"),
		MinScore: min(max(queryInt(c, "minScore", 0), 0), 100),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to list opportunities")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list opportunities"})
		return
	}

	if opps == nil {
		opps = []model.JobOpportunity{}
	}

	c.JSON(http.StatusOK, opps)
}

// Create handles POST /opportunities for postings entered by hand
func (h *OpportunityHandler) Create(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var req struct {
		Title       string   `json:"title" binding:"required,max=300"`
		Company     string   `json:"company" binding:"required,max=200"`
		Location    string   `json:"location" binding:"max=200"`
		Remote      bool     `json:"remote"`
		URL         string   `json:"url" binding:"omitempty,url"`
		Description string   `json:"description"`
		SalaryMin   int      `json:"salaryMin" binding:"gte=0"`
		SalaryMax   int      `json:"salaryMax" binding:"gte=0"`
		Skills      []string `json:"skills" binding:"max=50,dive,max=100"`
	}
	if !bindJSON(c, &req) {
		return
	}

	externalID := uuid.NewString()
	if req.URL != "" {
		externalID = urlExternalID(req.URL)
	}

	posting := &model.ScannedPosting{
		Source:      model.SourceManual,
		ExternalID:  externalID,
		Title:       strings.TrimSpace(req.Title),
		Company:     strings.TrimSpace(req.Company),
		Location:    strings.TrimSpace(req.Location),
		Remote:      req.Remote,
		URL:         req.URL,
		Description: sources.TruncateUTF8(req.Description, sources.MaxDescriptionBytes),
		SalaryMin:   req.SalaryMin,
		SalaryMax:   req.SalaryMax,
		Tags:        lo.Uniq(lo.Compact(lo.Map(req.Skills, func(s string, _ int) string { return strings.TrimSpace(s) }))),
	}

	opp, err := h.storeAndScore(c.Request.Context(), userID, posting)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create opportunity")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create opportunity"})
		return
	}

	c.JSON(http.StatusOK, opp)
}

// storeAndScore upserts a posting and scores it. A scoring failure leaves the
// opportunity unscored rather than failing the request.
func (h *OpportunityHandler) storeAndScore(ctx context.Context, userID uuid.UUID, p *model.ScannedPosting) (*model.JobOpportunity, error) {
	opp, _, err := h.oppRepo.Upsert(ctx, userID, p)
	if err != nil {
		return nil, err
	}

	user, err := h.userRepo.FindByID(ctx, userID)
	if err != nil || user == nil {
		log.Warn().Err(err).Str("userId", userID.String()).Msg("Skipping fit score, user not loaded")
		return opp, nil
	}
	if _, err := h.scorer.ScoreOpportunity(ctx, user, opp); err != nil {
		log.Warn().Err(err).Str("opportunityId", opp.ID.String()).Msg("Failed to score opportunity")
	}
	return opp, nil
}

// Get handles GET /opportunities/:id
func (h *OpportunityHandler) Get(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	oppID, ok := paramID(c, "id", "opportunity")
	if !ok {
		return
	}

	opp, err := h.oppRepo.FindByID(c.Request.Context(), oppID, userID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get opportunity")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get opportunity"})
		return
	}
	if opp == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Opportunity not found"})
		return
	}

	c.JSON(http.StatusOK, opp)
}

// UpdateStatus handles PUT /opportunities/:id/status (save, dismiss, restore)
func (h *OpportunityHandler) UpdateStatus(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	oppID, ok := paramID(c, "id", "opportunity")
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status" binding:"required,opportunity_status"`
	}
	if !bindJSON(c, &req) {
		return
	}

	opp, err := h.oppRepo.UpdateStatus(c.Request.Context(), oppID, userID, req.Status)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Opportunity not found"})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to update opportunity status")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update opportunity"})
		return
	}

	c.JSON(http.StatusOK, opp)
}

// Score handles POST /opportunities/:id/score, re-scoring against the current profile
func (h *OpportunityHandler) Score(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	oppID, ok := paramID(c, "id", "opportunity")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	opp, err := h.oppRepo.FindByID(ctx, oppID, userID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get opportunity")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to score opportunity"})
		return
	}
	if opp == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Opportunity not found"})
		return
	}

	user, err := h.userRepo.FindByID(ctx, userID)
	if err != nil || user == nil {
		log.Error().Err(err).Msg("Failed to load user for scoring")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to score opportunity"})
		return
	}

	if _, err := h.scorer.ScoreOpportunity(ctx, user, opp); err != nil {
		log.Error().Err(err).Str("opportunityId", oppID.String()).Msg("Failed to score opportunity")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to score opportunity"})
		return
	}

	c.JSON(http.StatusOK, opp)
}

// Apply handles POST /opportunities/:id/apply: creates an application from the
// opportunity and marks the opportunity applied
func (h *OpportunityHandler) Apply(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	oppID, ok := paramID(c, "id", "opportunity")
	if !ok {
		return
	}

	var req struct {
		Status   string     `json:"status" binding:"omitempty,application_status"`
		Notes    string     `json:"notes"`
		ResumeID *uuid.UUID `json:"resumeId"`
	}
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	opp, err := h.oppRepo.FindByID(ctx, oppID, userID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get opportunity")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to apply"})
		return
	}
	if opp == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Opportunity not found"})
		return
	}

	existing, err := h.appRepo.FindByOpportunity(ctx, userID, oppID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to check existing application")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to apply"})
		return
	}
	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Already applied", "application": existing})
		return
	}

	app, err := h.appRepo.Create(ctx, &model.Application{
		UserID:        userID,
		OpportunityID: &opp.ID,
		Company:       opp.Company,
		Position:      opp.Title,
		Location:      opp.Location,
		JobURL:        opp.URL,
		SalaryText:    salaryText(opp.SalaryMin, opp.SalaryMax),
		Status:        req.Status,
		Source:        opp.Source,
		Notes:         req.Notes,
		FitScore:      opp.FitScore,
		ResumeID:      req.ResumeID,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to create application from opportunity")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to apply"})
		return
	}

	if _, err := h.oppRepo.UpdateStatus(ctx, oppID, userID, model.OpportunityApplied); err != nil {
		log.Warn().Err(err).Str("opportunityId", oppID.String()).Msg("Failed to mark opportunity applied")
	}

	c.JSON(http.StatusOK, app)
}

// Delete handles DELETE /opportunities/:id
func (h *OpportunityHandler) Delete(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	oppID, ok := paramID(c, "id", "opportunity")
	if !ok {
		return
	}

	err = h.oppRepo.Delete(c.Request.Context(), oppID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Opportunity not found"})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to delete opportunity")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete opportunity"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// salaryText renders a yearly range the way users type it, e.g. "$90k-$120k"
func salaryText(low, high int) string {
	k := func(v int) string {
		if v%1000 == 0 {
			return fmt.Sprintf("$%dk", v/1000)
		}
		return fmt.Sprintf("$%d", v)
	}
	switch {
	case low > 0 && high > 0 && low != high:
		return k(low) + "-" + k(high)
	case low > 0:
		return k(low)
	case high > 0:
		return k(high)
	}
	return ""
}
