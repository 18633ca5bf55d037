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
	"github.com/yourusername/applytrack-api/internal/ai"
	"github.com/yourusername/applytrack-api/internal/fit"
	"github.com/yourusername/applytrack-api/internal/model"
	"github.com/yourusername/applytrack-api/internal/repository"
)

type coverLetterRepository interface {
	Create(ctx context.Context, cl *model.CoverLetter) (*model.CoverLetter, error)
	List(ctx context.Context, userID uuid.UUID, applicationID *uuid.UUID) ([]model.CoverLetter, error)
	FindByID(ctx context.Context, id, userID uuid.UUID) (*model.CoverLetter, error)
	Update(ctx context.Context, id, userID uuid.UUID, title, content string) (*model.CoverLetter, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
}

type resumeFinder interface {
	FindByID(ctx context.Context, id, userID uuid.UUID) (*model.Resume, error)
	FindPrimary(ctx context.Context, userID uuid.UUID) (*model.Resume, error)
}

type coverLetterWriter interface {
	GenerateCoverLetter(ctx context.Context, in ai.CoverLetterInput) (string, error)
	ProviderName() string
}

type CoverLetterHandler struct {
	letterRepo coverLetterRepository
	resumeRepo resumeFinder
	appRepo    applicationFinder
	oppRepo    opportunityFinder
	userRepo   userLookup
	writer     coverLetterWriter
}

func NewCoverLetterHandler(letterRepo coverLetterRepository, resumeRepo resumeFinder, appRepo applicationFinder,
	oppRepo opportunityFinder, userRepo userLookup, writer coverLetterWriter) *CoverLetterHandler {
	return &CoverLetterHandler{
		letterRepo: letterRepo,
		resumeRepo: resumeRepo,
		appRepo:    appRepo,
		oppRepo:    oppRepo,
		userRepo:   userRepo,
		writer:     writer,
	}
}

// List handles GET /cover-letters (?applicationId=...)
func (h *CoverLetterHandler) List(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var appID *uuid.UUID
	if raw := c.Query("applicationId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid application ID"})
			return
		}
		appID = &id
	}

	letters, err := h.letterRepo.List(c.Request.Context(), userID, appID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list cover letters")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list cover letters"})
		return
	}

	if letters == nil {
		letters = []model.CoverLetter{}
	}

	c.JSON(http.StatusOK, letters)
}

type generateCoverLetterRequest struct {
	ApplicationID *uuid.UUID `json:"applicationId"`
	OpportunityID *uuid.UUID `json:"opportunityId"`
	ResumeID      *uuid.UUID `json:"resumeId"`
	Tone          string     `json:"tone" binding:"omitempty,tone"`
	Extra         string     `json:"extra" binding:"max=2000"`
}

// Generate handles POST /cover-letters/generate. The job comes from the
// opportunity when given, otherwise from the application (and its opportunity).
func (h *CoverLetterHandler) Generate(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var req generateCoverLetterRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.ApplicationID == nil && req.OpportunityID == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "applicationId or opportunityId is required"})
		return
	}
	tone := req.Tone
	if tone == "" {
		tone = "professional"
	}

	ctx := c.Request.Context()
	job, oppID, status, msg := h.resolveJob(ctx, userID, req.ApplicationID, req.OpportunityID)
	if status != 0 {
		c.JSON(status, gin.H{"error": msg})
		return
	}

	resume, err := h.pickResume(ctx, userID, req.ResumeID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load resume")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate cover letter"})
		return
	}
	if resume == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Upload a resume first"})
		return
	}

	user, err := h.userRepo.FindByID(ctx, userID)
	if err != nil || user == nil {
		log.Error().Err(err).Msg("Failed to load user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate cover letter"})
		return
	}

	content, err := h.writer.GenerateCoverLetter(ctx, ai.CoverLetterInput{
		CandidateName: user.Name,
		ResumeText:    resume.RawText,
		Job:           job,
		Tone:          tone,
		Extra:         strings.TrimSpace(req.Extra),
	})
	if err != nil {
		respondAIError(c, err, "Failed to generate cover letter")
		return
	}

	created, err := h.letterRepo.Create(ctx, &model.CoverLetter{
		UserID:        userID,
		ApplicationID: req.ApplicationID,
		OpportunityID: oppID,
		ResumeID:      &resume.ID,
		Title:         fmt.Sprintf("%s at %s", job.Title, job.Company),
		Content:       content,
		Tone:          tone,
		Provider:      h.writer.ProviderName(),
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to save cover letter")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save cover letter"})
		return
	}

	log.Info().
		Str("userId", userID.String()).
		Str("coverLetterId", created.ID.String()).
		Str("provider", created.Provider).
		Msg("Cover letter generated")

	c.JSON(http.StatusOK, created)
}

// resolveJob returns the posting to write for; a non-zero status means the request failed
func (h *CoverLetterHandler) resolveJob(ctx context.Context, userID uuid.UUID, appID, oppID *uuid.UUID) (fit.Posting, *uuid.UUID, int, string) {
	if oppID == nil {
		app, err := h.appRepo.FindByID(ctx, *appID, userID)
		if err != nil {
			log.Error().Err(err).Msg("Failed to get application")
			return fit.Posting{}, nil, http.StatusInternalServerError, "Failed to generate cover letter"
		}
		if app == nil {
			return fit.Posting{}, nil, http.StatusNotFound, "Application not found"
		}
		if app.OpportunityID == nil {
			return fit.Posting{Title: app.Position, Company: app.Company, Location: app.Location}, nil, 0, ""
		}
		oppID = app.OpportunityID
	}

	opp, err := h.oppRepo.FindByID(ctx, *oppID, userID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get opportunity")
		return fit.Posting{}, nil, http.StatusInternalServerError, "Failed to generate cover letter"
	}
	if opp == nil {
		return fit.Posting{}, nil, http.StatusNotFound, "Opportunity not found"
	}
	return fit.PostingFrom(opp), &opp.ID, 0, ""
}

func (h *CoverLetterHandler) pickResume(ctx context.Context, userID uuid.UUID, resumeID *uuid.UUID) (*model.Resume, error) {
	if resumeID != nil {
		return h.resumeRepo.FindByID(ctx, *resumeID, userID)
	}
	return h.resumeRepo.FindPrimary(ctx, userID)
}

// Get handles GET /cover-letters/:id
func (h *CoverLetterHandler) Get(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	letterID, ok := paramID(c, "id", "cover letter")
	if !ok {
		return
	}

	letter, err := h.letterRepo.FindByID(c.Request.Context(), letterID, userID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get cover letter")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get cover letter"})
		return
	}
	if letter == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Cover letter not found"})
		return
	}

	c.JSON(http.StatusOK, letter)
}

// Update handles PUT /cover-letters/:id
func (h *CoverLetterHandler) Update(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	letterID, ok := paramID(c, "id", "cover letter")
	if !ok {
		return
	}

	var req struct {
		Title   string `json:"title" binding:"required,max=300"`
		Content string `json:"content" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}

	updated, err := h.letterRepo.Update(c.Request.Context(), letterID, userID, strings.TrimSpace(req.Title), req.Content)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Cover letter not found"})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to update cover letter")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update cover letter"})
		return
	}

	c.JSON(http.StatusOK, updated)
}

// Delete handles DELETE /cover-letters/:id
func (h *CoverLetterHandler) Delete(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	letterID, ok := paramID(c, "id", "cover letter")
	if !ok {
		return
	}

	err = h.letterRepo.Delete(c.Request.Context(), letterID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Cover letter not found"})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to delete cover letter")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete cover letter"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
