package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/yourusername/applytrack-api/internal/model"
	"github.com/yourusername/applytrack-api/internal/repository"
)

const upcomingHorizon = 14 * 24 * time.Hour

type interviewRepository interface {
	ListByApplication(ctx context.Context, userID, applicationID uuid.UUID) ([]model.Interview, error)
	ListUpcoming(ctx context.Context, userID uuid.UUID, horizon time.Duration) ([]model.Interview, error)
	ListAll(ctx context.Context, userID uuid.UUID) ([]model.Interview, error)
	FindByID(ctx context.Context, id, userID uuid.UUID) (*model.Interview, error)
	Create(ctx context.Context, i *model.Interview) (*model.Interview, error)
	Update(ctx context.Context, i *model.Interview) (*model.Interview, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
	AddInterviewer(ctx context.Context, userID uuid.UUID, iv *model.Interviewer) (*model.Interviewer, error)
	RemoveInterviewer(ctx context.Context, userID, interviewID, interviewerID uuid.UUID) error
}

type applicationFinder interface {
	FindByID(ctx context.Context, id, userID uuid.UUID) (*model.Application, error)
}

type InterviewHandler struct {
	interviewRepo interviewRepository
	appRepo       applicationFinder
	refs          refChecker
}

func NewInterviewHandler(interviewRepo interviewRepository, appRepo applicationFinder, refs refChecker) *InterviewHandler {
	return &InterviewHandler{interviewRepo: interviewRepo, appRepo: appRepo, refs: refs}
}

type interviewRequest struct {
	Round           int       `json:"round" binding:"gte=0"`
	Kind            string    `json:"kind" binding:"required,interview_kind"`
	ScheduledAt     time.Time `json:"scheduledAt" binding:"required"`
	DurationMinutes int       `json:"durationMinutes" binding:"gte=0,lte=1440"`
	Location        string    `json:"location" binding:"max=300"`
	MeetingURL      string    `json:"meetingUrl" binding:"omitempty,url"`
	Outcome         string    `json:"outcome" binding:"omitempty,interview_outcome"`
	Notes           string    `json:"notes"`
}

func (r *interviewRequest) toModel(userID uuid.UUID) *model.Interview {
	outcome := r.Outcome
	if outcome == "" {
		outcome = model.OutcomePending
	}
	duration := r.DurationMinutes
	if duration == 0 {
		duration = 60
	}
	return &model.Interview{
		UserID:          userID,
		Round:           r.Round,
		Kind:            r.Kind,
		ScheduledAt:     r.ScheduledAt.UTC(),
		DurationMinutes: duration,
		Location:        r.Location,
		MeetingURL:      r.MeetingURL,
		Outcome:         outcome,
		Notes:           r.Notes,
	}
}

// List handles GET /interviews (?upcoming=true for the next two weeks)
func (h *InterviewHandler) List(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var interviews []model.Interview
	if queryBool(c, "upcoming") {
		interviews, err = h.interviewRepo.ListUpcoming(c.Request.Context(), userID, upcomingHorizon)
	} else {
		interviews, err = h.interviewRepo.ListAll(c.Request.Context(), userID)
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to list interviews")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list interviews"})
		return
	}

	if interviews == nil {
		interviews = []model.Interview{}
	}

	c.JSON(http.StatusOK, interviews)
}

// ListForApplication handles GET /applications/:id/interviews
func (h *InterviewHandler) ListForApplication(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	appID, ok := paramID(c, "id", "application")
	if !ok {
		return
	}

	interviews, err := h.interviewRepo.ListByApplication(c.Request.Context(), userID, appID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list interviews")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list interviews"})
		return
	}

	if interviews == nil {
		interviews = []model.Interview{}
	}

	c.JSON(http.StatusOK, interviews)
}

// Create handles POST /applications/:id/interviews
func (h *InterviewHandler) Create(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	appID, ok := paramID(c, "id", "application")
	if !ok {
		return
	}

	var req interviewRequest
	if !bindJSON(c, &req) {
		return
	}

	app, err := h.appRepo.FindByID(c.Request.Context(), appID, userID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get application")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create interview"})
		return
	}
	if app == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Application not found"})
		return
	}

	interview := req.toModel(userID)
	interview.ApplicationID = appID

	created, err := h.interviewRepo.Create(c.Request.Context(), interview)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create interview")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create interview"})
		return
	}

	c.JSON(http.StatusOK, created)
}

// Get handles GET /interviews/:id
func (h *InterviewHandler) Get(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	interviewID, ok := paramID(c, "id", "interview")
	if !ok {
		return
	}

	interview, err := h.interviewRepo.FindByID(c.Request.Context(), interviewID, userID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get interview")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get interview"})
		return
	}
	if interview == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Interview not found"})
		return
	}

	c.JSON(http.StatusOK, interview)
}

// Update handles PUT /interviews/:id
func (h *InterviewHandler) Update(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	interviewID, ok := paramID(c, "id", "interview")
	if !ok {
		return
	}

	var req interviewRequest
	if !bindJSON(c, &req) {
		return
	}

	interview := req.toModel(userID)
	interview.ID = interviewID

	updated, err := h.interviewRepo.Update(c.Request.Context(), interview)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Interview not found"})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to update interview")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update interview"})
		return
	}

	c.JSON(http.StatusOK, updated)
}

// Delete handles DELETE /interviews/:id
func (h *InterviewHandler) Delete(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	interviewID, ok := paramID(c, "id", "interview")
	if !ok {
		return
	}

	err = h.interviewRepo.Delete(c.Request.Context(), interviewID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Interview not found"})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to delete interview")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete interview"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// AddInterviewer handles POST /interviews/:id/interviewers
func (h *InterviewHandler) AddInterviewer(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	interviewID, ok := paramID(c, "id", "interview")
	if !ok {
		return
	}

	var req struct {
		ContactID   *uuid.UUID `json:"contactId"`
		Name        string     `json:"name" binding:"required,max=200"`
		Title       string     `json:"title" binding:"max=200"`
		Email       string     `json:"email" binding:"omitempty,email"`
		LinkedInURL string     `json:"linkedinUrl" binding:"omitempty,url"`
		Notes       string     `json:"notes"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if !checkRefs(c, h.refs, userID, repository.Ref{Field: "contactId", Kind: repository.RefContact, ID: req.ContactID}) {
		return
	}

	created, err := h.interviewRepo.AddInterviewer(c.Request.Context(), userID, &model.Interviewer{
		InterviewID: interviewID,
		ContactID:   req.ContactID,
		Name:        req.Name,
		Title:       req.Title,
		Email:       req.Email,
		LinkedInURL: req.LinkedInURL,
		Notes:       req.Notes,
	})
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Interview not found"})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to add interviewer")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add interviewer"})
		return
	}

	c.JSON(http.StatusOK, created)
}

// RemoveInterviewer handles DELETE /interviews/:id/interviewers/:interviewerId
func (h *InterviewHandler) RemoveInterviewer(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	interviewID, ok := paramID(c, "id", "interview")
	if !ok {
		return
	}
	interviewerID, ok := paramID(c, "interviewerId", "interviewer")
	if !ok {
		return
	}

	err = h.interviewRepo.RemoveInterviewer(c.Request.Context(), userID, interviewID, interviewerID)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Interviewer not found"})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to remove interviewer")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove interviewer"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
