package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/yourusername/applytrack-api/internal/ai"
	"github.com/yourusername/applytrack-api/internal/extract"
	"github.com/yourusername/applytrack-api/internal/fit"
	"github.com/yourusername/applytrack-api/internal/model"
	"github.com/yourusername/applytrack-api/internal/repository"
)

type resumeRepository interface {
	Create(ctx context.Context, res *model.Resume) (*model.Resume, error)
	List(ctx context.Context, userID uuid.UUID) ([]model.Resume, error)
	FindByID(ctx context.Context, id, userID uuid.UUID) (*model.Resume, error)
	SetPrimary(ctx context.Context, id, userID uuid.UUID) error
	SoftDelete(ctx context.Context, id, userID uuid.UUID) (string, error)
}

type fileStore interface {
	Save(userID uuid.UUID, fileName string, r io.Reader) (string, int64, error)
	Remove(rel string) error
}

type resumeAI interface {
	ExtractProfile(ctx context.Context, resumeText string) (*model.ResumeProfile, error)
	TailorResume(ctx context.Context, resumeText string, job fit.Posting) (string, error)
}

type profileApplier interface {
	ApplyExtractedProfile(ctx context.Context, id uuid.UUID, p *model.ResumeProfile) (*model.User, error)
}

type skillMerger interface {
	MergeExtracted(ctx context.Context, userID uuid.UUID, extracted []model.ExtractedSkill) (int, error)
}

type opportunityFinder interface {
	FindByID(ctx context.Context, id, userID uuid.UUID) (*model.JobOpportunity, error)
}

type ResumeHandler struct {
	resumeRepo resumeRepository
	userRepo   profileApplier
	skillRepo  skillMerger
	oppRepo    opportunityFinder
	store      fileStore
	ai         resumeAI
	maxBytes   int64
}

func NewResumeHandler(resumeRepo resumeRepository, userRepo profileApplier, skillRepo skillMerger,
	oppRepo opportunityFinder, store fileStore, aiService resumeAI, maxBytes int64) *ResumeHandler {
	return &ResumeHandler{
		resumeRepo: resumeRepo,
		userRepo:   userRepo,
		skillRepo:  skillRepo,
		oppRepo:    oppRepo,
		store:      store,
		ai:         aiService,
		maxBytes:   maxBytes,
	}
}

func withFileURL(r *model.Resume) *model.Resume {
	if r.FilePath != "" {
		r.FileURL = "/uploads/" + r.FilePath
	}
	return r
}

// List handles GET /resumes
func (h *ResumeHandler) List(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	resumes, err := h.resumeRepo.List(c.Request.Context(), userID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list resumes")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list resumes"})
		return
	}

	if resumes == nil {
		resumes = []model.Resume{}
	}
	for i := range resumes {
		withFileURL(&resumes[i])
	}

	c.JSON(http.StatusOK, resumes)
}

// Upload handles POST /resumes (multipart "file", optional "name").
// Text is extracted before anything is stored so unreadable files leave no trace.
func (h *ResumeHandler) Upload(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	defer file.Close()

	if header.Size > h.maxBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": fmt.Sprintf("File too large. Maximum size is %dMB.", h.maxBytes>>20),
		})
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, h.maxBytes+1))
	if err != nil {
		log.Error().Err(err).Msg("Failed to read uploaded file")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read file"})
		return
	}
	if int64(len(data)) > h.maxBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
		return
	}

	doc, err := extract.Text(header.Filename, data)
	switch {
	case errors.Is(err, extract.ErrUnsupportedType), errors.Is(err, extract.ErrUnreadable):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, extract.ErrTooLittleText):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	case err != nil:
		log.Error().Err(err).Str("filename", header.Filename).Msg("Failed to extract resume text")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process file"})
		return
	}

	relPath, size, err := h.store.Save(userID, header.Filename, bytes.NewReader(data))
	if err != nil {
		log.Error().Err(err).Msg("Failed to store resume file")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store file"})
		return
	}

	name := strings.TrimSpace(c.PostForm("name"))
	if name == "" {
		name = strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename))
	}

	created, err := h.resumeRepo.Create(c.Request.Context(), &model.Resume{
		UserID:    userID,
		Name:      name,
		FileName:  header.Filename,
		FilePath:  relPath,
		MimeType:  doc.MimeType,
		SizeBytes: size,
		RawText:   doc.Text,
		Kind:      model.ResumeUploaded,
	})
	if err != nil {
		if rmErr := h.store.Remove(relPath); rmErr != nil {
			log.Warn().Err(rmErr).Str("path", relPath).Msg("Failed to remove orphaned upload")
		}
		log.Error().Err(err).Msg("Failed to save resume")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save resume"})
		return
	}

	log.Info().
		Str("userId", userID.String()).
		Str("resumeId", created.ID.String()).
		Int("textLength", len(doc.Text)).
		Msg("Resume uploaded")

	c.JSON(http.StatusOK, withFileURL(created))
}

// Get handles GET /resumes/:id, including the extracted text
func (h *ResumeHandler) Get(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	resumeID, ok := paramID(c, "id", "resume")
	if !ok {
		return
	}

	resume, err := h.resumeRepo.FindByID(c.Request.Context(), resumeID, userID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get resume")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get resume"})
		return
	}
	if resume == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Resume not found"})
		return
	}

	c.JSON(http.StatusOK, withFileURL(resume))
}

// SetPrimary handles POST /resumes/:id/primary
func (h *ResumeHandler) SetPrimary(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	resumeID, ok := paramID(c, "id", "resume")
	if !ok {
		return
	}

	err = h.resumeRepo.SetPrimary(c.Request.Context(), resumeID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Resume not found"})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to set primary resume")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to set primary resume"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"primary": resumeID})
}

// Delete handles DELETE /resumes/:id
func (h *ResumeHandler) Delete(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	resumeID, ok := paramID(c, "id", "resume")
	if !ok {
		return
	}

	path, err := h.resumeRepo.SoftDelete(c.Request.Context(), resumeID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Resume not found"})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to delete resume")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete resume"})
		return
	}

	if err := h.store.Remove(path); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Failed to remove resume file")
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// ExtractProfile handles POST /resumes/:id/extract-profile. Empty profile
// fields are filled and extracted skills merged into the skill list.
func (h *ResumeHandler) ExtractProfile(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	resumeID, ok := paramID(c, "id", "resume")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	resume, err := h.resumeRepo.FindByID(ctx, resumeID, userID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get resume")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to extract profile"})
		return
	}
	if resume == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Resume not found"})
		return
	}

	profile, err := h.ai.ExtractProfile(ctx, resume.RawText)
	if err != nil {
		respondAIError(c, err, "Failed to extract profile")
		return
	}

	user, err := h.userRepo.ApplyExtractedProfile(ctx, userID, profile)
	if err != nil {
		log.Error().Err(err).Msg("Failed to apply extracted profile")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save profile"})
		return
	}

	added, err := h.skillRepo.MergeExtracted(ctx, userID, profile.Skills)
	if err != nil {
		log.Error().Err(err).Msg("Failed to merge extracted skills")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save skills"})
		return
	}

	log.Info().
		Str("userId", userID.String()).
		Int("skillsAdded", added).
		Msg("Profile extracted from resume")

	c.JSON(http.StatusOK, gin.H{
		"profile":     profile,
		"user":        user,
		"skillsAdded": added,
	})
}

// Tailor handles POST /resumes/:id/tailor, saving a tailored copy for one opportunity
func (h *ResumeHandler) Tailor(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	resumeID, ok := paramID(c, "id", "resume")
	if !ok {
		return
	}

	var req struct {
		OpportunityID uuid.UUID `json:"opportunityId" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	resume, err := h.resumeRepo.FindByID(ctx, resumeID, userID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get resume")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to tailor resume"})
		return
	}
	if resume == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Resume not found"})
		return
	}

	opp, err := h.oppRepo.FindByID(ctx, req.OpportunityID, userID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get opportunity")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to tailor resume"})
		return
	}
	if opp == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Opportunity not found"})
		return
	}

	text, err := h.ai.TailorResume(ctx, resume.RawText, fit.PostingFrom(opp))
	if err != nil {
		respondAIError(c, err, "Failed to tailor resume")
		return
	}

	fileName := fmt.Sprintf("%s - %s.txt", resume.Name, opp.Company)
	relPath, size, err := h.store.Save(userID, fileName, strings.NewReader(text))
	if err != nil {
		log.Error().Err(err).Msg("Failed to store tailored resume")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save tailored resume"})
		return
	}

	created, err := h.resumeRepo.Create(ctx, &model.Resume{
		UserID:         userID,
		Name:           fmt.Sprintf("%s (%s)", resume.Name, opp.Company),
		FileName:       fileName,
		FilePath:       relPath,
		MimeType:       "text/plain",
		SizeBytes:      size,
		RawText:        text,
		Kind:           model.ResumeTailored,
		ParentResumeID: &resume.ID,
		OpportunityID:  &opp.ID,
	})
	if err != nil {
		if rmErr := h.store.Remove(relPath); rmErr != nil {
			log.Warn().Err(rmErr).Str("path", relPath).Msg("Failed to remove orphaned tailored resume")
		}
		log.Error().Err(err).Msg("Failed to save tailored resume")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save tailored resume"})
		return
	}

	c.JSON(http.StatusOK, withFileURL(created))
}

// respondAIError answers 503 when no model is configured and 502 when the model call fails
func respondAIError(c *gin.Context, err error, msg string) {
	if errors.Is(err, ai.ErrUnavailable) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	log.Error().Err(err).Msg(msg)
	c.JSON(http.StatusBadGateway, gin.H{"error": msg})
}
