package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/yourusername/applytrack-api/internal/middleware"
	"github.com/yourusername/applytrack-api/internal/model"
)

type accountRepository interface {
	FindByFirebaseUID(ctx context.Context, firebaseUID string) (*model.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	Create(ctx context.Context, firebaseUID, email, name, avatarURL string) (*model.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, p *model.User) (*model.User, error)
}

type AuthHandler struct {
	userRepo accountRepository
}

func NewAuthHandler(userRepo accountRepository) *AuthHandler {
	return &AuthHandler{userRepo: userRepo}
}

// GoogleSignIn handles POST /auth/google
// Creates or fetches a user based on Firebase token
func (h *AuthHandler) GoogleSignIn(c *gin.Context) {
	firebaseUID := middleware.GetFirebaseUID(c)
	if firebaseUID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	user, err := h.userRepo.FindByFirebaseUID(c.Request.Context(), firebaseUID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to look up user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}

	if user == nil {
		var req struct {
			Name      string `json:"name"`
			AvatarURL string `json:"avatarUrl"`
		}
		// Body is optional on sign-in
		_ = c.ShouldBindJSON(&req)

		user, err = h.userRepo.Create(c.Request.Context(), firebaseUID, middleware.GetEmail(c),
			strings.TrimSpace(req.Name), strings.TrimSpace(req.AvatarURL))
		if err != nil {
			log.Error().Err(err).Msg("Failed to create user")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create account"})
			return
		}
		log.Info().Str("uid", firebaseUID).Str("userId", user.ID.String()).Msg("New user created")
	}

	c.JSON(http.StatusOK, user)
}

// ProfileHandler handles profile reads and edits
type ProfileHandler struct {
	userRepo accountRepository
}

func NewProfileHandler(userRepo accountRepository) *ProfileHandler {
	return &ProfileHandler{userRepo: userRepo}
}

// GetProfile handles GET /profile
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	user, err := h.userRepo.FindByID(c.Request.Context(), userID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get profile")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get profile"})
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, user)
}

// UpdateProfile handles PUT /profile
func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var req struct {
		Name            string `json:"name" binding:"max=200"`
		Headline        string `json:"headline" binding:"max=300"`
		Summary         string `json:"summary" binding:"max=5000"`
		Location        string `json:"location" binding:"max=200"`
		YearsExperience int    `json:"yearsExperience" binding:"gte=0,lte=70"`
	}
	if !bindJSON(c, &req) {
		return
	}

	updated, err := h.userRepo.UpdateProfile(c.Request.Context(), userID, &model.User{
		Name:            strings.TrimSpace(req.Name),
		Headline:        strings.TrimSpace(req.Headline),
		Summary:         strings.TrimSpace(req.Summary),
		Location:        strings.TrimSpace(req.Location),
		YearsExperience: req.YearsExperience,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to update profile")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update profile"})
		return
	}

	c.JSON(http.StatusOK, updated)
}
