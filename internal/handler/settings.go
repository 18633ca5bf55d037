package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/yourusername/applytrack-api/internal/model"
)

type settingsRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	UpdateSettings(ctx context.Context, id uuid.UUID, s *model.Settings) (*model.User, error)
	RotateBookmarkletToken(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

type SettingsHandler struct {
	userRepo      settingsRepository
	publicBaseURL string
}

func NewSettingsHandler(userRepo settingsRepository, publicBaseURL string) *SettingsHandler {
	return &SettingsHandler{userRepo: userRepo, publicBaseURL: strings.TrimRight(publicBaseURL, "/")}
}

func settingsOf(u *model.User) model.Settings {
	return model.Settings{
		TargetRoles:        u.TargetRoles,
		PreferredLocations: u.PreferredLocations,
		RemoteOnly:         u.RemoteOnly,
		SalaryMin:          u.SalaryMin,
		SalaryMax:          u.SalaryMax,
		MinAlertScore:      u.MinAlertScore,
		ScanEnabled:        u.ScanEnabled,
		TelegramChatID:     u.TelegramChatID,
	}
}

// Get handles GET /settings
func (h *SettingsHandler) Get(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	user, err := h.userRepo.FindByID(c.Request.Context(), userID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get settings")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get settings"})
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, settingsOf(user))
}

// Update handles PUT /settings
func (h *SettingsHandler) Update(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var req model.Settings
	if !bindJSON(c, &req) {
		return
	}
	if req.SalaryMax > 0 && req.SalaryMin > req.SalaryMax {
		c.JSON(http.StatusBadRequest, gin.H{"error": "salaryMin must not exceed salaryMax"})
		return
	}

	req.TargetRoles = cleanList(req.TargetRoles, 20)
	req.PreferredLocations = cleanList(req.PreferredLocations, 20)

	updated, err := h.userRepo.UpdateSettings(c.Request.Context(), userID, &req)
	if err != nil {
		log.Error().Err(err).Msg("Failed to update settings")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update settings"})
		return
	}

	c.JSON(http.StatusOK, settingsOf(updated))
}

// Bookmarklet handles GET /settings/bookmarklet
func (h *SettingsHandler) Bookmarklet(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	user, err := h.userRepo.FindByID(c.Request.Context(), userID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get bookmarklet token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get bookmarklet"})
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, h.bookmarkletResponse(user.BookmarkletToken))
}

// RotateBookmarklet handles POST /settings/bookmarklet/rotate. Previously
// installed bookmarklets stop working.
func (h *SettingsHandler) RotateBookmarklet(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	token, err := h.userRepo.RotateBookmarkletToken(c.Request.Context(), userID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to rotate bookmarklet token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to rotate token"})
		return
	}

	log.Info().Str("userId", userID.String()).Msg("Bookmarklet token rotated")
	c.JSON(http.StatusOK, h.bookmarkletResponse(token))
}

func (h *SettingsHandler) bookmarkletResponse(token uuid.UUID) gin.H {
	endpoint := fmt.Sprintf("%s/bookmarklet/capture?token=%s", h.publicBaseURL, token)
	return gin.H{
		"token":    token,
		"endpoint": endpoint,
		"script":   bookmarkletScript(endpoint),
	}
}

// bookmarkletScript is the javascript: URL users drag to their bookmarks bar.
// It posts the current page to the capture endpoint and reports the result.
func bookmarkletScript(endpoint string) string {
	return "javascript:(function(){" +
		"var d={url:location.href,title:document.title," +
		"text:(document.body.innerText||'').slice(0,60000)," +
		"selection:String(window.getSelection()||'')};" +
		"fetch('" + endpoint + "',{method:'POST',headers:{'Content-Type':'application/json'},body:JSON.stringify(d)})" +
		".then(function(r){return r.json()})" +
		".then(function(j){alert(j.error?'ApplyTrack: '+j.error:'Saved to ApplyTrack: '+j.title+(j.fitScore!=null?' ('+j.fitScore+'% fit)':''))})" +
		".catch(function(){alert('ApplyTrack: capture failed')})" +
		"})();"
}

// cleanList trims entries, drops blanks and case-insensitive duplicates, and caps the length
func cleanList(items []string, limit int) []string {
	out := lo.UniqBy(
		lo.FilterMap(items, func(s string, _ int) (string, bool) {
			s = strings.TrimSpace(s)
			return s, s != ""
		}),
		strings.ToLower,
	)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
