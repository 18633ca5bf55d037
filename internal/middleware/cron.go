package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/yourusername/applytrack-api/internal/model"
)

// CronSecret guards the scheduler endpoints with a shared secret sent as a
// bearer token or in X-Cron-Secret. With no secret configured the endpoints
// are unavailable.
func CronSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Cron endpoint not configured"})
			return
		}

		given := c.GetHeader("X-Cron-Secret")
		if token, ok := bearerToken(c); ok {
			given = token
		}

		if subtle.ConstantTimeCompare([]byte(given), []byte(secret)) != 1 {
			log.Warn().Str("ip", c.ClientIP()).Msg("Rejected cron request with bad secret")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid cron secret"})
			return
		}

		c.Next()
	}
}

type bookmarkletUserFinder interface {
	FindByBookmarkletToken(ctx context.Context, token uuid.UUID) (*model.User, error)
}

// BookmarkletToken authenticates bookmarklet captures by the per-user token in
// the "token" query parameter or X-Bookmarklet-Token header.
func BookmarkletToken(users bookmarkletUserFinder) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.Query("token")
		if raw == "" {
			raw = c.GetHeader("X-Bookmarklet-Token")
		}

		token, err := uuid.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid bookmarklet token"})
			return
		}

		user, err := users.FindByBookmarkletToken(c.Request.Context(), token)
		if err != nil {
			log.Error().Err(err).Msg("Failed to resolve bookmarklet token")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
			return
		}
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid bookmarklet token"})
			return
		}

		SetUserID(c, user.ID)
		c.Next()
	}
}
