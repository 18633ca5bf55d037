package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/yourusername/applytrack-api/internal/model"
)

type planResolver interface {
	PlanFor(ctx context.Context, userID uuid.UUID) (string, error)
}

// RequirePlan aborts with 402 upgrade_required unless the caller's
// effective plan covers minPlan.
func RequirePlan(minPlan string, plans planResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := uuid.Parse(GetUserID(c))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}

		userPlan, err := plans.PlanFor(c.Request.Context(), userID)
		if err != nil {
			log.Error().Err(err).Str("userId", userID.String()).Msg("Plan lookup failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to check subscription"})
			return
		}

		if !model.PlanCovers(userPlan, minPlan) {
			c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{
				"error":        "upgrade_required",
				"requiredPlan": minPlan,
				"currentPlan":  userPlan,
			})
			return
		}

		c.Next()
	}
}
