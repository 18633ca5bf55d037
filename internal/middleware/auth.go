package middleware

import (
	"context"
	"net/http"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/yourusername/applytrack-api/internal/model"
	"google.golang.org/api/option"
)

const (
	// ContextKeyFirebaseUID is the key for the Firebase UID in the Gin context
	ContextKeyFirebaseUID = "firebase_uid"
	// ContextKeyUserID is the key for the internal user UUID in the Gin context
	ContextKeyUserID = "user_id"
	// ContextKeyEmail carries the verified token's email claim
	ContextKeyEmail = "email"
)

type tokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

type firebaseUserFinder interface {
	FindByFirebaseUID(ctx context.Context, firebaseUID string) (*model.User, error)
}

// AuthMiddleware validates Firebase ID tokens and injects the UID into context
type AuthMiddleware struct {
	client tokenVerifier
}

// NewAuthMiddleware creates a new Firebase auth middleware
func NewAuthMiddleware(projectID string) (*AuthMiddleware, error) {
	ctx := context.Background()

	var app *firebase.App
	var err error

	if projectID != "" {
		conf := &firebase.Config{ProjectID: projectID}
		app, err = firebase.NewApp(ctx, conf)
	} else {
		// Falls back to GOOGLE_APPLICATION_CREDENTIALS or default credentials
		app, err = firebase.NewApp(ctx, nil, option.WithoutAuthentication())
	}
	if err != nil {
		return nil, err
	}

	client, err := app.Auth(ctx)
	if err != nil {
		return nil, err
	}

	return &AuthMiddleware{client: client}, nil
}

// Authenticate is the Gin middleware handler
func (am *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing or malformed Authorization header",
			})
			return
		}

		verified, err := am.client.VerifyIDToken(c.Request.Context(), token)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to verify Firebase token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			return
		}

		c.Set(ContextKeyFirebaseUID, verified.UID)
		if email, ok := verified.Claims["email"].(string); ok {
			c.Set(ContextKeyEmail, email)
		}

		c.Next()
	}
}

// ResolveUser maps the Firebase UID to the internal user id. Unknown users
// pass through without an id so POST /auth/google can create them; every
// other handler answers 401.
func ResolveUser(users firebaseUserFinder) gin.HandlerFunc {
	return func(c *gin.Context) {
		firebaseUID := GetFirebaseUID(c)
		if firebaseUID == "" {
			c.Next()
			return
		}

		user, err := users.FindByFirebaseUID(c.Request.Context(), firebaseUID)
		if err != nil {
			log.Error().Err(err).Msg("Failed to resolve user ID")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
			return
		}
		if user != nil {
			SetUserID(c, user.ID)
		}

		c.Next()
	}
}

// bearerToken returns the token from "Authorization: Bearer <token>"
func bearerToken(c *gin.Context) (string, bool) {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// GetFirebaseUID extracts the Firebase UID from the Gin context
func GetFirebaseUID(c *gin.Context) string {
	return c.GetString(ContextKeyFirebaseUID)
}

// GetEmail returns the verified email claim, if any
func GetEmail(c *gin.Context) string {
	return c.GetString(ContextKeyEmail)
}

// GetUserID extracts the internal user UUID from the Gin context
func GetUserID(c *gin.Context) string {
	return c.GetString(ContextKeyUserID)
}

func SetUserID(c *gin.Context, id uuid.UUID) {
	c.Set(ContextKeyUserID, id.String())
}
