package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v81"
	"github.com/yourusername/applytrack-api/internal/model"
	"github.com/yourusername/applytrack-api/internal/service"
)

type billingService interface {
	Enabled() bool
	Subscription(ctx context.Context, userID uuid.UUID) (*model.Subscription, error)
	CreateCheckoutSession(ctx context.Context, userID uuid.UUID, plan, interval string) (string, error)
	CreatePortalSession(ctx context.Context, userID uuid.UUID) (string, error)
	VerifyWebhook(body io.Reader, signature string) (*stripe.Event, error)
	HandleWebhookEvent(ctx context.Context, event *stripe.Event) error
}

type BillingHandler struct {
	billing billingService
}

func NewBillingHandler(billing billingService) *BillingHandler {
	return &BillingHandler{billing: billing}
}

// GetSubscription handles GET /billing/subscription
func (h *BillingHandler) GetSubscription(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	sub, err := h.billing.Subscription(c.Request.Context(), userID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get subscription")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get subscription"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"subscription":   sub,
		"effectivePlan":  sub.EffectivePlan(),
		"billingEnabled": h.billing.Enabled(),
	})
}

// CreateCheckout handles POST /billing/checkout
// Accepts {plan, interval} and returns {url} for Stripe Checkout redirect
func (h *BillingHandler) CreateCheckout(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var req struct {
		Plan     string `json:"plan" binding:"required,oneof=pro"`
		Interval string `json:"interval" binding:"required,oneof=month year"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "plan must be 'pro' and interval 'month' or 'year'"})
		return
	}

	url, err := h.billing.CreateCheckoutSession(c.Request.Context(), userID, req.Plan, req.Interval)
	if errors.Is(err, service.ErrBillingDisabled) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		log.Error().Err(err).Str("plan", req.Plan).Msg("Failed to create checkout session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create checkout session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}

// CreatePortal handles POST /billing/portal
func (h *BillingHandler) CreatePortal(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	url, err := h.billing.CreatePortalSession(c.Request.Context(), userID)
	switch {
	case errors.Is(err, service.ErrBillingDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	case errors.Is(err, service.ErrNoCustomer):
		c.JSON(http.StatusNotFound, gin.H{"error": "No billing account yet"})
		return
	case err != nil:
		log.Error().Err(err).Msg("Failed to create portal session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create portal session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}

// HandleWebhook handles POST /billing/webhook
// Unauthenticated; the Stripe signature is verified instead
func (h *BillingHandler) HandleWebhook(c *gin.Context) {
	if !h.billing.Enabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": service.ErrBillingDisabled.Error()})
		return
	}

	event, err := h.billing.VerifyWebhook(c.Request.Body, c.GetHeader("Stripe-Signature"))
	if err != nil {
		log.Warn().Err(err).Msg("Invalid webhook signature")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature"})
		return
	}

	if err := h.billing.HandleWebhookEvent(c.Request.Context(), event); err != nil {
		log.Error().Err(err).Str("type", string(event.Type)).Msg("Failed to process webhook event")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process event"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
