package model

import (
	"time"

	"github.com/google/uuid"
)

// StripeCustomer maps a user to the Stripe customer created at first checkout.
type StripeCustomer struct {
	ID               uuid.UUID `json:"id"`
	UserID           uuid.UUID `json:"userId"`
	StripeCustomerID string    `json:"stripeCustomerId"`
	Email            string    `json:"email"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Subscription mirrors the latest Stripe subscription state received by webhook.
type Subscription struct {
	ID                uuid.UUID  `json:"id"`
	UserID            uuid.UUID  `json:"userId"`
	StripeSubID       string     `json:"stripeSubId,omitempty"`
	StripePriceID     string     `json:"stripePriceId,omitempty"`
	Plan              string     `json:"plan"`
	Status            string     `json:"status"`
	CurrentPeriodEnd  *time.Time `json:"currentPeriodEnd"`
	CancelAtPeriodEnd bool       `json:"cancelAtPeriodEnd"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

const (
	PlanFree = "free"
	PlanPro  = "pro"
)

const (
	SubStatusActive   = "active"
	SubStatusPastDue  = "past_due"
	SubStatusCanceled = "canceled"
	SubStatusTrialing = "trialing"
)

var planRank = map[string]int{
	PlanFree: 0,
	PlanPro:  1,
}

// PlanCovers reports whether plan grants everything required does.
// Unknown plans rank as free.
func PlanCovers(plan, required string) bool {
	return planRank[plan] >= planRank[required]
}

// EffectivePlan is the plan a subscription currently grants. Past-due and
// canceled subscriptions fall back to free.
func (s *Subscription) EffectivePlan() string {
	if s == nil {
		return PlanFree
	}
	switch s.Status {
	case SubStatusActive, SubStatusTrialing:
		return s.Plan
	default:
		return PlanFree
	}
}
