package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yourusername/applytrack-api/internal/model"
)

// ── Stripe customers ───────────────────────────────────

type StripeCustomerRepo struct {
	pool *pgxpool.Pool
}

func NewStripeCustomerRepo(pool *pgxpool.Pool) *StripeCustomerRepo {
	return &StripeCustomerRepo{pool: pool}
}

const stripeCustomerColumns = `id, user_id, stripe_customer_id, email, created_at, updated_at`

func (r *StripeCustomerRepo) findOne(ctx context.Context, where string, arg any) (*model.StripeCustomer, error) {
	var sc model.StripeCustomer
	err := r.pool.QueryRow(ctx, `SELECT `+stripeCustomerColumns+` FROM stripe_customers WHERE `+where, arg).Scan(
		&sc.ID, &sc.UserID, &sc.StripeCustomerID, &sc.Email, &sc.CreatedAt, &sc.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sc, nil
}

// FindByUserID returns the Stripe customer linked to a user
func (r *StripeCustomerRepo) FindByUserID(ctx context.Context, userID uuid.UUID) (*model.StripeCustomer, error) {
	sc, err := r.findOne(ctx, "user_id = $1", userID)
	if err != nil {
		return nil, fmt.Errorf("finding stripe customer by user: %w", err)
	}
	return sc, nil
}

// FindByStripeID returns the customer row for Stripe's customer ID
func (r *StripeCustomerRepo) FindByStripeID(ctx context.Context, stripeCustomerID string) (*model.StripeCustomer, error) {
	sc, err := r.findOne(ctx, "stripe_customer_id = $1", stripeCustomerID)
	if err != nil {
		return nil, fmt.Errorf("finding stripe customer by stripe id: %w", err)
	}
	return sc, nil
}

func (r *StripeCustomerRepo) Upsert(ctx context.Context, userID uuid.UUID, stripeCustomerID, email string) (*model.StripeCustomer, error) {
	var sc model.StripeCustomer
	err := r.pool.QueryRow(ctx, `
		INSERT INTO stripe_customers (user_id, stripe_customer_id, email)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET stripe_customer_id = $2, email = $3, updated_at = now()
		RETURNING `+stripeCustomerColumns, userID, stripeCustomerID, email).Scan(
		&sc.ID, &sc.UserID, &sc.StripeCustomerID, &sc.Email, &sc.CreatedAt, &sc.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("upserting stripe customer: %w", err)
	}
	return &sc, nil
}

// ── Subscriptions ──────────────────────────────────────

type SubscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *SubscriptionRepo {
	return &SubscriptionRepo{pool: pool}
}

const subscriptionColumns = `
	id, user_id, stripe_sub_id, stripe_price_id, plan, status,
	current_period_end, cancel_at_period_end, created_at, updated_at`

func scanSubscription(row rowScanner) (*model.Subscription, error) {
	var s model.Subscription
	err := row.Scan(
		&s.ID, &s.UserID, &s.StripeSubID, &s.StripePriceID,
		&s.Plan, &s.Status, &s.CurrentPeriodEnd, &s.CancelAtPeriodEnd,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// FindByUserID returns the subscription for a user, or nil for free users
func (r *SubscriptionRepo) FindByUserID(ctx context.Context, userID uuid.UUID) (*model.Subscription, error) {
	s, err := scanSubscription(r.pool.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = $1`, userID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding subscription by user: %w", err)
	}
	return s, nil
}

// Upsert creates or replaces the subscription record, keyed on user_id
func (r *SubscriptionRepo) Upsert(ctx context.Context, sub *model.Subscription) (*model.Subscription, error) {
	s, err := scanSubscription(r.pool.QueryRow(ctx, `
		INSERT INTO subscriptions (user_id, stripe_sub_id, stripe_price_id, plan, status,
		                           current_period_end, cancel_at_period_end)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE
		SET stripe_sub_id = $2, stripe_price_id = $3, plan = $4, status = $5,
		    current_period_end = $6, cancel_at_period_end = $7, updated_at = now()
		RETURNING `+subscriptionColumns,
		sub.UserID, sub.StripeSubID, sub.StripePriceID, sub.Plan, sub.Status,
		sub.CurrentPeriodEnd, sub.CancelAtPeriodEnd,
	))
	if err != nil {
		return nil, fmt.Errorf("upserting subscription: %w", err)
	}
	return s, nil
}

// UpdateStatus touches only status and cancel_at_period_end
func (r *SubscriptionRepo) UpdateStatus(ctx context.Context, stripeSubID, status string, cancelAtPeriodEnd bool) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE subscriptions
		SET status = $2, cancel_at_period_end = $3, updated_at = now()
		WHERE stripe_sub_id = $1
	`, stripeSubID, status, cancelAtPeriodEnd)
	if err != nil {
		return fmt.Errorf("updating subscription status: %w", err)
	}
	return nil
}
