package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v81"
	billingportalsession "github.com/stripe/stripe-go/v81/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v81/checkout/session"
	stripecustomer "github.com/stripe/stripe-go/v81/customer"
	stripesub "github.com/stripe/stripe-go/v81/subscription"
	"github.com/stripe/stripe-go/v81/webhook"
	"github.com/yourusername/applytrack-api/internal/config"
	"github.com/yourusername/applytrack-api/internal/metrics"
	"github.com/yourusername/applytrack-api/internal/model"
)

var (
	// ErrBillingDisabled is returned by Stripe calls when no secret key is configured
	ErrBillingDisabled = errors.New("billing is not configured")
	// ErrNoCustomer is returned when a user has never checked out
	ErrNoCustomer = errors.New("no stripe customer for user")
	// ErrUnknownPrice is returned for a plan/interval pair with no configured price
	ErrUnknownPrice = errors.New("no stripe price for plan")
)

const userIDMetadataKey = "applytrack_user_id"

type customerRepository interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*model.StripeCustomer, error)
	FindByStripeID(ctx context.Context, stripeCustomerID string) (*model.StripeCustomer, error)
	Upsert(ctx context.Context, userID uuid.UUID, stripeCustomerID, email string) (*model.StripeCustomer, error)
}

type subscriptionRepository interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*model.Subscription, error)
	Upsert(ctx context.Context, sub *model.Subscription) (*model.Subscription, error)
	UpdateStatus(ctx context.Context, stripeSubID, status string, cancelAtPeriodEnd bool) error
}

type userFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
}

type webhookHandler func(ctx context.Context, raw json.RawMessage) error

// BillingService owns plan entitlements and the Stripe checkout, portal and
// webhook flows. With no secret key configured it grants every user pro.
type BillingService struct {
	cfg       *config.Config
	customers customerRepository
	subs      subscriptionRepository
	users     userFinder

	// "plan/interval" -> price ID, and the reverse for webhooks
	prices map[string]string
	plans  map[string]string

	webhooks map[stripe.EventType]webhookHandler
}

func NewBillingService(cfg *config.Config, customers customerRepository, subs subscriptionRepository, users userFinder) *BillingService {
	if cfg.BillingEnabled() {
		stripe.Key = cfg.StripeSecretKey
	}

	s := &BillingService{
		cfg:       cfg,
		customers: customers,
		subs:      subs,
		users:     users,
		prices:    map[string]string{},
		plans:     map[string]string{},
	}
	for interval, price := range map[string]string{"month": cfg.StripePriceProMonth, "year": cfg.StripePriceProYear} {
		if price == "" {
			continue
		}
		s.prices[model.PlanPro+"/"+interval] = price
		s.plans[price] = model.PlanPro
	}

	s.webhooks = map[stripe.EventType]webhookHandler{
		"checkout.session.completed":    s.onCheckoutCompleted,
		"customer.subscription.created": s.onSubscriptionChanged,
		"customer.subscription.updated": s.onSubscriptionChanged,
		"customer.subscription.deleted": s.onSubscriptionDeleted,
		"invoice.payment_failed":        s.onPaymentFailed,
	}
	return s
}

func (s *BillingService) Enabled() bool {
	return s.cfg.BillingEnabled()
}

// Subscription returns the user's subscription. With billing off every user
// gets a synthetic active pro subscription; with billing on and no row, free.
func (s *BillingService) Subscription(ctx context.Context, userID uuid.UUID) (*model.Subscription, error) {
	if !s.Enabled() {
		return &model.Subscription{UserID: userID, Plan: model.PlanPro, Status: model.SubStatusActive}, nil
	}
	sub, err := s.subs.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return &model.Subscription{UserID: userID, Plan: model.PlanFree, Status: model.SubStatusActive}, nil
	}
	return sub, nil
}

// PlanFor returns the plan a user is currently entitled to
func (s *BillingService) PlanFor(ctx context.Context, userID uuid.UUID) (string, error) {
	sub, err := s.Subscription(ctx, userID)
	if err != nil {
		return "", err
	}
	return sub.EffectivePlan(), nil
}

// ResolvePriceID maps plan + interval to a configured Stripe price
func (s *BillingService) ResolvePriceID(plan, interval string) (string, error) {
	price, ok := s.prices[plan+"/"+interval]
	if !ok {
		return "", fmt.Errorf("%w: %s/%s", ErrUnknownPrice, plan, interval)
	}
	return price, nil
}

// planForPrice maps a price seen on a subscription back to a plan
func (s *BillingService) planForPrice(priceID string) string {
	if plan, ok := s.plans[priceID]; ok {
		return plan
	}
	return model.PlanFree
}

// customerFor returns the user's Stripe customer, creating it on first checkout.
// The idempotency key keeps two concurrent checkouts from creating two customers.
func (s *BillingService) customerFor(ctx context.Context, userID uuid.UUID) (*model.StripeCustomer, error) {
	existing, err := s.customers.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("looking up stripe customer: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	params := &stripe.CustomerParams{Email: stripe.String(user.Email), Name: stripe.String(user.Name)}
	params.Context = ctx
	params.AddMetadata(userIDMetadataKey, userID.String())
	params.SetIdempotencyKey("customer-" + userID.String())

	created, err := stripecustomer.New(params)
	if err != nil {
		return nil, fmt.Errorf("creating stripe customer: %w", err)
	}

	customer, err := s.customers.Upsert(ctx, userID, created.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("saving stripe customer: %w", err)
	}
	log.Info().Str("userId", userID.String()).Str("stripeCustomer", created.ID).Msg("Stripe customer created")
	return customer, nil
}

// CreateCheckoutSession starts a subscription checkout and returns its URL
func (s *BillingService) CreateCheckoutSession(ctx context.Context, userID uuid.UUID, plan, interval string) (string, error) {
	if !s.Enabled() {
		return "", ErrBillingDisabled
	}
	price, err := s.ResolvePriceID(plan, interval)
	if err != nil {
		return "", err
	}
	customer, err := s.customerFor(ctx, userID)
	if err != nil {
		return "", err
	}

	params := &stripe.CheckoutSessionParams{
		Customer:   stripe.String(customer.StripeCustomerID),
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems:  []*stripe.CheckoutSessionLineItemParams{{Price: stripe.String(price), Quantity: stripe.Int64(1)}},
		SuccessURL: stripe.String(s.cfg.FrontendURL + "/settings/billing?checkout=success"),
		CancelURL:  stripe.String(s.cfg.FrontendURL + "/settings/billing?checkout=cancel"),
	}
	params.Context = ctx
	params.AddMetadata(userIDMetadataKey, userID.String())

	session, err := checkoutsession.New(params)
	if err != nil {
		return "", fmt.Errorf("creating checkout session: %w", err)
	}

	log.Info().Str("userId", userID.String()).Str("price", price).Msg("Checkout session created")
	return session.URL, nil
}

// CreatePortalSession opens the Stripe billing portal for an existing customer
func (s *BillingService) CreatePortalSession(ctx context.Context, userID uuid.UUID) (string, error) {
	if !s.Enabled() {
		return "", ErrBillingDisabled
	}
	customer, err := s.customers.FindByUserID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("looking up stripe customer: %w", err)
	}
	if customer == nil {
		return "", ErrNoCustomer
	}

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customer.StripeCustomerID),
		ReturnURL: stripe.String(s.cfg.FrontendURL + "/settings/billing"),
	}
	params.Context = ctx

	session, err := billingportalsession.New(params)
	if err != nil {
		return "", fmt.Errorf("creating portal session: %w", err)
	}
	return session.URL, nil
}

// VerifyWebhook checks the Stripe-Signature header and decodes the event
func (s *BillingService) VerifyWebhook(body io.Reader, signature string) (*stripe.Event, error) {
	payload, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("reading webhook body: %w", err)
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.cfg.StripeWebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("verifying webhook signature: %w", err)
	}
	return &event, nil
}

// HandleWebhookEvent applies one verified event. Unknown types are acknowledged.
func (s *BillingService) HandleWebhookEvent(ctx context.Context, event *stripe.Event) error {
	handle, ok := s.webhooks[event.Type]
	if !ok {
		metrics.BillingWebhooksTotal.WithLabelValues(string(event.Type), "ignored").Inc()
		log.Debug().Str("type", string(event.Type)).Msg("Ignoring webhook event")
		return nil
	}

	err := handle(ctx, event.Data.Raw)
	metrics.BillingWebhooksTotal.WithLabelValues(string(event.Type), metrics.Result(err)).Inc()
	if err != nil {
		return fmt.Errorf("handling %s: %w", event.Type, err)
	}
	log.Info().Str("type", string(event.Type)).Str("eventId", event.ID).Msg("Webhook event applied")
	return nil
}

func (s *BillingService) onCheckoutCompleted(ctx context.Context, raw json.RawMessage) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return fmt.Errorf("decoding checkout session: %w", err)
	}
	if session.Mode != stripe.CheckoutSessionModeSubscription || session.Subscription == nil {
		return nil
	}

	// The session only carries the subscription ID; fetch it for price and period
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, err := stripesub.Get(session.Subscription.ID, params)
	if err != nil {
		return fmt.Errorf("fetching subscription: %w", err)
	}
	if sub.Customer == nil {
		sub.Customer = session.Customer
	}
	return s.saveSubscription(ctx, sub)
}

func (s *BillingService) onSubscriptionChanged(ctx context.Context, raw json.RawMessage) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return fmt.Errorf("decoding subscription: %w", err)
	}
	return s.saveSubscription(ctx, &sub)
}

func (s *BillingService) onSubscriptionDeleted(ctx context.Context, raw json.RawMessage) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return fmt.Errorf("decoding subscription: %w", err)
	}
	return s.subs.UpdateStatus(ctx, sub.ID, model.SubStatusCanceled, false)
}

func (s *BillingService) onPaymentFailed(ctx context.Context, raw json.RawMessage) error {
	var invoice stripe.Invoice
	if err := json.Unmarshal(raw, &invoice); err != nil {
		return fmt.Errorf("decoding invoice: %w", err)
	}
	// One-off invoices have no subscription to downgrade
	if invoice.Subscription == nil || invoice.Subscription.ID == "" {
		return nil
	}
	log.Warn().Str("stripeSub", invoice.Subscription.ID).Msg("Payment failed, subscription past due")
	return s.subs.UpdateStatus(ctx, invoice.Subscription.ID, model.SubStatusPastDue, false)
}

// saveSubscription stores a subscription against the user owning its customer.
// Events for customers this service never created are skipped.
func (s *BillingService) saveSubscription(ctx context.Context, sub *stripe.Subscription) error {
	if sub.Customer == nil || sub.Items == nil || len(sub.Items.Data) == 0 || sub.Items.Data[0].Price == nil {
		return fmt.Errorf("subscription %s has no customer or price", sub.ID)
	}

	customer, err := s.customers.FindByStripeID(ctx, sub.Customer.ID)
	if err != nil {
		return fmt.Errorf("looking up customer: %w", err)
	}
	if customer == nil {
		log.Warn().Str("stripeCustomer", sub.Customer.ID).Msg("Subscription for unknown customer")
		return nil
	}

	row := &model.Subscription{
		UserID:            customer.UserID,
		StripeSubID:       sub.ID,
		StripePriceID:     sub.Items.Data[0].Price.ID,
		Plan:              s.planForPrice(sub.Items.Data[0].Price.ID),
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.CurrentPeriodEnd > 0 {
		end := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		row.CurrentPeriodEnd = &end
	}

	if _, err := s.subs.Upsert(ctx, row); err != nil {
		return fmt.Errorf("saving subscription: %w", err)
	}
	log.Info().
		Str("userId", customer.UserID.String()).
		Str("plan", row.Plan).
		Str("status", row.Status).
		Msg("Subscription saved")
	return nil
}
