package service

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
	"github.com/yourusername/applytrack-api/internal/config"
	"github.com/yourusername/applytrack-api/internal/metrics"
	"github.com/yourusername/applytrack-api/internal/model"
)

type mockCustomers struct{ mock.Mock }

func (m *mockCustomers) FindByUserID(ctx context.Context, userID uuid.UUID) (*model.StripeCustomer, error) {
	args := m.Called(ctx, userID)
	c, _ := args.Get(0).(*model.StripeCustomer)
	return c, args.Error(1)
}

func (m *mockCustomers) FindByStripeID(ctx context.Context, id string) (*model.StripeCustomer, error) {
	args := m.Called(ctx, id)
	c, _ := args.Get(0).(*model.StripeCustomer)
	return c, args.Error(1)
}

func (m *mockCustomers) Upsert(ctx context.Context, userID uuid.UUID, id, email string) (*model.StripeCustomer, error) {
	args := m.Called(ctx, userID, id, email)
	c, _ := args.Get(0).(*model.StripeCustomer)
	return c, args.Error(1)
}

type mockSubscriptions struct{ mock.Mock }

func (m *mockSubscriptions) FindByUserID(ctx context.Context, userID uuid.UUID) (*model.Subscription, error) {
	args := m.Called(ctx, userID)
	s, _ := args.Get(0).(*model.Subscription)
	return s, args.Error(1)
}

func (m *mockSubscriptions) Upsert(ctx context.Context, sub *model.Subscription) (*model.Subscription, error) {
	args := m.Called(ctx, sub)
	return sub, args.Error(1)
}

func (m *mockSubscriptions) UpdateStatus(ctx context.Context, id, status string, cancel bool) error {
	return m.Called(ctx, id, status, cancel).Error(0)
}

func billingConfig() *config.Config {
	return &config.Config{
		Env:                 "production",
		StripeSecretKey:     "sk_test_123",
		StripeWebhookSecret: "whsec_test",
		StripePriceProMonth: "price_month",
		StripePriceProYear:  "price_year",
		FrontendURL:         "http://localhost:5173",
	}
}

func TestBillingService_Subscription_WhenBillingDisabled_ShouldGrantPro(t *testing.T) {
	subs := &mockSubscriptions{}
	svc := NewBillingService(&config.Config{}, &mockCustomers{}, subs, newFakeStore())

	plan, err := svc.PlanFor(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, model.PlanPro, plan)
	subs.AssertNotCalled(t, "FindByUserID", mock.Anything, mock.Anything)
}

func TestBillingService_PlanFor(t *testing.T) {
	userID := uuid.New()
	tests := []struct {
		name string
		sub  *model.Subscription
		want string
	}{
		{"no subscription", nil, model.PlanFree},
		{"active pro", &model.Subscription{Plan: model.PlanPro, Status: model.SubStatusActive}, model.PlanPro},
		{"trialing pro", &model.Subscription{Plan: model.PlanPro, Status: model.SubStatusTrialing}, model.PlanPro},
		{"past due pro", &model.Subscription{Plan: model.PlanPro, Status: model.SubStatusPastDue}, model.PlanFree},
		{"canceled pro", &model.Subscription{Plan: model.PlanPro, Status: model.SubStatusCanceled}, model.PlanFree},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subs := &mockSubscriptions{}
			subs.On("FindByUserID", mock.Anything, userID).Return(tt.sub, nil)
			svc := NewBillingService(billingConfig(), &mockCustomers{}, subs, newFakeStore())

			plan, err := svc.PlanFor(context.Background(), userID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, plan)
		})
	}
}

func TestBillingService_ResolvePriceID(t *testing.T) {
	svc := NewBillingService(billingConfig(), &mockCustomers{}, &mockSubscriptions{}, newFakeStore())

	id, err := svc.ResolvePriceID(model.PlanPro, "year")
	require.NoError(t, err)
	assert.Equal(t, "price_year", id)

	_, err = svc.ResolvePriceID("enterprise", "month")
	assert.ErrorIs(t, err, ErrUnknownPrice)

	assert.Equal(t, model.PlanPro, svc.planForPrice("price_month"))
	assert.Equal(t, model.PlanFree, svc.planForPrice("price_other"))
	assert.Equal(t, model.PlanFree, svc.planForPrice(""))
}

func TestBillingService_Checkout_WhenBillingDisabled_ShouldFail(t *testing.T) {
	svc := NewBillingService(&config.Config{}, &mockCustomers{}, &mockSubscriptions{}, newFakeStore())

	_, err := svc.CreateCheckoutSession(context.Background(), uuid.New(), model.PlanPro, "month")
	assert.ErrorIs(t, err, ErrBillingDisabled)
	_, err = svc.CreatePortalSession(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrBillingDisabled)
}

func TestBillingService_VerifyWebhook(t *testing.T) {
	svc := NewBillingService(billingConfig(), &mockCustomers{}, &mockSubscriptions{}, newFakeStore())
	payload := []byte(`{"id":"evt_1","object":"event","type":"invoice.payment_failed","data":{"object":{"subscription":"sub_1"}}}`)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    "whsec_test",
		Timestamp: time.Now(),
	})

	event, err := svc.VerifyWebhook(bytes.NewReader(payload), signed.Header)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)

	_, err = svc.VerifyWebhook(bytes.NewReader(payload), "t=1,v1=bad")
	assert.Error(t, err)
}

func rawEvent(t *testing.T, eventType string, object any) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(object)
	require.NoError(t, err)
	return &stripe.Event{ID: "evt_test", Type: stripe.EventType(eventType), Data: &stripe.EventData{Raw: raw}}
}

func TestBillingService_HandleWebhook_SubscriptionUpdated_ShouldUpsertPlan(t *testing.T) {
	userID := uuid.New()
	customers := &mockCustomers{}
	customers.On("FindByStripeID", mock.Anything, "cus_1").Return(&model.StripeCustomer{UserID: userID}, nil)
	subs := &mockSubscriptions{}
	subs.On("Upsert", mock.Anything, mock.MatchedBy(func(s *model.Subscription) bool {
		return s.UserID == userID && s.Plan == model.PlanPro && s.Status == "active" &&
			s.StripeSubID == "sub_1" && s.CurrentPeriodEnd != nil
	})).Return(nil, nil)

	svc := NewBillingService(billingConfig(), customers, subs, newFakeStore())
	event := rawEvent(t, "customer.subscription.updated", map[string]any{
		"id":                 "sub_1",
		"customer":           "cus_1",
		"status":             "active",
		"current_period_end": 1767225600,
		"items": map[string]any{
			"data": []map[string]any{{"id": "si_1", "price": map[string]any{"id": "price_month"}}},
		},
	})

	require.NoError(t, svc.HandleWebhookEvent(context.Background(), event))
	subs.AssertExpectations(t)
}

func TestBillingService_HandleWebhook_UnknownCustomer_ShouldBeIgnored(t *testing.T) {
	customers := &mockCustomers{}
	customers.On("FindByStripeID", mock.Anything, "cus_x").Return(nil, nil)
	subs := &mockSubscriptions{}

	svc := NewBillingService(billingConfig(), customers, subs, newFakeStore())
	event := rawEvent(t, "customer.subscription.created", map[string]any{
		"id": "sub_x", "customer": "cus_x", "status": "active",
		"items": map[string]any{"data": []map[string]any{{"price": map[string]any{"id": "price_year"}}}},
	})

	require.NoError(t, svc.HandleWebhookEvent(context.Background(), event))
	subs.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestBillingService_HandleWebhook_StatusEvents(t *testing.T) {
	ignored := metrics.BillingWebhooksTotal.WithLabelValues("charge.refunded", "ignored")
	before := testutil.ToFloat64(ignored)

	subs := &mockSubscriptions{}
	subs.On("UpdateStatus", mock.Anything, "sub_1", model.SubStatusCanceled, false).Return(nil).Once()
	subs.On("UpdateStatus", mock.Anything, "sub_2", model.SubStatusPastDue, false).Return(nil).Once()
	svc := NewBillingService(billingConfig(), &mockCustomers{}, subs, newFakeStore())

	require.NoError(t, svc.HandleWebhookEvent(context.Background(),
		rawEvent(t, "customer.subscription.deleted", map[string]any{"id": "sub_1"})))
	require.NoError(t, svc.HandleWebhookEvent(context.Background(),
		rawEvent(t, "invoice.payment_failed", map[string]any{"subscription": "sub_2"})))
	// One-off invoices carry no subscription
	require.NoError(t, svc.HandleWebhookEvent(context.Background(),
		rawEvent(t, "invoice.payment_failed", map[string]any{})))
	require.NoError(t, svc.HandleWebhookEvent(context.Background(),
		rawEvent(t, "charge.refunded", map[string]any{})))

	subs.AssertExpectations(t)
	assert.Equal(t, before+1, testutil.ToFloat64(ignored))
}
