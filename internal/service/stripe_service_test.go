package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/justAlves/estudeai-sub000/internal/config"
	"github.com/justAlves/estudeai-sub000/internal/model"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
)

type fakeStripeBackend struct {
	subscriptions map[string]*stripe.Subscription
	customers     map[string]*stripe.Customer
	getErr        error
	getCalls      int
	updated       []*stripe.SubscriptionParams
}

func (b *fakeStripeBackend) GetSubscription(id string) (*stripe.Subscription, error) {
	b.getCalls++
	if b.getErr != nil {
		return nil, b.getErr
	}
	sub, ok := b.subscriptions[id]
	if !ok {
		return nil, fmt.Errorf("no such subscription: %s", id)
	}
	return sub, nil
}

func (b *fakeStripeBackend) GetCustomer(id string) (*stripe.Customer, error) {
	cust, ok := b.customers[id]
	if !ok {
		return nil, fmt.Errorf("no such customer: %s", id)
	}
	return cust, nil
}

func (b *fakeStripeBackend) UpdateSubscription(id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	b.updated = append(b.updated, params)
	return &stripe.Subscription{ID: id}, nil
}

func stripeSubscription(id, priceID string, start, end time.Time) *stripe.Subscription {
	return &stripe.Subscription{
		ID:     id,
		Status: stripe.SubscriptionStatusActive,
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{{
				Price:              &stripe.Price{ID: priceID},
				CurrentPeriodStart: start.Unix(),
				CurrentPeriodEnd:   end.Unix(),
			}},
		},
	}
}

func newStripeServiceForTest(backend StripeBackend, subRepo *fakeSubscriptionRepo) (*StripeService, SubscriptionService) {
	cfg := &config.Config{StripeWebhookSecret: "whsec_test"}
	subSvc := NewSubscriptionService(subRepo, newFakeUsageRepo(), 1, zerolog.Nop())
	userRepo := &fakeUserRepo{users: map[string]*model.User{}}
	svc := NewStripeService(cfg, userRepo, subSvc, zerolog.Nop())
	svc.backend = backend
	svc.backoffUnit = time.Millisecond
	return svc, subSvc
}

func checkoutCompletedEvent(t *testing.T, subscriptionID, customerID, userID string) stripe.Event {
	t.Helper()
	payload := map[string]any{
		"id":           "cs_test",
		"subscription": map[string]any{"id": subscriptionID},
		"customer":     map[string]any{"id": customerID},
		"metadata":     map[string]string{"user_id": userID},
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal event payload: %v", err)
	}
	return stripe.Event{
		Type: "checkout.session.completed",
		Data: &stripe.EventData{Raw: raw},
	}
}

func subscriptionEvent(t *testing.T, eventType, subscriptionID, customerID string, extra map[string]any) stripe.Event {
	t.Helper()
	payload := map[string]any{
		"id":       subscriptionID,
		"customer": map[string]any{"id": customerID},
	}
	for k, v := range extra {
		payload[k] = v
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal event payload: %v", err)
	}
	return stripe.Event{
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestCheckoutCompletedCreatesSubscription(t *testing.T) {
	start := time.Now().Truncate(time.Second)
	end := start.AddDate(0, 1, 0)
	backend := &fakeStripeBackend{
		subscriptions: map[string]*stripe.Subscription{
			"sub_1": stripeSubscription("sub_1", "price_m", start, end),
		},
	}
	repo := &fakeSubscriptionRepo{}
	svc, _ := newStripeServiceForTest(backend, repo)

	event := checkoutCompletedEvent(t, "sub_1", "cus_1", "user-1")
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent failed: %v", err)
	}

	if len(repo.subs) != 1 {
		t.Fatalf("expected one subscription row, got %d", len(repo.subs))
	}
	got := repo.subs[0]
	if got.UserID != "user-1" || got.StripeCustomerID != "cus_1" || got.StripeSubscriptionID != "sub_1" {
		t.Fatalf("unexpected subscription identity: %+v", got)
	}
	if got.Status != model.SubscriptionStatusActive {
		t.Fatalf("unexpected status: %s", got.Status)
	}
	if !got.CurrentPeriodEnd.Equal(end) {
		t.Fatalf("period end = %v, want %v", got.CurrentPeriodEnd, end)
	}
}

func TestWebhookReplayIsIdempotent(t *testing.T) {
	start := time.Now().Truncate(time.Second)
	end := start.AddDate(0, 1, 0)
	backend := &fakeStripeBackend{
		subscriptions: map[string]*stripe.Subscription{
			"sub_1": stripeSubscription("sub_1", "price_m", start, end),
		},
	}
	repo := &fakeSubscriptionRepo{}
	svc, _ := newStripeServiceForTest(backend, repo)

	event := checkoutCompletedEvent(t, "sub_1", "cus_1", "user-1")
	for i := 0; i < 3; i++ {
		if err := svc.HandleEvent(context.Background(), event); err != nil {
			t.Fatalf("replay %d failed: %v", i+1, err)
		}
	}
	if len(repo.subs) != 1 {
		t.Fatalf("replayed checkout events must converge on one row, got %d", len(repo.subs))
	}
}

func TestResubscribeRestoresCanceledRecord(t *testing.T) {
	start := time.Now().Truncate(time.Second)
	end := start.AddDate(0, 1, 0)
	backend := &fakeStripeBackend{
		subscriptions: map[string]*stripe.Subscription{
			"sub_2": stripeSubscription("sub_2", "price_a", start, end),
		},
	}
	repo := &fakeSubscriptionRepo{subs: []*model.Subscription{{
		ID:                   "row-1",
		UserID:               "user-1",
		StripeCustomerID:     "cus_1",
		StripeSubscriptionID: "sub_1",
		Status:               model.SubscriptionStatusCanceled,
		CancelAtPeriodEnd:    true,
		CurrentPeriodEnd:     time.Now().Add(-48 * time.Hour),
	}}}
	svc, _ := newStripeServiceForTest(backend, repo)

	event := checkoutCompletedEvent(t, "sub_2", "cus_1", "user-1")
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent failed: %v", err)
	}

	if len(repo.subs) != 1 {
		t.Fatalf("resubscribe must restore, not duplicate; got %d rows", len(repo.subs))
	}
	got := repo.subs[0]
	if got.StripeSubscriptionID != "sub_2" || got.Status != model.SubscriptionStatusActive {
		t.Fatalf("record not restored: %+v", got)
	}
	if got.CancelAtPeriodEnd {
		t.Fatal("restore must clear cancel_at_period_end")
	}
}

func TestPeriodFallbackWhenProviderKeepsFailing(t *testing.T) {
	backend := &fakeStripeBackend{getErr: fmt.Errorf("stripe unavailable")}
	repo := &fakeSubscriptionRepo{}
	svc, _ := newStripeServiceForTest(backend, repo)

	before := time.Now()
	event := checkoutCompletedEvent(t, "sub_1", "cus_1", "user-1")
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent must not fail on period resolution: %v", err)
	}
	after := time.Now()

	if backend.getCalls != 3 {
		t.Fatalf("expected 3 fetch attempts, got %d", backend.getCalls)
	}
	if len(repo.subs) != 1 {
		t.Fatalf("expected one subscription row, got %d", len(repo.subs))
	}
	got := repo.subs[0]
	wantEndLow := before.AddDate(0, 0, 30)
	wantEndHigh := after.AddDate(0, 0, 30)
	if got.CurrentPeriodEnd.Before(wantEndLow) || got.CurrentPeriodEnd.After(wantEndHigh) {
		t.Fatalf("fallback period end = %v, want about %v", got.CurrentPeriodEnd, wantEndLow)
	}
	if got.Status != model.SubscriptionStatusActive {
		t.Fatalf("fallback status = %s, want active", got.Status)
	}
}

func TestSubscriptionDeletedKeepsPeriodDates(t *testing.T) {
	end := time.Now().Add(10 * 24 * time.Hour)
	repo := &fakeSubscriptionRepo{subs: []*model.Subscription{{
		ID:                   "row-1",
		UserID:               "user-1",
		StripeCustomerID:     "cus_1",
		StripeSubscriptionID: "sub_1",
		Status:               model.SubscriptionStatusActive,
		CurrentPeriodEnd:     end,
	}}}
	svc, subSvc := newStripeServiceForTest(&fakeStripeBackend{}, repo)

	event := subscriptionEvent(t, "customer.subscription.deleted", "sub_1", "cus_1", nil)
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent failed: %v", err)
	}

	got := repo.subs[0]
	if got.Status != model.SubscriptionStatusCanceled {
		t.Fatalf("status = %s, want canceled", got.Status)
	}
	if !got.CurrentPeriodEnd.Equal(end) {
		t.Fatal("deletion must not touch period dates")
	}
	// Paid time is honored until the period runs out.
	pro, err := subSvc.IsPro(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("IsPro failed: %v", err)
	}
	if !pro {
		t.Fatal("user must stay pro until period end after deletion")
	}
}

func TestSubscriptionUpdatedForUnknownCustomerIsAcknowledged(t *testing.T) {
	repo := &fakeSubscriptionRepo{}
	svc, _ := newStripeServiceForTest(&fakeStripeBackend{}, repo)

	event := subscriptionEvent(t, "customer.subscription.updated", "sub_1", "cus_ghost", map[string]any{
		"status": "active",
	})
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("unknown customer must be acknowledged, got %v", err)
	}
	if len(repo.subs) != 0 {
		t.Fatal("no row must be created for an unknown customer")
	}
}

func TestInvoicePaymentFailedMarksPastDue(t *testing.T) {
	repo := &fakeSubscriptionRepo{subs: []*model.Subscription{{
		ID:                   "row-1",
		UserID:               "user-1",
		StripeCustomerID:     "cus_1",
		StripeSubscriptionID: "sub_1",
		Status:               model.SubscriptionStatusActive,
		CurrentPeriodEnd:     time.Now().Add(5 * 24 * time.Hour),
	}}}
	svc, _ := newStripeServiceForTest(&fakeStripeBackend{}, repo)

	raw, _ := json.Marshal(map[string]any{
		"id":       "in_1",
		"customer": map[string]any{"id": "cus_1"},
	})
	event := stripe.Event{Type: "invoice.payment_failed", Data: &stripe.EventData{Raw: raw}}
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent failed: %v", err)
	}
	if repo.subs[0].Status != model.SubscriptionStatusPastDue {
		t.Fatalf("status = %s, want past_due", repo.subs[0].Status)
	}
}

func TestCancelSubscriptionSchedulesAtPeriodEnd(t *testing.T) {
	backend := &fakeStripeBackend{}
	repo := &fakeSubscriptionRepo{subs: []*model.Subscription{{
		ID:                   "row-1",
		UserID:               "user-1",
		StripeCustomerID:     "cus_1",
		StripeSubscriptionID: "sub_1",
		Status:               model.SubscriptionStatusActive,
		CurrentPeriodEnd:     time.Now().Add(20 * 24 * time.Hour),
	}}}
	svc, subSvc := newStripeServiceForTest(backend, repo)

	if err := svc.CancelSubscription(context.Background(), "user-1"); err != nil {
		t.Fatalf("CancelSubscription failed: %v", err)
	}
	if len(backend.updated) != 1 {
		t.Fatalf("expected one Stripe update call, got %d", len(backend.updated))
	}
	if p := backend.updated[0].CancelAtPeriodEnd; p == nil || !*p {
		t.Fatal("Stripe update must set cancel_at_period_end")
	}
	if !repo.subs[0].CancelAtPeriodEnd {
		t.Fatal("local record must mirror the scheduled cancellation")
	}
	// Access continues during the remaining paid time.
	pro, err := subSvc.IsPro(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("IsPro failed: %v", err)
	}
	if !pro {
		t.Fatal("scheduled cancellation must not revoke access early")
	}
}
