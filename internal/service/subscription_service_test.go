package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/justAlves/estudeai-sub000/internal/model"
	"github.com/justAlves/estudeai-sub000/internal/repository"

	"github.com/rs/zerolog"
)

func newSubscriptionServiceForTest(repo *fakeSubscriptionRepo, usage *fakeUsageRepo, limit int) SubscriptionService {
	return NewSubscriptionService(repo, usage, limit, zerolog.Nop())
}

func activeSubscription(userID string) *model.Subscription {
	return &model.Subscription{
		ID:                   "row-1",
		UserID:               userID,
		StripeCustomerID:     "cus_1",
		StripeSubscriptionID: "sub_1",
		Status:               model.SubscriptionStatusActive,
		CurrentPeriodStart:   time.Now().Add(-24 * time.Hour),
		CurrentPeriodEnd:     time.Now().Add(29 * 24 * time.Hour),
	}
}

func TestProUserIsNeverCharged(t *testing.T) {
	ctx := context.Background()
	repo := &fakeSubscriptionRepo{subs: []*model.Subscription{activeSubscription("user-1")}}
	usage := newFakeUsageRepo()
	svc := newSubscriptionServiceForTest(repo, usage, 1)

	for i := 0; i < 5; i++ {
		if err := svc.ConsumeQuota(ctx, "user-1", model.ResourceTypeExam); err != nil {
			t.Fatalf("ConsumeQuota returned error on attempt %d: %v", i+1, err)
		}
	}
	week := model.WeekStart(time.Now())
	if n, _ := usage.CountForWeek(ctx, "user-1", model.ResourceTypeExam, week); n != 0 {
		t.Fatalf("pro user was charged quota, count = %d", n)
	}
}

func TestFreeUserHitsWeeklyLimit(t *testing.T) {
	ctx := context.Background()
	repo := &fakeSubscriptionRepo{}
	usage := newFakeUsageRepo()
	svc := newSubscriptionServiceForTest(repo, usage, 1)

	if err := svc.ConsumeQuota(ctx, "user-1", model.ResourceTypeExam); err != nil {
		t.Fatalf("first consume should succeed: %v", err)
	}
	err := svc.ConsumeQuota(ctx, "user-1", model.ResourceTypeExam)
	if !errors.Is(err, repository.ErrWeeklyLimitReached) {
		t.Fatalf("expected ErrWeeklyLimitReached, got %v", err)
	}
	// The essay quota is tracked independently.
	if err := svc.ConsumeQuota(ctx, "user-1", model.ResourceTypeEssay); err != nil {
		t.Fatalf("essay quota should be independent of exam quota: %v", err)
	}
}

func TestCanStartIsPureRead(t *testing.T) {
	ctx := context.Background()
	repo := &fakeSubscriptionRepo{}
	usage := newFakeUsageRepo()
	svc := newSubscriptionServiceForTest(repo, usage, 1)

	for i := 0; i < 3; i++ {
		adm, err := svc.CanStart(ctx, "user-1", model.ResourceTypeExam)
		if err != nil {
			t.Fatalf("CanStart returned error: %v", err)
		}
		if !adm.Allowed {
			t.Fatalf("CanStart denied before any usage on call %d", i+1)
		}
	}
	week := model.WeekStart(time.Now())
	if n, _ := usage.CountForWeek(ctx, "user-1", model.ResourceTypeExam, week); n != 0 {
		t.Fatalf("CanStart mutated the ledger, count = %d", n)
	}
}

func TestCanStartDenialCarriesReason(t *testing.T) {
	ctx := context.Background()
	repo := &fakeSubscriptionRepo{}
	usage := newFakeUsageRepo()
	svc := newSubscriptionServiceForTest(repo, usage, 1)

	if err := svc.ConsumeQuota(ctx, "user-1", model.ResourceTypeEssay); err != nil {
		t.Fatalf("consume failed: %v", err)
	}
	adm, err := svc.CanStart(ctx, "user-1", model.ResourceTypeEssay)
	if err != nil {
		t.Fatalf("CanStart returned error: %v", err)
	}
	if adm.Allowed {
		t.Fatal("expected denial after limit exhausted")
	}
	if adm.Reason == "" {
		t.Fatal("denial should carry a reason")
	}
}

func TestGracePeriodAfterCancellation(t *testing.T) {
	ctx := context.Background()
	sub := activeSubscription("user-1")
	sub.Status = model.SubscriptionStatusCanceled
	repo := &fakeSubscriptionRepo{subs: []*model.Subscription{sub}}
	usage := newFakeUsageRepo()
	svc := newSubscriptionServiceForTest(repo, usage, 1)

	pro, err := svc.IsPro(ctx, "user-1")
	if err != nil {
		t.Fatalf("IsPro returned error: %v", err)
	}
	if !pro {
		t.Fatal("canceled subscription with remaining paid time should still be pro")
	}
	// Still unlimited during the grace window.
	for i := 0; i < 3; i++ {
		if err := svc.ConsumeQuota(ctx, "user-1", model.ResourceTypeExam); err != nil {
			t.Fatalf("grace-period consume failed: %v", err)
		}
	}
}

func TestUpsertRestoresInsteadOfDuplicating(t *testing.T) {
	ctx := context.Background()
	old := activeSubscription("user-1")
	old.Status = model.SubscriptionStatusCanceled
	old.CancelAtPeriodEnd = true
	old.CurrentPeriodEnd = time.Now().Add(-24 * time.Hour)
	repo := &fakeSubscriptionRepo{subs: []*model.Subscription{old}}
	svc := newSubscriptionServiceForTest(repo, newFakeUsageRepo(), 1)

	start := time.Now()
	end := start.AddDate(0, 1, 0)
	if err := svc.UpsertProviderSubscription(ctx, "user-1", "cus_1", "sub_2", "price_m", model.SubscriptionStatusActive, start, end); err != nil {
		t.Fatalf("UpsertProviderSubscription failed: %v", err)
	}

	if len(repo.subs) != 1 {
		t.Fatalf("expected the existing row to be restored, got %d rows", len(repo.subs))
	}
	got := repo.subs[0]
	if got.StripeSubscriptionID != "sub_2" {
		t.Fatalf("subscription ID not updated: %s", got.StripeSubscriptionID)
	}
	if got.Status != model.SubscriptionStatusActive {
		t.Fatalf("status not restored: %s", got.Status)
	}
	if got.CancelAtPeriodEnd {
		t.Fatal("restore must clear cancel_at_period_end")
	}
	if !got.CurrentPeriodEnd.Equal(end) {
		t.Fatalf("period end not updated: %v", got.CurrentPeriodEnd)
	}
}

func TestUpsertReplayConvergesOnOneRow(t *testing.T) {
	ctx := context.Background()
	repo := &fakeSubscriptionRepo{}
	svc := newSubscriptionServiceForTest(repo, newFakeUsageRepo(), 1)

	start := time.Now()
	end := start.AddDate(0, 1, 0)
	for i := 0; i < 3; i++ {
		if err := svc.UpsertProviderSubscription(ctx, "user-1", "cus_1", "sub_1", "price_m", model.SubscriptionStatusActive, start, end); err != nil {
			t.Fatalf("upsert %d failed: %v", i+1, err)
		}
	}
	if len(repo.subs) != 1 {
		t.Fatalf("replayed events must not duplicate rows, got %d", len(repo.subs))
	}
	if repo.inserts != 1 {
		t.Fatalf("expected exactly one insert, got %d", repo.inserts)
	}
}

func TestApplyProviderUpdateUnknownCustomer(t *testing.T) {
	ctx := context.Background()
	repo := &fakeSubscriptionRepo{}
	svc := newSubscriptionServiceForTest(repo, newFakeUsageRepo(), 1)

	status := model.SubscriptionStatusActive
	found, err := svc.ApplyProviderUpdate(ctx, "cus_unknown", ProviderUpdate{Status: &status})
	if err != nil {
		t.Fatalf("unknown customer must not be an error: %v", err)
	}
	if found {
		t.Fatal("expected found=false for unknown customer")
	}
	if len(repo.subs) != 0 {
		t.Fatal("updates must never fabricate subscription rows")
	}
}

func TestApplyProviderUpdatePatchesOnlyPresentFields(t *testing.T) {
	ctx := context.Background()
	sub := activeSubscription("user-1")
	originalEnd := sub.CurrentPeriodEnd
	repo := &fakeSubscriptionRepo{subs: []*model.Subscription{sub}}
	svc := newSubscriptionServiceForTest(repo, newFakeUsageRepo(), 1)

	canceled := model.SubscriptionStatusCanceled
	found, err := svc.ApplyProviderUpdate(ctx, "cus_1", ProviderUpdate{Status: &canceled})
	if err != nil {
		t.Fatalf("ApplyProviderUpdate failed: %v", err)
	}
	if !found {
		t.Fatal("expected found=true")
	}
	got := repo.subs[0]
	if got.Status != model.SubscriptionStatusCanceled {
		t.Fatalf("status not applied: %s", got.Status)
	}
	if !got.CurrentPeriodEnd.Equal(originalEnd) {
		t.Fatal("absent fields must stay untouched")
	}
}

func TestGetStatusAggregatesUsage(t *testing.T) {
	ctx := context.Background()
	repo := &fakeSubscriptionRepo{}
	usage := newFakeUsageRepo()
	svc := newSubscriptionServiceForTest(repo, usage, 2)

	if err := svc.ConsumeQuota(ctx, "user-1", model.ResourceTypeExam); err != nil {
		t.Fatalf("consume failed: %v", err)
	}
	status, err := svc.GetStatus(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetStatus failed: %v", err)
	}
	if status.IsPro {
		t.Fatal("user without subscription must be free tier")
	}
	if status.Usage.Exam != 1 || status.Usage.Essay != 0 {
		t.Fatalf("unexpected usage counters: %+v", status.Usage)
	}
	if status.Usage.WeeklyLimit != 2 {
		t.Fatalf("unexpected weekly limit: %d", status.Usage.WeeklyLimit)
	}
	if !status.Usage.WeekStart.Equal(model.WeekStart(time.Now())) {
		t.Fatalf("unexpected week start: %v", status.Usage.WeekStart)
	}
}
