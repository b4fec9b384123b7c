package service

import (
	"context"
	"fmt"
	"time"

	"github.com/justAlves/estudeai-sub000/internal/model"
	"github.com/justAlves/estudeai-sub000/internal/repository"

	"github.com/rs/zerolog"
)

// Admission is the answer to "may this user start another generation".
// A denial is an expected business outcome, not an error.
type Admission struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// UsageSummary reports the current week's counters for the status endpoint.
type UsageSummary struct {
	Exam        int       `json:"exam"`
	Essay       int       `json:"essay"`
	WeeklyLimit int       `json:"weekly_limit"`
	WeekStart   time.Time `json:"week_start"`
}

// SubscriptionStatus is the aggregate returned to the web layer.
type SubscriptionStatus struct {
	IsPro        bool                `json:"is_pro"`
	Subscription *model.Subscription `json:"subscription,omitempty"`
	Usage        UsageSummary        `json:"usage"`
}

// ProviderUpdate carries the fields present in a billing event payload.
// Nil fields leave the stored values untouched.
type ProviderUpdate struct {
	SubscriptionID    *string
	PriceID           *string
	Status            *string
	PeriodStart       *time.Time
	PeriodEnd         *time.Time
	CancelAtPeriodEnd *bool
}

// SubscriptionService owns the local subscription state and the
// entitlement decisions derived from it.
type SubscriptionService interface {
	// IsPro reports whether the user currently has unlimited usage.
	IsPro(ctx context.Context, userID string) (bool, error)
	// CanStart is a pure admission read: pro users are always allowed,
	// free users are allowed while the current week's counter is below
	// the limit.
	CanStart(ctx context.Context, userID string, resource model.ResourceType) (Admission, error)
	// ConsumeQuota charges one unit of weekly quota unless the user is
	// pro. It re-checks entitlement immediately before charging so paying
	// users are never billed quota, and returns ErrWeeklyLimitReached
	// when the atomic conditional increment is refused.
	ConsumeQuota(ctx context.Context, userID string, resource model.ResourceType) error
	GetStatus(ctx context.Context, userID string) (*SubscriptionStatus, error)
	SetCancelAtPeriodEnd(ctx context.Context, userID string, cancel bool) error

	// Reconciliation entry points, driven by the Stripe webhook stream.
	UpsertProviderSubscription(ctx context.Context, userID, customerID, subscriptionID, priceID, status string, periodStart, periodEnd time.Time) error
	ApplyProviderUpdate(ctx context.Context, customerID string, update ProviderUpdate) (bool, error)
}

type subscriptionService struct {
	repo        repository.SubscriptionRepository
	usageRepo   repository.UsageRepository
	weeklyLimit int
	logger      zerolog.Logger
}

// NewSubscriptionService creates a new SubscriptionService with a scoped logger.
func NewSubscriptionService(repo repository.SubscriptionRepository, usageRepo repository.UsageRepository, weeklyLimit int, logger zerolog.Logger) SubscriptionService {
	return &subscriptionService{
		repo:        repo,
		usageRepo:   usageRepo,
		weeklyLimit: weeklyLimit,
		logger:      logger.With().Str("service", "SubscriptionService").Logger(),
	}
}

// IsPro derives the unlimited entitlement from the stored subscription.
// Absence of a record means free tier.
func (s *subscriptionService) IsPro(ctx context.Context, userID string) (bool, error) {
	sub, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch subscription for entitlement check")
		return false, err
	}
	if sub == nil {
		return false, nil
	}
	return sub.IsPro(time.Now()), nil
}

// CanStart answers the admission question without mutating anything.
func (s *subscriptionService) CanStart(ctx context.Context, userID string, resource model.ResourceType) (Admission, error) {
	pro, err := s.IsPro(ctx, userID)
	if err != nil {
		return Admission{}, err
	}
	if pro {
		return Admission{Allowed: true}, nil
	}
	count, err := s.usageRepo.CountForWeek(ctx, userID, resource, model.WeekStart(time.Now()))
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to read weekly usage")
		return Admission{}, err
	}
	if count >= s.weeklyLimit {
		return Admission{
			Allowed: false,
			Reason:  fmt.Sprintf("weekly limit of %d %s generation(s) reached, upgrade to pro for unlimited access", s.weeklyLimit, resource),
		}, nil
	}
	return Admission{Allowed: true}, nil
}

// ConsumeQuota charges the weekly ledger for non-pro users.
func (s *subscriptionService) ConsumeQuota(ctx context.Context, userID string, resource model.ResourceType) error {
	pro, err := s.IsPro(ctx, userID)
	if err != nil {
		return err
	}
	if pro {
		return nil
	}
	ok, err := s.usageRepo.TryConsume(ctx, userID, resource, model.WeekStart(time.Now()), s.weeklyLimit)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("resource", string(resource)).Msg("Failed to consume weekly quota")
		return err
	}
	if !ok {
		return repository.ErrWeeklyLimitReached
	}
	return nil
}

// GetStatus aggregates entitlement, subscription and current-week usage.
func (s *subscriptionService) GetStatus(ctx context.Context, userID string) (*SubscriptionStatus, error) {
	sub, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch subscription")
		return nil, err
	}

	weekStart := model.WeekStart(time.Now())
	examCount, err := s.usageRepo.CountForWeek(ctx, userID, model.ResourceTypeExam, weekStart)
	if err != nil {
		return nil, err
	}
	essayCount, err := s.usageRepo.CountForWeek(ctx, userID, model.ResourceTypeEssay, weekStart)
	if err != nil {
		return nil, err
	}

	status := &SubscriptionStatus{
		Subscription: sub,
		Usage: UsageSummary{
			Exam:        examCount,
			Essay:       essayCount,
			WeeklyLimit: s.weeklyLimit,
			WeekStart:   weekStart,
		},
	}
	if sub != nil {
		status.IsPro = sub.IsPro(time.Now())
	}
	return status, nil
}

// SetCancelAtPeriodEnd flips the local cancellation flag.
func (s *subscriptionService) SetCancelAtPeriodEnd(ctx context.Context, userID string, cancel bool) error {
	if err := s.repo.SetCancelAtPeriodEnd(ctx, userID, cancel); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to update local cancellation flag")
		return err
	}
	return nil
}

// UpsertProviderSubscription applies a "subscription started" fact from the
// billing provider. Replays and logically equivalent events converge on the
// same row: an existing record for the user or customer — canceled ones
// included — is restored in place, never duplicated.
func (s *subscriptionService) UpsertProviderSubscription(ctx context.Context, userID, customerID, subscriptionID, priceID, status string, periodStart, periodEnd time.Time) error {
	existing, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return err
	}
	if existing == nil {
		existing, err = s.repo.GetByCustomerID(ctx, customerID)
		if err != nil {
			return err
		}
	}

	if existing != nil {
		existing.StripeCustomerID = customerID
		existing.StripeSubscriptionID = subscriptionID
		existing.StripePriceID = priceID
		existing.Status = status
		existing.CurrentPeriodStart = periodStart
		existing.CurrentPeriodEnd = periodEnd
		existing.CancelAtPeriodEnd = false
		if err := s.repo.Update(ctx, existing); err != nil {
			s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to restore subscription")
			return err
		}
		s.logger.Info().Str("user_id", userID).Str("stripe_subscription_id", subscriptionID).Msg("Restored existing subscription record")
		return nil
	}

	sub := &model.Subscription{
		UserID:               userID,
		StripeCustomerID:     customerID,
		StripeSubscriptionID: subscriptionID,
		StripePriceID:        priceID,
		Status:               status,
		CurrentPeriodStart:   periodStart,
		CurrentPeriodEnd:     periodEnd,
	}
	if err := s.repo.Insert(ctx, sub); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to insert subscription")
		return err
	}
	return nil
}

// ApplyProviderUpdate patches the record located by customer reference with
// the fields present in a billing event. It reports false without error
// when no record exists: updates never fabricate subscriptions.
func (s *subscriptionService) ApplyProviderUpdate(ctx context.Context, customerID string, update ProviderUpdate) (bool, error) {
	sub, err := s.repo.GetByCustomerID(ctx, customerID)
	if err != nil {
		return false, err
	}
	if sub == nil {
		return false, nil
	}

	if update.SubscriptionID != nil {
		sub.StripeSubscriptionID = *update.SubscriptionID
	}
	if update.PriceID != nil {
		sub.StripePriceID = *update.PriceID
	}
	if update.Status != nil {
		sub.Status = *update.Status
	}
	if update.PeriodStart != nil {
		sub.CurrentPeriodStart = *update.PeriodStart
	}
	if update.PeriodEnd != nil {
		sub.CurrentPeriodEnd = *update.PeriodEnd
	}
	if update.CancelAtPeriodEnd != nil {
		sub.CancelAtPeriodEnd = *update.CancelAtPeriodEnd
	}

	if err := s.repo.Update(ctx, sub); err != nil {
		s.logger.Error().Err(err).Str("stripe_customer_id", customerID).Msg("Failed to apply provider update")
		return true, err
	}
	return true, nil
}
