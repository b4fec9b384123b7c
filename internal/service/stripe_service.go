package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/justAlves/estudeai-sub000/internal/config"
	"github.com/justAlves/estudeai-sub000/internal/model"
	"github.com/justAlves/estudeai-sub000/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
	billingsession "github.com/stripe/stripe-go/v82/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	customerpkg "github.com/stripe/stripe-go/v82/customer"
	subscriptionpkg "github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeBackend is the thin slice of the Stripe API the reconciler needs.
// The indirection keeps the retry and fallback logic testable.
type StripeBackend interface {
	GetSubscription(id string) (*stripe.Subscription, error)
	GetCustomer(id string) (*stripe.Customer, error)
	UpdateSubscription(id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
}

type liveStripeBackend struct{}

func (liveStripeBackend) GetSubscription(id string) (*stripe.Subscription, error) {
	return subscriptionpkg.Get(id, nil)
}

func (liveStripeBackend) GetCustomer(id string) (*stripe.Customer, error) {
	return customerpkg.Get(id, nil)
}

func (liveStripeBackend) UpdateSubscription(id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	return subscriptionpkg.Update(id, params)
}

// StripeService manages Stripe integration: checkout and portal sessions
// on the way out, webhook reconciliation on the way in.
type StripeService struct {
	cfg      *config.Config
	userRepo repository.UserRepository
	subSvc   SubscriptionService
	backend  StripeBackend
	// backoffUnit scales the period-resolution retry delay (500ms live).
	backoffUnit time.Duration
	logger      zerolog.Logger
}

// NewStripeService initializes the Stripe key and returns the service with
// a scoped logger.
func NewStripeService(cfg *config.Config, userRepo repository.UserRepository, subSvc SubscriptionService, logger zerolog.Logger) *StripeService {
	stripe.Key = cfg.StripeSecretKey
	lg := logger.With().Str("service", "StripeService").Logger()
	return &StripeService{
		cfg:         cfg,
		userRepo:    userRepo,
		subSvc:      subSvc,
		backend:     liveStripeBackend{},
		backoffUnit: 500 * time.Millisecond,
		logger:      lg,
	}
}

// getUserIDFromEvent resolves the user from webhook metadata, falling back
// to the Stripe customer's metadata and then the local customer mapping.
func (s *StripeService) getUserIDFromEvent(ctx context.Context, metadata map[string]string, customerID string) (string, error) {
	if userID, ok := metadata["user_id"]; ok && userID != "" {
		return userID, nil
	}
	if customerID == "" {
		return "", errors.New("cannot determine user: missing metadata and customer id")
	}
	s.logger.Warn().Str("stripe_customer_id", customerID).Msg("Missing user_id metadata; looking up customer")
	if cust, err := s.backend.GetCustomer(customerID); err == nil && cust != nil {
		if userID, ok := cust.Metadata["user_id"]; ok && userID != "" {
			return userID, nil
		}
	}
	u, err := s.userRepo.GetUserByStripeCustomerID(ctx, customerID)
	if err != nil {
		return "", fmt.Errorf("failed to lookup user by Stripe customer ID: %w", err)
	}
	if u == nil {
		return "", fmt.Errorf("no user found for customer ID: %s", customerID)
	}
	return u.UserID, nil
}

// GetOrCreateCustomer ensures a Stripe Customer exists for a user.
func (s *StripeService) GetOrCreateCustomer(ctx context.Context, user *model.User) (string, error) {
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		return *user.StripeCustomerID, nil
	}
	s.logger.Warn().Str("user_id", user.UserID).Msg("No Stripe customer ID found, creating customer as fallback")
	return s.CreateCustomer(ctx, user)
}

// CreateCustomer creates a new Stripe customer for a user.
func (s *StripeService) CreateCustomer(ctx context.Context, user *model.User) (string, error) {
	params := &stripe.CustomerParams{
		Email:    stripe.String(user.Email),
		Name:     stripe.String(user.Name),
		Metadata: map[string]string{"user_id": user.UserID},
	}
	cust, err := customerpkg.New(params)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", user.UserID).Msg("Failed to create Stripe customer")
		return "", fmt.Errorf("create stripe customer: %w", err)
	}
	if err := s.userRepo.UpdateStripeCustomerID(ctx, user.UserID, cust.ID); err != nil {
		s.logger.Error().Err(err).Str("user_id", user.UserID).Msg("Failed to store stripe customer id in user_profiles")
		return "", fmt.Errorf("store stripe customer id: %w", err)
	}
	return cust.ID, nil
}

// CreateCheckoutSession creates a Stripe Checkout session for a plan upgrade.
func (s *StripeService) CreateCheckoutSession(ctx context.Context, userID, plan string) (string, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch user for checkout session")
		return "", fmt.Errorf("fetch user: %w", err)
	}
	if user == nil {
		return "", fmt.Errorf("user not found: %s", userID)
	}
	customerID, err := s.GetOrCreateCustomer(ctx, user)
	if err != nil {
		return "", err
	}
	var priceID string
	switch plan {
	case "monthly":
		priceID = s.cfg.StripePriceMonthly
	case "annual":
		priceID = s.cfg.StripePriceAnnual
	default:
		return "", fmt.Errorf("invalid plan: %s", plan)
	}
	sessParams := &stripe.CheckoutSessionParams{
		Customer:           stripe.String(customerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems:          []*stripe.CheckoutSessionLineItemParams{{Price: stripe.String(priceID), Quantity: stripe.Int64(1)}},
		Mode:               stripe.String(stripe.CheckoutSessionModeSubscription),
		SuccessURL:         stripe.String(s.cfg.StripePortalReturnURL + "?status=success"),
		CancelURL:          stripe.String(s.cfg.StripePortalReturnURL + "?status=cancel"),
		Metadata:           map[string]string{"user_id": userID},
	}
	sess, err := checkoutsession.New(sessParams)
	if err != nil {
		s.logger.Error().Err(err).Str("plan", plan).Msg("Failed to create Stripe checkout session")
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, nil
}

// CreatePortalSession creates a Stripe Customer Portal session.
func (s *StripeService) CreatePortalSession(ctx context.Context, userID string) (string, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch user for portal session")
		return "", fmt.Errorf("fetch user: %w", err)
	}
	if user == nil || user.StripeCustomerID == nil || *user.StripeCustomerID == "" {
		s.logger.Error().Str("user_id", userID).Msg("No Stripe customer ID found for user when creating portal session")
		return "", fmt.Errorf("no stripe customer for user: %s", userID)
	}
	params := &stripe.BillingPortalSessionParams{Customer: stripe.String(*user.StripeCustomerID), ReturnURL: stripe.String(s.cfg.StripePortalReturnURL)}
	sess, err := billingsession.New(params)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to create Stripe billing portal session")
		return "", fmt.Errorf("create billing portal session: %w", err)
	}
	return sess.URL, nil
}

// CancelSubscription schedules cancellation at period end, both at Stripe
// and locally. Access remains until the paid period expires.
func (s *StripeService) CancelSubscription(ctx context.Context, userID string) error {
	status, err := s.subSvc.GetStatus(ctx, userID)
	if err != nil {
		return err
	}
	if status.Subscription == nil || status.Subscription.StripeSubscriptionID == "" {
		return fmt.Errorf("no subscription to cancel for user: %s", userID)
	}
	_, err = s.backend.UpdateSubscription(status.Subscription.StripeSubscriptionID, &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	})
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to schedule cancellation at Stripe")
		return fmt.Errorf("cancel subscription at stripe: %w", err)
	}
	return s.subSvc.SetCancelAtPeriodEnd(ctx, userID, true)
}

// resolvedSubscription is the outcome of resolvePeriod.
type resolvedSubscription struct {
	PriceID  string
	Status   string
	Start    time.Time
	End      time.Time
	Fallback bool // period dates were synthesized, not provider-reported
}

// resolvePeriod fetches the subscription from Stripe and extracts price and
// period from its first item. Freshly created subscriptions can be missing
// their period for a moment, so it retries up to 3 times with incremental
// backoff and then falls back to now / now + 30 days rather than failing
// the webhook.
func (s *StripeService) resolvePeriod(ctx context.Context, subscriptionID string) resolvedSubscription {
	const maxAttempts = 3
	var priceID, status string
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		sub, err := s.backend.GetSubscription(subscriptionID)
		if err != nil {
			s.logger.Warn().Err(err).Int("attempt", attempt).Str("subscription_id", subscriptionID).Msg("Failed to fetch subscription details")
		} else if sub != nil {
			status = string(sub.Status)
			if sub.Items != nil && len(sub.Items.Data) > 0 {
				item := sub.Items.Data[0]
				if item.Price != nil {
					priceID = item.Price.ID
				}
				if item.CurrentPeriodStart > 0 && item.CurrentPeriodEnd > 0 {
					return resolvedSubscription{
						PriceID: priceID,
						Status:  status,
						Start:   time.Unix(item.CurrentPeriodStart, 0),
						End:     time.Unix(item.CurrentPeriodEnd, 0),
					}
				}
			}
			s.logger.Warn().Int("attempt", attempt).Str("subscription_id", subscriptionID).Msg("Subscription has no period dates yet")
		}
		if attempt < maxAttempts {
			select {
			case <-time.After(time.Duration(attempt) * s.backoffUnit):
			case <-ctx.Done():
				attempt = maxAttempts
			}
		}
	}
	now := time.Now()
	s.logger.Warn().Str("subscription_id", subscriptionID).Msg("Falling back to synthesized period dates")
	return resolvedSubscription{
		PriceID:  priceID,
		Status:   status,
		Start:    now,
		End:      now.AddDate(0, 0, 30),
		Fallback: true,
	}
}

// HandleWebhook processes Stripe webhook events. Events that reference
// state we cannot resolve locally are logged and acknowledged: Stripe must
// not see a failure merely because local state is momentarily behind.
func (s *StripeService) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read Stripe webhook payload")
		http.Error(w, "failed to read payload", http.StatusBadRequest)
		return
	}
	sig := r.Header.Get("Stripe-Signature")
	event, err := webhook.ConstructEvent(payload, sig, s.cfg.StripeWebhookSecret)
	if err != nil {
		s.logger.Error().Err(err).Msg("Signature verification failed for Stripe webhook")
		http.Error(w, "signature verification failed", http.StatusBadRequest)
		return
	}
	s.logger.Info().Str("event_type", string(event.Type)).Msg("Stripe webhook received")

	if err := s.HandleEvent(r.Context(), event); err != nil {
		s.logger.Error().Err(err).Str("event_type", string(event.Type)).Msg("Failed to process Stripe webhook event")
		http.Error(w, "failed to process event", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// HandleEvent dispatches a verified event to its reconciliation branch.
// It returns an error only for persistence failures worth a retry from
// Stripe's side.
func (s *StripeService) HandleEvent(ctx context.Context, event stripe.Event) error {
	switch event.Type {
	case "checkout.session.completed":
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			s.logger.Error().Err(err).Msg("Invalid checkout.session data")
			return nil
		}
		if cs.Subscription == nil || cs.Subscription.ID == "" {
			s.logger.Warn().Msg("Checkout session has no subscription, skipping")
			return nil
		}
		customerID := ""
		if cs.Customer != nil {
			customerID = cs.Customer.ID
		}
		userID, err := s.getUserIDFromEvent(ctx, cs.Metadata, customerID)
		if err != nil {
			s.logger.Error().Err(err).Str("subscription_id", cs.Subscription.ID).Msg("Cannot resolve user for checkout session")
			return nil
		}
		return s.reconcileStarted(ctx, userID, customerID, cs.Subscription.ID)

	case "customer.subscription.created":
		var ss stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &ss); err != nil {
			s.logger.Error().Err(err).Msg("Invalid customer.subscription.created payload")
			return nil
		}
		customerID := ""
		if ss.Customer != nil {
			customerID = ss.Customer.ID
		}
		userID, err := s.getUserIDFromEvent(ctx, ss.Metadata, customerID)
		if err != nil {
			s.logger.Error().Err(err).Str("subscription_id", ss.ID).Msg("Cannot resolve user for subscription.created")
			return nil
		}
		return s.reconcileStarted(ctx, userID, customerID, ss.ID)

	case "customer.subscription.updated":
		var ss stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &ss); err != nil {
			s.logger.Error().Err(err).Msg("Invalid customer.subscription.updated payload")
			return nil
		}
		if ss.Customer == nil || ss.Customer.ID == "" {
			s.logger.Warn().Str("subscription_id", ss.ID).Msg("Subscription update without customer, skipping")
			return nil
		}
		status := string(ss.Status)
		update := ProviderUpdate{
			SubscriptionID:    &ss.ID,
			Status:            &status,
			CancelAtPeriodEnd: &ss.CancelAtPeriodEnd,
		}
		if ss.Items != nil && len(ss.Items.Data) > 0 {
			item := ss.Items.Data[0]
			if item.Price != nil && item.Price.ID != "" {
				update.PriceID = &item.Price.ID
			}
			if item.CurrentPeriodStart > 0 && item.CurrentPeriodEnd > 0 {
				start := time.Unix(item.CurrentPeriodStart, 0)
				end := time.Unix(item.CurrentPeriodEnd, 0)
				update.PeriodStart = &start
				update.PeriodEnd = &end
			}
		}
		found, err := s.subSvc.ApplyProviderUpdate(ctx, ss.Customer.ID, update)
		if err != nil {
			return err
		}
		if !found {
			s.logger.Warn().Str("stripe_customer_id", ss.Customer.ID).Msg("Subscription update for unknown customer, ignoring")
		}
		return nil

	case "customer.subscription.deleted":
		var ss stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &ss); err != nil {
			s.logger.Error().Err(err).Msg("Invalid customer.subscription.deleted payload")
			return nil
		}
		if ss.Customer == nil || ss.Customer.ID == "" {
			s.logger.Warn().Str("subscription_id", ss.ID).Msg("Subscription deletion without customer, skipping")
			return nil
		}
		// Periods stay untouched: access is honored until period end.
		canceled := model.SubscriptionStatusCanceled
		found, err := s.subSvc.ApplyProviderUpdate(ctx, ss.Customer.ID, ProviderUpdate{Status: &canceled})
		if err != nil {
			return err
		}
		if !found {
			s.logger.Warn().Str("stripe_customer_id", ss.Customer.ID).Msg("Subscription deletion for unknown customer, ignoring")
		}
		return nil

	case "invoice.paid", "invoice.payment_succeeded":
		invoice, subscriptionID, ok := s.parseInvoice(event)
		if !ok {
			return nil
		}
		active := model.SubscriptionStatusActive
		update := ProviderUpdate{Status: &active, SubscriptionID: &subscriptionID}
		resolved := s.resolvePeriod(ctx, subscriptionID)
		if !resolved.Fallback {
			update.PeriodStart = &resolved.Start
			update.PeriodEnd = &resolved.End
		}
		if resolved.PriceID != "" {
			update.PriceID = &resolved.PriceID
		}
		found, err := s.subSvc.ApplyProviderUpdate(ctx, invoice.Customer.ID, update)
		if err != nil {
			return err
		}
		if !found {
			s.logger.Warn().Str("stripe_customer_id", invoice.Customer.ID).Msg("Invoice paid for unknown customer, ignoring")
		}
		return nil

	case "invoice.payment_failed":
		invoice, _, ok := s.parseInvoice(event)
		if !ok {
			return nil
		}
		pastDue := model.SubscriptionStatusPastDue
		found, err := s.subSvc.ApplyProviderUpdate(ctx, invoice.Customer.ID, ProviderUpdate{Status: &pastDue})
		if err != nil {
			return err
		}
		if !found {
			s.logger.Warn().Str("stripe_customer_id", invoice.Customer.ID).Msg("Payment failure for unknown customer, ignoring")
		}
		return nil

	default:
		s.logger.Warn().Str("event_type", string(event.Type)).Msg("Unhandled Stripe webhook event")
		return nil
	}
}

// reconcileStarted handles the shared tail of checkout completion and
// subscription creation.
func (s *StripeService) reconcileStarted(ctx context.Context, userID, customerID, subscriptionID string) error {
	resolved := s.resolvePeriod(ctx, subscriptionID)
	status := resolved.Status
	if status == "" {
		status = model.SubscriptionStatusActive
	}
	return s.subSvc.UpsertProviderSubscription(ctx, userID, customerID, subscriptionID, resolved.PriceID, status, resolved.Start, resolved.End)
}

// parseInvoice extracts the invoice and its subscription reference from an
// invoice event. ok is false when the branch should be skipped.
func (s *StripeService) parseInvoice(event stripe.Event) (*stripe.Invoice, string, bool) {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		s.logger.Error().Err(err).Str("event_type", string(event.Type)).Msg("Invalid invoice payload")
		return nil, "", false
	}
	if invoice.Customer == nil || invoice.Customer.ID == "" {
		s.logger.Warn().Str("invoice_id", invoice.ID).Msg("Invoice without customer, skipping")
		return nil, "", false
	}
	var subscriptionID string
	if invoice.Lines != nil {
		for _, line := range invoice.Lines.Data {
			if line.Subscription != nil && line.Subscription.ID != "" {
				subscriptionID = line.Subscription.ID
				break
			}
		}
	}
	if subscriptionID == "" && event.Type != "invoice.payment_failed" {
		s.logger.Info().Str("invoice_id", invoice.ID).Msg("Invoice has no subscription, skipping subscription update")
		return nil, "", false
	}
	return &invoice, subscriptionID, true
}
