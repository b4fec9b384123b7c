package model

import "time"

// Subscription statuses as reported by Stripe.
const (
	SubscriptionStatusActive     = "active"
	SubscriptionStatusCanceled   = "canceled"
	SubscriptionStatusPastDue    = "past_due"
	SubscriptionStatusIncomplete = "incomplete"
)

// Subscription mirrors the user's Stripe subscription state locally.
// At most one row exists per user; rows are never hard-deleted, the
// status transitions to canceled instead.
type Subscription struct {
	ID                   string    `db:"id" json:"id"`
	UserID               string    `db:"user_id" json:"user_id"`
	StripeCustomerID     string    `db:"stripe_customer_id" json:"stripe_customer_id"`
	StripeSubscriptionID string    `db:"stripe_subscription_id" json:"stripe_subscription_id"`
	StripePriceID        string    `db:"stripe_price_id" json:"stripe_price_id"`
	Status               string    `db:"status" json:"status"`
	CurrentPeriodStart   time.Time `db:"current_period_start" json:"current_period_start"`
	CurrentPeriodEnd     time.Time `db:"current_period_end" json:"current_period_end"`
	CancelAtPeriodEnd    bool      `db:"cancel_at_period_end" json:"cancel_at_period_end"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time `db:"updated_at" json:"updated_at"`
}

// IsPro reports whether this subscription entitles the user to unlimited
// usage at the given instant. Cancellation does not revoke access before
// the paid period ends.
func (s *Subscription) IsPro(now time.Time) bool {
	if !s.CurrentPeriodEnd.After(now) {
		return false
	}
	if s.Status == SubscriptionStatusActive && !s.CancelAtPeriodEnd {
		return true
	}
	return s.CancelAtPeriodEnd || s.Status == SubscriptionStatusCanceled
}
