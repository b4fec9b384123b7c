package model

import (
	"testing"
	"time"
)

func TestIsPro(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	future := now.Add(10 * 24 * time.Hour)
	past := now.Add(-24 * time.Hour)

	cases := []struct {
		name string
		sub  Subscription
		want bool
	}{
		{
			name: "active within period",
			sub:  Subscription{Status: SubscriptionStatusActive, CurrentPeriodEnd: future},
			want: true,
		},
		{
			name: "active but period expired",
			sub:  Subscription{Status: SubscriptionStatusActive, CurrentPeriodEnd: past},
			want: false,
		},
		{
			name: "scheduled cancellation keeps access until period end",
			sub:  Subscription{Status: SubscriptionStatusActive, CancelAtPeriodEnd: true, CurrentPeriodEnd: future},
			want: true,
		},
		{
			name: "canceled with remaining paid time keeps access",
			sub:  Subscription{Status: SubscriptionStatusCanceled, CurrentPeriodEnd: future},
			want: true,
		},
		{
			name: "canceled and expired",
			sub:  Subscription{Status: SubscriptionStatusCanceled, CurrentPeriodEnd: past},
			want: false,
		},
		{
			name: "past_due within period",
			sub:  Subscription{Status: SubscriptionStatusPastDue, CurrentPeriodEnd: future},
			want: false,
		},
		{
			name: "incomplete within period",
			sub:  Subscription{Status: SubscriptionStatusIncomplete, CurrentPeriodEnd: future},
			want: false,
		},
		{
			name: "period end exactly now is expired",
			sub:  Subscription{Status: SubscriptionStatusActive, CurrentPeriodEnd: now},
			want: false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.sub.IsPro(now); got != tc.want {
				t.Fatalf("IsPro = %v, want %v", got, tc.want)
			}
		})
	}
}
