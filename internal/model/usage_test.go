package model

import (
	"testing"
	"time"
)

func TestWeekStart(t *testing.T) {
	cases := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{
			name: "monday maps to itself",
			in:   time.Date(2025, 6, 9, 15, 30, 0, 0, time.UTC),
			want: time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "wednesday maps to preceding monday",
			in:   time.Date(2025, 6, 11, 8, 0, 0, 0, time.UTC),
			want: time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "sunday belongs to the week started the previous monday",
			in:   time.Date(2025, 6, 15, 23, 59, 0, 0, time.UTC),
			want: time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "monday midnight is a new week",
			in:   time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC),
			want: time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "non-UTC input is normalized",
			in:   time.Date(2025, 6, 9, 1, 0, 0, 0, time.FixedZone("UTC+3", 3*3600)), // 22:00 Sunday UTC
			want: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "week crossing a month boundary",
			in:   time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC),
			want: time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := WeekStart(tc.in); !got.Equal(tc.want) {
				t.Fatalf("WeekStart(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}
