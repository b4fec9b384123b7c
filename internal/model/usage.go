package model

import "time"

// ResourceType identifies which weekly quota a usage row counts against.
type ResourceType string

const (
	ResourceTypeExam  ResourceType = "exam"
	ResourceTypeEssay ResourceType = "essay"
)

// Usage is a per-user, per-resource-type counter bucketed by ISO week.
// Rows are created lazily on first charge and kept as an append-only ledger.
type Usage struct {
	UserID       string       `db:"user_id" json:"user_id"`
	ResourceType ResourceType `db:"resource_type" json:"resource_type"`
	WeekStart    time.Time    `db:"week_start" json:"week_start"`
	Count        int          `db:"count" json:"count"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`
}

// WeekStart returns the Monday 00:00 UTC of the ISO week containing t.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday belongs to the week started the previous Monday
	}
	monday := t.AddDate(0, 0, -(weekday - 1))
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, time.UTC)
}
