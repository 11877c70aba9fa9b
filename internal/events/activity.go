// Package events defines the activity change payloads published through the outbox.
package events

import "time"

// Event types recorded in the outbox.
const (
	ActivityCreated = "activity.created"
	ActivityUpdated = "activity.updated"
	ActivityDeleted = "activity.deleted"
)

// ActivityChanged is emitted when an activity is created or updated. Anonymous owners are
// reported by kind only; session keys never leave the service.
type ActivityChanged struct {
	ActivityID string     `json:"activity_id"`
	OwnerKind  string     `json:"owner_kind"`
	UserID     string     `json:"user_id,omitempty"`
	Title      string     `json:"title"`
	StartTime  time.Time  `json:"start_time"`
	EndTime    *time.Time `json:"end_time"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// ActivityRemoved is emitted when an activity is deleted.
type ActivityRemoved struct {
	ActivityID string    `json:"activity_id"`
	OwnerKind  string    `json:"owner_kind"`
	UserID     string    `json:"user_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
