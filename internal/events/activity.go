// Package events defines the payloads shared by the outbox producer and the
// notifier consumer.
package events

import "time"

// Event type identifiers recorded in the outbox and carried in Kafka headers.
const (
	TypeActivityReminder     = "activity.reminder"
	TypeActivityNotification = "activity.notification"
)

// ActivitySnapshot is the subset of activity fields a reminder carries.
type ActivitySnapshot struct {
	ActivityID string    `json:"activity_id"`
	Title      string    `json:"title"`
	StartsAt   time.Time `json:"starts_at"`
	Location   string    `json:"location"`
}

// ActivityReminder schedules a reminder delivery to the activity owner at SendAt.
type ActivityReminder struct {
	UserID   string           `json:"user_id"`
	Activity ActivitySnapshot `json:"activity"`
	SendAt   time.Time        `json:"send_at"`
}

// ActivityNotification is a single participant-facing message produced by a
// lifecycle status change.
type ActivityNotification struct {
	ActivityID string    `json:"activity_id"`
	UserID     string    `json:"user_id"`
	Status     string    `json:"status"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}
