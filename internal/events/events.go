// Package events defines the outbound notification events the scoring core
// emits and the publisher interface an external dispatcher consumes them
// from. The core never formats or delivers user-visible notifications; it
// only records that something happened.
package events

import (
	"time"

	"github.com/classcode-io/activity-service/internal/models"
)

const (
	TopicActivityNotifications = "activity.notifications"
)

type EventType string

const (
	EventActivityStarted     EventType = "activity_started"
	EventActivityCompleted   EventType = "activity_completed"
	EventDeadlineChanged     EventType = "deadline_changed"
	EventDeadlineReminder    EventType = "deadline_reminder"
	EventSubmissionFinalized EventType = "submission_finalized"
)

// ReminderWindow distinguishes the two deadline-reminder lead times.
type ReminderWindow string

const (
	ReminderOneDay  ReminderWindow = "1_day"
	ReminderOneHour ReminderWindow = "1_hour"
)

// ActivityEvent is the envelope for every notification event. Recipient is
// the closed student-or-teacher owner variant; the dispatcher resolves it to
// delivery channels.
type ActivityEvent struct {
	Type       EventType       `json:"type"`
	ActivityID uint            `json:"activity_id"`
	ClassID    uint            `json:"class_id"`
	Title      string          `json:"title"`
	Recipient  models.OwnerRef `json:"recipient"`
	OccurredAt time.Time       `json:"occurred_at"`

	// Reminder-only
	Window ReminderWindow `json:"window,omitempty"`
	// Deadline-change only
	NewCloseDate *time.Time `json:"new_close_date,omitempty"`
	// Finalize-only
	AttemptNo  int     `json:"attempt_no,omitempty"`
	FinalScore float64 `json:"final_score,omitempty"`
}
