package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/classcode-io/activity-service/internal/events"
	"github.com/classcode-io/activity-service/internal/models"
)

func TestReminderAnnouncesStartedOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	activity := env.seedActivity(t, nil) // opened an hour ago
	env.seedStudent(t, 1, activity.ClassID, "Cruz", "Ana")
	env.seedStudent(t, 2, activity.ClassID, "Reyes", "Ben")

	reminder := env.manager.Reminder()
	reminder.RunOnce(ctx)

	started := env.publisher.PublishedOfType(events.EventActivityStarted)
	require.Len(t, started, 2) // one per enrolled student

	// The persisted marker keeps the next pass silent.
	reminder.RunOnce(ctx)
	require.Len(t, env.publisher.PublishedOfType(events.EventActivityStarted), 2)
}

func TestReminderWindowsSkipFinalizedStudents(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	activity := env.seedActivity(t, func(a *models.Activity) {
		a.StartedNotifiedAt = ptrTime(a.OpenDate)
		a.CloseDate = a.OpenDate.Add(time.Hour + 30*time.Minute) // closes in 30 min
	})
	item := env.seedItem(t, activity.ID, 100)
	env.seedStudent(t, 1, activity.ClassID, "Cruz", "Ana")
	env.seedStudent(t, 2, activity.ClassID, "Reyes", "Ben")

	// Student 1 already finalized; only student 2 needs the nudge.
	_, err := env.manager.Submission().Finalize(ctx, activity.ID, 1, &FinalizeSubmissionRequest{
		Submissions: []ItemSubmissionRequest{{ItemID: item.ID, TestCaseScore: 50, ItemTimeSpent: 60}},
	})
	require.NoError(t, err)
	env.publisher.Clear()

	env.manager.Reminder().RunOnce(ctx)

	reminders := env.publisher.PublishedOfType(events.EventDeadlineReminder)
	require.Len(t, reminders, 1)
	require.EqualValues(t, 2, reminders[0].Recipient.ID)
	require.Equal(t, events.ReminderOneHour, reminders[0].Window)
}

func TestReminderOneDayWindow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := env.clock.Now()
	activity := env.seedActivity(t, func(a *models.Activity) {
		a.StartedNotifiedAt = ptrTime(now)
		a.CloseDate = now.Add(23*time.Hour + 30*time.Minute)
	})
	env.seedStudent(t, 1, activity.ClassID, "Cruz", "Ana")

	env.manager.Reminder().RunOnce(ctx)

	reminders := env.publisher.PublishedOfType(events.EventDeadlineReminder)
	require.Len(t, reminders, 1)
	require.Equal(t, events.ReminderOneDay, reminders[0].Window)
}

func TestReminderCompletesExpiredActivities(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := env.clock.Now()
	activity := env.seedActivity(t, func(a *models.Activity) {
		a.StartedNotifiedAt = ptrTime(now)
		a.CloseDate = now.Add(-time.Minute)
	})
	env.seedStudent(t, 1, activity.ClassID, "Cruz", "Ana")

	env.manager.Reminder().RunOnce(ctx)

	completed := env.publisher.PublishedOfType(events.EventActivityCompleted)
	require.Len(t, completed, 2) // the student and the owning teacher

	refreshed, err := env.repo.Activity().GetByID(ctx, nil, activity.ID)
	require.NoError(t, err)
	require.NotNil(t, refreshed.CompletedAt)

	// Completion only fires once.
	env.publisher.Clear()
	env.manager.Reminder().RunOnce(ctx)
	require.Empty(t, env.publisher.PublishedOfType(events.EventActivityCompleted))
}

func ptrTime(t time.Time) *time.Time { return &t }
