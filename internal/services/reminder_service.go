package services

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/classcode-io/activity-service/internal/events"
	"github.com/classcode-io/activity-service/internal/models"
	"github.com/classcode-io/activity-service/internal/repositories"
	"github.com/classcode-io/activity-service/internal/utils"
)

// ReminderService is the hourly scanner behind lifecycle notifications: it
// announces activities whose window just opened, reminds students one day
// and one hour before the close date, and marks activities completed once
// the window passes. It only reads timestamps and the roster and publishes
// events; delivery belongs to the external dispatcher.
type ReminderService struct {
	repo           repositories.Repository
	eventPublisher events.EventPublisher
	logger         *slog.Logger
	clock          utils.Clock
	interval       time.Duration

	started  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewReminderService(repo repositories.Repository, eventPublisher events.EventPublisher, logger *slog.Logger, clock utils.Clock, interval time.Duration) *ReminderService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &ReminderService{
		repo:           repo,
		eventPublisher: eventPublisher,
		logger:         logger,
		clock:          clock,
		interval:       interval,
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}
}

// Start launches the scan loop. It returns immediately; Stop shuts the loop
// down and waits for the in-flight scan to finish.
func (s *ReminderService) Start(ctx context.Context) {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.RunOnce(ctx)
		for {
			select {
			case <-ticker.C:
				s.RunOnce(ctx)
			case <-s.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (s *ReminderService) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	if s.started.Load() {
		<-s.done
	}
}

// RunOnce performs a single scan pass. Safe to call repeatedly: started and
// completed announcements are guarded by the persisted markers, and each
// reminder window is narrower than the scan interval's coverage so a
// deadline passes through it once.
func (s *ReminderService) RunOnce(ctx context.Context) {
	now := s.clock.Now()
	s.announceStarted(ctx, now)
	s.remind(ctx, now, events.ReminderOneDay, 24*time.Hour)
	s.remind(ctx, now, events.ReminderOneHour, time.Hour)
	s.completeExpired(ctx, now)
}

func (s *ReminderService) announceStarted(ctx context.Context, now time.Time) {
	activities, err := s.repo.Activity().StartedUnnotified(ctx, nil, now)
	if err != nil {
		s.logger.Error("Failed to scan for started activities", "error", err)
		return
	}
	for _, activity := range activities {
		s.publishToClass(ctx, activity, events.ActivityEvent{
			Type:       events.EventActivityStarted,
			ActivityID: activity.ID,
			ClassID:    activity.ClassID,
			Title:      activity.Title,
			OccurredAt: now,
		}, false)
		if err := s.repo.Activity().MarkStartedNotified(ctx, nil, activity.ID, now); err != nil {
			s.logger.Error("Failed to mark activity as announced",
				"activity_id", activity.ID, "error", err)
		}
	}
}

// remind publishes one reminder per enrolled student who has not finalized
// yet, for activities whose close date falls inside (now+window-interval,
// now+window].
func (s *ReminderService) remind(ctx context.Context, now time.Time, window events.ReminderWindow, lead time.Duration) {
	from := now.Add(lead - s.interval)
	to := now.Add(lead)
	activities, err := s.repo.Activity().ClosingBetween(ctx, nil, from, to)
	if err != nil {
		s.logger.Error("Failed to scan for closing activities", "error", err)
		return
	}
	for _, activity := range activities {
		attempted := s.attemptedStudents(ctx, activity.ID)
		studentIDs, err := s.repo.Roster().EnrolledStudentIDs(ctx, nil, activity.ClassID)
		if err != nil {
			s.logger.Error("Failed to load roster for reminders",
				"activity_id", activity.ID, "error", err)
			continue
		}
		for _, studentID := range studentIDs {
			if attempted[studentID] {
				continue
			}
			s.publish(ctx, events.ActivityEvent{
				Type:       events.EventDeadlineReminder,
				ActivityID: activity.ID,
				ClassID:    activity.ClassID,
				Title:      activity.Title,
				Recipient:  models.OwnerRef{Kind: models.OwnerStudent, ID: studentID},
				OccurredAt: now,
				Window:     window,
			})
		}
	}
}

func (s *ReminderService) completeExpired(ctx context.Context, now time.Time) {
	activities, err := s.repo.Activity().ExpiredUncompleted(ctx, nil, now)
	if err != nil {
		s.logger.Error("Failed to scan for expired activities", "error", err)
		return
	}
	for _, activity := range activities {
		if err := s.repo.Activity().MarkCompleted(ctx, nil, activity.ID, now); err != nil {
			s.logger.Error("Failed to mark activity completed",
				"activity_id", activity.ID, "error", err)
			continue
		}
		s.publishToClass(ctx, activity, events.ActivityEvent{
			Type:       events.EventActivityCompleted,
			ActivityID: activity.ID,
			ClassID:    activity.ClassID,
			Title:      activity.Title,
			OccurredAt: now,
		}, true)
	}
}

// publishToClass fans an event out to every enrolled student, optionally
// including the owning teacher.
func (s *ReminderService) publishToClass(ctx context.Context, activity *models.Activity, template events.ActivityEvent, includeTeacher bool) {
	studentIDs, err := s.repo.Roster().EnrolledStudentIDs(ctx, nil, activity.ClassID)
	if err != nil {
		s.logger.Error("Failed to load roster for announcement",
			"activity_id", activity.ID, "error", err)
		return
	}
	for _, studentID := range studentIDs {
		event := template
		event.Recipient = models.OwnerRef{Kind: models.OwnerStudent, ID: studentID}
		s.publish(ctx, event)
	}
	if includeTeacher {
		event := template
		event.Recipient = models.OwnerRef{Kind: models.OwnerTeacher, ID: activity.TeacherID}
		s.publish(ctx, event)
	}
}

func (s *ReminderService) attemptedStudents(ctx context.Context, activityID uint) map[uint]bool {
	attempted := map[uint]bool{}
	summaries, err := s.repo.Summary().ListByActivity(ctx, nil, activityID)
	if err != nil {
		s.logger.Error("Failed to load summaries for reminders",
			"activity_id", activityID, "error", err)
		return attempted
	}
	for _, summary := range summaries {
		if summary.AttemptsTaken > 0 {
			attempted[summary.StudentID] = true
		}
	}
	return attempted
}

func (s *ReminderService) publish(ctx context.Context, event events.ActivityEvent) {
	if s.eventPublisher == nil {
		return
	}
	if err := s.eventPublisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish reminder event",
			"event_type", event.Type,
			"activity_id", event.ActivityID,
			"error", err)
	}
}
