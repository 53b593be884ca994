package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/classcode-io/activity-service/internal/cache"
	"github.com/classcode-io/activity-service/internal/events"
	"github.com/classcode-io/activity-service/internal/repositories"
	"github.com/classcode-io/activity-service/internal/utils"
	"github.com/classcode-io/activity-service/internal/validator"
)

// ServiceManagerConfig carries everything the service layer depends on.
type ServiceManagerConfig struct {
	Repo           repositories.Repository
	CacheManager   *cache.CacheManager
	EventPublisher events.EventPublisher
	Logger         *slog.Logger
	Validator      *validator.Validator
	Clock          utils.Clock

	// ReminderInterval is the scan period of the deadline reminder loop.
	// Zero means the default of one hour.
	ReminderInterval time.Duration
}

type serviceManager struct {
	config ServiceManagerConfig

	progressService   ProgressService
	submissionService SubmissionService
	itemService       ItemService
	activityService   ActivityService
	reminderService   *ReminderService
}

func NewServiceManager(config ServiceManagerConfig) ServiceManager {
	if config.Clock == nil {
		config.Clock = utils.NewRealClock()
	}
	return &serviceManager{
		config: config,
		progressService: NewProgressService(
			config.Repo, config.CacheManager, config.Logger, config.Validator, config.Clock),
		submissionService: NewSubmissionService(
			config.Repo, config.CacheManager, config.EventPublisher, config.Logger, config.Validator, config.Clock),
		itemService: NewItemService(
			config.Repo, config.CacheManager, config.Logger, config.Validator),
		activityService: NewActivityService(
			config.Repo, config.CacheManager, config.EventPublisher, config.Logger, config.Validator, config.Clock),
		reminderService: NewReminderService(
			config.Repo, config.EventPublisher, config.Logger, config.Clock, config.ReminderInterval),
	}
}

func (m *serviceManager) Progress() ProgressService     { return m.progressService }
func (m *serviceManager) Submission() SubmissionService { return m.submissionService }
func (m *serviceManager) Item() ItemService             { return m.itemService }
func (m *serviceManager) Activity() ActivityService     { return m.activityService }
func (m *serviceManager) Reminder() *ReminderService    { return m.reminderService }

func (m *serviceManager) HealthCheck(ctx context.Context) error {
	return m.config.Repo.Ping(ctx)
}

func (m *serviceManager) Shutdown(ctx context.Context) error {
	m.reminderService.Stop()
	if m.config.EventPublisher != nil {
		if err := m.config.EventPublisher.Close(); err != nil {
			m.config.Logger.Error("Failed to close event publisher", "error", err)
		}
	}
	return nil
}
