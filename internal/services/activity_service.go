package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/classcode-io/activity-service/internal/cache"
	"github.com/classcode-io/activity-service/internal/events"
	"github.com/classcode-io/activity-service/internal/models"
	"github.com/classcode-io/activity-service/internal/repositories"
	"github.com/classcode-io/activity-service/internal/utils"
	"github.com/classcode-io/activity-service/internal/validator"
)

type activityService struct {
	repo           repositories.Repository
	cache          *cache.CacheManager
	eventPublisher events.EventPublisher
	logger         *slog.Logger
	validator      *validator.Validator
	clock          utils.Clock
}

func NewActivityService(repo repositories.Repository, cacheManager *cache.CacheManager, eventPublisher events.EventPublisher, logger *slog.Logger, validator *validator.Validator, clock utils.Clock) ActivityService {
	return &activityService{
		repo:           repo,
		cache:          cacheManager,
		eventPublisher: eventPublisher,
		logger:         logger,
		validator:      validator,
		clock:          clock,
	}
}

func (s *activityService) Create(ctx context.Context, teacherID uint, req *CreateActivityRequest) (*ActivityResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	policy := req.FinalScorePolicy
	if policy == "" {
		policy = models.PolicyLastAttempt
	}
	maxAttempts := req.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = 1
	}

	activity := &models.Activity{
		ClassID:              req.ClassID,
		TeacherID:            teacherID,
		Title:                req.Title,
		Desc:                 req.Desc,
		Difficulty:           req.Difficulty,
		OpenDate:             req.OpenDate,
		CloseDate:            req.CloseDate,
		Duration:             req.Duration,
		MaxAttempts:          maxAttempts,
		FinalScorePolicy:     policy,
		ExamMode:             req.ExamMode,
		RandomizedItems:      req.RandomizedItems,
		CheckCodeRestriction: req.CheckCodeRestriction,
		MaxCheckCodeRuns:     req.MaxCheckCodeRuns,
		CheckCodeDeduction:   req.CheckCodeDeduction,
	}

	err := s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Activity().Create(ctx, nil, activity); err != nil {
			return err
		}
		if len(req.Items) > 0 {
			items := make([]models.ActivityItem, 0, len(req.Items))
			for _, item := range req.Items {
				items = append(items, models.ActivityItem{
					ItemID: item.ItemID,
					Points: item.Points,
					Order:  item.Order,
				})
			}
			if err := txRepo.Activity().ReplaceItems(ctx, nil, activity.ID, items); err != nil {
				return err
			}
		}
		return txRepo.Activity().RecalculateMaxPoints(ctx, nil, activity.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create activity: %w", err)
	}

	s.logger.Info("Activity created",
		"activity_id", activity.ID,
		"class_id", activity.ClassID,
		"teacher_id", teacherID)
	return s.GetByID(ctx, activity.ID)
}

func (s *activityService) GetByID(ctx context.Context, activityID uint) (*ActivityResponse, error) {
	activity, err := s.repo.Activity().GetByIDWithItems(ctx, nil, activityID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrActivityNotFound
		}
		return nil, fmt.Errorf("failed to load activity: %w", err)
	}
	return &ActivityResponse{
		Activity: activity,
		IsOpen:   activity.IsOpen(s.clock.Now()),
	}, nil
}

func (s *activityService) List(ctx context.Context, filters repositories.ActivityFilters) ([]*ActivityResponse, int64, error) {
	activities, total, err := s.repo.Activity().List(ctx, nil, filters)
	if err != nil {
		return nil, 0, err
	}
	now := s.clock.Now()
	responses := make([]*ActivityResponse, 0, len(activities))
	for _, activity := range activities {
		responses = append(responses, &ActivityResponse{
			Activity: activity,
			IsOpen:   activity.IsOpen(now),
		})
	}
	return responses, total, nil
}

// Update applies a partial edit. Moving the close date notifies every
// enrolled student through the event stream; the dispatcher owns delivery.
func (s *activityService) Update(ctx context.Context, activityID, teacherID uint, req *UpdateActivityRequest) (*ActivityResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	activity, err := s.repo.Activity().GetByID(ctx, nil, activityID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrActivityNotFound
		}
		return nil, fmt.Errorf("failed to load activity: %w", err)
	}
	if activity.TeacherID != teacherID {
		return nil, NewPermissionError(teacherID, "activity", "update", "not the owning teacher")
	}

	deadlineChanged := false
	if req.Title != nil {
		activity.Title = *req.Title
	}
	if req.Desc != nil {
		activity.Desc = req.Desc
	}
	if req.OpenDate != nil {
		activity.OpenDate = *req.OpenDate
	}
	if req.CloseDate != nil && !req.CloseDate.Equal(activity.CloseDate) {
		activity.CloseDate = *req.CloseDate
		deadlineChanged = true
	}
	if req.Duration != nil {
		activity.Duration = *req.Duration
	}
	if req.MaxAttempts != nil {
		activity.MaxAttempts = *req.MaxAttempts
	}
	if req.FinalScorePolicy != nil {
		activity.FinalScorePolicy = *req.FinalScorePolicy
	}
	if req.ExamMode != nil {
		activity.ExamMode = *req.ExamMode
	}
	if req.RandomizedItems != nil {
		activity.RandomizedItems = *req.RandomizedItems
	}
	if req.CheckCodeRestriction != nil {
		activity.CheckCodeRestriction = *req.CheckCodeRestriction
	}
	if req.MaxCheckCodeRuns != nil {
		activity.MaxCheckCodeRuns = *req.MaxCheckCodeRuns
	}
	if req.CheckCodeDeduction != nil {
		activity.CheckCodeDeduction = *req.CheckCodeDeduction
	}

	if !activity.CloseDate.After(activity.OpenDate) {
		return nil, NewBusinessRuleError("invalid_window", "close date must be after open date")
	}

	if deadlineChanged {
		// A moved deadline resets the lifecycle markers so the scanner can
		// re-announce against the new window.
		activity.CompletedAt = nil
	}

	if err := s.repo.Activity().Update(ctx, nil, activity); err != nil {
		return nil, fmt.Errorf("failed to update activity: %w", err)
	}

	if s.cache != nil {
		s.cache.InvalidateActivity(ctx, activityID)
	}

	if deadlineChanged {
		s.notifyDeadlineChanged(ctx, activity)
	}
	return s.GetByID(ctx, activityID)
}

func (s *activityService) Delete(ctx context.Context, activityID, teacherID uint) error {
	activity, err := s.repo.Activity().GetByID(ctx, nil, activityID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrActivityNotFound
		}
		return fmt.Errorf("failed to load activity: %w", err)
	}
	if activity.TeacherID != teacherID {
		return NewPermissionError(teacherID, "activity", "delete", "not the owning teacher")
	}

	if err := s.repo.Activity().Delete(ctx, nil, activityID); err != nil {
		return fmt.Errorf("failed to delete activity: %w", err)
	}
	if s.cache != nil {
		s.cache.InvalidateActivity(ctx, activityID)
	}
	s.logger.Info("Activity deleted", "activity_id", activityID)
	return nil
}

func (s *activityService) notifyDeadlineChanged(ctx context.Context, activity *models.Activity) {
	if s.eventPublisher == nil {
		return
	}
	studentIDs, err := s.repo.Roster().EnrolledStudentIDs(ctx, nil, activity.ClassID)
	if err != nil {
		s.logger.Error("Failed to load roster for deadline notification",
			"activity_id", activity.ID, "error", err)
		return
	}
	now := s.clock.Now()
	for _, studentID := range studentIDs {
		event := events.ActivityEvent{
			Type:         events.EventDeadlineChanged,
			ActivityID:   activity.ID,
			ClassID:      activity.ClassID,
			Title:        activity.Title,
			Recipient:    models.OwnerRef{Kind: models.OwnerStudent, ID: studentID},
			OccurredAt:   now,
			NewCloseDate: &activity.CloseDate,
		}
		if err := s.eventPublisher.Publish(ctx, event); err != nil {
			s.logger.Error("Failed to publish deadline change",
				"activity_id", activity.ID,
				"student_id", studentID,
				"error", err)
		}
	}
}
