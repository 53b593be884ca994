package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/classcode-io/activity-service/internal/cache"
	"github.com/classcode-io/activity-service/internal/models"
	"github.com/classcode-io/activity-service/internal/repositories"
	"github.com/classcode-io/activity-service/internal/validator"
)

type itemService struct {
	repo      repositories.Repository
	cache     *cache.CacheManager
	logger    *slog.Logger
	validator *validator.Validator
}

func NewItemService(repo repositories.Repository, cacheManager *cache.CacheManager, logger *slog.Logger, validator *validator.Validator) ItemService {
	return &itemService{
		repo:      repo,
		cache:     cacheManager,
		logger:    logger,
		validator: validator,
	}
}

func (s *itemService) Create(ctx context.Context, teacherID uint, item *models.Item) (*models.Item, error) {
	if err := s.validator.Validate(item); err != nil {
		return nil, err
	}
	item.TeacherID = &teacherID
	if err := s.repo.Item().Create(ctx, nil, item); err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}
	return item, nil
}

func (s *itemService) GetByID(ctx context.Context, itemID uint) (*models.Item, error) {
	item, err := s.repo.Item().GetByIDWithTestCases(ctx, nil, itemID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to load item: %w", err)
	}
	return item, nil
}

func (s *itemService) ListForTeacher(ctx context.Context, teacherID uint) ([]*models.Item, error) {
	return s.repo.Item().ListForTeacher(ctx, nil, teacherID)
}

func (s *itemService) Delete(ctx context.Context, itemID, teacherID uint) error {
	item, err := s.repo.Item().GetByID(ctx, nil, itemID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrItemNotFound
		}
		return fmt.Errorf("failed to load item: %w", err)
	}
	if item.TeacherID == nil || *item.TeacherID != teacherID {
		return NewPermissionError(teacherID, "item", "delete", "not the owning teacher")
	}

	referencing, err := s.repo.Item().ActivityIDsReferencing(ctx, nil, itemID)
	if err != nil {
		return err
	}
	if len(referencing) > 0 {
		return NewBusinessRuleError("item_in_use", "item is referenced by existing activities")
	}
	return s.repo.Item().Delete(ctx, nil, itemID)
}

// UpdateTestCases rewrites an item's test cases with the submitted total
// redistributed evenly across them, then propagates the new item total to
// every activity that references the item and re-derives each activity's
// max points. Everything runs in one transaction: a failure in any affected
// activity leaves all of them untouched.
func (s *itemService) UpdateTestCases(ctx context.Context, itemID, teacherID uint, req *UpdateTestCasesRequest) (*models.Item, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	item, err := s.repo.Item().GetByID(ctx, nil, itemID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to load item: %w", err)
	}
	if item.TeacherID == nil || *item.TeacherID != teacherID {
		return nil, NewPermissionError(teacherID, "item", "update_test_cases", "not the owning teacher")
	}

	perCase := math.Round(req.ItemPoints/float64(len(req.TestCases))*100) / 100

	var affected []uint
	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		cases := make([]models.TestCase, 0, len(req.TestCases))
		for _, tc := range req.TestCases {
			cases = append(cases, models.TestCase{
				InputData:      tc.InputData,
				ExpectedOutput: tc.ExpectedOutput,
				Points:         perCase,
				IsHidden:       tc.IsHidden,
			})
		}
		if err := txRepo.Item().ReplaceTestCases(ctx, nil, itemID, cases); err != nil {
			return err
		}

		// The canonical item total is the re-summed stored cases, not the
		// request value: rounding the per-case share can shift it slightly.
		total, err := txRepo.Item().SumTestCasePoints(ctx, nil, itemID)
		if err != nil {
			return err
		}
		item.Points = total
		if err := txRepo.Item().Update(ctx, nil, item); err != nil {
			return err
		}

		if err := txRepo.Item().UpdateActivityItemPoints(ctx, nil, itemID, total); err != nil {
			return err
		}

		affected, err = txRepo.Item().ActivityIDsReferencing(ctx, nil, itemID)
		if err != nil {
			return err
		}
		for _, activityID := range affected {
			if err := txRepo.Activity().RecalculateMaxPoints(ctx, nil, activityID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		for _, activityID := range affected {
			s.cache.InvalidateActivity(ctx, activityID)
		}
	}

	s.logger.Info("Item test cases updated",
		"item_id", itemID,
		"case_count", len(req.TestCases),
		"item_points", item.Points,
		"affected_activities", len(affected))
	return s.repo.Item().GetByIDWithTestCases(ctx, nil, itemID)
}
