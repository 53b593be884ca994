package services

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/datatypes"

	"github.com/classcode-io/activity-service/internal/cache"
	"github.com/classcode-io/activity-service/internal/models"
	"github.com/classcode-io/activity-service/internal/repositories"
	"github.com/classcode-io/activity-service/internal/scoring"
	"github.com/classcode-io/activity-service/internal/utils"
	"github.com/classcode-io/activity-service/internal/validator"
)

type progressService struct {
	repo      repositories.Repository
	cache     *cache.CacheManager
	logger    *slog.Logger
	validator *validator.Validator
	clock     utils.Clock
}

func NewProgressService(repo repositories.Repository, cacheManager *cache.CacheManager, logger *slog.Logger, validator *validator.Validator, clock utils.Clock) ProgressService {
	return &progressService{
		repo:      repo,
		cache:     cacheManager,
		logger:    logger,
		validator: validator,
		clock:     clock,
	}
}

func draftCacheKey(activityID uint, owner models.OwnerRef) string {
	return fmt.Sprintf("activity:%d:%s:%d", activityID, owner.Kind, owner.ID)
}

// SaveDraft upserts the single draft row for (activity, owner). Saving again
// always replaces the previous autosave; there is never more than one row.
func (s *progressService) SaveDraft(ctx context.Context, activityID uint, owner models.OwnerRef, req *SaveDraftRequest) (*DraftResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	activity, err := s.loadOpenActivity(ctx, activityID, owner)
	if err != nil {
		return nil, err
	}

	draft := &models.ProgressDraft{
		ActivityID:           activity.ID,
		OwnerKind:            owner.Kind,
		OwnerID:              owner.ID,
		DraftFiles:           jsonOrNil(req.DraftFiles),
		DraftTestCaseResults: jsonOrNil(req.DraftTestCaseResults),
		DraftTimeRemaining:   req.DraftTimeRemaining,
		DraftSelectedLang:    req.DraftSelectedLang,
		DraftScore:           req.DraftScore,
		DraftItemTimes:       datatypes.NewJSONType(req.DraftItemTimes),
		DraftCheckCodeRuns:   datatypes.NewJSONType(req.DraftCheckCodeRuns),
		DraftDeductedScores:  datatypes.NewJSONType(req.DraftDeductedScores),
	}

	if err := s.repo.Progress().Upsert(ctx, nil, draft); err != nil {
		return nil, fmt.Errorf("failed to save draft: %w", err)
	}

	if s.cache != nil {
		safeCacheDelete(ctx, s.cache.Draft, draftCacheKey(activityID, owner))
	}

	saved, err := s.repo.Progress().Get(ctx, nil, activityID, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to reload draft: %w", err)
	}

	s.logger.Debug("Draft saved",
		"activity_id", activityID,
		"owner_kind", owner.Kind,
		"owner_id", owner.ID)
	return draftResponse(saved), nil
}

func (s *progressService) GetDraft(ctx context.Context, activityID uint, owner models.OwnerRef) (*DraftResponse, error) {
	var draft models.ProgressDraft

	fetch := func() (interface{}, error) {
		found, err := s.repo.Progress().Get(ctx, nil, activityID, owner)
		if err != nil {
			return nil, err
		}
		return found, nil
	}

	var err error
	if s.cache != nil {
		err = s.cache.Draft.CacheOrExecute(ctx, draftCacheKey(activityID, owner), &draft,
			cache.DraftCacheConfig.TTL, fetch)
	} else {
		var found *models.ProgressDraft
		found, err = s.repo.Progress().Get(ctx, nil, activityID, owner)
		if found != nil {
			draft = *found
		}
	}
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrDraftNotFound
		}
		return nil, fmt.Errorf("failed to load draft: %w", err)
	}

	return draftResponse(&draft), nil
}

func (s *progressService) ClearDraft(ctx context.Context, activityID uint, owner models.OwnerRef) error {
	err := s.repo.Progress().Delete(ctx, nil, activityID, owner)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrDraftNotFound
		}
		return fmt.Errorf("failed to clear draft: %w", err)
	}

	if s.cache != nil {
		safeCacheDelete(ctx, s.cache.Draft, draftCacheKey(activityID, owner))
	}

	s.logger.Info("Draft cleared",
		"activity_id", activityID,
		"owner_kind", owner.Kind,
		"owner_id", owner.ID)
	return nil
}

// RunCheckCode increments the owner's per-item run counter by exactly one,
// persists it in the draft, and returns the score the item would currently
// be worth. Finalize later recomputes the same deduction from the stored
// counter, so a stale client-side preview can never influence the final
// score.
func (s *progressService) RunCheckCode(ctx context.Context, activityID uint, owner models.OwnerRef, req *RunCheckCodeRequest) (*CheckCodeResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	activity, err := s.repo.Activity().GetByIDWithItems(ctx, nil, activityID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrActivityNotFound
		}
		return nil, fmt.Errorf("failed to load activity: %w", err)
	}
	if err := s.checkOwnerAccess(ctx, activity, owner); err != nil {
		return nil, err
	}

	basePoints, ok := activityItemPoints(activity, req.ItemID)
	if !ok {
		return nil, ErrItemNotFound
	}

	var response *CheckCodeResponse
	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		draft, err := txRepo.Progress().Get(ctx, nil, activityID, owner)
		if err != nil {
			if !repositories.IsNotFoundError(err) {
				return fmt.Errorf("failed to load draft: %w", err)
			}
			draft = &models.ProgressDraft{
				ActivityID: activityID,
				OwnerKind:  owner.Kind,
				OwnerID:    owner.ID,
			}
		}

		runs := draft.DraftCheckCodeRuns.Data()
		if runs == nil {
			runs = make(map[uint]int)
		}
		runs[req.ItemID]++

		effective := scoring.EffectiveScore(
			basePoints,
			runs[req.ItemID],
			activity.CheckCodeDeduction,
			activity.MaxCheckCodeRuns,
			activity.CheckCodeRestriction,
		)

		deducted := draft.DraftDeductedScores.Data()
		if deducted == nil {
			deducted = make(map[uint]float64)
		}
		deducted[req.ItemID] = effective

		draft.DraftCheckCodeRuns = datatypes.NewJSONType(runs)
		draft.DraftDeductedScores = datatypes.NewJSONType(deducted)

		if err := txRepo.Progress().Upsert(ctx, nil, draft); err != nil {
			return fmt.Errorf("failed to persist run counter: %w", err)
		}

		response = &CheckCodeResponse{
			ItemID:         req.ItemID,
			RunCount:       runs[req.ItemID],
			EffectiveScore: effective,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		safeCacheDelete(ctx, s.cache.Draft, draftCacheKey(activityID, owner))
	}

	s.logger.Debug("Check code run recorded",
		"activity_id", activityID,
		"item_id", req.ItemID,
		"run_count", response.RunCount,
		"effective_score", response.EffectiveScore)
	return response, nil
}

// loadOpenActivity resolves the activity and enforces the submission window
// and enrollment for students. Teachers may draft against their own
// activities at any time.
func (s *progressService) loadOpenActivity(ctx context.Context, activityID uint, owner models.OwnerRef) (*models.Activity, error) {
	activity, err := s.repo.Activity().GetByID(ctx, nil, activityID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrActivityNotFound
		}
		return nil, fmt.Errorf("failed to load activity: %w", err)
	}
	if err := s.checkOwnerAccess(ctx, activity, owner); err != nil {
		return nil, err
	}
	return activity, nil
}

func (s *progressService) checkOwnerAccess(ctx context.Context, activity *models.Activity, owner models.OwnerRef) error {
	if owner.Kind != models.OwnerStudent {
		return nil
	}
	enrolled, err := s.repo.Roster().IsEnrolled(ctx, nil, activity.ClassID, owner.ID)
	if err != nil {
		return fmt.Errorf("failed to check enrollment: %w", err)
	}
	if !enrolled {
		return ErrNotEnrolled
	}
	if !activity.IsOpen(s.clock.Now()) {
		return ErrActivityNotOpen
	}
	return nil
}

func activityItemPoints(activity *models.Activity, itemID uint) (float64, bool) {
	for _, item := range activity.Items {
		if item.ItemID == itemID {
			return item.Points, true
		}
	}
	return 0, false
}

func draftResponse(draft *models.ProgressDraft) *DraftResponse {
	return &DraftResponse{
		ProgressDraft: draft,
		EndTime:       draft.EndTime(),
	}
}

func jsonOrNil(s *string) datatypes.JSON {
	if s == nil {
		return nil
	}
	return datatypes.JSON(*s)
}

func safeCacheDelete(ctx context.Context, helper *cache.CacheHelper, keys ...string) {
	if err := helper.Delete(ctx, keys...); err != nil {
		slog.DebugContext(ctx, "Cache invalidation skipped", "error", err, "keys", keys)
	}
}
