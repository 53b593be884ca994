package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/classcode-io/activity-service/internal/models"
	"github.com/classcode-io/activity-service/internal/repositories"
)

type progressRepository struct {
	baseRepository
}

func NewProgressRepository(db *gorm.DB) repositories.ProgressRepository {
	return &progressRepository{baseRepository{db: db}}
}

// Upsert writes the draft row for (activity, owner), replacing any previous
// autosave in place. The unique index on the three key columns makes the
// conflict target.
func (r *progressRepository) Upsert(ctx context.Context, tx *gorm.DB, draft *models.ProgressDraft) error {
	err := r.getDB(ctx, tx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "activity_id"},
				{Name: "owner_kind"},
				{Name: "owner_id"},
			},
			UpdateAll: true,
		}).
		Create(draft).Error
	if err != nil {
		return fmt.Errorf("failed to save draft for activity %d: %w", draft.ActivityID, err)
	}
	return nil
}

func (r *progressRepository) Get(ctx context.Context, tx *gorm.DB, activityID uint, owner models.OwnerRef) (*models.ProgressDraft, error) {
	var draft models.ProgressDraft
	err := r.getDB(ctx, tx).
		Where("activity_id = ? AND owner_kind = ? AND owner_id = ?", activityID, owner.Kind, owner.ID).
		First(&draft).Error
	if err != nil {
		return nil, err
	}
	return &draft, nil
}

func (r *progressRepository) Delete(ctx context.Context, tx *gorm.DB, activityID uint, owner models.OwnerRef) error {
	result := r.getDB(ctx, tx).
		Where("activity_id = ? AND owner_kind = ? AND owner_id = ?", activityID, owner.Kind, owner.ID).
		Delete(&models.ProgressDraft{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete draft for activity %d: %w", activityID, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
