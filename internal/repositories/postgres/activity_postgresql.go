package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/classcode-io/activity-service/internal/models"
	"github.com/classcode-io/activity-service/internal/repositories"
)

type activityRepository struct {
	baseRepository
}

func NewActivityRepository(db *gorm.DB) repositories.ActivityRepository {
	return &activityRepository{baseRepository{db: db}}
}

func (r *activityRepository) Create(ctx context.Context, tx *gorm.DB, activity *models.Activity) error {
	if err := r.getDB(ctx, tx).Create(activity).Error; err != nil {
		return fmt.Errorf("failed to create activity: %w", err)
	}
	return nil
}

func (r *activityRepository) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Activity, error) {
	var activity models.Activity
	if err := r.getDB(ctx, tx).First(&activity, id).Error; err != nil {
		return nil, err
	}
	return &activity, nil
}

func (r *activityRepository) GetByIDWithItems(ctx context.Context, tx *gorm.DB, id uint) (*models.Activity, error) {
	var activity models.Activity
	err := r.getDB(ctx, tx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("activity_items.item_order ASC") }).
		Preload("Items.Item").
		First(&activity, id).Error
	if err != nil {
		return nil, err
	}
	return &activity, nil
}

func (r *activityRepository) Update(ctx context.Context, tx *gorm.DB, activity *models.Activity) error {
	if err := r.getDB(ctx, tx).Save(activity).Error; err != nil {
		return fmt.Errorf("failed to update activity %d: %w", activity.ID, err)
	}
	return nil
}

func (r *activityRepository) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	result := r.getDB(ctx, tx).Delete(&models.Activity{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete activity %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *activityRepository) List(ctx context.Context, tx *gorm.DB, filters repositories.ActivityFilters) ([]*models.Activity, int64, error) {
	query := r.getDB(ctx, tx).Model(&models.Activity{})

	if filters.ClassID != nil {
		query = query.Where("class_id = ?", *filters.ClassID)
	}
	if filters.TeacherID != nil {
		query = query.Where("teacher_id = ?", *filters.TeacherID)
	}
	if filters.OpenOnly {
		now := time.Now()
		query = query.Where("open_date <= ? AND close_date > ?", now, now)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count activities: %w", err)
	}

	query = applySort(query, filters.SortBy, filters.SortOrder, "close_date", map[string]bool{
		"close_date": true,
		"open_date":  true,
		"created_at": true,
		"title":      true,
		"max_points": true,
	})

	var activities []*models.Activity
	err := applyPagination(query, filters.Limit, filters.Offset).
		Find(&activities).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list activities: %w", err)
	}
	return activities, total, nil
}

func (r *activityRepository) ReplaceItems(ctx context.Context, tx *gorm.DB, activityID uint, items []models.ActivityItem) error {
	db := r.getDB(ctx, tx)
	if err := db.Where("activity_id = ?", activityID).Delete(&models.ActivityItem{}).Error; err != nil {
		return fmt.Errorf("failed to clear items for activity %d: %w", activityID, err)
	}
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].ActivityID = activityID
	}
	if err := db.Create(&items).Error; err != nil {
		return fmt.Errorf("failed to attach items to activity %d: %w", activityID, err)
	}
	return nil
}

// RecalculateMaxPoints re-derives the activity ceiling from the current
// per-activity item point snapshots.
func (r *activityRepository) RecalculateMaxPoints(ctx context.Context, tx *gorm.DB, activityID uint) error {
	db := r.getDB(ctx, tx)
	var total float64
	err := db.Model(&models.ActivityItem{}).
		Where("activity_id = ?", activityID).
		Select("COALESCE(SUM(act_item_points), 0)").
		Scan(&total).Error
	if err != nil {
		return fmt.Errorf("failed to sum item points for activity %d: %w", activityID, err)
	}
	return db.Model(&models.Activity{}).
		Where("id = ?", activityID).
		Update("max_points", total).Error
}

func (r *activityRepository) StartedUnnotified(ctx context.Context, tx *gorm.DB, now time.Time) ([]*models.Activity, error) {
	var activities []*models.Activity
	err := r.getDB(ctx, tx).
		Where("open_date <= ? AND started_notified_at IS NULL", now).
		Find(&activities).Error
	return activities, err
}

func (r *activityRepository) ExpiredUncompleted(ctx context.Context, tx *gorm.DB, now time.Time) ([]*models.Activity, error) {
	var activities []*models.Activity
	err := r.getDB(ctx, tx).
		Where("close_date <= ? AND completed_at IS NULL", now).
		Find(&activities).Error
	return activities, err
}

func (r *activityRepository) ClosingBetween(ctx context.Context, tx *gorm.DB, from, to time.Time) ([]*models.Activity, error) {
	var activities []*models.Activity
	err := r.getDB(ctx, tx).
		Where("close_date > ? AND close_date <= ? AND completed_at IS NULL", from, to).
		Find(&activities).Error
	return activities, err
}

func (r *activityRepository) MarkStartedNotified(ctx context.Context, tx *gorm.DB, activityID uint, at time.Time) error {
	return r.getDB(ctx, tx).Model(&models.Activity{}).
		Where("id = ?", activityID).
		Update("started_notified_at", at).Error
}

func (r *activityRepository) MarkCompleted(ctx context.Context, tx *gorm.DB, activityID uint, at time.Time) error {
	return r.getDB(ctx, tx).Model(&models.Activity{}).
		Where("id = ?", activityID).
		Update("completed_at", at).Error
}
