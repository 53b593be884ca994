package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/classcode-io/activity-service/internal/models"
	"github.com/classcode-io/activity-service/internal/repositories"
)

type itemRepository struct {
	baseRepository
}

func NewItemRepository(db *gorm.DB) repositories.ItemRepository {
	return &itemRepository{baseRepository{db: db}}
}

func (r *itemRepository) Create(ctx context.Context, tx *gorm.DB, item *models.Item) error {
	if err := r.getDB(ctx, tx).Create(item).Error; err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}
	return nil
}

func (r *itemRepository) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Item, error) {
	var item models.Item
	if err := r.getDB(ctx, tx).First(&item, id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *itemRepository) GetByIDWithTestCases(ctx context.Context, tx *gorm.DB, id uint) (*models.Item, error) {
	var item models.Item
	err := r.getDB(ctx, tx).
		Preload("TestCases").
		First(&item, id).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *itemRepository) Update(ctx context.Context, tx *gorm.DB, item *models.Item) error {
	if err := r.getDB(ctx, tx).Save(item).Error; err != nil {
		return fmt.Errorf("failed to update item %d: %w", item.ID, err)
	}
	return nil
}

func (r *itemRepository) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	result := r.getDB(ctx, tx).Delete(&models.Item{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete item %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListForTeacher returns the teacher's own items plus the shared global bank.
func (r *itemRepository) ListForTeacher(ctx context.Context, tx *gorm.DB, teacherID uint) ([]*models.Item, error) {
	var items []*models.Item
	err := r.getDB(ctx, tx).
		Where("teacher_id = ? OR teacher_id IS NULL", teacherID).
		Order("created_at DESC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list items for teacher %d: %w", teacherID, err)
	}
	return items, nil
}

func (r *itemRepository) ReplaceTestCases(ctx context.Context, tx *gorm.DB, itemID uint, cases []models.TestCase) error {
	db := r.getDB(ctx, tx)
	if err := db.Unscoped().Where("item_id = ?", itemID).Delete(&models.TestCase{}).Error; err != nil {
		return fmt.Errorf("failed to clear test cases for item %d: %w", itemID, err)
	}
	if len(cases) == 0 {
		return nil
	}
	for i := range cases {
		cases[i].ID = 0
		cases[i].ItemID = itemID
	}
	if err := db.Create(&cases).Error; err != nil {
		return fmt.Errorf("failed to insert test cases for item %d: %w", itemID, err)
	}
	return nil
}

func (r *itemRepository) SumTestCasePoints(ctx context.Context, tx *gorm.DB, itemID uint) (float64, error) {
	var total float64
	err := r.getDB(ctx, tx).Model(&models.TestCase{}).
		Where("item_id = ?", itemID).
		Select("COALESCE(SUM(test_case_points), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum test case points for item %d: %w", itemID, err)
	}
	return total, nil
}

// ActivityIDsReferencing lists every activity whose item set includes the
// item, so a point change can fan out to all of them.
func (r *itemRepository) ActivityIDsReferencing(ctx context.Context, tx *gorm.DB, itemID uint) ([]uint, error) {
	var ids []uint
	err := r.getDB(ctx, tx).Model(&models.ActivityItem{}).
		Where("item_id = ?", itemID).
		Distinct().
		Pluck("activity_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find activities referencing item %d: %w", itemID, err)
	}
	return ids, nil
}

func (r *itemRepository) UpdateActivityItemPoints(ctx context.Context, tx *gorm.DB, itemID uint, points float64) error {
	err := r.getDB(ctx, tx).Model(&models.ActivityItem{}).
		Where("item_id = ?", itemID).
		Update("act_item_points", points).Error
	if err != nil {
		return fmt.Errorf("failed to propagate points for item %d: %w", itemID, err)
	}
	return nil
}
