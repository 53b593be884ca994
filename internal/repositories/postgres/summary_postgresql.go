package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/classcode-io/activity-service/internal/models"
	"github.com/classcode-io/activity-service/internal/repositories"
)

type summaryRepository struct {
	baseRepository
}

func NewSummaryRepository(db *gorm.DB) repositories.SummaryRepository {
	return &summaryRepository{baseRepository{db: db}}
}

func (r *summaryRepository) Get(ctx context.Context, tx *gorm.DB, activityID, studentID uint) (*models.StudentActivitySummary, error) {
	var summary models.StudentActivitySummary
	err := r.getDB(ctx, tx).
		Where("activity_id = ? AND student_id = ?", activityID, studentID).
		First(&summary).Error
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// GetForUpdate reads the pivot row under FOR UPDATE so two finalizations of
// the same student serialize on it. SQLite has no row locks; there the
// single-writer file lock gives the same guarantee, so the clause is skipped.
func (r *summaryRepository) GetForUpdate(ctx context.Context, tx *gorm.DB, activityID, studentID uint) (*models.StudentActivitySummary, error) {
	db := r.getDB(ctx, tx)
	if db.Dialector.Name() == "postgres" {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var summary models.StudentActivitySummary
	err := db.
		Where("activity_id = ? AND student_id = ?", activityID, studentID).
		First(&summary).Error
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

func (r *summaryRepository) Create(ctx context.Context, tx *gorm.DB, summary *models.StudentActivitySummary) error {
	if err := r.getDB(ctx, tx).Create(summary).Error; err != nil {
		return fmt.Errorf("failed to create activity summary: %w", err)
	}
	return nil
}

func (r *summaryRepository) Update(ctx context.Context, tx *gorm.DB, summary *models.StudentActivitySummary) error {
	if err := r.getDB(ctx, tx).Save(summary).Error; err != nil {
		return fmt.Errorf("failed to update activity summary %d: %w", summary.ID, err)
	}
	return nil
}

func (r *summaryRepository) ListByActivity(ctx context.Context, tx *gorm.DB, activityID uint) ([]*models.StudentActivitySummary, error) {
	var summaries []*models.StudentActivitySummary
	err := r.getDB(ctx, tx).
		Where("activity_id = ?", activityID).
		Order("student_id ASC").
		Find(&summaries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list summaries for activity %d: %w", activityID, err)
	}
	return summaries, nil
}

func (r *summaryRepository) UpdateRanks(ctx context.Context, tx *gorm.DB, activityID uint, ranks map[uint]int) error {
	db := r.getDB(ctx, tx)
	for studentID, rank := range ranks {
		err := db.Model(&models.StudentActivitySummary{}).
			Where("activity_id = ? AND student_id = ?", activityID, studentID).
			Update("rank", rank).Error
		if err != nil {
			return fmt.Errorf("failed to update rank for student %d: %w", studentID, err)
		}
	}
	return nil
}
