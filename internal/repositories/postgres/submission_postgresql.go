package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/classcode-io/activity-service/internal/models"
	"github.com/classcode-io/activity-service/internal/repositories"
)

type submissionRepository struct {
	baseRepository
}

func NewSubmissionRepository(db *gorm.DB) repositories.SubmissionRepository {
	return &submissionRepository{baseRepository{db: db}}
}

func (r *submissionRepository) CreateBatch(ctx context.Context, tx *gorm.DB, submissions []*models.Submission) error {
	if len(submissions) == 0 {
		return nil
	}
	if err := r.getDB(ctx, tx).Create(&submissions).Error; err != nil {
		return fmt.Errorf("failed to insert submissions: %w", err)
	}
	return nil
}

func (r *submissionRepository) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Submission, error) {
	var submission models.Submission
	if err := r.getDB(ctx, tx).First(&submission, id).Error; err != nil {
		return nil, err
	}
	return &submission, nil
}

func (r *submissionRepository) Update(ctx context.Context, tx *gorm.DB, submission *models.Submission) error {
	if err := r.getDB(ctx, tx).Save(submission).Error; err != nil {
		return fmt.Errorf("failed to update submission %d: %w", submission.ID, err)
	}
	return nil
}

func (r *submissionRepository) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	result := r.getDB(ctx, tx).Delete(&models.Submission{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete submission %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *submissionRepository) ListByActivity(ctx context.Context, tx *gorm.DB, activityID uint, filters repositories.SubmissionFilters) ([]*models.Submission, int64, error) {
	query := r.getDB(ctx, tx).Model(&models.Submission{}).
		Where("activity_id = ?", activityID)

	if filters.StudentID != nil {
		query = query.Where("student_id = ?", *filters.StudentID)
	}
	if filters.ItemID != nil {
		query = query.Where("item_id = ?", *filters.ItemID)
	}
	if filters.AttemptNo != nil {
		query = query.Where("attempt_no = ?", *filters.AttemptNo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count submissions: %w", err)
	}

	var submissions []*models.Submission
	err := applyPagination(query, filters.Limit, filters.Offset).
		Order("submitted_at DESC, id DESC").
		Find(&submissions).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list submissions for activity %d: %w", activityID, err)
	}
	return submissions, total, nil
}

func (r *submissionRepository) ListByStudent(ctx context.Context, tx *gorm.DB, activityID, studentID uint) ([]*models.Submission, error) {
	var submissions []*models.Submission
	err := r.getDB(ctx, tx).
		Where("activity_id = ? AND student_id = ?", activityID, studentID).
		Order("attempt_no ASC, item_id ASC").
		Find(&submissions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions for student %d: %w", studentID, err)
	}
	return submissions, nil
}

// AttemptTotals aggregates one student's submissions per attempt number.
// Score and time are summed across the items of each attempt.
func (r *submissionRepository) AttemptTotals(ctx context.Context, tx *gorm.DB, activityID, studentID uint) ([]repositories.AttemptTotals, error) {
	var rows []repositories.AttemptTotals
	err := r.getDB(ctx, tx).Model(&models.Submission{}).
		Select("attempt_no, SUM(score) AS total_score, SUM(item_time_spent) AS total_time_spent, COUNT(*) AS item_count").
		Where("activity_id = ? AND student_id = ?", activityID, studentID).
		Group("attempt_no").
		Order("attempt_no ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate attempts for student %d: %w", studentID, err)
	}
	return rows, nil
}

// AttemptTotalsByActivity performs the same aggregation for every student of
// the activity in one query, for bulk recomputation.
func (r *submissionRepository) AttemptTotalsByActivity(ctx context.Context, tx *gorm.DB, activityID uint) ([]repositories.StudentAttemptTotals, error) {
	var rows []repositories.StudentAttemptTotals
	err := r.getDB(ctx, tx).Model(&models.Submission{}).
		Select("student_id, attempt_no, SUM(score) AS total_score, SUM(item_time_spent) AS total_time_spent, COUNT(*) AS item_count").
		Where("activity_id = ?", activityID).
		Group("student_id, attempt_no").
		Order("student_id ASC, attempt_no ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate attempts for activity %d: %w", activityID, err)
	}
	return rows, nil
}
