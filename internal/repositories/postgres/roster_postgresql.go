package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/classcode-io/activity-service/internal/models"
	"github.com/classcode-io/activity-service/internal/repositories"
)

type rosterRepository struct {
	baseRepository
}

func NewRosterRepository(db *gorm.DB) repositories.RosterRepository {
	return &rosterRepository{baseRepository{db: db}}
}

func (r *rosterRepository) IsEnrolled(ctx context.Context, tx *gorm.DB, classID, studentID uint) (bool, error) {
	var count int64
	err := r.getDB(ctx, tx).Model(&models.ClassEnrollment{}).
		Where("class_id = ? AND student_id = ?", classID, studentID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check enrollment: %w", err)
	}
	return count > 0, nil
}

func (r *rosterRepository) EnrolledStudentIDs(ctx context.Context, tx *gorm.DB, classID uint) ([]uint, error) {
	var ids []uint
	err := r.getDB(ctx, tx).Model(&models.ClassEnrollment{}).
		Where("class_id = ?", classID).
		Pluck("student_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list enrolled students for class %d: %w", classID, err)
	}
	return ids, nil
}

// LeaderboardRows joins the pivot with the roster and user names. The
// enrollment join is deliberate: students who left the class keep their
// pivot rows but drop off the standings.
func (r *rosterRepository) LeaderboardRows(ctx context.Context, tx *gorm.DB, activityID, classID uint) ([]repositories.LeaderboardRow, error) {
	var rows []repositories.LeaderboardRow
	err := r.getDB(ctx, tx).
		Table("activity_students").
		Select(`activity_students.student_id,
			users.firstname,
			users.lastname,
			activity_students.final_score,
			activity_students.final_time_spent,
			activity_students.attempts_taken,
			activity_students.rank`).
		Joins("JOIN class_students ON class_students.student_id = activity_students.student_id AND class_students.class_id = ?", classID).
		Joins("JOIN users ON users.id = activity_students.student_id").
		Where("activity_students.activity_id = ?", activityID).
		Order("activity_students.final_score DESC, activity_students.final_time_spent ASC, users.lastname ASC, users.firstname ASC, activity_students.student_id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to build leaderboard for activity %d: %w", activityID, err)
	}
	return rows, nil
}
