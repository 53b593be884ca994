package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/classcode-io/activity-service/internal/models"
)

// ActivityFilters narrows activity listings. Zero values mean "no filter".
type ActivityFilters struct {
	ClassID   *uint
	TeacherID *uint
	OpenOnly  bool
	Limit     int
	Offset    int
	SortBy    string
	SortOrder string
}

// SubmissionFilters narrows submission listings for one activity.
type SubmissionFilters struct {
	StudentID *uint
	ItemID    *uint
	AttemptNo *int
	Limit     int
	Offset    int
}

// AttemptTotals is one GROUP BY attempt_no aggregation row for a single
// student: the summed score and time across the items of that attempt.
type AttemptTotals struct {
	AttemptNo      int     `gorm:"column:attempt_no"`
	TotalScore     float64 `gorm:"column:total_score"`
	TotalTimeSpent int     `gorm:"column:total_time_spent"`
	ItemCount      int     `gorm:"column:item_count"`
}

// StudentAttemptTotals carries the same aggregation keyed by student,
// used by the single-pass recompute over a whole activity.
type StudentAttemptTotals struct {
	StudentID      uint    `gorm:"column:student_id"`
	AttemptNo      int     `gorm:"column:attempt_no"`
	TotalScore     float64 `gorm:"column:total_score"`
	TotalTimeSpent int     `gorm:"column:total_time_spent"`
	ItemCount      int     `gorm:"column:item_count"`
}

// LeaderboardRow is one denormalized standings row: pivot totals joined
// with the student's name. Only enrolled students appear.
type LeaderboardRow struct {
	StudentID      uint    `gorm:"column:student_id" json:"studentId"`
	Firstname      string  `gorm:"column:firstname" json:"firstname"`
	Lastname       string  `gorm:"column:lastname" json:"lastname"`
	FinalScore     float64 `gorm:"column:final_score" json:"finalScore"`
	FinalTimeSpent int     `gorm:"column:final_time_spent" json:"finalTimeSpent"`
	AttemptsTaken  int     `gorm:"column:attempts_taken" json:"attemptsTaken"`
	Rank           int     `gorm:"column:rank" json:"rank"`
}

// ActivityRepository owns the activities table and its activity_items rows.
// The optional tx parameter scopes a call to an ongoing transaction; pass
// nil for standalone access.
type ActivityRepository interface {
	Create(ctx context.Context, tx *gorm.DB, activity *models.Activity) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Activity, error)
	GetByIDWithItems(ctx context.Context, tx *gorm.DB, id uint) (*models.Activity, error)
	Update(ctx context.Context, tx *gorm.DB, activity *models.Activity) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
	List(ctx context.Context, tx *gorm.DB, filters ActivityFilters) ([]*models.Activity, int64, error)

	ReplaceItems(ctx context.Context, tx *gorm.DB, activityID uint, items []models.ActivityItem) error
	RecalculateMaxPoints(ctx context.Context, tx *gorm.DB, activityID uint) error

	// Scanner queries for the reminder loop.
	StartedUnnotified(ctx context.Context, tx *gorm.DB, now time.Time) ([]*models.Activity, error)
	ExpiredUncompleted(ctx context.Context, tx *gorm.DB, now time.Time) ([]*models.Activity, error)
	ClosingBetween(ctx context.Context, tx *gorm.DB, from, to time.Time) ([]*models.Activity, error)
	MarkStartedNotified(ctx context.Context, tx *gorm.DB, activityID uint, at time.Time) error
	MarkCompleted(ctx context.Context, tx *gorm.DB, activityID uint, at time.Time) error
}

// ItemRepository owns items, their test cases, and the point propagation
// queries that fan an item edit out to every referencing activity.
type ItemRepository interface {
	Create(ctx context.Context, tx *gorm.DB, item *models.Item) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Item, error)
	GetByIDWithTestCases(ctx context.Context, tx *gorm.DB, id uint) (*models.Item, error)
	Update(ctx context.Context, tx *gorm.DB, item *models.Item) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
	ListForTeacher(ctx context.Context, tx *gorm.DB, teacherID uint) ([]*models.Item, error)

	ReplaceTestCases(ctx context.Context, tx *gorm.DB, itemID uint, cases []models.TestCase) error
	SumTestCasePoints(ctx context.Context, tx *gorm.DB, itemID uint) (float64, error)
	ActivityIDsReferencing(ctx context.Context, tx *gorm.DB, itemID uint) ([]uint, error)
	UpdateActivityItemPoints(ctx context.Context, tx *gorm.DB, itemID uint, points float64) error
}

// SubmissionRepository owns the per-item submission rows and the attempt
// aggregation queries built on them.
type SubmissionRepository interface {
	CreateBatch(ctx context.Context, tx *gorm.DB, submissions []*models.Submission) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Submission, error)
	Update(ctx context.Context, tx *gorm.DB, submission *models.Submission) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
	ListByActivity(ctx context.Context, tx *gorm.DB, activityID uint, filters SubmissionFilters) ([]*models.Submission, int64, error)
	ListByStudent(ctx context.Context, tx *gorm.DB, activityID, studentID uint) ([]*models.Submission, error)

	AttemptTotals(ctx context.Context, tx *gorm.DB, activityID, studentID uint) ([]AttemptTotals, error)
	AttemptTotalsByActivity(ctx context.Context, tx *gorm.DB, activityID uint) ([]StudentAttemptTotals, error)
}

// SummaryRepository owns the activity_students pivot. GetForUpdate takes a
// row lock so concurrent finalizations of the same student serialize.
type SummaryRepository interface {
	Get(ctx context.Context, tx *gorm.DB, activityID, studentID uint) (*models.StudentActivitySummary, error)
	GetForUpdate(ctx context.Context, tx *gorm.DB, activityID, studentID uint) (*models.StudentActivitySummary, error)
	Create(ctx context.Context, tx *gorm.DB, summary *models.StudentActivitySummary) error
	Update(ctx context.Context, tx *gorm.DB, summary *models.StudentActivitySummary) error
	ListByActivity(ctx context.Context, tx *gorm.DB, activityID uint) ([]*models.StudentActivitySummary, error)
	UpdateRanks(ctx context.Context, tx *gorm.DB, activityID uint, ranks map[uint]int) error
}

// ProgressRepository owns the single-row-per-owner draft store.
type ProgressRepository interface {
	Upsert(ctx context.Context, tx *gorm.DB, draft *models.ProgressDraft) error
	Get(ctx context.Context, tx *gorm.DB, activityID uint, owner models.OwnerRef) (*models.ProgressDraft, error)
	Delete(ctx context.Context, tx *gorm.DB, activityID uint, owner models.OwnerRef) error
}

// RosterRepository reads class enrollment and builds the standings join.
type RosterRepository interface {
	IsEnrolled(ctx context.Context, tx *gorm.DB, classID, studentID uint) (bool, error)
	EnrolledStudentIDs(ctx context.Context, tx *gorm.DB, classID uint) ([]uint, error)
	LeaderboardRows(ctx context.Context, tx *gorm.DB, activityID, classID uint) ([]LeaderboardRow, error)
}

// UserRepository is a read-only view over the synced users table.
type UserRepository interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.User, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.User, error)
	GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*models.User, error)
}
