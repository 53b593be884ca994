package services

import (
	"context"
	"time"

	"github.com/classcode-io/activity-service/internal/models"
	"github.com/classcode-io/activity-service/internal/repositories"
	"github.com/classcode-io/activity-service/internal/validator"
)

// ===== REQUEST/RESPONSE DTOs =====

// Request payloads live with their validation rules.
type SaveDraftRequest = validator.SaveDraftRequest
type FinalizeSubmissionRequest = validator.FinalizeSubmissionRequest
type ItemSubmissionRequest = validator.ItemSubmissionRequest
type RunCheckCodeRequest = validator.RunCheckCodeRequest
type UpdateTestCasesRequest = validator.UpdateTestCasesRequest
type TestCaseRequest = validator.TestCaseRequest
type CreateActivityRequest = validator.ActivityCreateRequest
type ActivityItemRequest = validator.ActivityItemRequest
type UpdateActivityRequest = validator.ActivityUpdateRequest
type UpdateSubmissionRequest = validator.SubmissionUpdateRequest

type DraftResponse struct {
	*models.ProgressDraft
	EndTime *time.Time `json:"end_time"`
}

type CheckCodeResponse struct {
	ItemID         uint    `json:"item_id"`
	RunCount       int     `json:"run_count"`
	EffectiveScore float64 `json:"effective_score"`
}

type FinalizeResponse struct {
	AttemptNo      int     `json:"attempt_no"`
	FinalScore     float64 `json:"final_score"`
	FinalTimeSpent int     `json:"final_time_spent"`
	Rank           int     `json:"rank"`
	AttemptsLeft   int     `json:"attempts_left"`
}

type AttemptHistoryResponse struct {
	ActivityID uint                     `json:"activity_id"`
	StudentID  uint                     `json:"student_id"`
	Attempts   []AttemptSummaryResponse `json:"attempts"`
	FinalScore float64                  `json:"final_score"`
	Rank       int                      `json:"rank"`
}

type AttemptSummaryResponse struct {
	AttemptNo      int     `json:"attempt_no"`
	TotalScore     float64 `json:"total_score"`
	TotalTimeSpent int     `json:"total_time_spent"`
	ItemCount      int     `json:"item_count"`
}

type LeaderboardResponse struct {
	ActivityID uint                          `json:"activity_id"`
	Rows       []repositories.LeaderboardRow `json:"rows"`
	Total      int                           `json:"total"`
}

type SubmissionListResponse struct {
	Submissions []*models.Submission `json:"submissions"`
	Total       int64                `json:"total"`
}

type ActivityResponse struct {
	*models.Activity
	IsOpen bool `json:"is_open"`
}

// ===== SERVICE INTERFACES =====

// ProgressService owns the autosave draft lifecycle and check-code runs.
type ProgressService interface {
	SaveDraft(ctx context.Context, activityID uint, owner models.OwnerRef, req *SaveDraftRequest) (*DraftResponse, error)
	GetDraft(ctx context.Context, activityID uint, owner models.OwnerRef) (*DraftResponse, error)
	ClearDraft(ctx context.Context, activityID uint, owner models.OwnerRef) error
	RunCheckCode(ctx context.Context, activityID uint, owner models.OwnerRef, req *RunCheckCodeRequest) (*CheckCodeResponse, error)
}

// SubmissionService orchestrates finalization and everything computed from
// the stored submissions.
type SubmissionService interface {
	Finalize(ctx context.Context, activityID, studentID uint, req *FinalizeSubmissionRequest) (*FinalizeResponse, error)
	RecomputeFinalResults(ctx context.Context, activityID, requesterID uint) error
	Leaderboard(ctx context.Context, activityID uint) (*LeaderboardResponse, error)
	ExportLeaderboard(ctx context.Context, activityID, requesterID uint) ([]byte, string, error)
	AttemptHistory(ctx context.Context, activityID, studentID uint) (*AttemptHistoryResponse, error)
	ListSubmissions(ctx context.Context, activityID, requesterID uint, filters repositories.SubmissionFilters) (*SubmissionListResponse, error)
	UpdateSubmission(ctx context.Context, submissionID, studentID uint, req *UpdateSubmissionRequest) (*models.Submission, error)
	DeleteSubmission(ctx context.Context, submissionID, studentID uint) error
}

// ItemService owns item and test case authoring, including the cascading
// point recalculation.
type ItemService interface {
	Create(ctx context.Context, teacherID uint, item *models.Item) (*models.Item, error)
	GetByID(ctx context.Context, itemID uint) (*models.Item, error)
	ListForTeacher(ctx context.Context, teacherID uint) ([]*models.Item, error)
	Delete(ctx context.Context, itemID, teacherID uint) error
	UpdateTestCases(ctx context.Context, itemID, teacherID uint, req *UpdateTestCasesRequest) (*models.Item, error)
}

// ActivityService owns activity authoring and its date-change notifications.
type ActivityService interface {
	Create(ctx context.Context, teacherID uint, req *CreateActivityRequest) (*ActivityResponse, error)
	GetByID(ctx context.Context, activityID uint) (*ActivityResponse, error)
	List(ctx context.Context, filters repositories.ActivityFilters) ([]*ActivityResponse, int64, error)
	Update(ctx context.Context, activityID, teacherID uint, req *UpdateActivityRequest) (*ActivityResponse, error)
	Delete(ctx context.Context, activityID, teacherID uint) error
}

// ServiceManager wires services together and owns their lifecycle.
type ServiceManager interface {
	Progress() ProgressService
	Submission() SubmissionService
	Item() ItemService
	Activity() ActivityService
	Reminder() *ReminderService
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
