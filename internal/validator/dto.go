package validator

import (
	"time"

	"github.com/classcode-io/activity-service/internal/models"
)

// SaveDraftRequest is the autosave payload. Files and test case results stay
// opaque serialized structures from the client-side runner.
type SaveDraftRequest struct {
	DraftFiles           *string          `json:"draft_files"`
	DraftTestCaseResults *string          `json:"draft_test_case_results" validate:"omitempty,json"`
	DraftTimeRemaining   *int             `json:"draft_time_remaining" validate:"omitempty,min=0"`
	DraftSelectedLang    *string          `json:"draft_selected_language" validate:"omitempty,max=50"`
	DraftScore           float64          `json:"draft_score" validate:"min=0"`
	DraftItemTimes       map[uint]int     `json:"draft_item_times" validate:"omitempty,dive,min=0"`
	DraftCheckCodeRuns   map[uint]int     `json:"draft_check_code_runs" validate:"omitempty,dive,min=0"`
	DraftDeductedScores  map[uint]float64 `json:"draft_deducted_scores" validate:"omitempty,dive,min=0"`
}

// ItemSubmissionRequest is one per-item entry in a finalize call. A score is
// deliberately absent: finalize recomputes it from the stored run counts and
// the authoritative item points.
type ItemSubmissionRequest struct {
	ItemID         uint    `json:"item_id" validate:"required"`
	CodeSubmission *string `json:"code_submission"`
	ItemTimeSpent  int     `json:"item_time_spent" validate:"min=0"`
	TestCaseScore  float64 `json:"test_case_score" validate:"min=0"` // raw score from visible+hidden runs, capped server-side
}

type FinalizeSubmissionRequest struct {
	Submissions      []ItemSubmissionRequest `json:"submissions" validate:"required,min=1,dive"`
	OverallTimeSpent *int                    `json:"overall_time_spent" validate:"omitempty,min=0"`
}

type RunCheckCodeRequest struct {
	ItemID uint `json:"item_id" validate:"required"`
}

// TestCaseRequest is one test case in an item edit; points are redistributed
// evenly server-side regardless of the submitted per-case values.
type TestCaseRequest struct {
	InputData      string  `json:"input_data"`
	ExpectedOutput string  `json:"expected_output" validate:"required"`
	Points         float64 `json:"points" validate:"min=0"`
	IsHidden       bool    `json:"is_hidden"`
}

type UpdateTestCasesRequest struct {
	ItemPoints float64           `json:"item_points" validate:"required,min=1"`
	TestCases  []TestCaseRequest `json:"test_cases" validate:"required,min=1,dive"`
}

// ActivityCreateRequest covers the activity attributes the scoring core
// depends on; authoring beyond these stays with the external CRUD layer.
type ActivityCreateRequest struct {
	ClassID              uint                    `json:"class_id" validate:"required"`
	Title                string                  `json:"title" validate:"required,min=1,max=200"`
	Desc                 *string                 `json:"desc" validate:"omitempty,max=2000"`
	Difficulty           string                  `json:"difficulty" validate:"omitempty,oneof=Beginner Intermediate Advanced"`
	OpenDate             time.Time               `json:"open_date" validate:"required"`
	CloseDate            time.Time               `json:"close_date" validate:"required,gtfield=OpenDate"`
	Duration             int                     `json:"duration" validate:"required,min=5,max=300"`
	MaxAttempts          int                     `json:"max_attempts" validate:"min=1,max=10"`
	FinalScorePolicy     models.FinalScorePolicy `json:"final_score_policy" validate:"omitempty,final_score_policy"`
	ExamMode             bool                    `json:"exam_mode"`
	RandomizedItems      bool                    `json:"randomized_items"`
	CheckCodeRestriction bool                    `json:"check_code_restriction"`
	MaxCheckCodeRuns     int                     `json:"max_check_code_runs" validate:"omitempty,min=1"`
	CheckCodeDeduction   float64                 `json:"check_code_deduction" validate:"omitempty,deduction_pct"`
	Items                []ActivityItemRequest   `json:"items" validate:"omitempty,dive"`
}

type ActivityItemRequest struct {
	ItemID uint    `json:"item_id" validate:"required"`
	Points float64 `json:"points" validate:"required,min=1"`
	Order  int     `json:"order" validate:"min=0"`
}

type ActivityUpdateRequest struct {
	Title                *string                  `json:"title" validate:"omitempty,min=1,max=200"`
	Desc                 *string                  `json:"desc" validate:"omitempty,max=2000"`
	OpenDate             *time.Time               `json:"open_date"`
	CloseDate            *time.Time               `json:"close_date"`
	Duration             *int                     `json:"duration" validate:"omitempty,min=5,max=300"`
	MaxAttempts          *int                     `json:"max_attempts" validate:"omitempty,min=1,max=10"`
	FinalScorePolicy     *models.FinalScorePolicy `json:"final_score_policy" validate:"omitempty,final_score_policy"`
	ExamMode             *bool                    `json:"exam_mode"`
	RandomizedItems      *bool                    `json:"randomized_items"`
	CheckCodeRestriction *bool                    `json:"check_code_restriction"`
	MaxCheckCodeRuns     *int                     `json:"max_check_code_runs" validate:"omitempty,min=1"`
	CheckCodeDeduction   *float64                 `json:"check_code_deduction" validate:"omitempty,deduction_pct"`
}

// SubmissionUpdateRequest is the student-initiated edit of their own
// submission row; plain CRUD outside the scoring core.
type SubmissionUpdateRequest struct {
	CodeSubmission *string `json:"code_submission"`
	ItemTimeSpent  *int    `json:"item_time_spent" validate:"omitempty,min=0"`
}
