package models

import (
	"time"

	"gorm.io/datatypes"
)

// ProgressDraft holds in-flight, unsubmitted work for one activity attempt.
// Exactly one row exists per (activity, owner); autosaves upsert it and
// finalize deletes it. The owner is a closed student-or-teacher variant,
// stored as two plain columns.
type ProgressDraft struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	ActivityID uint      `json:"activity_id" gorm:"not null;index;uniqueIndex:idx_activity_owner"`
	OwnerKind  OwnerKind `json:"owner_kind" gorm:"not null;size:20;uniqueIndex:idx_activity_owner"`
	OwnerID    uint      `json:"owner_id" gorm:"not null;index;uniqueIndex:idx_activity_owner"`

	// Draft payload. Files and test case results are opaque serialized
	// structures from the client-side runner.
	DraftFiles           datatypes.JSON `json:"draft_files" gorm:"type:jsonb"`
	DraftTestCaseResults datatypes.JSON `json:"draft_test_case_results" gorm:"type:jsonb"`
	DraftTimeRemaining   *int           `json:"draft_time_remaining"` // seconds
	DraftSelectedLang    *string        `json:"draft_selected_language" gorm:"column:draft_selected_language;size:50"`
	DraftScore           float64        `json:"draft_score"`

	// Per-item bookkeeping, keyed by item id (as JSON object string keys).
	DraftItemTimes      datatypes.JSONType[map[uint]int]     `json:"draft_item_times" gorm:"type:jsonb"`
	DraftCheckCodeRuns  datatypes.JSONType[map[uint]int]     `json:"draft_check_code_runs" gorm:"type:jsonb"`
	DraftDeductedScores datatypes.JSONType[map[uint]float64] `json:"draft_deducted_scores" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ProgressDraft) TableName() string {
	return "activity_progress"
}

// EndTime derives the wall-clock deadline for the draft from its last save
// and the remaining seconds recorded at that point. Returns nil when the
// draft has no countdown.
func (p *ProgressDraft) EndTime() *time.Time {
	if p.DraftTimeRemaining == nil {
		return nil
	}
	t := p.UpdatedAt.Add(time.Duration(*p.DraftTimeRemaining) * time.Second)
	return &t
}
