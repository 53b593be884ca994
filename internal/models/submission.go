package models

import (
	"time"

	"gorm.io/datatypes"
)

// Submission is one student's attempt at one item within one attempt number.
// Identity is immutable once the finalize request completes; the score field
// is written server-side from the stored check-code run count and the
// authoritative item points, never from a client-supplied value.
type Submission struct {
	ID         uint `json:"id" gorm:"primaryKey"`
	ActivityID uint `json:"activity_id" gorm:"not null;index;uniqueIndex:idx_submission_attempt_item"`
	StudentID  uint `json:"student_id" gorm:"not null;index;uniqueIndex:idx_submission_attempt_item"`
	ItemID     uint `json:"item_id" gorm:"not null;index;uniqueIndex:idx_submission_attempt_item"`
	AttemptNo  int  `json:"attempt_no" gorm:"not null;uniqueIndex:idx_submission_attempt_item"`

	// Submitted file list, passed through as opaque structured text. The
	// service only reads byte-count/time metadata, never file contents.
	CodeSubmission datatypes.JSON `json:"code_submission" gorm:"type:jsonb"`

	Score         float64 `json:"score"`
	ItemTimeSpent int     `json:"item_time_spent"` // seconds
	CheckCodeRuns int     `json:"check_code_runs"`

	SubmittedAt time.Time `json:"submitted_at" gorm:"not null;index"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// StudentActivitySummary is the durable per-student-per-activity projection
// ("pivot") that leaderboards and class records read. attempts_taken is the
// single source of truth for attempt numbering and the serialization point
// for concurrent finalizes.
type StudentActivitySummary struct {
	ID         uint `json:"id" gorm:"primaryKey"`
	ActivityID uint `json:"activity_id" gorm:"not null;index;uniqueIndex:idx_activity_student"`
	StudentID  uint `json:"student_id" gorm:"not null;index;uniqueIndex:idx_activity_student"`

	AttemptsTaken  int     `json:"attempts_taken" gorm:"not null;default:0"`
	FinalScore     float64 `json:"final_score"`
	FinalTimeSpent int     `json:"final_time_spent"` // seconds
	Rank           int     `json:"rank"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Submission) TableName() string {
	return "activity_submissions"
}

func (StudentActivitySummary) TableName() string {
	return "activity_students"
}
