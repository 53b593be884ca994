package models

import (
	"time"

	"gorm.io/gorm"
)

type FinalScorePolicy string

const (
	PolicyLastAttempt  FinalScorePolicy = "last_attempt"
	PolicyHighestScore FinalScorePolicy = "highest_score"
)

type Activity struct {
	ID         uint    `json:"id" gorm:"primaryKey"`
	ClassID    uint    `json:"class_id" gorm:"not null;index"`
	TeacherID  uint    `json:"teacher_id" gorm:"not null;index"`
	Title      string  `json:"title" gorm:"not null;size:200" validate:"required,min=1,max=200"`
	Desc       *string `json:"desc" gorm:"type:text" validate:"omitempty,max=2000"`
	Difficulty string  `json:"difficulty" gorm:"size:20" validate:"omitempty,oneof=Beginner Intermediate Advanced"`

	// Scheduling. CloseDate must be strictly after OpenDate.
	OpenDate  time.Time `json:"open_date" gorm:"not null;index"`
	CloseDate time.Time `json:"close_date" gorm:"not null;index"`
	Duration  int       `json:"duration" gorm:"not null" validate:"required,min=5,max=300"` // minutes

	// Attempt and scoring configuration
	MaxAttempts      int              `json:"max_attempts" gorm:"default:1" validate:"min=1,max=10"`
	MaxPoints        float64          `json:"max_points"` // derived: sum of item points, see item service
	FinalScorePolicy FinalScorePolicy `json:"final_score_policy" gorm:"default:last_attempt;size:20" validate:"omitempty,final_score_policy"`
	ExamMode         bool             `json:"exam_mode" gorm:"not null;default:false"`
	RandomizedItems  bool             `json:"randomized_items" gorm:"not null;default:false"`

	// Check-code run restriction
	CheckCodeRestriction bool    `json:"check_code_restriction" gorm:"not null;default:false"`
	MaxCheckCodeRuns     int     `json:"max_check_code_runs" gorm:"default:1" validate:"omitempty,min=1"`
	CheckCodeDeduction   float64 `json:"check_code_deduction" validate:"omitempty,min=0,max=100"` // percent per extra run

	// Lifecycle markers, written by the reminder scanner
	StartedNotifiedAt *time.Time `json:"started_notified_at"`
	CompletedAt       *time.Time `json:"completed_at"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Items []ActivityItem `json:"items,omitempty" gorm:"foreignKey:ActivityID"`
}

// ActivityItem links a reusable Item into an Activity with the point value
// assigned inside that activity, independent of the item's canonical points.
type ActivityItem struct {
	ID         uint    `json:"id" gorm:"primaryKey"`
	ActivityID uint    `json:"activity_id" gorm:"not null;index;uniqueIndex:idx_activity_item"`
	ItemID     uint    `json:"item_id" gorm:"not null;index;uniqueIndex:idx_activity_item"`
	Points     float64 `json:"points" gorm:"not null;column:act_item_points"`
	Order      int     `json:"order" gorm:"column:item_order;default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Item Item `json:"item,omitempty" gorm:"foreignKey:ItemID"`
}

func (Activity) TableName() string {
	return "activities"
}

func (ActivityItem) TableName() string {
	return "activity_items"
}

// IsOpen reports whether the activity accepts submissions at the given instant.
func (a *Activity) IsOpen(now time.Time) bool {
	return !now.Before(a.OpenDate) && now.Before(a.CloseDate)
}
