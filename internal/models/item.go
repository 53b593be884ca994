package models

import (
	"time"

	"gorm.io/gorm"
)

// Item is a reusable coding problem. Its point total is always the sum of its
// non-deleted test case points and is recomputed whenever test cases change.
type Item struct {
	ID         uint    `json:"id" gorm:"primaryKey"`
	TeacherID  *uint   `json:"teacher_id" gorm:"index"` // nil for globally shared items
	Name       string  `json:"name" gorm:"not null;size:255" validate:"required,min=1,max=255"`
	Desc       string  `json:"desc" gorm:"type:text" validate:"required"`
	Difficulty string  `json:"difficulty" gorm:"size:20" validate:"required,oneof=Beginner Intermediate Advanced"`
	Points     float64 `json:"points" gorm:"not null" validate:"required,min=1"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	TestCases []TestCase `json:"test_cases,omitempty" gorm:"foreignKey:ItemID"`
}

type TestCase struct {
	ID             uint    `json:"id" gorm:"primaryKey"`
	ItemID         uint    `json:"item_id" gorm:"not null;index"`
	InputData      string  `json:"input_data" gorm:"type:text"`
	ExpectedOutput string  `json:"expected_output" gorm:"type:text;not null"`
	Points         float64 `json:"points" gorm:"not null;column:test_case_points"`
	IsHidden       bool    `json:"is_hidden" gorm:"not null;default:false"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (Item) TableName() string {
	return "items"
}

func (TestCase) TableName() string {
	return "test_cases"
}
