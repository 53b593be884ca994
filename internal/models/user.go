package models

import "time"

type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleTeacher UserRole = "teacher"
	RoleAdmin   UserRole = "admin"
)

// User is a read model for the external identity provider. The service never
// creates or updates users; it only resolves names and roles for leaderboards
// and ownership checks.
type User struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Role      UserRole  `json:"role" gorm:"not null;index;size:20"`
	Firstname string    `json:"firstname" gorm:"not null;size:100"`
	Lastname  string    `json:"lastname" gorm:"not null;size:100"`
	Email     string    `json:"email" gorm:"size:255;index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ClassEnrollment mirrors the roster service's class_student rows. The ranking
// engine joins against it so unenrolled students never appear in leaderboards.
type ClassEnrollment struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ClassID   uint      `json:"class_id" gorm:"not null;index;uniqueIndex:idx_class_student"`
	StudentID uint      `json:"student_id" gorm:"not null;index;uniqueIndex:idx_class_student"`
	CreatedAt time.Time `json:"created_at"`
}

func (User) TableName() string {
	return "users"
}

func (ClassEnrollment) TableName() string {
	return "class_students"
}

// OwnerKind is the closed variant for things owned by either a student or a
// teacher (drafts, notifications).
type OwnerKind string

const (
	OwnerStudent OwnerKind = "student"
	OwnerTeacher OwnerKind = "teacher"
)

// OwnerRef identifies a draft or notification owner explicitly instead of a
// dynamic type-name column.
type OwnerRef struct {
	Kind OwnerKind `json:"kind"`
	ID   uint      `json:"id"`
}

func OwnerFromRole(role UserRole, id uint) OwnerRef {
	if role == RoleTeacher || role == RoleAdmin {
		return OwnerRef{Kind: OwnerTeacher, ID: id}
	}
	return OwnerRef{Kind: OwnerStudent, ID: id}
}
