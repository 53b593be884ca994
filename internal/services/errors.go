package services

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized         = errors.New("unauthorized")
	ErrActivityNotFound     = errors.New("activity not found")
	ErrItemNotFound         = errors.New("item not found")
	ErrSubmissionNotFound   = errors.New("submission not found")
	ErrDraftNotFound        = errors.New("draft not found")
	ErrAttemptLimitExceeded = errors.New("attempt limit exceeded")
	ErrActivityNotOpen      = errors.New("activity is not open")
	ErrNotEnrolled          = errors.New("student not enrolled in class")
	ErrConcurrencyConflict  = errors.New("concurrent modification detected")
)

// PermissionError reports who tried to do what to which resource. Handlers
// map it to 403 with the reason.
type PermissionError struct {
	UserID   uint
	Resource string
	Action   string
	Reason   string
}

func NewPermissionError(userID uint, resource, action, reason string) *PermissionError {
	return &PermissionError{UserID: userID, Resource: resource, Action: action, Reason: reason}
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %d cannot %s %s: %s", e.UserID, e.Action, e.Resource, e.Reason)
}

// BusinessRuleError is a named domain rule violation that is neither a
// validation failure nor a permission problem.
type BusinessRuleError struct {
	Rule    string
	Message string
}

func NewBusinessRuleError(rule, message string) *BusinessRuleError {
	return &BusinessRuleError{Rule: rule, Message: message}
}

func (e *BusinessRuleError) Error() string {
	return fmt.Sprintf("%s: %s", e.Rule, e.Message)
}
