package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Repository aggregates every domain repository behind one handle so the
// service layer depends on a single seam.
type Repository interface {
	Activity() ActivityRepository
	Item() ItemRepository
	Submission() SubmissionRepository
	Summary() SummaryRepository
	Progress() ProgressRepository
	Roster() RosterRepository
	User() UserRepository

	// WithTransaction runs fn against a repository view whose calls all
	// share one database transaction. Returning an error rolls back.
	WithTransaction(ctx context.Context, fn func(repo Repository) error) error

	Ping(ctx context.Context) error
	Close() error
}

// RepositoryManager owns the repository lifecycle for the process.
type RepositoryManager interface {
	Initialize(ctx context.Context) error
	GetRepository() Repository
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// IsNotFoundError reports whether err means the requested row does not
// exist, regardless of which repository produced it.
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicateKeyError reports whether err is a unique-constraint violation.
// Requires the connection to be opened with TranslateError.
func IsDuplicateKeyError(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
