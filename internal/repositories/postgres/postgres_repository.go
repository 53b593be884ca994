package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/classcode-io/activity-service/internal/repositories"
)

// PostgreSQLRepository binds every domain repository to one gorm handle.
// The same struct backs both the pooled connection and transaction-scoped
// views: WithTransaction rebinds the repositories to the tx handle.
type PostgreSQLRepository struct {
	db *gorm.DB

	activity   repositories.ActivityRepository
	item       repositories.ItemRepository
	submission repositories.SubmissionRepository
	summary    repositories.SummaryRepository
	progress   repositories.ProgressRepository
	roster     repositories.RosterRepository
	user       repositories.UserRepository
}

// RepositoryConfig carries the dependencies the repository layer needs.
type RepositoryConfig struct {
	DB *gorm.DB
}

func NewRepository(config RepositoryConfig) *PostgreSQLRepository {
	return newWithDB(config.DB)
}

func newWithDB(db *gorm.DB) *PostgreSQLRepository {
	return &PostgreSQLRepository{
		db:         db,
		activity:   NewActivityRepository(db),
		item:       NewItemRepository(db),
		submission: NewSubmissionRepository(db),
		summary:    NewSummaryRepository(db),
		progress:   NewProgressRepository(db),
		roster:     NewRosterRepository(db),
		user:       NewUserRepository(db),
	}
}

func (r *PostgreSQLRepository) Activity() repositories.ActivityRepository     { return r.activity }
func (r *PostgreSQLRepository) Item() repositories.ItemRepository             { return r.item }
func (r *PostgreSQLRepository) Submission() repositories.SubmissionRepository { return r.submission }
func (r *PostgreSQLRepository) Summary() repositories.SummaryRepository       { return r.summary }
func (r *PostgreSQLRepository) Progress() repositories.ProgressRepository     { return r.progress }
func (r *PostgreSQLRepository) Roster() repositories.RosterRepository         { return r.roster }
func (r *PostgreSQLRepository) User() repositories.UserRepository             { return r.user }

// WithTransaction opens one database transaction and hands fn a repository
// view bound to it. Any error from fn rolls the whole transaction back.
func (r *PostgreSQLRepository) WithTransaction(ctx context.Context, fn func(repo repositories.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(newWithDB(tx))
	})
}

func (r *PostgreSQLRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to access database handle: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

func (r *PostgreSQLRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to access database handle: %w", err)
	}
	return sqlDB.Close()
}

// Manager owns the repository lifecycle for the process.
type Manager struct {
	config RepositoryConfig
	logger *slog.Logger
	repo   *PostgreSQLRepository
}

func NewManager(config RepositoryConfig, logger *slog.Logger) *Manager {
	return &Manager{config: config, logger: logger}
}

func (m *Manager) Initialize(ctx context.Context) error {
	if m.config.DB == nil {
		return fmt.Errorf("repository manager requires a database connection")
	}
	m.repo = NewRepository(m.config)
	if err := m.repo.Ping(ctx); err != nil {
		return fmt.Errorf("database not reachable: %w", err)
	}
	m.logger.Info("repository layer initialized")
	return nil
}

func (m *Manager) GetRepository() repositories.Repository {
	return m.repo
}

func (m *Manager) HealthCheck(ctx context.Context) error {
	if m.repo == nil {
		return fmt.Errorf("repository not initialized")
	}
	return m.repo.Ping(ctx)
}

func (m *Manager) Shutdown(ctx context.Context) error {
	if m.repo == nil {
		return nil
	}
	m.logger.Info("closing repository layer")
	return m.repo.Close()
}
