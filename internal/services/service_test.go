package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/classcode-io/activity-service/internal/events"
	"github.com/classcode-io/activity-service/internal/models"
	"github.com/classcode-io/activity-service/internal/repositories"
	"github.com/classcode-io/activity-service/internal/repositories/postgres"
	"github.com/classcode-io/activity-service/internal/utils"
	"github.com/classcode-io/activity-service/internal/validator"
	"github.com/classcode-io/activity-service/pkg"
)

type testEnv struct {
	db        *gorm.DB
	repo      repositories.Repository
	publisher *events.MockEventPublisher
	clock     *utils.FakeClock
	manager   ServiceManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, pkg.AutoMigrate(db))

	slogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := postgres.NewRepository(postgres.RepositoryConfig{DB: db})
	publisher := events.NewMockEventPublisher(slogger)
	clock := utils.NewFakeClock(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))

	manager := NewServiceManager(ServiceManagerConfig{
		Repo:           repo,
		EventPublisher: publisher,
		Logger:         slogger,
		Validator:      validator.New(),
		Clock:          clock,
	})
	return &testEnv{db: db, repo: repo, publisher: publisher, clock: clock, manager: manager}
}

func (e *testEnv) seedStudent(t *testing.T, id uint, classID uint, lastname, firstname string) {
	t.Helper()
	require.NoError(t, e.db.Create(&models.User{
		ID: id, Role: models.RoleStudent, Firstname: firstname, Lastname: lastname,
	}).Error)
	require.NoError(t, e.db.Create(&models.ClassEnrollment{
		ClassID: classID, StudentID: id,
	}).Error)
}

func (e *testEnv) seedActivity(t *testing.T, mutate func(*models.Activity)) *models.Activity {
	t.Helper()
	now := e.clock.Now()
	activity := &models.Activity{
		ClassID:          10,
		TeacherID:        100,
		Title:            "Recursion set",
		OpenDate:         now.Add(-time.Hour),
		CloseDate:        now.Add(24 * time.Hour),
		Duration:         60,
		MaxAttempts:      3,
		FinalScorePolicy: models.PolicyLastAttempt,
	}
	if mutate != nil {
		mutate(activity)
	}
	require.NoError(t, e.repo.Activity().Create(context.Background(), nil, activity))
	return activity
}

func (e *testEnv) seedItem(t *testing.T, activityID uint, points float64) *models.Item {
	t.Helper()
	ctx := context.Background()
	teacherID := uint(100)
	item := &models.Item{
		TeacherID: &teacherID, Name: "Two Sum", Desc: "pairs", Difficulty: "Beginner", Points: points,
	}
	require.NoError(t, e.repo.Item().Create(ctx, nil, item))
	require.NoError(t, e.repo.Activity().ReplaceItems(ctx, nil, activityID, []models.ActivityItem{
		{ItemID: item.ID, Points: points},
	}))
	require.NoError(t, e.repo.Activity().RecalculateMaxPoints(ctx, nil, activityID))
	return item
}
