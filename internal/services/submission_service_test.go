package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/classcode-io/activity-service/internal/events"
	"github.com/classcode-io/activity-service/internal/models"
	"github.com/classcode-io/activity-service/internal/repositories"
	"github.com/classcode-io/activity-service/internal/validator"
)

func TestFinalizeAppliesStoredRunDeductions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	activity := env.seedActivity(t, func(a *models.Activity) {
		a.CheckCodeRestriction = true
		a.MaxCheckCodeRuns = 5
		a.CheckCodeDeduction = 10
	})
	item := env.seedItem(t, activity.ID, 100)
	env.seedStudent(t, 1, activity.ClassID, "Cruz", "Ana")
	owner := models.OwnerRef{Kind: models.OwnerStudent, ID: 1}

	// Three check-code runs before submitting: two extra runs at 10% each.
	for i := 0; i < 3; i++ {
		_, err := env.manager.Progress().RunCheckCode(ctx, activity.ID, owner, &RunCheckCodeRequest{ItemID: item.ID})
		require.NoError(t, err)
	}

	resp, err := env.manager.Submission().Finalize(ctx, activity.ID, 1, &FinalizeSubmissionRequest{
		Submissions: []ItemSubmissionRequest{
			{ItemID: item.ID, TestCaseScore: 100, ItemTimeSpent: 240},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 1, resp.AttemptNo)
	require.Equal(t, 80.0, resp.FinalScore)
	require.Equal(t, 240, resp.FinalTimeSpent)
	require.Equal(t, 1, resp.Rank)
	require.Equal(t, 2, resp.AttemptsLeft)

	// The draft is consumed by finalization.
	_, err = env.manager.Progress().GetDraft(ctx, activity.ID, owner)
	require.ErrorIs(t, err, ErrDraftNotFound)

	// The stored submission carries the recomputed score and run count.
	subs, err := env.repo.Submission().ListByStudent(ctx, nil, activity.ID, 1)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.Equal(t, 80.0, subs[0].Score)
	require.Equal(t, 3, subs[0].CheckCodeRuns)

	finalized := env.publisher.PublishedOfType(events.EventSubmissionFinalized)
	require.Len(t, finalized, 1)
	require.Equal(t, activity.TeacherID, finalized[0].Recipient.ID)
}

func TestFinalizeIgnoresInflatedClientScore(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	activity := env.seedActivity(t, nil)
	item := env.seedItem(t, activity.ID, 50)
	env.seedStudent(t, 1, activity.ClassID, "Cruz", "Ana")

	resp, err := env.manager.Submission().Finalize(ctx, activity.ID, 1, &FinalizeSubmissionRequest{
		Submissions: []ItemSubmissionRequest{
			{ItemID: item.ID, TestCaseScore: 9000, ItemTimeSpent: 60},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 50.0, resp.FinalScore)
}

func TestFinalizeEnforcesAttemptLimit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	activity := env.seedActivity(t, func(a *models.Activity) { a.MaxAttempts = 1 })
	item := env.seedItem(t, activity.ID, 100)
	env.seedStudent(t, 1, activity.ClassID, "Cruz", "Ana")

	req := &FinalizeSubmissionRequest{
		Submissions: []ItemSubmissionRequest{{ItemID: item.ID, TestCaseScore: 70, ItemTimeSpent: 100}},
	}
	_, err := env.manager.Submission().Finalize(ctx, activity.ID, 1, req)
	require.NoError(t, err)

	_, err = env.manager.Submission().Finalize(ctx, activity.ID, 1, req)
	require.ErrorIs(t, err, ErrAttemptLimitExceeded)

	// The failed call must not leave a phantom attempt behind.
	summary, err := env.repo.Summary().Get(ctx, nil, activity.ID, 1)
	require.NoError(t, err)
	require.Equal(t, 1, summary.AttemptsTaken)
}

func TestFinalizeRejectsUnenrolledAndClosed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	activity := env.seedActivity(t, nil)
	item := env.seedItem(t, activity.ID, 100)
	env.seedStudent(t, 1, activity.ClassID, "Cruz", "Ana")

	req := &FinalizeSubmissionRequest{
		Submissions: []ItemSubmissionRequest{{ItemID: item.ID, TestCaseScore: 50, ItemTimeSpent: 60}},
	}

	_, err := env.manager.Submission().Finalize(ctx, activity.ID, 99, req)
	require.ErrorIs(t, err, ErrNotEnrolled)

	env.clock.Advance(48 * time.Hour)
	_, err = env.manager.Submission().Finalize(ctx, activity.ID, 1, req)
	require.ErrorIs(t, err, ErrActivityNotOpen)
}

func TestFinalizeHighestScorePolicyKeepsBestAttempt(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	activity := env.seedActivity(t, func(a *models.Activity) {
		a.FinalScorePolicy = models.PolicyHighestScore
	})
	item := env.seedItem(t, activity.ID, 100)
	env.seedStudent(t, 1, activity.ClassID, "Cruz", "Ana")

	_, err := env.manager.Submission().Finalize(ctx, activity.ID, 1, &FinalizeSubmissionRequest{
		Submissions: []ItemSubmissionRequest{{ItemID: item.ID, TestCaseScore: 90, ItemTimeSpent: 200}},
	})
	require.NoError(t, err)

	// A worse second attempt must not displace the first.
	resp, err := env.manager.Submission().Finalize(ctx, activity.ID, 1, &FinalizeSubmissionRequest{
		Submissions: []ItemSubmissionRequest{{ItemID: item.ID, TestCaseScore: 70, ItemTimeSpent: 400}},
	})
	require.NoError(t, err)
	require.Equal(t, 2, resp.AttemptNo)
	require.Equal(t, 90.0, resp.FinalScore)
	require.Equal(t, 200, resp.FinalTimeSpent)
}

func TestFinalizeLastAttemptHonorsOverallTime(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	activity := env.seedActivity(t, nil) // last_attempt
	item := env.seedItem(t, activity.ID, 100)
	env.seedStudent(t, 1, activity.ClassID, "Cruz", "Ana")

	overall := 500
	resp, err := env.manager.Submission().Finalize(ctx, activity.ID, 1, &FinalizeSubmissionRequest{
		Submissions:      []ItemSubmissionRequest{{ItemID: item.ID, TestCaseScore: 60, ItemTimeSpent: 120}},
		OverallTimeSpent: &overall,
	})
	require.NoError(t, err)
	require.Equal(t, 500, resp.FinalTimeSpent)
}

func TestLeaderboardOrderingAndExclusion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	activity := env.seedActivity(t, nil)
	item := env.seedItem(t, activity.ID, 100)

	env.seedStudent(t, 1, activity.ClassID, "Reyes", "Ben")
	env.seedStudent(t, 2, activity.ClassID, "Cruz", "Ana")
	env.seedStudent(t, 3, activity.ClassID, "Lim", "Carla")

	finalize := func(studentID uint, score float64, timeSpent int) {
		t.Helper()
		_, err := env.manager.Submission().Finalize(ctx, activity.ID, studentID, &FinalizeSubmissionRequest{
			Submissions: []ItemSubmissionRequest{{ItemID: item.ID, TestCaseScore: score, ItemTimeSpent: timeSpent}},
		})
		require.NoError(t, err)
	}
	finalize(1, 80, 300)
	finalize(2, 80, 200) // same score, faster
	finalize(3, 95, 500)

	// A stale pivot for a student who left the class must not appear.
	require.NoError(t, env.repo.Summary().Create(ctx, nil, &models.StudentActivitySummary{
		ActivityID: activity.ID, StudentID: 42, AttemptsTaken: 1, FinalScore: 100,
	}))

	board, err := env.manager.Submission().Leaderboard(ctx, activity.ID)
	require.NoError(t, err)
	require.Len(t, board.Rows, 3)
	require.EqualValues(t, 3, board.Rows[0].StudentID) // 95 points
	require.EqualValues(t, 2, board.Rows[1].StudentID) // 80 points, 200s
	require.EqualValues(t, 1, board.Rows[2].StudentID) // 80 points, 300s
	require.Equal(t, []int{1, 2, 3}, []int{board.Rows[0].Rank, board.Rows[1].Rank, board.Rows[2].Rank})
}

func TestRecomputeFinalResultsIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	activity := env.seedActivity(t, func(a *models.Activity) {
		a.FinalScorePolicy = models.PolicyHighestScore
	})
	item := env.seedItem(t, activity.ID, 100)
	env.seedStudent(t, 1, activity.ClassID, "Cruz", "Ana")
	env.seedStudent(t, 2, activity.ClassID, "Reyes", "Ben")

	for _, f := range []struct {
		student uint
		score   float64
		time    int
	}{
		{1, 90, 200}, {2, 70, 100},
	} {
		_, err := env.manager.Submission().Finalize(ctx, activity.ID, f.student, &FinalizeSubmissionRequest{
			Submissions: []ItemSubmissionRequest{{ItemID: item.ID, TestCaseScore: f.score, ItemTimeSpent: f.time}},
		})
		require.NoError(t, err)
	}

	snapshot := func() []*models.StudentActivitySummary {
		summaries, err := env.repo.Summary().ListByActivity(ctx, nil, activity.ID)
		require.NoError(t, err)
		return summaries
	}

	require.NoError(t, env.manager.Submission().RecomputeFinalResults(ctx, activity.ID, activity.TeacherID))
	first := snapshot()
	require.NoError(t, env.manager.Submission().RecomputeFinalResults(ctx, activity.ID, activity.TeacherID))
	second := snapshot()

	require.Equal(t, len(first), len(second))
	for i := range first {
		require.Equal(t, first[i].FinalScore, second[i].FinalScore)
		require.Equal(t, first[i].FinalTimeSpent, second[i].FinalTimeSpent)
		require.Equal(t, first[i].Rank, second[i].Rank)
	}
}

func TestRecomputeRequiresOwningTeacher(t *testing.T) {
	env := newTestEnv(t)
	activity := env.seedActivity(t, nil)

	err := env.manager.Submission().RecomputeFinalResults(context.Background(), activity.ID, 999)
	var permErr *PermissionError
	require.ErrorAs(t, err, &permErr)
}

func TestAttemptHistoryListsAllAttempts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	activity := env.seedActivity(t, nil)
	item := env.seedItem(t, activity.ID, 100)
	env.seedStudent(t, 1, activity.ClassID, "Cruz", "Ana")

	for _, score := range []float64{40, 75} {
		_, err := env.manager.Submission().Finalize(ctx, activity.ID, 1, &FinalizeSubmissionRequest{
			Submissions: []ItemSubmissionRequest{{ItemID: item.ID, TestCaseScore: score, ItemTimeSpent: 100}},
		})
		require.NoError(t, err)
	}

	history, err := env.manager.Submission().AttemptHistory(ctx, activity.ID, 1)
	require.NoError(t, err)
	require.Len(t, history.Attempts, 2)
	require.Equal(t, 1, history.Attempts[0].AttemptNo)
	require.Equal(t, 40.0, history.Attempts[0].TotalScore)
	require.Equal(t, 2, history.Attempts[1].AttemptNo)
	require.Equal(t, 75.0, history.FinalScore)
	require.Equal(t, 1, history.Rank)
}

func TestExportLeaderboardProducesWorkbook(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	activity := env.seedActivity(t, nil)
	item := env.seedItem(t, activity.ID, 100)
	env.seedStudent(t, 1, activity.ClassID, "Cruz", "Ana")

	_, err := env.manager.Submission().Finalize(ctx, activity.ID, 1, &FinalizeSubmissionRequest{
		Submissions: []ItemSubmissionRequest{{ItemID: item.ID, TestCaseScore: 88, ItemTimeSpent: 90}},
	})
	require.NoError(t, err)

	data, filename, err := env.manager.Submission().ExportLeaderboard(ctx, activity.ID, activity.TeacherID)
	require.NoError(t, err)
	require.NotEmpty(t, data)
	require.Contains(t, filename, ".xlsx")

	_, _, err = env.manager.Submission().ExportLeaderboard(ctx, activity.ID, 999)
	var permErr *PermissionError
	require.ErrorAs(t, err, &permErr)
}

func TestStudentsOnlySeeOwnSubmissions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	activity := env.seedActivity(t, nil)
	item := env.seedItem(t, activity.ID, 100)
	env.seedStudent(t, 1, activity.ClassID, "Cruz", "Ana")
	env.seedStudent(t, 2, activity.ClassID, "Reyes", "Ben")

	for _, studentID := range []uint{1, 2} {
		_, err := env.manager.Submission().Finalize(ctx, activity.ID, studentID, &FinalizeSubmissionRequest{
			Submissions: []ItemSubmissionRequest{{ItemID: item.ID, TestCaseScore: 50, ItemTimeSpent: 60}},
		})
		require.NoError(t, err)
	}

	asStudent, err := env.manager.Submission().ListSubmissions(ctx, activity.ID, 1, repositories.SubmissionFilters{})
	require.NoError(t, err)
	require.EqualValues(t, 1, asStudent.Total)
	require.EqualValues(t, 1, asStudent.Submissions[0].StudentID)

	asTeacher, err := env.manager.Submission().ListSubmissions(ctx, activity.ID, activity.TeacherID, repositories.SubmissionFilters{})
	require.NoError(t, err)
	require.EqualValues(t, 2, asTeacher.Total)
}

// staleReadRepo simulates the window where two first attempts race: the
// locked read sees no pivot row even though another transaction just
// committed one.
type staleReadRepo struct {
	repositories.Repository
}

func (r *staleReadRepo) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return r.Repository.WithTransaction(ctx, func(tx repositories.Repository) error {
		return fn(&staleReadRepo{tx})
	})
}

func (r *staleReadRepo) Summary() repositories.SummaryRepository {
	return &staleReadSummaries{r.Repository.Summary()}
}

type staleReadSummaries struct {
	repositories.SummaryRepository
}

func (s *staleReadSummaries) GetForUpdate(ctx context.Context, tx *gorm.DB, activityID, studentID uint) (*models.StudentActivitySummary, error) {
	return nil, gorm.ErrRecordNotFound
}

func TestFinalizeConcurrentFirstAttemptsConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	activity := env.seedActivity(t, nil)
	item := env.seedItem(t, activity.ID, 100)
	env.seedStudent(t, 1, activity.ClassID, "Cruz", "Ana")

	// The winning transaction already committed its pivot row.
	require.NoError(t, env.repo.Summary().Create(ctx, nil, &models.StudentActivitySummary{
		ActivityID: activity.ID, StudentID: 1,
	}))

	slogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewSubmissionService(&staleReadRepo{env.repo}, nil, env.publisher, slogger, validator.New(), env.clock)

	_, err := svc.Finalize(ctx, activity.ID, 1, &FinalizeSubmissionRequest{
		Submissions: []ItemSubmissionRequest{{ItemID: item.ID, TestCaseScore: 50, ItemTimeSpent: 60}},
	})
	require.ErrorIs(t, err, ErrConcurrencyConflict)

	// The loser burned no attempt and stored no rows.
	subs, err := env.repo.Submission().ListByStudent(ctx, nil, activity.ID, 1)
	require.NoError(t, err)
	require.Empty(t, subs)
}
