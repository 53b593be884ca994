package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/classcode-io/activity-service/internal/models"
)

func TestSaveDraftIsIdempotentPerOwner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	activity := env.seedActivity(t, nil)
	env.seedStudent(t, 1, activity.ClassID, "Cruz", "Ana")
	owner := models.OwnerRef{Kind: models.OwnerStudent, ID: 1}

	remaining := 1800
	files := `[{"name":"main.go","content":"package main"}]`
	_, err := env.manager.Progress().SaveDraft(ctx, activity.ID, owner, &SaveDraftRequest{
		DraftFiles:         &files,
		DraftTimeRemaining: &remaining,
		DraftScore:         15,
	})
	require.NoError(t, err)

	// A later autosave replaces the earlier one; there is never a second row.
	updated := 1200
	resp, err := env.manager.Progress().SaveDraft(ctx, activity.ID, owner, &SaveDraftRequest{
		DraftFiles:         &files,
		DraftTimeRemaining: &updated,
		DraftScore:         30,
	})
	require.NoError(t, err)
	require.Equal(t, 30.0, resp.DraftScore)

	var count int64
	require.NoError(t, env.db.Model(&models.ProgressDraft{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestGetDraftComputesEndTime(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	activity := env.seedActivity(t, nil)
	env.seedStudent(t, 1, activity.ClassID, "Cruz", "Ana")
	owner := models.OwnerRef{Kind: models.OwnerStudent, ID: 1}

	remaining := 600
	_, err := env.manager.Progress().SaveDraft(ctx, activity.ID, owner, &SaveDraftRequest{
		DraftTimeRemaining: &remaining,
	})
	require.NoError(t, err)

	resp, err := env.manager.Progress().GetDraft(ctx, activity.ID, owner)
	require.NoError(t, err)
	require.NotNil(t, resp.EndTime)
	require.WithinDuration(t, resp.UpdatedAt.Add(10*time.Minute), *resp.EndTime, time.Second)
}

func TestGetDraftMissingReturnsNotFound(t *testing.T) {
	env := newTestEnv(t)
	activity := env.seedActivity(t, nil)
	owner := models.OwnerRef{Kind: models.OwnerStudent, ID: 1}

	_, err := env.manager.Progress().GetDraft(context.Background(), activity.ID, owner)
	require.ErrorIs(t, err, ErrDraftNotFound)
}

func TestClearDraftAbandonsAttempt(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	activity := env.seedActivity(t, nil)
	env.seedStudent(t, 1, activity.ClassID, "Cruz", "Ana")
	owner := models.OwnerRef{Kind: models.OwnerStudent, ID: 1}

	_, err := env.manager.Progress().SaveDraft(ctx, activity.ID, owner, &SaveDraftRequest{DraftScore: 5})
	require.NoError(t, err)

	require.NoError(t, env.manager.Progress().ClearDraft(ctx, activity.ID, owner))
	require.ErrorIs(t, env.manager.Progress().ClearDraft(ctx, activity.ID, owner), ErrDraftNotFound)
}

func TestSaveDraftRejectsClosedActivityForStudents(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	activity := env.seedActivity(t, nil)
	env.seedStudent(t, 1, activity.ClassID, "Cruz", "Ana")

	env.clock.Advance(48 * time.Hour)

	student := models.OwnerRef{Kind: models.OwnerStudent, ID: 1}
	_, err := env.manager.Progress().SaveDraft(ctx, activity.ID, student, &SaveDraftRequest{})
	require.ErrorIs(t, err, ErrActivityNotOpen)

	// Teachers can keep drafting against their own activity for review.
	teacher := models.OwnerRef{Kind: models.OwnerTeacher, ID: activity.TeacherID}
	_, err = env.manager.Progress().SaveDraft(ctx, activity.ID, teacher, &SaveDraftRequest{})
	require.NoError(t, err)
}

func TestRunCheckCodeIncrementsPersistedCounter(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	activity := env.seedActivity(t, func(a *models.Activity) {
		a.CheckCodeRestriction = true
		a.MaxCheckCodeRuns = 3
		a.CheckCodeDeduction = 25
	})
	item := env.seedItem(t, activity.ID, 100)
	env.seedStudent(t, 1, activity.ClassID, "Cruz", "Ana")
	owner := models.OwnerRef{Kind: models.OwnerStudent, ID: 1}

	expected := []struct {
		runCount int
		score    float64
	}{
		{1, 100}, // first run is free
		{2, 75},
		{3, 50},
		{4, 50}, // clamped at maxRuns
	}
	for _, want := range expected {
		resp, err := env.manager.Progress().RunCheckCode(ctx, activity.ID, owner, &RunCheckCodeRequest{ItemID: item.ID})
		require.NoError(t, err)
		require.Equal(t, want.runCount, resp.RunCount)
		require.Equal(t, want.score, resp.EffectiveScore)
	}

	// Counters survive in the draft for finalize to re-apply.
	draft, err := env.repo.Progress().Get(ctx, nil, activity.ID, owner)
	require.NoError(t, err)
	require.Equal(t, 4, draft.DraftCheckCodeRuns.Data()[item.ID])
	require.Equal(t, 50.0, draft.DraftDeductedScores.Data()[item.ID])
}

func TestRunCheckCodeUnknownItem(t *testing.T) {
	env := newTestEnv(t)
	activity := env.seedActivity(t, nil)
	env.seedStudent(t, 1, activity.ClassID, "Cruz", "Ana")
	owner := models.OwnerRef{Kind: models.OwnerStudent, ID: 1}

	_, err := env.manager.Progress().RunCheckCode(context.Background(), activity.ID, owner, &RunCheckCodeRequest{ItemID: 999})
	require.ErrorIs(t, err, ErrItemNotFound)
}
