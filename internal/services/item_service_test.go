package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/classcode-io/activity-service/internal/models"
)

func TestUpdateTestCasesPropagatesToAllActivities(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := env.seedActivity(t, nil)
	second := env.seedActivity(t, func(a *models.Activity) { a.ClassID = 11 })
	item := env.seedItem(t, first.ID, 100)
	require.NoError(t, env.repo.Activity().ReplaceItems(ctx, nil, second.ID, []models.ActivityItem{
		{ItemID: item.ID, Points: 100},
	}))
	require.NoError(t, env.repo.Activity().RecalculateMaxPoints(ctx, nil, second.ID))

	updated, err := env.manager.Item().UpdateTestCases(ctx, item.ID, 100, &UpdateTestCasesRequest{
		ItemPoints: 60,
		TestCases: []TestCaseRequest{
			{ExpectedOutput: "1"},
			{ExpectedOutput: "2"},
			{ExpectedOutput: "3", IsHidden: true},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 60.0, updated.Points)
	require.Len(t, updated.TestCases, 3)
	for _, tc := range updated.TestCases {
		require.Equal(t, 20.0, tc.Points) // even redistribution
	}

	// Every referencing activity re-derives its ceiling, not just the first.
	for _, activityID := range []uint{first.ID, second.ID} {
		activity, err := env.repo.Activity().GetByIDWithItems(ctx, nil, activityID)
		require.NoError(t, err)
		require.Equal(t, 60.0, activity.MaxPoints)
		require.Equal(t, 60.0, activity.Items[0].Points)
	}
}

func TestUpdateTestCasesUsesStoredSumAfterRounding(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	activity := env.seedActivity(t, nil)
	item := env.seedItem(t, activity.ID, 100)

	// 100 / 3 rounds to 33.33 per case; the canonical total becomes 99.99.
	updated, err := env.manager.Item().UpdateTestCases(ctx, item.ID, 100, &UpdateTestCasesRequest{
		ItemPoints: 100,
		TestCases: []TestCaseRequest{
			{ExpectedOutput: "a"}, {ExpectedOutput: "b"}, {ExpectedOutput: "c"},
		},
	})
	require.NoError(t, err)
	require.InDelta(t, 99.99, updated.Points, 0.001)

	refreshed, err := env.repo.Activity().GetByID(ctx, nil, activity.ID)
	require.NoError(t, err)
	require.InDelta(t, 99.99, refreshed.MaxPoints, 0.001)
}

func TestUpdateTestCasesRequiresOwningTeacher(t *testing.T) {
	env := newTestEnv(t)
	activity := env.seedActivity(t, nil)
	item := env.seedItem(t, activity.ID, 100)

	_, err := env.manager.Item().UpdateTestCases(context.Background(), item.ID, 999, &UpdateTestCasesRequest{
		ItemPoints: 50,
		TestCases:  []TestCaseRequest{{ExpectedOutput: "x"}},
	})
	var permErr *PermissionError
	require.ErrorAs(t, err, &permErr)
}

func TestDeleteItemBlockedWhileReferenced(t *testing.T) {
	env := newTestEnv(t)
	activity := env.seedActivity(t, nil)
	item := env.seedItem(t, activity.ID, 100)

	err := env.manager.Item().Delete(context.Background(), item.ID, 100)
	var ruleErr *BusinessRuleError
	require.ErrorAs(t, err, &ruleErr)
}
