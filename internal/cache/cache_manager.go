package cache

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// CacheManager groups the per-domain cache helpers.
type CacheManager struct {
	client *redis.Client

	Activity    *CacheHelper
	Leaderboard *CacheHelper
	Draft       *CacheHelper
}

func NewCacheManager(client *redis.Client) *CacheManager {
	return &CacheManager{
		client:      client,
		Activity:    NewCacheHelper(client, ActivityCacheConfig.Prefix),
		Leaderboard: NewCacheHelper(client, LeaderboardCacheConfig.Prefix),
		Draft:       NewCacheHelper(client, DraftCacheConfig.Prefix),
	}
}

func (cm *CacheManager) HealthCheck(ctx context.Context) error {
	if cm.client == nil {
		return ErrCacheNotAvailable
	}
	return cm.client.Ping(ctx).Err()
}

// InvalidateActivity drops cached activity metadata and any leaderboard
// derived from it. Called after activity edits and point recalculation.
func (cm *CacheManager) InvalidateActivity(ctx context.Context, activityID uint) {
	safeDelete(ctx, cm.Activity, fmt.Sprintf("id:%d", activityID))
	cm.InvalidateLeaderboard(ctx, activityID)
}

// InvalidateLeaderboard drops the cached ordering for one activity. Called
// after every finalize and recompute.
func (cm *CacheManager) InvalidateLeaderboard(ctx context.Context, activityID uint) {
	safeDelete(ctx, cm.Leaderboard, fmt.Sprintf("activity:%d", activityID))
}

func safeDelete(ctx context.Context, helper *CacheHelper, keys ...string) {
	if err := helper.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "Failed to delete cache keys",
			"error", err,
			"keys", keys)
	}
}
