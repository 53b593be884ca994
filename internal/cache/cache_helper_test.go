package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestHelper(t *testing.T) (*CacheHelper, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewCacheHelper(client, "test:"), mr
}

func TestCacheHelperSetGet(t *testing.T) {
	helper, _ := newTestHelper(t)
	ctx := context.Background()

	type payload struct {
		Score float64 `json:"score"`
		Rank  int     `json:"rank"`
	}

	if err := helper.Set(ctx, "summary:1", payload{Score: 85.5, Rank: 2}, ActivityCacheConfig.TTL); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	var got payload
	if err := helper.Get(ctx, "summary:1", &got); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Score != 85.5 || got.Rank != 2 {
		t.Errorf("Get() = %+v", got)
	}
}

func TestCacheHelperMiss(t *testing.T) {
	helper, _ := newTestHelper(t)

	var dest map[string]any
	err := helper.Get(context.Background(), "missing", &dest)
	if !errors.Is(err, ErrCacheNotFound) {
		t.Errorf("expected ErrCacheNotFound, got %v", err)
	}
}

func TestCacheHelperNilClientDegradesGracefully(t *testing.T) {
	helper := NewCacheHelper(nil, "test:")
	ctx := context.Background()

	if err := helper.Set(ctx, "k", "v", ActivityCacheConfig.TTL); err != nil {
		t.Errorf("Set() with nil client should be a no-op, got %v", err)
	}
	var dest string
	if err := helper.Get(ctx, "k", &dest); !errors.Is(err, ErrCacheNotAvailable) {
		t.Errorf("expected ErrCacheNotAvailable, got %v", err)
	}
}

func TestCacheOrExecuteFetchesOnceThenCaches(t *testing.T) {
	helper, _ := newTestHelper(t)
	ctx := context.Background()

	calls := 0
	fetch := func() (interface{}, error) {
		calls++
		return map[string]int{"rank": 1}, nil
	}

	for i := 0; i < 3; i++ {
		var dest map[string]int
		if err := helper.CacheOrExecute(ctx, "board:9", &dest, LeaderboardCacheConfig.TTL, fetch); err != nil {
			t.Fatalf("CacheOrExecute() error = %v", err)
		}
		if dest["rank"] != 1 {
			t.Fatalf("unexpected value %+v", dest)
		}
	}
	if calls != 1 {
		t.Errorf("fetch called %d times, want 1", calls)
	}
}

func TestInvalidatePattern(t *testing.T) {
	helper, mr := newTestHelper(t)
	ctx := context.Background()

	for _, key := range []string{"activity:1", "activity:2", "other:3"} {
		if err := helper.Set(ctx, key, "x", ActivityCacheConfig.TTL); err != nil {
			t.Fatal(err)
		}
	}

	if err := helper.InvalidatePattern(ctx, "activity:*"); err != nil {
		t.Fatalf("InvalidatePattern() error = %v", err)
	}

	if mr.Exists("test:activity:1") || mr.Exists("test:activity:2") {
		t.Error("activity keys should have been invalidated")
	}
	if !mr.Exists("test:other:3") {
		t.Error("unrelated key should have survived")
	}
}
