package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/BaSui01/flowguard/types"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testKey() types.VisionCacheKey {
	return types.VisionCacheKey{
		ScreenshotHash: "abc123",
		Assertion:      "login form is visible",
		Model:          "claude-test",
		PromptVersion:  "v1",
	}
}

func TestMemoryRepository_MissOnEmpty(t *testing.T) {
	repo := NewMemoryRepository()
	_, err := repo.GetCachedVisionResult(context.Background(), testKey())
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.True(t, IsCacheMiss(err))
}

func TestMemoryRepository_HitIncrementsCount(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	repo := NewMemoryRepository(WithClock(clock.Now))
	ctx := context.Background()

	entry := types.NewVisionCacheEntry(testKey(), types.NewPassResult(92, "ok"), 0.01, clock.Now())
	require.NoError(t, repo.CacheVisionResult(ctx, entry))

	got, err := repo.GetCachedVisionResult(ctx, testKey())
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.HitCount)
	assert.Equal(t, types.AnalysisPass, got.Verdict)

	got, err = repo.GetCachedVisionResult(ctx, testKey())
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.HitCount)

	// 调用方持有的条目不受影响
	assert.Equal(t, int64(0), entry.HitCount)
}

func TestMemoryRepository_ExpiredIsMiss(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	repo := NewMemoryRepository(WithClock(clock.Now))
	ctx := context.Background()

	entry := types.NewVisionCacheEntry(testKey(), types.NewPassResult(80, "ok"), 0, clock.Now())
	require.NoError(t, repo.CacheVisionResult(ctx, entry))

	clock.Advance(types.VisionCacheTTL)
	_, err := repo.GetCachedVisionResult(ctx, testKey())
	require.NoError(t, err, "entry is readable exactly at expiry")

	clock.Advance(time.Millisecond)
	_, err = repo.GetCachedVisionResult(ctx, testKey())
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Equal(t, 1, repo.EntryCount())
}

func TestMemoryRepository_NewestEntryWins(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	repo := NewMemoryRepository(WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, repo.CacheVisionResult(ctx,
		types.NewVisionCacheEntry(testKey(), types.NewPassResult(70, "old"), 0, clock.Now())))
	clock.Advance(time.Minute)
	require.NoError(t, repo.CacheVisionResult(ctx,
		types.NewVisionCacheEntry(testKey(), types.NewFailResult(40, "new", []string{"x"}, nil), 0, clock.Now())))

	got, err := repo.GetCachedVisionResult(ctx, testKey())
	require.NoError(t, err)
	assert.Equal(t, "new", got.Reasoning)
	assert.Equal(t, types.AnalysisFail, got.Verdict)
	assert.Equal(t, 2, repo.EntryCount())
}

func TestMemoryRepository_KeyFieldsAllMatter(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	require.NoError(t, repo.CacheVisionResult(ctx,
		types.NewVisionCacheEntry(testKey(), types.NewPassResult(90, "ok"), 0, time.Now())))

	variants := []func(*types.VisionCacheKey){
		func(k *types.VisionCacheKey) { k.ScreenshotHash = "other" },
		func(k *types.VisionCacheKey) { k.Assertion = "other" },
		func(k *types.VisionCacheKey) { k.Model = "other" },
		func(k *types.VisionCacheKey) { k.PromptVersion = "v2" },
	}
	for _, mutate := range variants {
		k := testKey()
		mutate(&k)
		_, err := repo.GetCachedVisionResult(ctx, k)
		assert.ErrorIs(t, err, ErrCacheMiss)
	}
}

func TestMemoryRepository_ConcurrentHitsAreCounted(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	require.NoError(t, repo.CacheVisionResult(ctx,
		types.NewVisionCacheEntry(testKey(), types.NewPassResult(90, "ok"), 0, time.Now())))

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = repo.GetCachedVisionResult(ctx, testKey())
		}()
	}
	wg.Wait()

	got, err := repo.GetCachedVisionResult(ctx, testKey())
	require.NoError(t, err)
	assert.Equal(t, int64(workers+1), got.HitCount)
}

func TestMemoryRepository_SaveTestResult(t *testing.T) {
	repo := NewMemoryRepository()
	result := &types.FlowRunResult{
		ID:       "run-1",
		FlowName: "login",
		Verdict:  types.VerdictPass,
		Steps:    []types.StepResult{{StepIndex: 0, Action: types.ActionNavigate, Success: true}},
	}
	require.NoError(t, repo.SaveTestResult(context.Background(), result))

	saved := repo.Results()
	require.Len(t, saved, 1)
	assert.Equal(t, "run-1", saved[0].ID)
	assert.Len(t, saved[0].Steps, 1)
}

func TestMemoryRepository_CanceledContext(t *testing.T) {
	repo := NewMemoryRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, repo.CacheVisionResult(ctx, &types.VisionCacheEntry{}))
	_, err := repo.GetCachedVisionResult(ctx, testKey())
	assert.ErrorIs(t, err, context.Canceled)
}

// 命中次数等于读取次数，与写入多少重复条目无关
func TestMemoryRepository_HitCountProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
		repo := NewMemoryRepository(WithClock(clock.Now))
		ctx := context.Background()

		inserts := rapid.IntRange(1, 5).Draw(rt, "inserts")
		for i := 0; i < inserts; i++ {
			e := types.NewVisionCacheEntry(testKey(), types.NewPassResult(50, "ok"), 0, clock.Now())
			if err := repo.CacheVisionResult(ctx, e); err != nil {
				rt.Fatal(err)
			}
			clock.Advance(time.Second)
		}

		reads := rapid.IntRange(1, 20).Draw(rt, "reads")
		var last *types.VisionCacheEntry
		for i := 0; i < reads; i++ {
			got, err := repo.GetCachedVisionResult(ctx, testKey())
			if err != nil {
				rt.Fatal(err)
			}
			last = got
		}
		if last.HitCount != int64(reads) {
			rt.Fatalf("hit count %d, want %d", last.HitCount, reads)
		}
	})
}
