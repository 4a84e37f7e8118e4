package vision

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/flowguard/storage"
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

func newTestCache(t *testing.T) (*Cache, *storage.MemoryRepository, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	repo := storage.NewMemoryRepository(storage.WithClock(clock.Now))
	return NewCache(repo, nil, WithCacheClock(clock.Now)), repo, clock
}

func cacheKey() types.VisionCacheKey {
	return types.VisionCacheKey{
		ScreenshotHash: HashScreenshot([]byte("image")),
		Assertion:      "button visible",
		Model:          "claude-test",
		PromptVersion:  PromptVersion,
	}
}

func TestCache_MissThenHit(t *testing.T) {
	c, _, clock := newTestCache(t)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, cacheKey())
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(ctx, cacheKey(), types.NewPassResult(92, "ok"), 0.01))

	entry, ok, err := c.Get(ctx, cacheKey())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.AnalysisPass, entry.Verdict)
	assert.Equal(t, int64(1), entry.HitCount)
	assert.Equal(t, clock.Now(), entry.CreatedAt)
	assert.Equal(t, clock.Now().Add(7*24*time.Hour), entry.ExpiresAt)
}

func TestCache_ExpiresAfterSevenDays(t *testing.T) {
	c, _, clock := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, c.Put(ctx, cacheKey(), types.NewFailResult(20, "no", nil, nil), 0))

	clock.Advance(7 * 24 * time.Hour)
	_, ok, err := c.Get(ctx, cacheKey())
	require.NoError(t, err)
	assert.True(t, ok, "entry is readable at exactly expiresAt")

	clock.Advance(time.Millisecond)
	_, ok, err = c.Get(ctx, cacheKey())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_ErrorResultsAreNotCacheable(t *testing.T) {
	c, repo, _ := newTestCache(t)
	err := c.Put(context.Background(), cacheKey(), types.NewErrorResult("boom"), 0)
	assert.ErrorIs(t, err, ErrNotCacheable)
	assert.Equal(t, 0, repo.EntryCount())
}

type failingStore struct{}

func (failingStore) GetCachedVisionResult(context.Context, types.VisionCacheKey) (*types.VisionCacheEntry, error) {
	return nil, errors.New("connection refused")
}

func (failingStore) CacheVisionResult(context.Context, *types.VisionCacheEntry) error {
	return errors.New("connection refused")
}

func TestCache_StoreErrorsAreWrapped(t *testing.T) {
	c := NewCache(failingStore{}, nil)
	_, ok, err := c.Get(context.Background(), cacheKey())
	assert.False(t, ok)
	assert.ErrorContains(t, err, "vision cache get")

	err = c.Put(context.Background(), cacheKey(), types.NewPassResult(1, ""), 0)
	assert.ErrorContains(t, err, "vision cache put")
}

func TestHashScreenshot(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", HashScreenshot(nil))
	assert.NotEqual(t, HashScreenshot([]byte("a")), HashScreenshot([]byte("b")))
}
