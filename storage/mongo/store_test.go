package mongo

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/BaSui01/flowguard/storage"
	"github.com/BaSui01/flowguard/types"
)

func TestEnsureIndexes(t *testing.T) {
	entries := newFakeEntriesCollection()
	results := newFakeResultsCollection()
	require.NoError(t, ensureIndexes(context.Background(), entries, results))
	require.Equal(t, 2, entries.indexCreated)
	require.Equal(t, 1, results.indexCreated)
	require.True(t, entries.ttlIndex)
}

func TestCacheRoundTripIncrementsHits(t *testing.T) {
	store, entries, _ := mustNewTestStore()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	entry := types.NewVisionCacheEntry(testKey(), types.NewFailResult(35, "button missing", []string{"no submit"}, []string{"add one"}), 0.02, now)
	entry.Tokens = types.TokenUsage{Input: 1200, Output: 80}
	require.NoError(t, store.CacheVisionResult(context.Background(), entry))
	require.Len(t, entries.docs, 1)

	got, err := store.GetCachedVisionResult(context.Background(), testKey())
	require.NoError(t, err)
	require.Equal(t, int64(1), got.HitCount)
	require.Equal(t, types.AnalysisFail, got.Verdict)
	require.Equal(t, []string{"no submit"}, got.Issues)
	require.Equal(t, int64(1200), got.Tokens.Input)
	require.True(t, got.ExpiresAt.Equal(now.Add(types.VisionCacheTTL)))

	got, err = store.GetCachedVisionResult(context.Background(), testKey())
	require.NoError(t, err)
	require.Equal(t, int64(2), got.HitCount)
}

func TestExpiredEntryIsMiss(t *testing.T) {
	store, _, _ := mustNewTestStore()
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	entry := types.NewVisionCacheEntry(testKey(), types.NewPassResult(90, "ok"), 0, created)
	require.NoError(t, store.CacheVisionResult(context.Background(), entry))

	store.now = func() time.Time { return created.Add(types.VisionCacheTTL + time.Second) }
	_, err := store.GetCachedVisionResult(context.Background(), testKey())
	require.ErrorIs(t, err, storage.ErrCacheMiss)
}

func TestNewestEntryWins(t *testing.T) {
	store, _, _ := mustNewTestStore()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base.Add(time.Hour) }

	older := types.NewVisionCacheEntry(testKey(), types.NewPassResult(60, "older"), 0, base)
	newer := types.NewVisionCacheEntry(testKey(), types.NewPassResult(95, "newer"), 0, base.Add(time.Minute))
	require.NoError(t, store.CacheVisionResult(context.Background(), newer))
	require.NoError(t, store.CacheVisionResult(context.Background(), older))

	got, err := store.GetCachedVisionResult(context.Background(), testKey())
	require.NoError(t, err)
	require.Equal(t, "newer", got.Reasoning)
}

func TestFindErrorIsWrapped(t *testing.T) {
	store, entries, _ := mustNewTestStore()
	entries.findErr = errors.New("connection reset")

	_, err := store.GetCachedVisionResult(context.Background(), testKey())
	require.Error(t, err)
	require.False(t, storage.IsCacheMiss(err))
	require.Contains(t, err.Error(), "connection reset")
}

func TestSaveTestResult(t *testing.T) {
	store, _, results := mustNewTestStore()
	analysis := types.NewPassResult(88, "looks right")
	run := &types.FlowRunResult{
		ID:       "run-42",
		FlowName: "checkout",
		Intent:   "user can pay",
		URL:      "https://shop.example",
		Viewport: types.DefaultViewport(),
		Verdict:  types.VerdictPass,
		Steps: []types.StepResult{
			{StepIndex: 0, Action: types.ActionNavigate, Success: true, DurationMs: 120},
			{StepIndex: 1, Action: types.ActionScreenshot, Success: true, Analysis: &analysis, ScreenshotBase64: "aGVsbG8="},
		},
	}
	require.NoError(t, store.SaveTestResult(context.Background(), run))
	require.Len(t, results.docs, 1)

	doc := results.docs[0]
	require.Equal(t, "run-42", doc.RunID)
	require.Len(t, doc.Steps, 2)
	require.NotNil(t, doc.Steps[1].Analysis)
}

func TestCloseWithoutClient(t *testing.T) {
	store, _, _ := mustNewTestStore()
	require.NoError(t, store.Ping(context.Background()))
	require.NoError(t, store.Close(context.Background()))
}

func testKey() types.VisionCacheKey {
	return types.VisionCacheKey{
		ScreenshotHash: "f00d",
		Assertion:      "cart total is shown",
		Model:          "claude-test",
		PromptVersion:  "v1",
	}
}

func mustNewTestStore() (*Store, *fakeEntriesCollection, *fakeResultsCollection) {
	entries := newFakeEntriesCollection()
	results := newFakeResultsCollection()
	return newStoreWithCollections(entries, results, time.Second, nil), entries, results
}

type fakeEntriesCollection struct {
	mu           sync.Mutex
	docs         []entryDocument
	indexCreated int
	ttlIndex     bool
	findErr      error
}

func newFakeEntriesCollection() *fakeEntriesCollection {
	return &fakeEntriesCollection{}
}

func (c *fakeEntriesCollection) FindOneAndUpdate(ctx context.Context, filter any, update any,
	opts ...options.Lister[options.FindOneAndUpdateOptions]) singleResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.findErr != nil {
		return fakeSingleResult{err: c.findErr}
	}
	f := filter.(bson.M)
	minExpiry := f["expires_at"].(bson.M)["$gte"].(time.Time)

	best := -1
	for i, doc := range c.docs {
		if doc.ScreenshotHash != f["screenshot_hash"] || doc.Assertion != f["assertion"] ||
			doc.Model != f["model"] || doc.PromptVersion != f["prompt_version"] {
			continue
		}
		if doc.ExpiresAt.Before(minExpiry) {
			continue
		}
		if best < 0 || doc.CreatedAt.After(c.docs[best].CreatedAt) {
			best = i
		}
	}
	if best < 0 {
		return fakeSingleResult{err: mongodriver.ErrNoDocuments}
	}
	inc := update.(bson.M)["$inc"].(bson.M)["hit_count"].(int)
	c.docs[best].HitCount += int64(inc)
	doc := c.docs[best]
	return fakeSingleResult{doc: &doc}
}

func (c *fakeEntriesCollection) InsertOne(ctx context.Context, document any,
	opts ...options.Lister[options.InsertOneOptions]) (*mongodriver.InsertOneResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs = append(c.docs, document.(entryDocument))
	return &mongodriver.InsertOneResult{InsertedID: len(c.docs)}, nil
}

func (c *fakeEntriesCollection) Indexes() indexView {
	return fakeIndexView{parent: &c.indexCreated, ttl: &c.ttlIndex}
}

type fakeResultsCollection struct {
	mu           sync.Mutex
	docs         []resultDocument
	indexCreated int
}

func newFakeResultsCollection() *fakeResultsCollection {
	return &fakeResultsCollection{}
}

func (c *fakeResultsCollection) FindOneAndUpdate(ctx context.Context, filter any, update any,
	opts ...options.Lister[options.FindOneAndUpdateOptions]) singleResult {
	return fakeSingleResult{err: mongodriver.ErrNoDocuments}
}

func (c *fakeResultsCollection) InsertOne(ctx context.Context, document any,
	opts ...options.Lister[options.InsertOneOptions]) (*mongodriver.InsertOneResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs = append(c.docs, document.(resultDocument))
	return &mongodriver.InsertOneResult{InsertedID: len(c.docs)}, nil
}

func (c *fakeResultsCollection) Indexes() indexView {
	return fakeIndexView{parent: &c.indexCreated}
}

type fakeIndexView struct {
	parent *int
	ttl    *bool
}

func (v fakeIndexView) CreateOne(ctx context.Context, model mongodriver.IndexModel,
	opts ...options.Lister[options.CreateIndexesOptions]) (string, error) {
	if len(model.Keys.(bson.D)) == 0 {
		return "", errors.New("missing keys")
	}
	if model.Options != nil && v.ttl != nil {
		*v.ttl = true
	}
	*v.parent++
	return "idx", nil
}

type fakeSingleResult struct {
	doc *entryDocument
	err error
}

func (r fakeSingleResult) Decode(val any) error {
	if r.err != nil {
		return r.err
	}
	typed, ok := val.(*entryDocument)
	if !ok {
		return errors.New("unsupported target")
	}
	*typed = *r.doc
	return nil
}
