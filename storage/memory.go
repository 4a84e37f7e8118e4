package storage

import (
	"context"
	"sync"
	"time"

	"github.com/BaSui01/flowguard/types"
)

// MemoryRepository is an in-process Repository. All operations run under a
// single mutex, so the hit increment is atomic with the read.
type MemoryRepository struct {
	mu      sync.Mutex
	entries []types.VisionCacheEntry
	results []types.FlowRunResult
	now     func() time.Time
}

// MemoryOption configures a MemoryRepository.
type MemoryOption func(*MemoryRepository)

// WithClock overrides the clock used to judge expiry.
func WithClock(now func() time.Time) MemoryOption {
	return func(r *MemoryRepository) {
		r.now = now
	}
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository(opts ...MemoryOption) *MemoryRepository {
	r := &MemoryRepository{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetCachedVisionResult implements VisionCacheStore.
func (r *MemoryRepository) GetCachedVisionResult(ctx context.Context, key types.VisionCacheKey) (*types.VisionCacheEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	best := -1
	for i := range r.entries {
		e := &r.entries[i]
		if e.Key != key || e.Expired(now) {
			continue
		}
		// 同一时间戳时后插入者优先
		if best < 0 || !e.CreatedAt.Before(r.entries[best].CreatedAt) {
			best = i
		}
	}
	if best < 0 {
		return nil, ErrCacheMiss
	}

	r.entries[best].HitCount++
	out := cloneEntry(r.entries[best])
	return &out, nil
}

// CacheVisionResult implements VisionCacheStore.
func (r *MemoryRepository) CacheVisionResult(ctx context.Context, entry *types.VisionCacheEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, cloneEntry(*entry))
	return nil
}

// SaveTestResult implements ResultSaver.
func (r *MemoryRepository) SaveTestResult(ctx context.Context, result *types.FlowRunResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	saved := *result
	saved.Steps = append([]types.StepResult(nil), result.Steps...)
	r.results = append(r.results, saved)
	return nil
}

// Results returns a snapshot of saved run results in insertion order.
func (r *MemoryRepository) Results() []types.FlowRunResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.FlowRunResult(nil), r.results...)
}

// EntryCount returns the number of stored cache rows, expired ones included.
func (r *MemoryRepository) EntryCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func cloneEntry(e types.VisionCacheEntry) types.VisionCacheEntry {
	e.Issues = append([]string(nil), e.Issues...)
	e.Suggestions = append([]string(nil), e.Suggestions...)
	return e
}
