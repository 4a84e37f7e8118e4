package storage

import (
	"context"
	"errors"

	"github.com/BaSui01/flowguard/types"
)

// ErrCacheMiss is returned when no readable entry exists for a key.
var ErrCacheMiss = errors.New("vision cache miss")

// IsCacheMiss reports whether err is a cache miss.
func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

// VisionCacheStore persists vision verdicts.
type VisionCacheStore interface {
	// GetCachedVisionResult returns the newest non-expired entry for key and
	// increments its hit count in the same atomic operation. The returned
	// entry reflects the incremented count. Missing or expired entries yield
	// ErrCacheMiss.
	GetCachedVisionResult(ctx context.Context, key types.VisionCacheKey) (*types.VisionCacheEntry, error)

	// CacheVisionResult inserts entry. Existing entries for the same key are
	// left untouched.
	CacheVisionResult(ctx context.Context, entry *types.VisionCacheEntry) error
}

// ResultSaver persists flow run results.
type ResultSaver interface {
	SaveTestResult(ctx context.Context, result *types.FlowRunResult) error
}

// Repository is the full persistence contract the engine consumes.
type Repository interface {
	VisionCacheStore
	ResultSaver
}
