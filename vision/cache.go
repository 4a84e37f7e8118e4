package vision

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/flowguard/storage"
	"github.com/BaSui01/flowguard/types"
)

// ErrNotCacheable 只有 pass/fail 结论可以缓存
var ErrNotCacheable = errors.New("only pass and fail verdicts are cacheable")

// Cache 视觉结论缓存，7 天内同一键最多一次外部调用
type Cache struct {
	store  storage.VisionCacheStore
	now    func() time.Time
	logger *zap.Logger
}

// CacheOption 缓存选项
type CacheOption func(*Cache)

// WithCacheClock 替换时间源
func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// NewCache 创建缓存
func NewCache(store storage.VisionCacheStore, logger *zap.Logger, opts ...CacheOption) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Cache{
		store:  store,
		now:    time.Now,
		logger: logger.With(zap.String("component", "vision_cache")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get 查找未过期条目并原子地增加命中计数。未命中时返回 (nil, false, nil)。
func (c *Cache) Get(ctx context.Context, key types.VisionCacheKey) (*types.VisionCacheEntry, bool, error) {
	entry, err := c.store.GetCachedVisionResult(ctx, key)
	if err != nil {
		if storage.IsCacheMiss(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("vision cache get: %w", err)
	}
	return entry, true, nil
}

// Put 插入新条目：CreatedAt=now，ExpiresAt=now+7d，HitCount=0
func (c *Cache) Put(ctx context.Context, key types.VisionCacheKey, result types.AnalysisResult, cost float64) error {
	if result.Status != types.AnalysisPass && result.Status != types.AnalysisFail {
		return ErrNotCacheable
	}
	entry := types.NewVisionCacheEntry(key, result, cost, c.now())
	if err := c.store.CacheVisionResult(ctx, entry); err != nil {
		return fmt.Errorf("vision cache put: %w", err)
	}
	c.logger.Debug("视觉结论已缓存",
		zap.String("hash", key.ScreenshotHash),
		zap.String("verdict", string(result.Status)))
	return nil
}

// HashScreenshot 返回截图原始字节的 SHA-256 十六进制摘要
func HashScreenshot(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
