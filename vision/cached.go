package vision

import (
	"context"
	"encoding/base64"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/BaSui01/flowguard/internal/metrics"
	"github.com/BaSui01/flowguard/types"
)

const cacheType = "vision"

// CachedAnalyzer 在 Analyzer 前加一层 Cache。
// 同一键的并发未命中合并为一次模型调用。
type CachedAnalyzer struct {
	analyzer      *Analyzer
	cache         *Cache
	flights       singleflight.Group
	promptVersion string
	collector     *metrics.Collector
	logger        *zap.Logger
}

// NewCachedAnalyzer 创建带缓存的分析器。promptVersion 为空时使用 PromptVersion。
func NewCachedAnalyzer(analyzer *Analyzer, cache *Cache, promptVersion string, collector *metrics.Collector, logger *zap.Logger) *CachedAnalyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if promptVersion == "" {
		promptVersion = PromptVersion
	}
	return &CachedAnalyzer{
		analyzer:      analyzer,
		cache:         cache,
		promptVersion: promptVersion,
		collector:     collector,
		logger:        logger.With(zap.String("component", "cached_vision_analyzer")),
	}
}

// Key 计算缓存键。没有断言时以意图代替，避免不同意图共享结论。
func (c *CachedAnalyzer) Key(imageBase64, intent, assertion string) (types.VisionCacheKey, error) {
	raw, err := base64.StdEncoding.DecodeString(imageBase64)
	if err != nil {
		return types.VisionCacheKey{}, err
	}
	subject := assertion
	if subject == "" {
		subject = "intent:" + intent
	}
	return types.VisionCacheKey{
		ScreenshotHash: HashScreenshot(raw),
		Assertion:      subject,
		Model:          c.analyzer.ModelName(),
		PromptVersion:  c.promptVersion,
	}, nil
}

// AnalyzeScreenshot 实现 ScreenshotAnalyzer。缓存读写失败只记录日志。
func (c *CachedAnalyzer) AnalyzeScreenshot(ctx context.Context, imageBase64, intent, assertion string) types.AnalysisResult {
	key, err := c.Key(imageBase64, intent, assertion)
	if err != nil {
		return types.NewErrorResult("invalid screenshot encoding: " + err.Error())
	}

	if entry, ok, err := c.cache.Get(ctx, key); err != nil {
		c.logger.Warn("读取视觉缓存失败", zap.Error(err))
	} else if ok {
		c.collector.RecordCacheHit(cacheType)
		c.logger.Debug("视觉缓存命中",
			zap.String("hash", key.ScreenshotHash),
			zap.Int64("hit_count", entry.HitCount))
		return entry.AnalysisResult()
	}
	c.collector.RecordCacheMiss(cacheType)

	v, _, _ := c.flights.Do(flightKey(key), func() (any, error) {
		// 上一轮 flight 可能已在本次 Get 之后写入
		if entry, ok, err := c.cache.Get(ctx, key); err == nil && ok {
			return entry.AnalysisResult(), nil
		}
		result := c.analyzer.AnalyzeScreenshot(ctx, imageBase64, intent, assertion)
		if result.IsError() {
			return result, nil
		}
		if err := c.cache.Put(ctx, key, result, c.analyzer.Cost(result.Usage)); err != nil {
			c.logger.Warn("写入视觉缓存失败", zap.Error(err))
		}
		return result, nil
	})
	return v.(types.AnalysisResult)
}

func flightKey(key types.VisionCacheKey) string {
	return strings.Join([]string{key.ScreenshotHash, key.Assertion, key.Model, key.PromptVersion}, "\x00")
}

// AnalyzeScreenshots 并发分析，语义同 Analyzer.AnalyzeScreenshots
func (c *CachedAnalyzer) AnalyzeScreenshots(ctx context.Context, items []ScreenshotItem) []types.AnalysisResult {
	return analyzeAll(ctx, c, items)
}
