package vision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/BaSui01/flowguard/config"
	"github.com/BaSui01/flowguard/internal/ctxkeys"
	"github.com/BaSui01/flowguard/internal/metrics"
	"github.com/BaSui01/flowguard/internal/retry"
	"github.com/BaSui01/flowguard/types"
)

// ScreenshotAnalyzer 对单张截图给出结论。实现从不返回 error。
type ScreenshotAnalyzer interface {
	AnalyzeScreenshot(ctx context.Context, imageBase64, intent, assertion string) types.AnalysisResult
}

// ScreenshotItem 批量分析的一项
type ScreenshotItem struct {
	ImageBase64 string
	Intent      string
	Assertion   string
}

// Analyzer 视觉分析器
type Analyzer struct {
	model     Model
	maxTokens int
	timeout   time.Duration
	policy    retry.RetryPolicy
	limiter   *rate.Limiter
	pricing   Pricing
	collector *metrics.Collector
	logger    *zap.Logger
}

// AnalyzerOption 分析器选项
type AnalyzerOption func(*Analyzer)

// WithCollector 注入指标收集器
func WithCollector(c *metrics.Collector) AnalyzerOption {
	return func(a *Analyzer) { a.collector = c }
}

// WithLimiter 覆盖按配置创建的限流器
func WithLimiter(l *rate.Limiter) AnalyzerOption {
	return func(a *Analyzer) { a.limiter = l }
}

// NewAnalyzer 创建视觉分析器。model 为 nil 表示未配置凭据，
// 此时每次分析都立即返回 Error 结果。
func NewAnalyzer(model Model, cfg config.VisionConfig, logger *zap.Logger, opts ...AnalyzerOption) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxRetries := cfg.MaxRetries
	switch {
	case maxRetries == 0:
		maxRetries = config.DefaultVisionConfig().MaxRetries
	case maxRetries < 0:
		maxRetries = 0
	}
	initial := cfg.InitialDelay
	if initial <= 0 {
		initial = time.Second
	}

	a := &Analyzer{
		model:     model,
		maxTokens: cfg.MaxTokens,
		timeout:   cfg.Timeout,
		policy: retry.RetryPolicy{
			MaxRetries:   maxRetries,
			InitialDelay: initial,
			MaxDelay:     initial << maxRetries,
			Multiplier:   2.0,
		},
		pricing: PricingFromConfig(cfg),
		logger:  logger.With(zap.String("component", "vision_analyzer")),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		a.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ModelName 返回模型标识，未配置模型时为空
func (a *Analyzer) ModelName() string {
	if a.model == nil {
		return ""
	}
	return a.model.Name()
}

// Cost 按配置价格计算费用
func (a *Analyzer) Cost(usage types.TokenUsage) float64 {
	return a.pricing.Cost(usage)
}

// AnalyzeScreenshot 实现 ScreenshotAnalyzer。
// 首次尝试加最多 MaxRetries 次重试，第 n 次重试前等待 InitialDelay*2^(n-1)。
func (a *Analyzer) AnalyzeScreenshot(ctx context.Context, imageBase64, intent, assertion string) types.AnalysisResult {
	if a.model == nil {
		return types.NewErrorResult(ErrMissingCredential.Message)
	}

	start := time.Now()
	log := runLogger(ctx, a.logger)
	prompt := BuildPrompt(intent, assertion)
	req := Request{
		ImageBase64: imageBase64,
		MediaType:   detectMediaType(imageBase64),
		Prompt:      prompt,
		MaxTokens:   a.maxTokens,
	}

	var usage types.TokenUsage
	attempts := 0
	policy := a.policy
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		log.Warn("视觉分析失败，准备重试",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
	}
	retryer := retry.NewBackoffRetryer(&policy, log)

	result, err := retry.DoWithResultTyped[types.AnalysisResult](retryer, ctx, func() (types.AnalysisResult, error) {
		attempts++
		res, u, err := a.attempt(ctx, req)
		usage.Input += u.Input
		usage.Output += u.Output
		var shape *ShapeError
		if errors.As(err, &shape) {
			return res, retry.Permanent(err)
		}
		return res, err
	})
	if err != nil {
		result = types.NewErrorResult(errorMessage(err))
		log.Warn("视觉分析失败",
			zap.Int("attempts", attempts),
			zap.Error(err))
	}
	result.Usage = usage

	cost := a.pricing.Cost(usage)
	a.collector.RecordVisionRequest(a.model.Name(), string(result.Status), time.Since(start), usage.Input, usage.Output, cost)
	log.Debug("视觉分析完成",
		zap.String("status", string(result.Status)),
		zap.Float64("confidence", result.Confidence),
		zap.Int("attempts", attempts),
		zap.Int64("input_tokens", usage.Input),
		zap.Int64("output_tokens", usage.Output))
	return result
}

// runLogger 为日志附加上下文中的运行标识
func runLogger(ctx context.Context, logger *zap.Logger) *zap.Logger {
	var fields []zap.Field
	if id, ok := ctxkeys.RunID(ctx); ok {
		fields = append(fields, zap.String("run_id", id))
	}
	if name, ok := ctxkeys.FlowName(ctx); ok {
		fields = append(fields, zap.String("flow", name))
	}
	if idx, ok := ctxkeys.StepIndex(ctx); ok {
		fields = append(fields, zap.Int("step", idx))
	}
	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}

// attempt 执行一次模型调用并解析响应
func (a *Analyzer) attempt(ctx context.Context, req Request) (types.AnalysisResult, types.TokenUsage, error) {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return types.AnalysisResult{}, types.TokenUsage{}, retry.Permanent(fmt.Errorf("rate limiter: %w", err))
		}
	}

	callCtx := ctx
	if a.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	resp, err := a.model.Analyze(callCtx, req)
	if err != nil {
		return types.AnalysisResult{}, types.TokenUsage{}, err
	}
	text, ok := resp.FirstText()
	if !ok {
		return types.AnalysisResult{}, resp.Usage, errNoText
	}
	result, err := ParseVerdict(text)
	return result, resp.Usage, err
}

// AnalyzeScreenshots 并发分析全部截图，等待全部完成，结果与输入顺序一致。
// 单项失败不会取消其他项。
func (a *Analyzer) AnalyzeScreenshots(ctx context.Context, items []ScreenshotItem) []types.AnalysisResult {
	return analyzeAll(ctx, a, items)
}

func analyzeAll(ctx context.Context, an ScreenshotAnalyzer, items []ScreenshotItem) []types.AnalysisResult {
	results := make([]types.AnalysisResult, len(items))
	var g errgroup.Group
	for i, item := range items {
		g.Go(func() error {
			results[i] = an.AnalyzeScreenshot(ctx, item.ImageBase64, item.Intent, item.Assertion)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func errorMessage(err error) string {
	var exhausted *retry.ExhaustedError
	if errors.As(err, &exhausted) {
		return fmt.Sprintf("vision analysis failed after %d attempts: %v", exhausted.Attempts, exhausted.Err)
	}
	return err.Error()
}
