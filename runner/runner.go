package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/flowguard/browser"
	"github.com/BaSui01/flowguard/config"
	"github.com/BaSui01/flowguard/internal/ctxkeys"
	"github.com/BaSui01/flowguard/internal/metrics"
	"github.com/BaSui01/flowguard/internal/telemetry"
	"github.com/BaSui01/flowguard/storage"
	"github.com/BaSui01/flowguard/types"
)

const tracerName = "github.com/BaSui01/flowguard/runner"

// =============================================================================
// 🔌 依赖接口
// =============================================================================

// LocalBrowser 在共享浏览器进程上打开隔离页面
type LocalBrowser interface {
	NewPage(ctx context.Context, viewport types.Viewport) (browser.Page, error)
	Close() error
}

// SessionPool 远程会话池
type SessionPool interface {
	Acquire(ctx context.Context) (string, error)
	Release(ctx context.Context, id string)
}

// SessionResolver 查询会话的 CDP 连接地址
type SessionResolver interface {
	ConnectURL(ctx context.Context, id string) (string, error)
}

// RemoteConnector 连接远程浏览器
type RemoteConnector interface {
	Connect(ctx context.Context, connectURL string, viewport types.Viewport) (browser.Page, error)
}

// StepAnalyzer 对截图评分，永远返回结果而不是错误
type StepAnalyzer interface {
	AnalyzeScreenshot(ctx context.Context, imageBase64, intent, assertion string) types.AnalysisResult
}

// =============================================================================
// 🏃 Runner
// =============================================================================

// Runner 流程执行器
type Runner struct {
	cfg config.RunnerConfig

	localMu sync.Mutex
	local   LocalBrowser

	pool      SessionPool
	resolver  SessionResolver
	connector RemoteConnector

	analyzer  StepAnalyzer
	saver     storage.ResultSaver
	collector *metrics.Collector
	tracer    trace.Tracer
	newID     func() string
	logger    *zap.Logger
}

// Option Runner 选项
type Option func(*Runner)

// WithLocalBrowser 注入本地浏览器进程，Runner 负责在 Close 时关闭它
func WithLocalBrowser(b LocalBrowser) Option {
	return func(r *Runner) { r.local = b }
}

// WithCloud 配置 cloud 模式所需的会话池、地址解析与远程连接
func WithCloud(pool SessionPool, resolver SessionResolver, connector RemoteConnector) Option {
	return func(r *Runner) {
		r.pool = pool
		r.resolver = resolver
		r.connector = connector
	}
}

// WithAnalyzer 配置截图分析器
func WithAnalyzer(a StepAnalyzer) Option {
	return func(r *Runner) { r.analyzer = a }
}

// WithResultSaver 配置运行结果持久化
func WithResultSaver(s storage.ResultSaver) Option {
	return func(r *Runner) { r.saver = s }
}

// WithCollector 注入指标收集器
func WithCollector(c *metrics.Collector) Option {
	return func(r *Runner) { r.collector = c }
}

// WithTracer 替换 tracer，默认使用全局 TracerProvider
func WithTracer(t trace.Tracer) Option {
	return func(r *Runner) { r.tracer = t }
}

// WithIDGenerator 替换运行 ID 生成器
func WithIDGenerator(fn func() string) Option {
	return func(r *Runner) { r.newID = fn }
}

// New 创建 Runner。local 模式下未注入浏览器时，首次使用才创建本地进程。
func New(cfg config.RunnerConfig, logger *zap.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := config.DefaultRunnerConfig()
	if cfg.Mode == "" {
		cfg.Mode = config.ModeLocal
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = def.NavigationTimeout
	}
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = def.ActionTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = def.OutputDir
	}

	r := &Runner{
		cfg:    cfg,
		tracer: otel.Tracer(tracerName),
		newID:  uuid.NewString,
		logger: logger.With(zap.String("component", "runner")),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Mode 返回执行模式
func (r *Runner) Mode() string {
	return r.cfg.Mode
}

// localBrowser 惰性创建共享本地浏览器
func (r *Runner) localBrowser() LocalBrowser {
	r.localMu.Lock()
	defer r.localMu.Unlock()
	if r.local == nil {
		bcfg := browser.DefaultConfig()
		bcfg.Headless = r.cfg.Headless
		bcfg.ExecPath = r.cfg.ChromePath
		r.local = browser.NewProcess(bcfg, r.logger)
	}
	return r.local
}

// =============================================================================
// 🎬 单流程执行
// =============================================================================

// ExecuteFlow 执行一个流程。outputDir 为空时使用配置中的输出目录。
func (r *Runner) ExecuteFlow(ctx context.Context, flow types.Flow, outputDir string) *types.FlowRunResult {
	if outputDir == "" {
		outputDir = r.cfg.OutputDir
	}
	started := time.Now()
	result := &types.FlowRunResult{
		ID:        r.newID(),
		FlowName:  flow.Name,
		Intent:    flow.Intent,
		URL:       flow.URL,
		Viewport:  flow.EffectiveViewport(),
		StartedAt: started.UTC(),
	}
	ctx = ctxkeys.WithFlowName(ctxkeys.WithRunID(ctx, result.ID), flow.Name)

	ctx, span := r.tracer.Start(ctx, "flow.execute", trace.WithAttributes(
		attribute.String("flow.name", flow.Name),
		attribute.String("flow.mode", r.cfg.Mode),
		attribute.Int("flow.steps", len(flow.Steps)),
	))
	defer span.End()
	result.TraceRef = telemetry.TraceID(ctx)

	log := r.logger.With(
		zap.String("flow", flow.Name),
		zap.String("run_id", result.ID),
		zap.String("mode", r.cfg.Mode))
	log.Info("开始执行流程", zap.Int("steps", len(flow.Steps)))

	var steps []types.StepResult
	dir, err := runDir(outputDir, flow.Name, result.ID)
	if err != nil {
		steps = []types.StepResult{setupFailure(err)}
	} else {
		switch r.cfg.Mode {
		case config.ModeCloud:
			steps = r.runCloud(ctx, flow, dir)
		case config.ModeLocal:
			steps = r.runLocal(ctx, flow, dir)
		default:
			steps = []types.StepResult{setupFailure(
				types.NewError(types.ErrSetupFailed, fmt.Sprintf("unknown execution mode %q", r.cfg.Mode)))}
		}
	}

	completed := time.Now()
	result.Steps = steps
	result.Verdict = types.DeriveVerdict(steps)
	result.Confidence = types.MinConfidence(steps)
	result.CompletedAt = completed.UTC()
	result.DurationMs = completed.Sub(started).Milliseconds()

	span.SetAttributes(
		attribute.String("flow.verdict", string(result.Verdict)),
		attribute.Float64("flow.confidence", result.Confidence))
	if result.Verdict == types.VerdictError {
		span.SetStatus(codes.Error, lastError(steps))
	}
	r.collector.RecordFlowRun(r.cfg.Mode, string(result.Verdict), completed.Sub(started))

	log.Info("流程执行完成",
		zap.String("verdict", string(result.Verdict)),
		zap.Float64("confidence", result.Confidence),
		zap.Int("executed_steps", len(steps)),
		zap.Int64("duration_ms", result.DurationMs))

	r.save(ctx, result, log)
	return result
}

// runLocal 在共享本地浏览器中打开独立上下文执行步骤
func (r *Runner) runLocal(ctx context.Context, flow types.Flow, dir string) []types.StepResult {
	page, err := r.localBrowser().NewPage(ctx, flow.EffectiveViewport())
	if err != nil {
		return []types.StepResult{setupFailure(
			types.NewError(types.ErrSetupFailed, "failed to open browser context").WithCause(err))}
	}
	defer func() {
		if err := page.Close(); err != nil {
			r.logger.Warn("关闭浏览器上下文失败", zap.String("flow", flow.Name), zap.Error(err))
		}
	}()
	return r.runSteps(ctx, page, flow, dir)
}

// runCloud 获取远程会话执行步骤，结束时总是归还会话
func (r *Runner) runCloud(ctx context.Context, flow types.Flow, dir string) []types.StepResult {
	if r.pool == nil || r.resolver == nil || r.connector == nil {
		return []types.StepResult{setupFailure(
			types.NewError(types.ErrSetupFailed, "cloud mode requires a session pool"))}
	}

	id, err := r.pool.Acquire(ctx)
	if err != nil {
		return []types.StepResult{setupFailure(err)}
	}
	defer r.pool.Release(context.WithoutCancel(ctx), id)

	connectURL, err := r.resolver.ConnectURL(ctx, id)
	if err != nil {
		return []types.StepResult{setupFailure(
			types.NewError(types.ErrSetupFailed, "failed to resolve session "+id).WithCause(err))}
	}
	page, err := r.connector.Connect(ctx, connectURL, flow.EffectiveViewport())
	if err != nil {
		return []types.StepResult{setupFailure(
			types.NewError(types.ErrSetupFailed, "failed to connect to session "+id).WithCause(err))}
	}
	defer func() {
		if err := page.Close(); err != nil {
			r.logger.Warn("断开远程会话失败", zap.String("session_id", id), zap.Error(err))
		}
	}()
	return r.runSteps(ctx, page, flow, dir)
}

// runSteps 打开 flow.URL 后顺序执行步骤，第一个失败步骤后停止
func (r *Runner) runSteps(ctx context.Context, page browser.Page, flow types.Flow, dir string) []types.StepResult {
	if flow.URL != "" {
		if err := page.Navigate(ctx, flow.URL, r.cfg.NavigationTimeout); err != nil {
			return []types.StepResult{setupFailure(
				types.NewError(types.ErrSetupFailed, "failed to open "+flow.URL).WithCause(err))}
		}
	}

	steps := make([]types.StepResult, 0, len(flow.Steps))
	for i, step := range flow.Steps {
		stepCtx := ctxkeys.WithStepIndex(ctx, i)
		res := r.ExecuteStep(stepCtx, page, step, i, dir)
		if res.Success && step.Action == types.ActionScreenshot {
			res = r.analyze(stepCtx, flow, step, res)
		}
		steps = append(steps, res)
		if !res.Success {
			break
		}
	}
	return steps
}

// analyze 对截图评分，fail 记为断言失败，error 记为分析错误
func (r *Runner) analyze(ctx context.Context, flow types.Flow, step types.Step, res types.StepResult) types.StepResult {
	if r.analyzer == nil || !r.cfg.AnalyzeScreenshots || res.ScreenshotBase64 == "" {
		return res
	}
	if step.Assertion == "" && flow.Intent == "" {
		return res
	}

	start := time.Now()
	analysis := r.analyzer.AnalyzeScreenshot(ctx, res.ScreenshotBase64, flow.Intent, step.Assertion)
	res.Analysis = &analysis
	res.DurationMs += time.Since(start).Milliseconds()

	switch analysis.Status {
	case types.AnalysisFail:
		res.Success = false
		res.ErrorKind = types.ErrorKindAssertion
		res.Error = assertionMessage(step, analysis)
	case types.AnalysisError:
		res.Success = false
		res.ErrorKind = types.ErrorKindAnalysis
		res.Error = "vision analysis error: " + analysis.Message
	}
	return res
}

func assertionMessage(step types.Step, a types.AnalysisResult) string {
	msg := "assertion failed"
	if step.Assertion != "" {
		msg = fmt.Sprintf("assertion failed: %s", step.Assertion)
	}
	if a.Reasoning != "" {
		msg += " (" + a.Reasoning + ")"
	}
	return msg
}

func (r *Runner) save(ctx context.Context, result *types.FlowRunResult, log *zap.Logger) {
	if r.saver == nil {
		return
	}
	if err := r.saver.SaveTestResult(context.WithoutCancel(ctx), result); err != nil {
		log.Warn("保存运行结果失败", zap.Error(err))
	}
}

// setupFailure 构造索引 0 的合成失败步骤
func setupFailure(err error) types.StepResult {
	return types.StepResult{
		StepIndex: 0,
		Action:    types.ActionNavigate,
		Success:   false,
		Error:     err.Error(),
		ErrorKind: types.ErrorKindSetup,
	}
}

func lastError(steps []types.StepResult) string {
	for i := len(steps) - 1; i >= 0; i-- {
		if steps[i].Error != "" {
			return steps[i].Error
		}
	}
	return ""
}

// =============================================================================
// 📦 批量执行
// =============================================================================

// ExecuteFlows 使用固定数量的 worker 执行 flows。concurrency <= 0 时使用配置值，
// 且不超过流程数。返回结果的顺序与输入无关。
func (r *Runner) ExecuteFlows(ctx context.Context, flows []types.Flow, outputDir string, concurrency int) []*types.FlowRunResult {
	if len(flows) == 0 {
		return nil
	}
	if concurrency <= 0 {
		concurrency = r.cfg.Concurrency
	}
	workers := min(concurrency, len(flows))

	queue := make(chan types.Flow, len(flows))
	for _, f := range flows {
		queue <- f
	}
	close(queue)

	var (
		mu      sync.Mutex
		results = make([]*types.FlowRunResult, 0, len(flows))
	)
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for flow := range queue {
				res := r.ExecuteFlow(ctx, flow, outputDir)
				mu.Lock()
				results = append(results, res)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	r.logger.Info("批量执行完成",
		zap.Int("flows", len(flows)),
		zap.Int("workers", workers))
	return results
}

// Close 关闭共享本地浏览器进程
func (r *Runner) Close() error {
	r.localMu.Lock()
	local := r.local
	r.localMu.Unlock()
	if local == nil {
		return nil
	}
	if err := local.Close(); err != nil && !errors.Is(err, browser.ErrClosed) {
		return fmt.Errorf("close browser: %w", err)
	}
	return nil
}
