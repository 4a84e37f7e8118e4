package main

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/BaSui01/flowguard/browser"
	"github.com/BaSui01/flowguard/config"
	"github.com/BaSui01/flowguard/internal/database"
	"github.com/BaSui01/flowguard/internal/metrics"
	"github.com/BaSui01/flowguard/internal/server"
	"github.com/BaSui01/flowguard/internal/telemetry"
	"github.com/BaSui01/flowguard/provider/browserbase"
	"github.com/BaSui01/flowguard/runner"
	"github.com/BaSui01/flowguard/sessionpool"
	"github.com/BaSui01/flowguard/storage"
	mongostore "github.com/BaSui01/flowguard/storage/mongo"
	redisstore "github.com/BaSui01/flowguard/storage/redis"
	sqlstore "github.com/BaSui01/flowguard/storage/sql"
	"github.com/BaSui01/flowguard/vision"
)

// =============================================================================
// 🧩 组件装配
// =============================================================================

// app 持有一次进程生命周期内装配好的组件
type app struct {
	cfg         *config.Config
	logger      *zap.Logger
	collector   *metrics.Collector
	otel        *telemetry.Providers
	repo        storage.Repository
	analyzer    vision.ScreenshotAnalyzer
	visionReady bool // 已配置模型凭据
	pool        *sessionpool.Pool
	runner      *runner.Runner
	checks      map[string]server.CheckFunc
	closers     []func(context.Context) error
}

// newApp 按配置装配存储、视觉分析、会话池与 Runner。
// 任一必需组件失败时已打开的资源会被关闭。
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, collector *metrics.Collector) (a *app, err error) {
	a = &app{
		cfg:       cfg,
		logger:    logger,
		collector: collector,
		checks:    make(map[string]server.CheckFunc),
	}
	defer func() {
		if err != nil {
			_ = a.Close(context.WithoutCancel(ctx))
			a = nil
		}
	}()

	providers, terr := telemetry.Init(ctx, cfg.Telemetry, logger,
		telemetry.WithServiceVersion(Version),
		telemetry.WithAttributes(attribute.String("flowguard.mode", cfg.Runner.Mode)))
	if terr != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(terr))
	} else {
		a.otel = providers
		a.closers = append(a.closers, providers.Shutdown)
	}

	if err = a.openStorage(ctx); err != nil {
		return a, err
	}
	a.analyzer = a.buildAnalyzer()

	opts := []runner.Option{runner.WithCollector(collector), runner.WithAnalyzer(a.analyzer)}
	if cfg.Storage.SaveResults {
		opts = append(opts, runner.WithResultSaver(a.repo))
	}
	if cfg.Runner.Mode == config.ModeCloud {
		cloud, cerr := a.buildCloud()
		if cerr != nil {
			return a, cerr
		}
		opts = append(opts, cloud)
	}

	a.runner = runner.New(cfg.Runner, logger, opts...)
	a.closers = append(a.closers, func(context.Context) error { return a.runner.Close() })
	return a, nil
}

// openStorage 根据 storage.backend 选择持久化后端
func (a *app) openStorage(ctx context.Context) error {
	cfg := a.cfg
	switch cfg.Storage.Backend {
	case config.BackendMemory, "":
		a.repo = storage.NewMemoryRepository()

	case config.BackendRedis:
		store, err := redisstore.Open(cfg.Redis, a.logger)
		if err != nil {
			return err
		}
		a.repo = store
		a.checks["redis"] = store.Ping
		a.closers = append(a.closers, func(context.Context) error { return store.Close() })

	case config.BackendMongo:
		store, err := mongostore.Open(ctx, cfg.Mongo, a.logger)
		if err != nil {
			return err
		}
		a.repo = store
		a.checks["mongo"] = store.Ping
		a.closers = append(a.closers, store.Close)

	case config.BackendSQL:
		pool, err := database.Open(cfg.Database, a.logger, database.WithMetrics(a.collector, cfg.Database.Driver))
		if err != nil {
			return err
		}
		store := sqlstore.New(pool, a.logger)
		a.closers = append(a.closers, func(context.Context) error { return store.Close() })
		if err := store.AutoMigrate(ctx); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
		a.repo = store
		a.checks["database"] = store.Ping

	default:
		return fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	a.logger.Info("storage backend ready", zap.String("backend", cfg.Storage.Backend))
	return nil
}

// buildAnalyzer 总是返回分析器。未配置 API Key 时模型为空，
// 带判定的截图步骤得到 "missing API credential" 分析错误。
func (a *app) buildAnalyzer() vision.ScreenshotAnalyzer {
	cfg := a.cfg
	var model vision.Model
	if m, err := vision.NewAnthropicModelFromConfig(cfg.Vision); err != nil {
		a.logger.Warn("vision model unavailable, screenshot assertions will report analysis errors", zap.Error(err))
	} else {
		model = m
		a.visionReady = true
	}
	analyzer := vision.NewAnalyzer(model, cfg.Vision, a.logger, vision.WithCollector(a.collector))
	if !a.visionReady || !cfg.Cache.Enabled {
		return analyzer
	}
	return vision.NewCachedAnalyzer(analyzer, vision.NewCache(a.repo, a.logger), cfg.Vision.PromptVersion, a.collector, a.logger)
}

// buildCloud 装配 Browserbase 会话池与远程连接器
func (a *app) buildCloud() (runner.Option, error) {
	cfg := a.cfg
	client, err := browserbase.NewClient(cfg.Browserbase, a.logger)
	if err != nil {
		return nil, err
	}
	source := browserbase.NewSessionSource(client, browserbase.CreateSessionOptions{
		Region:  cfg.Browserbase.Region,
		Timeout: cfg.Browserbase.SessionTimeout,
	})
	a.pool = sessionpool.New(source, cfg.Pool, a.logger, sessionpool.WithCollector(a.collector))
	a.closers = append(a.closers, a.pool.Shutdown)
	a.checks["session_pool"] = func(context.Context) error {
		if a.pool.Stats().Total == 0 && a.cfg.Pool.MinSessions > 0 {
			return errors.New("no warm sessions")
		}
		return nil
	}
	return runner.WithCloud(a.pool, source, browser.NewConnector(a.logger)), nil
}

// Close 逆序释放资源
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
