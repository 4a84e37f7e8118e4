package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/BaSui01/flowguard/internal/metrics"
	"github.com/BaSui01/flowguard/internal/server"
	"github.com/BaSui01/flowguard/runner"
	"github.com/BaSui01/flowguard/types"
)

// =============================================================================
// 🖥️ serve 命令
// =============================================================================

func runServe(ctx context.Context, args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to config file")
	flowsPath := fs.String("flows", "", "Flow definitions to run periodically (optional)")
	interval := fs.Duration("interval", 15*time.Minute, "Interval between scheduled runs")
	if err := fs.Parse(args); err != nil {
		return exitErrored
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "serve: %v\n", err)
		return exitErrored
	}

	var flows []types.Flow
	if *flowsPath != "" {
		if flows, err = runner.LoadFlows(*flowsPath); err != nil {
			fmt.Fprintf(stderr, "serve: %v\n", err)
			return exitErrored
		}
	}

	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting FlowGuard",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
		zap.String("mode", cfg.Runner.Mode),
	)

	collector := metrics.NewCollector("flowguard", logger)
	a, err := newApp(ctx, cfg, logger, collector)
	if err != nil {
		logger.Error("failed to initialize", zap.Error(err))
		return exitErrored
	}
	defer func() {
		if err := a.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("shutdown error", zap.Error(err))
		}
	}()

	routes := server.NewRoutes(server.VersionInfo{Version: Version, BuildTime: BuildTime, GitCommit: GitCommit}, prometheus.DefaultGatherer, logger)
	for name, check := range a.checks {
		routes.AddCheck(name, check)
	}
	handler := server.Chain(routes.Handler(), server.DefaultMiddlewares(collector, logger)...)
	mgr := server.NewManager(handler, server.ConfigFromServer(cfg.Server), logger)
	if err := mgr.Start(); err != nil {
		logger.Error("failed to start ops server", zap.Error(err))
		return exitErrored
	}
	logger.Info("ops server listening",
		zap.String("addr", mgr.Addr()),
		zap.Bool("telemetry", a.otel.Enabled()),
		zap.Int("checks", len(a.checks)))

	schedCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		schedule(schedCtx, a.runner, flows, cfg.Runner.OutputDir, cfg.Runner.Concurrency, *interval, logger)
	}()

	err = mgr.Wait(ctx)
	cancel()
	<-done
	if err != nil {
		logger.Error("ops server stopped with error", zap.Error(err))
		return exitErrored
	}
	logger.Info("FlowGuard stopped")
	return exitOK
}

// flowExecutor 周期执行所需的 Runner 能力
type flowExecutor interface {
	ExecuteFlows(ctx context.Context, flows []types.Flow, outputDir string, concurrency int) []*types.FlowRunResult
}

// schedule 立即执行一轮，之后每个 interval 执行一轮，直到 ctx 结束。flows 为空时直接返回。
func schedule(ctx context.Context, exec flowExecutor, flows []types.Flow, outputDir string, concurrency int, interval time.Duration, logger *zap.Logger) {
	if len(flows) == 0 {
		return
	}
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		results := exec.ExecuteFlows(ctx, flows, outputDir, concurrency)
		counts := make(map[types.Verdict]int, 3)
		for _, r := range results {
			counts[r.Verdict]++
		}
		logger.Info("scheduled run complete",
			zap.Int("flows", len(results)),
			zap.Int("pass", counts[types.VerdictPass]),
			zap.Int("fail", counts[types.VerdictFail]),
			zap.Int("error", counts[types.VerdictError]),
		)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// =============================================================================
// 🏥 健康检查命令
// =============================================================================

func runHealthCheck(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", "http://localhost:9091", "Server address")
	path := fs.String("path", "/ready", "Endpoint to check")
	if err := fs.Parse(args); err != nil {
		return exitErrored
	}

	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, *addr+*path, nil)
	if err != nil {
		fmt.Fprintf(stderr, "Health check failed: %v\n", err)
		return exitErrored
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(stderr, "Health check failed: %v\n", err)
		return exitErrored
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(stderr, "Health check failed: status %d\n", resp.StatusCode)
		return exitFailed
	}
	fmt.Fprintln(stdout, "OK")
	return exitOK
}
