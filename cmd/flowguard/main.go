// =============================================================================
// FlowGuard 主入口
// =============================================================================
// 浏览器流程回归检测：本地或远程浏览器执行流程，视觉模型判定截图断言
//
// 使用方法:
//
//	flowguard run --flows flows.json              # 执行流程
//	flowguard serve --config flowguard.yaml       # 启动运维服务（可周期执行流程）
//	flowguard migrate up                          # 运行数据库迁移
//	flowguard bench generate --count 50           # 生成基准数据集
//	flowguard version                             # 显示版本信息
// =============================================================================

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/flowguard/config"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// 退出码
const (
	exitOK      = 0
	exitFailed  = 1
	exitErrored = 2
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := dispatch(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func dispatch(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return exitErrored
	}

	switch args[0] {
	case "run":
		return runFlows(ctx, args[1:], stdout, stderr)
	case "serve":
		return runServe(ctx, args[1:], stderr)
	case "migrate":
		return runMigrate(ctx, args[1:], stdout, stderr)
	case "bench":
		return runBench(ctx, args[1:], stdout, stderr)
	case "health":
		return runHealthCheck(ctx, args[1:], stdout, stderr)
	case "version":
		printVersion(stdout)
		return exitOK
	case "help", "-h", "--help":
		printUsage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		printUsage(stderr)
		return exitErrored
	}
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "FlowGuard %s\n", Version)
	fmt.Fprintf(w, "  Build Time: %s\n", BuildTime)
	fmt.Fprintf(w, "  Git Commit: %s\n", GitCommit)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `FlowGuard - browser flow regression checks

Usage:
  flowguard <command> [options]

Commands:
  run       Execute flows and print verdicts
  serve     Start the ops server (health, metrics) and optionally run flows periodically
  migrate   Database migration commands
  bench     Vision benchmark: generate, predict, evaluate
  health    Check a running server
  version   Show version information
  help      Show this help message

Options for 'run':
  --config <path>       Path to configuration file (YAML)
  --flows <path>        Flow definitions (JSON)
  --output <dir>        Output directory for screenshots
  --mode <local|cloud>  Execution mode override
  --concurrency <n>     Concurrent flows
  --results <path>      Write run results as JSON

Exit codes:
  0  every flow passed
  1  at least one flow failed an assertion
  2  a flow errored or the command could not run

Examples:
  flowguard run --flows flows.json
  flowguard run --config flowguard.yaml --flows flows.json --mode cloud
  flowguard serve --flows flows.json --interval 15m
  flowguard migrate up
  flowguard bench predict --dataset benchmarks/dataset.json
  flowguard health --addr http://localhost:9091`)
}

// =============================================================================
// 🔧 配置与日志
// =============================================================================

// loadConfig 加载配置，overrides 在校验前应用命令行覆盖项
func loadConfig(path string, overrides ...func(*config.Config)) (*config.Config, error) {
	loader := config.NewLoader()
	if path != "" {
		loader = loader.WithConfigPath(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	for _, o := range overrides {
		o(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func initLogger(cfg config.LogConfig) *zap.Logger {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}

	zapConfig := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       encoding == "console",
		Encoding:          encoding,
		EncoderConfig:     encoderConfig,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     !cfg.EnableCaller,
		DisableStacktrace: !cfg.EnableStacktrace,
	}

	logger, err := zapConfig.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
