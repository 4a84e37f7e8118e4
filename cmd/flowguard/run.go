package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"go.uber.org/zap"

	"github.com/BaSui01/flowguard/config"
	"github.com/BaSui01/flowguard/internal/metrics"
	"github.com/BaSui01/flowguard/runner"
	"github.com/BaSui01/flowguard/types"
)

// =============================================================================
// 🏃 run 命令
// =============================================================================

type runOptions struct {
	configPath  string
	flowsPath   string
	outputDir   string
	mode        string
	concurrency int
	resultsPath string
}

func parseRunOptions(args []string, stderr io.Writer) (runOptions, error) {
	var o runOptions
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.configPath, "config", "", "Path to config file")
	fs.StringVar(&o.flowsPath, "flows", "", "Flow definitions (JSON)")
	fs.StringVar(&o.outputDir, "output", "", "Output directory (default: runner.output_dir)")
	fs.StringVar(&o.mode, "mode", "", "Execution mode: local or cloud")
	fs.IntVar(&o.concurrency, "concurrency", 0, "Concurrent flows (default: runner.concurrency)")
	fs.StringVar(&o.resultsPath, "results", "", "Write results JSON to this path")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.flowsPath == "" && fs.NArg() > 0 {
		o.flowsPath = fs.Arg(0)
	}
	if o.flowsPath == "" {
		return o, fmt.Errorf("--flows is required")
	}
	return o, nil
}

// apply 将命令行覆盖项写入配置
func (o runOptions) apply(cfg *config.Config) {
	if o.mode != "" {
		cfg.Runner.Mode = strings.ToLower(o.mode)
	}
	if o.outputDir != "" {
		cfg.Runner.OutputDir = o.outputDir
	}
	if o.concurrency > 0 {
		cfg.Runner.Concurrency = o.concurrency
	}
}

func runFlows(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseRunOptions(args, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "run: %v\n", err)
		return exitErrored
	}
	cfg, err := loadConfig(opts.configPath, opts.apply)
	if err != nil {
		fmt.Fprintf(stderr, "run: %v\n", err)
		return exitErrored
	}

	flows, err := runner.LoadFlows(opts.flowsPath)
	if err != nil {
		fmt.Fprintf(stderr, "run: %v\n", err)
		return exitErrored
	}

	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	a, err := newApp(ctx, cfg, logger, metrics.NewCollector("flowguard", logger))
	if err != nil {
		logger.Error("failed to initialize", zap.Error(err))
		return exitErrored
	}
	defer func() {
		if err := a.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("shutdown error", zap.Error(err))
		}
	}()

	results := a.runner.ExecuteFlows(ctx, flows, cfg.Runner.OutputDir, cfg.Runner.Concurrency)
	printResults(stdout, results)

	if opts.resultsPath != "" {
		if err := writeResults(opts.resultsPath, results); err != nil {
			fmt.Fprintf(stderr, "run: %v\n", err)
			return exitErrored
		}
	}
	return exitCode(results)
}

// printResults 每个流程输出一行结果
func printResults(w io.Writer, results []*types.FlowRunResult) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FLOW\tVERDICT\tCONFIDENCE\tDURATION\tERROR")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%.0f\t%dms\t%s\n", r.FlowName, r.Verdict, r.Confidence, r.DurationMs, firstError(r.Steps))
	}
	_ = tw.Flush()
}

func firstError(steps []types.StepResult) string {
	for _, s := range steps {
		if !s.Success {
			return fmt.Sprintf("step %d: %s", s.StepIndex, s.Error)
		}
	}
	return ""
}

func writeResults(path string, results []*types.FlowRunResult) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create results dir: %w", err)
	}
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// exitCode error 优先于 fail
func exitCode(results []*types.FlowRunResult) int {
	code := exitOK
	for _, r := range results {
		switch r.Verdict {
		case types.VerdictError:
			return exitErrored
		case types.VerdictFail:
			code = exitFailed
		}
	}
	return code
}
