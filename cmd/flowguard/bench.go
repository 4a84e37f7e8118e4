package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/flowguard/benchmark"
	"github.com/BaSui01/flowguard/config"
	"github.com/BaSui01/flowguard/internal/metrics"
)

// =============================================================================
// 📏 bench 命令
// =============================================================================

func printBenchUsage(w io.Writer) {
	fmt.Fprintln(w, `Vision Benchmark Commands

Usage:
  flowguard bench <subcommand> [options]

Subcommands:
  generate   Write a mock labeled dataset
  predict    Run the vision analyzer over a dataset
  evaluate   Score predictions against ground truth

Examples:
  flowguard bench generate --count 50 --out benchmarks/dataset.json
  flowguard bench predict --dataset benchmarks/dataset.json --out benchmarks/predictions.json
  flowguard bench evaluate --dataset benchmarks/dataset.json --predictions benchmarks/predictions.json`)
}

func runBench(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printBenchUsage(stderr)
		return exitErrored
	}
	switch args[0] {
	case "generate":
		return benchGenerate(args[1:], stdout, stderr)
	case "predict":
		return benchPredict(ctx, args[1:], stdout, stderr)
	case "evaluate":
		return benchEvaluate(args[1:], stdout, stderr)
	case "help", "-h", "--help":
		printBenchUsage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "Unknown bench subcommand: %s\n", args[0])
		printBenchUsage(stderr)
		return exitErrored
	}
}

func benchGenerate(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("bench generate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	count := fs.Int("count", 50, "Number of examples")
	out := fs.String("out", "benchmarks/dataset.json", "Dataset output path")
	if err := fs.Parse(args); err != nil {
		return exitErrored
	}

	ds := benchmark.GenerateMockDataset(*count, time.Now().UTC())
	if err := benchmark.SaveDataset(*out, ds); err != nil {
		fmt.Fprintf(stderr, "bench generate: %v\n", err)
		return exitErrored
	}
	fmt.Fprintf(stdout, "Wrote %d examples to %s\n", ds.TotalExamples, *out)
	return exitOK
}

func benchPredict(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("bench predict", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to config file")
	datasetPath := fs.String("dataset", "benchmarks/dataset.json", "Dataset path")
	baseDir := fs.String("base-dir", ".", "Directory screenshot paths are relative to")
	out := fs.String("out", "benchmarks/predictions.json", "Predictions output path")
	concurrency := fs.Int("concurrency", 4, "Concurrent analyzer calls")
	if err := fs.Parse(args); err != nil {
		return exitErrored
	}

	// 基准只需要视觉分析，避免云模式预热远程会话
	cfg, err := loadConfig(*configPath, func(c *config.Config) { c.Runner.Mode = config.ModeLocal })
	if err != nil {
		fmt.Fprintf(stderr, "bench predict: %v\n", err)
		return exitErrored
	}
	ds, err := benchmark.LoadDataset(*datasetPath)
	if err != nil {
		fmt.Fprintf(stderr, "bench predict: %v\n", err)
		return exitErrored
	}

	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	a, err := newApp(ctx, cfg, logger, metrics.NewCollector("flowguard", logger))
	if err != nil {
		logger.Error("failed to initialize", zap.Error(err))
		return exitErrored
	}
	defer func() { _ = a.Close(context.WithoutCancel(ctx)) }()
	if !a.visionReady {
		fmt.Fprintln(stderr, "bench predict: vision analyzer unavailable (set ANTHROPIC_API_KEY)")
		return exitErrored
	}

	p := benchmark.NewPredictor(a.analyzer, logger,
		benchmark.WithBaseDir(*baseDir),
		benchmark.WithConcurrency(*concurrency),
		benchmark.WithModelName(cfg.Vision.Model),
	)
	preds, err := p.Predict(ctx, ds)
	if err != nil {
		fmt.Fprintf(stderr, "bench predict: %v\n", err)
		return exitErrored
	}
	preds.PromptVersion = cfg.Vision.PromptVersion
	if err := benchmark.SavePredictions(*out, preds); err != nil {
		fmt.Fprintf(stderr, "bench predict: %v\n", err)
		return exitErrored
	}
	fmt.Fprintf(stdout, "Wrote %d predictions to %s\n", len(preds.Predictions), *out)
	return exitOK
}

func benchEvaluate(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("bench evaluate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	datasetPath := fs.String("dataset", "benchmarks/dataset.json", "Dataset path")
	predsPath := fs.String("predictions", "benchmarks/predictions.json", "Predictions path")
	out := fs.String("out", "", "Write metrics JSON to this path")
	if err := fs.Parse(args); err != nil {
		return exitErrored
	}

	ds, err := benchmark.LoadDataset(*datasetPath)
	if err != nil {
		fmt.Fprintf(stderr, "bench evaluate: %v\n", err)
		return exitErrored
	}
	preds, err := benchmark.LoadPredictions(*predsPath)
	if err != nil {
		fmt.Fprintf(stderr, "bench evaluate: %v\n", err)
		return exitErrored
	}

	m := benchmark.Evaluate(ds, preds)
	fmt.Fprintln(stdout, m.Summary())
	if *out != "" {
		if err := benchmark.SaveReport(*out, m); err != nil {
			fmt.Fprintf(stderr, "bench evaluate: %v\n", err)
			return exitErrored
		}
	}
	return exitOK
}
