package benchmark

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/flowguard/types"
	"github.com/BaSui01/flowguard/vision"
)

// Predictor 用视觉分析器为数据集生成判定
type Predictor struct {
	analyzer    vision.ScreenshotAnalyzer
	baseDir     string
	concurrency int
	model       string
	logger      *zap.Logger
}

// PredictorOption Predictor 选项
type PredictorOption func(*Predictor)

// WithBaseDir 设置相对截图路径的根目录
func WithBaseDir(dir string) PredictorOption {
	return func(p *Predictor) { p.baseDir = dir }
}

// WithConcurrency 设置并发分析数
func WithConcurrency(n int) PredictorOption {
	return func(p *Predictor) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithModelName 在判定文件中记录模型名
func WithModelName(name string) PredictorOption {
	return func(p *Predictor) { p.model = name }
}

// NewPredictor 创建 Predictor
func NewPredictor(analyzer vision.ScreenshotAnalyzer, logger *zap.Logger, opts ...PredictorOption) *Predictor {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Predictor{
		analyzer:    analyzer,
		concurrency: 4,
		logger:      logger.With(zap.String("component", "benchmark")),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Predict 逐个分析样例截图。截图读取失败或分析出错的样例记录 Error，不中断整体运行。
func (p *Predictor) Predict(ctx context.Context, ds *Dataset) (*PredictionSet, error) {
	preds := make([]Prediction, len(ds.Examples))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, ex := range ds.Examples {
		g.Go(func() error {
			preds[i] = p.predictOne(gctx, ex)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("benchmark prediction canceled: %w", err)
	}

	failed := 0
	for _, pr := range preds {
		if pr.Error != "" {
			failed++
		}
	}
	p.logger.Info("benchmark predictions complete",
		zap.Int("examples", len(preds)),
		zap.Int("failed", failed))

	return &PredictionSet{
		Model:         p.model,
		PromptVersion: vision.PromptVersion,
		Predictions:   preds,
	}, nil
}

func (p *Predictor) predictOne(ctx context.Context, ex Example) Prediction {
	pred := Prediction{ExampleID: ex.ID}

	path := ex.ScreenshotPath
	if !filepath.IsAbs(path) && p.baseDir != "" {
		path = filepath.Join(p.baseDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		pred.Error = fmt.Sprintf("read screenshot: %v", err)
		p.logger.Warn("截图读取失败", zap.String("example", ex.ID), zap.Error(err))
		return pred
	}

	res := p.analyzer.AnalyzeScreenshot(ctx, base64.StdEncoding.EncodeToString(data), ex.Assertion, ex.Assertion)
	switch res.Status {
	case types.AnalysisError:
		pred.Error = res.Message
	default:
		pred.PredictedVerdict = res.IsPass()
		pred.Confidence = res.Confidence
		pred.Reasoning = res.Reasoning
	}
	return pred
}
