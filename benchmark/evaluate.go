package benchmark

import "fmt"

// Prediction 模型对单个样例的判定
type Prediction struct {
	ExampleID        string  `json:"example_id"`
	PredictedVerdict bool    `json:"predicted_verdict"`
	Confidence       float64 `json:"confidence,omitempty"`
	Reasoning        string  `json:"reasoning,omitempty"`
	Error            string  `json:"error,omitempty"`
}

// PredictionSet 一次评测运行的全部判定
type PredictionSet struct {
	Model         string       `json:"model,omitempty"`
	PromptVersion string       `json:"prompt_version,omitempty"`
	Predictions   []Prediction `json:"predictions"`
}

// Metrics 二分类评测指标，正类为断言成立
type Metrics struct {
	Accuracy       float64 `json:"accuracy"`
	Precision      float64 `json:"precision"`
	Recall         float64 `json:"recall"`
	F1Score        float64 `json:"f1_score"`
	TruePositives  int     `json:"true_positives"`
	FalsePositives int     `json:"false_positives"`
	TrueNegatives  int     `json:"true_negatives"`
	FalseNegatives int     `json:"false_negatives"`
	TotalExamples  int     `json:"total_examples"`
}

// Evaluate 对比标注与判定。没有判定或判定出错的样例被跳过，分母为 0 的指标为 0。
func Evaluate(ds *Dataset, preds *PredictionSet) Metrics {
	byID := make(map[string]Prediction, len(preds.Predictions))
	for _, p := range preds.Predictions {
		if _, dup := byID[p.ExampleID]; !dup {
			byID[p.ExampleID] = p
		}
	}

	var m Metrics
	for _, ex := range ds.Examples {
		p, ok := byID[ex.ID]
		if !ok || p.Error != "" {
			continue
		}
		m.TotalExamples++
		switch {
		case ex.GroundTruth.Verdict && p.PredictedVerdict:
			m.TruePositives++
		case !ex.GroundTruth.Verdict && p.PredictedVerdict:
			m.FalsePositives++
		case !ex.GroundTruth.Verdict && !p.PredictedVerdict:
			m.TrueNegatives++
		default:
			m.FalseNegatives++
		}
	}
	if m.TotalExamples == 0 {
		return m
	}

	m.Accuracy = ratio(m.TruePositives+m.TrueNegatives, m.TotalExamples)
	m.Precision = ratio(m.TruePositives, m.TruePositives+m.FalsePositives)
	m.Recall = ratio(m.TruePositives, m.TruePositives+m.FalseNegatives)
	if m.Precision+m.Recall > 0 {
		m.F1Score = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// Summary 返回多行文本摘要
func (m Metrics) Summary() string {
	return fmt.Sprintf("Accuracy:  %.2f%%\nPrecision: %.2f%%\nRecall:    %.2f%%\nF1 Score:  %.2f%%\nTP: %d | FP: %d\nTN: %d | FN: %d\n",
		m.Accuracy*100, m.Precision*100, m.Recall*100, m.F1Score*100,
		m.TruePositives, m.FalsePositives, m.TrueNegatives, m.FalseNegatives)
}

// LoadPredictions 读取判定文件
func LoadPredictions(path string) (*PredictionSet, error) {
	var ps PredictionSet
	if err := readJSON(path, &ps); err != nil {
		return nil, fmt.Errorf("load predictions: %w", err)
	}
	return &ps, nil
}

// SavePredictions 写入判定文件
func SavePredictions(path string, ps *PredictionSet) error {
	if err := writeJSON(path, ps); err != nil {
		return fmt.Errorf("save predictions: %w", err)
	}
	return nil
}

// SaveReport 写入评测报告
func SaveReport(path string, m Metrics) error {
	if err := writeJSON(path, m); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}
