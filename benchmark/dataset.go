package benchmark

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DatasetVersion 当前数据集格式版本
const DatasetVersion = "1.0"

// Dataset 带标注的截图断言集合
type Dataset struct {
	Version       string    `json:"version"`
	CreatedAt     time.Time `json:"created_at"`
	TotalExamples int       `json:"total_examples"`
	Examples      []Example `json:"examples"`
}

// Example 单个标注样例
type Example struct {
	ID             string      `json:"id"`
	ScreenshotPath string      `json:"screenshot_path"`
	Assertion      string      `json:"assertion"`
	GroundTruth    GroundTruth `json:"ground_truth"`
	Metadata       Metadata    `json:"metadata"`
}

// GroundTruth 人工标注，Verdict 为 true 表示断言成立
type GroundTruth struct {
	Verdict        bool     `json:"verdict"`
	ExpectedIssues []string `json:"expected_issues"`
}

// Metadata 样例元数据
type Metadata struct {
	Category   string    `json:"category"`
	Difficulty string    `json:"difficulty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Categories 样例类别，按轮转顺序分配
var Categories = []string{"accessibility", "layout", "responsiveness", "ux-dark-patterns", "security"}

type mockScenario struct {
	assertion  string
	issues     []string
	difficulty string
}

var mockScenarios = map[string]mockScenario{
	"accessibility": {
		assertion:  "The checkout button has sufficient color contrast (WCAG AA)",
		issues:     []string{"Button contrast ratio is 2.1:1, below WCAG AA requirement of 4.5:1"},
		difficulty: "medium",
	},
	"layout": {
		assertion:  "The navigation menu is visible without scrolling",
		issues:     []string{"Navigation menu is pushed below fold due to large hero image"},
		difficulty: "easy",
	},
	"responsiveness": {
		assertion:  "The form fields are fully visible on mobile (375px width)",
		issues:     []string{"Input labels are cut off by parent container overflow"},
		difficulty: "medium",
	},
	"ux-dark-patterns": {
		assertion:  "The unsubscribe button is as prominent as the subscribe button",
		issues:     []string{"Unsubscribe button is hidden in footer with 8px font size"},
		difficulty: "hard",
	},
	"security": {
		assertion:  "The password input field obscures entered characters",
		issues:     []string{"Password field shows plain text characters"},
		difficulty: "easy",
	},
}

// GenerateMockDataset 生成 count 个离线样例，类别轮转，标注全部为不成立
func GenerateMockDataset(count int, now time.Time) *Dataset {
	if count < 0 {
		count = 0
	}
	examples := make([]Example, 0, count)
	for i := 0; i < count; i++ {
		category := Categories[i%len(Categories)]
		sc := mockScenarios[category]
		examples = append(examples, Example{
			ID:             fmt.Sprintf("example_%03d", i+1),
			ScreenshotPath: fmt.Sprintf("benchmarks/screenshots/%s_%d.png", category, i+1),
			Assertion:      sc.assertion,
			GroundTruth: GroundTruth{
				Verdict:        false,
				ExpectedIssues: append([]string(nil), sc.issues...),
			},
			Metadata: Metadata{
				Category:   category,
				Difficulty: sc.difficulty,
				CreatedAt:  now,
			},
		})
	}
	return &Dataset{
		Version:       DatasetVersion,
		CreatedAt:     now,
		TotalExamples: len(examples),
		Examples:      examples,
	}
}

// LoadDataset 读取 JSON 数据集
func LoadDataset(path string) (*Dataset, error) {
	var ds Dataset
	if err := readJSON(path, &ds); err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	if ds.TotalExamples == 0 {
		ds.TotalExamples = len(ds.Examples)
	}
	return &ds, nil
}

// SaveDataset 写入 JSON 数据集，必要时创建父目录
func SaveDataset(path string, ds *Dataset) error {
	ds.TotalExamples = len(ds.Examples)
	if err := writeJSON(path, ds); err != nil {
		return fmt.Errorf("save dataset: %w", err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func writeJSON(path string, v any) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
