// MockAnalyzer / MockVisionModel 的视觉分析测试模拟实现。
package mocks

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/BaSui01/flowguard/types"
	"github.com/BaSui01/flowguard/vision"
)

// --- MockAnalyzer ---

// AnalyzerCall 记录单次分析调用
type AnalyzerCall struct {
	Intent    string
	Assertion string
}

// MockAnalyzer 按断言返回预设结果，未匹配时返回默认结果
type MockAnalyzer struct {
	mu          sync.Mutex
	byAssertion map[string]types.AnalysisResult
	fallback    types.AnalysisResult
	calls       []AnalyzerCall
}

// NewMockAnalyzer 创建 MockAnalyzer，默认结果为 pass(90)
func NewMockAnalyzer() *MockAnalyzer {
	return &MockAnalyzer{
		byAssertion: make(map[string]types.AnalysisResult),
		fallback:    types.NewPassResult(90, "mock pass"),
	}
}

// WithResult 为断言设置结果
func (m *MockAnalyzer) WithResult(assertion string, result types.AnalysisResult) *MockAnalyzer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byAssertion[assertion] = result
	return m
}

// WithDefault 设置默认结果
func (m *MockAnalyzer) WithDefault(result types.AnalysisResult) *MockAnalyzer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = result
	return m
}

// AnalyzeScreenshot 返回预设结果
func (m *MockAnalyzer) AnalyzeScreenshot(ctx context.Context, imageBase64, intent, assertion string) types.AnalysisResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, AnalyzerCall{Intent: intent, Assertion: assertion})
	if r, ok := m.byAssertion[assertion]; ok {
		return r
	}
	return m.fallback
}

// Calls 返回调用记录
func (m *MockAnalyzer) Calls() []AnalyzerCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]AnalyzerCall(nil), m.calls...)
}

// --- MockVisionModel ---

// MockVisionModel 是 vision.Model 的模拟实现，总是返回同一段文本
type MockVisionModel struct {
	name  string
	text  string
	err   error
	usage types.TokenUsage
	calls atomic.Int64
}

var _ vision.Model = (*MockVisionModel)(nil)

// NewMockVisionModel 创建返回 text 的模型
func NewMockVisionModel(name, text string) *MockVisionModel {
	return &MockVisionModel{name: name, text: text, usage: types.TokenUsage{Input: 1000, Output: 200}}
}

// WithError 使每次调用失败
func (m *MockVisionModel) WithError(err error) *MockVisionModel {
	m.err = err
	return m
}

// WithUsage 设置每次调用的 token 用量
func (m *MockVisionModel) WithUsage(input, output int64) *MockVisionModel {
	m.usage = types.TokenUsage{Input: input, Output: output}
	return m
}

// Name 返回模型名
func (m *MockVisionModel) Name() string { return m.name }

// Analyze 返回预设文本
func (m *MockVisionModel) Analyze(ctx context.Context, req vision.Request) (*vision.Response, error) {
	m.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.err != nil {
		return nil, m.err
	}
	return &vision.Response{Texts: []string{m.text}, Usage: m.usage}, nil
}

// Calls 返回调用次数
func (m *MockVisionModel) Calls() int64 { return m.calls.Load() }
