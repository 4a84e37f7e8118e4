// MockResultSaver 的结果持久化测试模拟实现。
package mocks

import (
	"context"
	"sync"

	"github.com/BaSui01/flowguard/types"
)

// MockResultSaver 记录保存的运行结果，可注入错误
type MockResultSaver struct {
	mu      sync.Mutex
	results []types.FlowRunResult
	err     error
}

// NewMockResultSaver 创建 MockResultSaver
func NewMockResultSaver() *MockResultSaver {
	return &MockResultSaver{}
}

// WithError 使保存失败（仍记录调用）
func (s *MockResultSaver) WithError(err error) *MockResultSaver {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	return s
}

// SaveTestResult 记录结果
func (s *MockResultSaver) SaveTestResult(ctx context.Context, result *types.FlowRunResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, *result)
	return s.err
}

// Results 返回保存过的结果
func (s *MockResultSaver) Results() []types.FlowRunResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.FlowRunResult(nil), s.results...)
}
