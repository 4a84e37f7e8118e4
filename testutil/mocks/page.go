// MockPage 的浏览器页面测试模拟实现。
//
// 记录每次调用，支持按方法或选择器注入错误。
package mocks

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/BaSui01/flowguard/browser"
)

// --- MockPage 结构 ---

// PageCall 记录单次页面调用
type PageCall struct {
	Method string
	Arg    string
	Value  string
}

// MockPage 是 browser.Page 的模拟实现
type MockPage struct {
	mu sync.Mutex

	screenshot     []byte
	methodErrors   map[string]error
	selectorErrors map[string]error
	delay          time.Duration

	calls  []PageCall
	closed bool
}

var _ browser.Page = (*MockPage)(nil)

// NewMockPage 创建新的 MockPage，默认截图为最小 PNG 文件头
func NewMockPage() *MockPage {
	return &MockPage{
		screenshot:     PNGBytes(),
		methodErrors:   make(map[string]error),
		selectorErrors: make(map[string]error),
	}
}

// --- Builder 方法 ---

// WithScreenshot 设置截图内容
func (m *MockPage) WithScreenshot(data []byte) *MockPage {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.screenshot = data
	return m
}

// WithMethodError 使某个方法（Navigate/Click/Type/Screenshot/Scroll）总是失败
func (m *MockPage) WithMethodError(method string, err error) *MockPage {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.methodErrors[method] = err
	return m
}

// WithSelectorError 使针对 selector 的 Click/Type 失败
func (m *MockPage) WithSelectorError(selector string, err error) *MockPage {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selectorErrors[selector] = err
	return m
}

// WithDelay 设置每次调用的延迟，延迟期间遵循 ctx
func (m *MockPage) WithDelay(d time.Duration) *MockPage {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// --- Page 接口实现 ---

// Navigate 记录导航
func (m *MockPage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return m.record(ctx, PageCall{Method: "Navigate", Arg: url}, "")
}

// Click 记录点击
func (m *MockPage) Click(ctx context.Context, selector string) error {
	return m.record(ctx, PageCall{Method: "Click", Arg: selector}, selector)
}

// Type 记录输入
func (m *MockPage) Type(ctx context.Context, selector, value string) error {
	return m.record(ctx, PageCall{Method: "Type", Arg: selector, Value: value}, selector)
}

// Screenshot 返回配置的截图
func (m *MockPage) Screenshot(ctx context.Context) ([]byte, error) {
	if err := m.record(ctx, PageCall{Method: "Screenshot"}, ""); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.screenshot...), nil
}

// Scroll 记录滚动
func (m *MockPage) Scroll(ctx context.Context, pixels int) error {
	return m.record(ctx, PageCall{Method: "Scroll", Arg: strconv.Itoa(pixels)}, "")
}

// Close 标记关闭，可重复调用
func (m *MockPage) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MockPage) record(ctx context.Context, call PageCall, selector string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return browser.ErrClosed
	}
	m.calls = append(m.calls, call)
	delay := m.delay
	err := m.methodErrors[call.Method]
	if err == nil && selector != "" {
		err = m.selectorErrors[selector]
	}
	m.mu.Unlock()

	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", call.Method, ctx.Err())
		case <-t.C:
		}
	}
	return err
}

// --- 查询方法 ---

// Calls 返回调用记录副本
func (m *MockPage) Calls() []PageCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PageCall(nil), m.calls...)
}

// Methods 返回按顺序调用的方法名
func (m *MockPage) Methods() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	for i, c := range m.calls {
		out[i] = c.Method
	}
	return out
}

// Closed 报告页面是否已关闭
func (m *MockPage) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// PNGBytes 返回最小的 PNG 文件头，足以被识别为 image/png
func PNGBytes() []byte {
	return []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}
}
