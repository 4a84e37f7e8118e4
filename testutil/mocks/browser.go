// MockBrowser / MockConnector / MockSessionProvider 的浏览器与远程会话测试模拟实现。
package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/BaSui01/flowguard/browser"
	"github.com/BaSui01/flowguard/types"
)

// --- MockBrowser ---

// MockBrowser 模拟共享本地浏览器进程，每次 NewPage 返回一个新的 MockPage
type MockBrowser struct {
	mu      sync.Mutex
	newPage func() *MockPage
	err     error
	pages   []*MockPage
	closed  bool
}

// NewMockBrowser 创建 MockBrowser，newPage 为空时使用 NewMockPage
func NewMockBrowser(newPage func() *MockPage) *MockBrowser {
	if newPage == nil {
		newPage = NewMockPage
	}
	return &MockBrowser{newPage: newPage}
}

// WithError 使 NewPage 失败
func (b *MockBrowser) WithError(err error) *MockBrowser {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.err = err
	return b
}

// NewPage 打开新页面
func (b *MockBrowser) NewPage(ctx context.Context, viewport types.Viewport) (browser.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, browser.ErrClosed
	}
	if b.err != nil {
		return nil, b.err
	}
	p := b.newPage()
	b.pages = append(b.pages, p)
	return p, nil
}

// Close 关闭浏览器
func (b *MockBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Pages 返回已打开过的页面
func (b *MockBrowser) Pages() []*MockPage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*MockPage(nil), b.pages...)
}

// Closed 报告浏览器是否已关闭
func (b *MockBrowser) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// --- MockConnector ---

// MockConnector 模拟远程浏览器连接
type MockConnector struct {
	mu       sync.Mutex
	page     *MockPage
	err      error
	connects []string
}

// NewMockConnector 创建 MockConnector，所有连接共享 page
func NewMockConnector(page *MockPage) *MockConnector {
	if page == nil {
		page = NewMockPage()
	}
	return &MockConnector{page: page}
}

// WithError 使 Connect 失败
func (c *MockConnector) WithError(err error) *MockConnector {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
	return c
}

// Connect 返回共享页面
func (c *MockConnector) Connect(ctx context.Context, connectURL string, viewport types.Viewport) (browser.Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connects = append(c.connects, connectURL)
	if c.err != nil {
		return nil, c.err
	}
	return c.page, nil
}

// Connects 返回连接过的地址
func (c *MockConnector) Connects() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.connects...)
}

// --- MockSessionProvider ---

// MockSessionProvider 模拟远程会话提供方，同时实现会话池 Provider 与连接地址解析
type MockSessionProvider struct {
	mu           sync.Mutex
	seq          int
	live         map[string]bool
	created      int
	terminated   []string
	createErr    error
	terminateErr error
	resolveErr   error
}

// NewMockSessionProvider 创建 MockSessionProvider
func NewMockSessionProvider() *MockSessionProvider {
	return &MockSessionProvider{live: make(map[string]bool)}
}

// WithCreateError 使 Create 失败
func (p *MockSessionProvider) WithCreateError(err error) *MockSessionProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.createErr = err
	return p
}

// WithTerminateError 使 Terminate 失败
func (p *MockSessionProvider) WithTerminateError(err error) *MockSessionProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.terminateErr = err
	return p
}

// WithResolveError 使 ConnectURL 失败
func (p *MockSessionProvider) WithResolveError(err error) *MockSessionProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resolveErr = err
	return p
}

// Create 创建会话
func (p *MockSessionProvider) Create(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createErr != nil {
		return "", p.createErr
	}
	p.seq++
	p.created++
	id := fmt.Sprintf("mock-session-%d", p.seq)
	p.live[id] = true
	return id, nil
}

// Terminate 终止会话
func (p *MockSessionProvider) Terminate(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.terminated = append(p.terminated, id)
	delete(p.live, id)
	return p.terminateErr
}

// ConnectURL 返回会话的连接地址
func (p *MockSessionProvider) ConnectURL(ctx context.Context, id string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.resolveErr != nil {
		return "", p.resolveErr
	}
	if !p.live[id] {
		return "", types.NewError(types.ErrSessionUnknown, "unknown session "+id)
	}
	return "wss://mock.test/" + id, nil
}

// Created 返回创建次数
func (p *MockSessionProvider) Created() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.created
}

// Terminated 返回已终止的会话
func (p *MockSessionProvider) Terminated() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.terminated...)
}

// Live 返回仍存活的会话数
func (p *MockSessionProvider) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.live)
}
