package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/BaSui01/flowguard/types"
)

// Process 本地共享浏览器进程。首次 NewPage 时启动，Close 时退出。
// 每个页面运行在独立的浏览器上下文中。
type Process struct {
	config Config
	logger *zap.Logger

	mu            sync.Mutex
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	pages         int
	closed        bool
}

// NewProcess 创建尚未启动的浏览器进程
func NewProcess(config Config, logger *zap.Logger) *Process {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Viewport.Width <= 0 || config.Viewport.Height <= 0 {
		config.Viewport = types.DefaultViewport()
	}
	return &Process{
		config: config,
		logger: logger.With(zap.String("component", "browser_process")),
	}
}

// allocatorOptions 构造 Chrome 启动参数
func (p *Process) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", p.config.Headless),
		chromedp.WindowSize(p.config.Viewport.Width, p.config.Viewport.Height),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if p.config.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(p.config.ExecPath))
	}
	if p.config.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(p.config.UserAgent))
	}
	if p.config.ProxyURL != "" {
		opts = append(opts, chromedp.ProxyServer(p.config.ProxyURL))
	}
	return opts
}

// start 启动浏览器，调用方需持有 p.mu
func (p *Process) start() error {
	if p.browserCtx != nil {
		return nil
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), p.allocatorOptions()...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			p.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)

	startCtx := browserCtx
	if p.config.LaunchWait > 0 {
		var cancel context.CancelFunc
		startCtx, cancel = context.WithTimeout(browserCtx, p.config.LaunchWait)
		defer cancel()
	}
	if err := chromedp.Run(startCtx); err != nil {
		browserCancel()
		allocCancel()
		return fmt.Errorf("failed to start browser: %w", err)
	}

	p.allocCancel = allocCancel
	p.browserCtx = browserCtx
	p.browserCancel = browserCancel

	p.logger.Info("chromedp browser started",
		zap.Bool("headless", p.config.Headless),
		zap.Int("viewport_w", p.config.Viewport.Width),
		zap.Int("viewport_h", p.config.Viewport.Height))
	return nil
}

// NewPage 在新的浏览器上下文中打开页面，必要时先启动浏览器
func (p *Process) NewPage(ctx context.Context, viewport types.Viewport) (Page, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	if err := p.start(); err != nil {
		p.mu.Unlock()
		return nil, err
	}
	browserCtx := p.browserCtx
	p.pages++
	p.mu.Unlock()

	if viewport.Width <= 0 || viewport.Height <= 0 {
		viewport = p.config.Viewport
	}

	tabCtx, tabCancel := chromedp.NewContext(browserCtx, chromedp.WithNewBrowserContext())
	pg := newChromePage(tabCtx, tabCancel, p.pageClosed, viewport, p.logger)

	if err := pg.run(ctx, chromedp.EmulateViewport(int64(viewport.Width), int64(viewport.Height))); err != nil {
		_ = pg.Close()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	return pg, nil
}

func (p *Process) pageClosed() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pages > 0 {
		p.pages--
	}
}

// OpenPages 返回尚未关闭的页面数
func (p *Process) OpenPages() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pages
}

// Started 报告浏览器是否已启动
func (p *Process) Started() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.browserCtx != nil
}

// Close 退出浏览器进程，可重复调用
func (p *Process) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.browserCtx == nil {
		return nil
	}

	p.logger.Info("closing chromedp browser")
	p.browserCancel()
	p.allocCancel()
	p.browserCtx = nil
	return nil
}
