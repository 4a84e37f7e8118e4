package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/BaSui01/flowguard/types"
)

// chromePage 基于 chromedp 标签页上下文的 Page 实现
type chromePage struct {
	ctx      context.Context
	cancel   context.CancelFunc
	release  func()
	viewport types.Viewport
	logger   *zap.Logger

	mu     sync.Mutex
	closed bool
}

func newChromePage(ctx context.Context, cancel context.CancelFunc, release func(), viewport types.Viewport, logger *zap.Logger) *chromePage {
	return &chromePage{
		ctx:      ctx,
		cancel:   cancel,
		release:  release,
		viewport: viewport,
		logger:   logger,
	}
}

// run 在标签页上下文中执行 actions，同时遵循调用方 ctx 的取消与截止时间
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrClosed
	}

	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Navigate 实现 Page。网络空闲以 lifecycle 事件 networkIdle 判断，
// 只接受本次导航产生的新文档的事件。
func (p *chromePage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	idle := make(chan struct{})
	var (
		once     sync.Once
		mu       sync.Mutex
		loaderID cdp.LoaderID
	)

	listenCtx, stopListening := context.WithCancel(p.ctx)
	defer stopListening()
	chromedp.ListenTarget(listenCtx, func(ev any) {
		e, ok := ev.(*page.EventLifecycleEvent)
		if !ok {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		switch e.Name {
		case "init":
			if loaderID == "" {
				loaderID = e.LoaderID
			}
		case "networkIdle":
			if loaderID != "" && e.LoaderID == loaderID {
				once.Do(func() { close(idle) })
			}
		}
	})

	p.logger.Debug("navigating", zap.String("url", url))
	if err := p.run(ctx,
		page.SetLifecycleEventsEnabled(true),
		chromedp.Navigate(url),
	); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("navigate %s: waiting for network idle: %w", url, ctx.Err())
	}
}

// Click 实现 Page
func (p *chromePage) Click(ctx context.Context, selector string) error {
	p.logger.Debug("clicking", zap.String("selector", selector))
	if err := p.run(ctx, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("click %q: %w", selector, err)
	}
	return nil
}

// Type 实现 Page
func (p *chromePage) Type(ctx context.Context, selector, value string) error {
	p.logger.Debug("typing", zap.String("selector", selector), zap.Int("length", len(value)))
	actions := []chromedp.Action{chromedp.Clear(selector, chromedp.ByQuery)}
	if value != "" {
		actions = append(actions, chromedp.SendKeys(selector, value, chromedp.ByQuery))
	}
	if err := p.run(ctx, actions...); err != nil {
		return fmt.Errorf("type into %q: %w", selector, err)
	}
	return nil
}

// Screenshot 实现 Page。quality 为 100 时 chromedp 输出 PNG。
func (p *chromePage) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return buf, nil
}

// Scroll 实现 Page，在视口中心派发滚轮事件
func (p *chromePage) Scroll(ctx context.Context, pixels int) error {
	x := float64(p.viewport.Width) / 2
	y := float64(p.viewport.Height) / 2
	p.logger.Debug("scrolling", zap.Int("pixels", pixels))
	return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return input.DispatchMouseEvent(input.MouseWheel, x, y).
			WithDeltaX(0).
			WithDeltaY(float64(pixels)).Do(ctx)
	}))
}

// Close 实现 Page，可重复调用
func (p *chromePage) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	if p.release != nil {
		p.release()
	}
	return nil
}
