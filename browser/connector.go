package browser

import (
	"context"
	"errors"
	"fmt"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/BaSui01/flowguard/types"
)

// Connector 连接远程浏览器会话
type Connector struct {
	logger *zap.Logger
}

// NewConnector 创建远程连接器
func NewConnector(logger *zap.Logger) *Connector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Connector{logger: logger.With(zap.String("component", "browser_connector"))}
}

// Connect 通过 CDP WebSocket 地址连接远程浏览器并打开页面。
// 关闭页面只断开连接，远程会话的生命周期由提供方管理。
func (c *Connector) Connect(ctx context.Context, connectURL string, viewport types.Viewport) (Page, error) {
	if connectURL == "" {
		return nil, errors.New("remote connect URL is empty")
	}
	if viewport.Width <= 0 || viewport.Height <= 0 {
		viewport = types.DefaultViewport()
	}

	allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.Background(), connectURL, chromedp.NoModifyURL)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			c.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)
	pg := newChromePage(tabCtx, tabCancel, allocCancel, viewport, c.logger)

	if err := pg.run(ctx, chromedp.EmulateViewport(int64(viewport.Width), int64(viewport.Height))); err != nil {
		_ = pg.Close()
		return nil, fmt.Errorf("failed to connect to remote browser: %w", err)
	}
	c.logger.Debug("connected to remote browser")
	return pg, nil
}
