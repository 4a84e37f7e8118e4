package browser

import (
	"context"
	"errors"
	"time"

	"github.com/BaSui01/flowguard/types"
)

// ErrClosed 进程或页面已关闭
var ErrClosed = errors.New("browser closed")

// Page 单个隔离的浏览器页面
type Page interface {
	// Navigate 打开 url 并等待网络空闲，timeout 为整体上限
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	// Click 点击第一个匹配 selector 的可见元素
	Click(ctx context.Context, selector string) error
	// Type 清空匹配 selector 的输入框并写入 value
	Type(ctx context.Context, selector, value string) error
	// Screenshot 截取整页 PNG
	Screenshot(ctx context.Context) ([]byte, error)
	// Scroll 纵向滚动 pixels 像素
	Scroll(ctx context.Context, pixels int) error
	// Close 释放页面及其浏览器上下文
	Close() error
}

// Config 本地浏览器配置
type Config struct {
	Headless   bool
	ExecPath   string
	Viewport   types.Viewport
	UserAgent  string
	ProxyURL   string
	LaunchWait time.Duration
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		Headless:   true,
		Viewport:   types.DefaultViewport(),
		LaunchWait: 30 * time.Second,
	}
}
