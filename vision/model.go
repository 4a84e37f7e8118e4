package vision

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/BaSui01/flowguard/types"
)

// Request 单次视觉模型调用
type Request struct {
	// ImageBase64 截图的 base64 编码（不含 data URL 前缀）
	ImageBase64 string
	// MediaType 图片 MIME 类型，例如 image/png
	MediaType string
	// Prompt 文本提示词
	Prompt string
	// MaxTokens 响应上限
	MaxTokens int
}

// Response 模型返回的文本块与 Token 用量
type Response struct {
	Texts []string
	Usage types.TokenUsage
}

// FirstText 返回第一个非空文本块
func (r *Response) FirstText() (string, bool) {
	if r == nil {
		return "", false
	}
	for _, t := range r.Texts {
		if strings.TrimSpace(t) != "" {
			return t, true
		}
	}
	return "", false
}

// Model 视觉模型抽象
type Model interface {
	// Name 返回模型标识，参与缓存键与指标标签
	Name() string
	// Analyze 提交图片与提示词
	Analyze(ctx context.Context, req Request) (*Response, error)
}

// detectMediaType 根据 base64 数据头部识别图片类型，无法识别时按 PNG 处理
func detectMediaType(b64 string) string {
	n := len(b64)
	if n > 64 {
		n = 64
	}
	n -= n % 4
	head, err := base64.StdEncoding.DecodeString(b64[:n])
	if err != nil || len(head) == 0 {
		return "image/png"
	}
	mt := http.DetectContentType(head)
	switch mt {
	case "image/png", "image/jpeg", "image/gif", "image/webp":
		return mt
	}
	return "image/png"
}
