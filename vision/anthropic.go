package vision

import (
	"context"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/BaSui01/flowguard/config"
	"github.com/BaSui01/flowguard/internal/tlsutil"
	"github.com/BaSui01/flowguard/types"
)

// MessagesClient Anthropic SDK 中被适配器使用的子集，*sdk.MessageService 满足该接口
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// AnthropicModel 基于 Claude Messages API 的 Model 实现
type AnthropicModel struct {
	msg       MessagesClient
	model     string
	maxTokens int
}

// ErrMissingCredential 未配置视觉模型 API Key
var ErrMissingCredential = types.NewError(types.ErrMissingCredential, "missing API credential")

// NewAnthropicModel 使用已有的 MessagesClient 构造模型
func NewAnthropicModel(msg MessagesClient, model string, maxTokens int) (*AnthropicModel, error) {
	if msg == nil {
		return nil, errors.New("anthropic messages client is required")
	}
	if model == "" {
		return nil, errors.New("anthropic model identifier is required")
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &AnthropicModel{msg: msg, model: model, maxTokens: maxTokens}, nil
}

// NewAnthropicModelFromConfig 使用 TLS 加固的 HTTP 客户端构造模型。
// 重试由 Analyzer 负责，SDK 自身的重试被关闭。
func NewAnthropicModelFromConfig(cfg config.VisionConfig) (*AnthropicModel, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingCredential
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(tlsutil.HTTPClient(cfg.Timeout)),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	ac := sdk.NewClient(opts...)
	return NewAnthropicModel(&ac.Messages, cfg.Model, cfg.MaxTokens)
}

// Name 实现 Model
func (m *AnthropicModel) Name() string {
	return m.model
}

// Analyze 实现 Model：图片块在前，文本块在后
func (m *AnthropicModel) Analyze(ctx context.Context, req Request) (*Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = m.maxTokens
	}
	mediaType := req.MediaType
	if mediaType == "" {
		mediaType = detectMediaType(req.ImageBase64)
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(m.model),
		MaxTokens: int64(maxTokens),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(
				sdk.NewImageBlockBase64(mediaType, req.ImageBase64),
				sdk.NewTextBlock(req.Prompt),
			),
		},
	}

	msg, err := m.msg.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic messages.new: %w", err)
	}
	if msg == nil {
		return nil, errors.New("anthropic: response message is nil")
	}

	resp := &Response{
		Usage: types.TokenUsage{
			Input:  msg.Usage.InputTokens,
			Output: msg.Usage.OutputTokens,
		},
	}
	for _, block := range msg.Content {
		if block.Type == "text" && block.Text != "" {
			resp.Texts = append(resp.Texts, block.Text)
		}
	}
	return resp, nil
}
