package browserbase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/flowguard/config"
	"github.com/BaSui01/flowguard/internal/tlsutil"
	"github.com/BaSui01/flowguard/types"
)

const apiKeyHeader = "X-BB-API-Key"

// Session 远程浏览器会话
type Session struct {
	ID         string    `json:"id"`
	Status     string    `json:"status"`
	ProjectID  string    `json:"projectId,omitempty"`
	Region     string    `json:"region,omitempty"`
	ConnectURL string    `json:"connectUrl"`
	CreatedAt  time.Time `json:"createdAt,omitempty"`
	ExpiresAt  time.Time `json:"expiresAt,omitempty"`
}

// TerminateResult 终止会话的结果
type TerminateResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// CreateSessionOptions 创建会话参数，零值字段使用客户端配置
type CreateSessionOptions struct {
	Region    string
	Timeout   time.Duration
	KeepAlive bool
}

type createSessionRequest struct {
	ProjectID string `json:"projectId"`
	Region    string `json:"region,omitempty"`
	Timeout   int    `json:"timeout,omitempty"`
	KeepAlive bool   `json:"keepAlive,omitempty"`
}

type updateSessionRequest struct {
	ProjectID string `json:"projectId"`
	Status    string `json:"status"`
}

// Client Browserbase API 客户端
type Client struct {
	cfg        config.BrowserbaseConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// ClientOption 客户端选项
type ClientOption func(*Client)

// WithHTTPClient 替换 HTTP 客户端
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.httpClient = c }
}

// NewClient 创建客户端
func NewClient(cfg config.BrowserbaseConfig, logger *zap.Logger, opts ...ClientOption) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, types.NewError(types.ErrMissingCredential, "browserbase API key is required")
	}
	if cfg.ProjectID == "" {
		return nil, types.NewError(types.ErrMissingCredential, "browserbase project id is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = config.DefaultBrowserbaseConfig().BaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		cfg:        cfg,
		httpClient: tlsutil.HTTPClient(timeout),
		logger:     logger.With(zap.String("component", "browserbase")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CreateSession 创建远程会话
func (c *Client) CreateSession(ctx context.Context, opts CreateSessionOptions) (*Session, error) {
	body := createSessionRequest{
		ProjectID: c.cfg.ProjectID,
		Region:    opts.Region,
		KeepAlive: opts.KeepAlive,
	}
	if body.Region == "" {
		body.Region = c.cfg.Region
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.cfg.SessionTimeout
	}
	if timeout > 0 {
		body.Timeout = int(timeout / time.Second)
	}

	var s Session
	if err := c.do(ctx, http.MethodPost, "/v1/sessions", body, &s); err != nil {
		return nil, err
	}
	c.logger.Debug("session created", zap.String("session_id", s.ID), zap.String("region", s.Region))
	return &s, nil
}

// GetSession 查询会话，包含连接地址
func (c *Client) GetSession(ctx context.Context, id string) (*Session, error) {
	var s Session
	if err := c.do(ctx, http.MethodGet, "/v1/sessions/"+url.PathEscape(id), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// TerminateSession 请求释放会话
func (c *Client) TerminateSession(ctx context.Context, id string) (*TerminateResult, error) {
	body := updateSessionRequest{ProjectID: c.cfg.ProjectID, Status: "REQUEST_RELEASE"}
	var s Session
	if err := c.do(ctx, http.MethodPost, "/v1/sessions/"+url.PathEscape(id), body, &s); err != nil {
		return nil, err
	}
	c.logger.Debug("session terminated", zap.String("session_id", id))
	return &TerminateResult{ID: s.ID, Status: s.Status}, nil
}

// do 发送 JSON 请求并解码响应
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.cfg.BaseURL, "/")+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return types.NewError(types.ErrProviderError, fmt.Sprintf("%s %s", method, path)).
			WithCause(err).
			WithRetryable(!errors.Is(err, context.Canceled))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := readErrorMessage(resp.Body)
		return types.NewError(types.ErrProviderError,
			fmt.Sprintf("%s %s: status=%d msg=%s", method, path, resp.StatusCode, msg)).
			WithRetryable(resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return types.NewError(types.ErrProviderError, "failed to decode response").WithCause(err)
	}
	return nil
}

// readErrorMessage 读取错误响应，优先使用 JSON 中的 message 字段
func readErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 64<<10))
	if err != nil {
		return "failed to read error response"
	}
	var errResp struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Message != "" {
		if errResp.Error != "" {
			return fmt.Sprintf("%s (%s)", errResp.Message, errResp.Error)
		}
		return errResp.Message
	}
	return strings.TrimSpace(string(data))
}
