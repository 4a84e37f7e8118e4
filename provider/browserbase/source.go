package browserbase

import "context"

// SessionSource 将 Client 适配为会话池的提供方
type SessionSource struct {
	client *Client
	opts   CreateSessionOptions
}

// NewSessionSource 创建会话来源，opts 用于每次新建会话
func NewSessionSource(client *Client, opts CreateSessionOptions) *SessionSource {
	return &SessionSource{client: client, opts: opts}
}

// Create 新建会话并返回 ID
func (s *SessionSource) Create(ctx context.Context) (string, error) {
	sess, err := s.client.CreateSession(ctx, s.opts)
	if err != nil {
		return "", err
	}
	return sess.ID, nil
}

// Terminate 释放会话
func (s *SessionSource) Terminate(ctx context.Context, id string) error {
	_, err := s.client.TerminateSession(ctx, id)
	return err
}

// ConnectURL 查询会话的 CDP 连接地址
func (s *SessionSource) ConnectURL(ctx context.Context, id string) (string, error) {
	sess, err := s.client.GetSession(ctx, id)
	if err != nil {
		return "", err
	}
	return sess.ConnectURL, nil
}
