package browserbase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/flowguard/config"
	"github.com/BaSui01/flowguard/types"
)

type recordedRequest struct {
	Method string
	Path   string
	APIKey string
	Body   map[string]any
}

type fakeAPI struct {
	mu       sync.Mutex
	requests []recordedRequest
	status   int
}

func (f *fakeAPI) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{Method: r.Method, Path: r.URL.Path, APIKey: r.Header.Get("X-BB-API-Key")}
		if r.Body != nil && r.ContentLength != 0 {
			_ = json.NewDecoder(r.Body).Decode(&rec.Body)
		}
		f.mu.Lock()
		f.requests = append(f.requests, rec)
		status := f.status
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if status != 0 {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"statusCode":429,"error":"Too Many Requests","message":"concurrent session limit"}`))
			return
		}

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/sessions":
			_, _ = w.Write([]byte(`{"id":"sess-1","status":"RUNNING","region":"us-west-2","connectUrl":"wss://connect.test/sess-1","expiresAt":"2026-03-01T13:00:00Z"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/v1/sessions/sess-1":
			_, _ = w.Write([]byte(`{"id":"sess-1","status":"RUNNING","connectUrl":"wss://connect.test/sess-1"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/v1/sessions/sess-1":
			_, _ = w.Write([]byte(`{"id":"sess-1","status":"COMPLETED"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"not found"}`))
		}
	})
}

func (f *fakeAPI) last() recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newTestClient(t *testing.T) (*Client, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)

	cfg := config.DefaultBrowserbaseConfig()
	cfg.APIKey = "bb-key"
	cfg.ProjectID = "proj-1"
	cfg.BaseURL = srv.URL + "/"
	cfg.SessionTimeout = 10 * time.Minute

	c, err := NewClient(cfg, nil, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c, api
}

func TestNewClient_RequiresCredentials(t *testing.T) {
	_, err := NewClient(config.BrowserbaseConfig{ProjectID: "p"}, nil)
	assert.True(t, types.IsErrorCode(err, types.ErrMissingCredential))

	_, err = NewClient(config.BrowserbaseConfig{APIKey: "k"}, nil)
	assert.True(t, types.IsErrorCode(err, types.ErrMissingCredential))
}

func TestClient_CreateSession(t *testing.T) {
	c, api := newTestClient(t)

	s, err := c.CreateSession(context.Background(), CreateSessionOptions{})
	require.NoError(t, err)
	assert.Equal(t, "sess-1", s.ID)
	assert.Equal(t, "wss://connect.test/sess-1", s.ConnectURL)
	assert.True(t, s.ExpiresAt.Equal(time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)))

	req := api.last()
	assert.Equal(t, "bb-key", req.APIKey)
	assert.Equal(t, "proj-1", req.Body["projectId"])
	assert.Equal(t, "us-west-2", req.Body["region"])
	assert.Equal(t, float64(600), req.Body["timeout"])
}

func TestClient_CreateSessionOverrides(t *testing.T) {
	c, api := newTestClient(t)

	_, err := c.CreateSession(context.Background(), CreateSessionOptions{Region: "eu-central-1", Timeout: time.Minute, KeepAlive: true})
	require.NoError(t, err)

	req := api.last()
	assert.Equal(t, "eu-central-1", req.Body["region"])
	assert.Equal(t, float64(60), req.Body["timeout"])
	assert.Equal(t, true, req.Body["keepAlive"])
}

func TestClient_GetAndTerminate(t *testing.T) {
	c, api := newTestClient(t)
	ctx := context.Background()

	s, err := c.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "wss://connect.test/sess-1", s.ConnectURL)
	assert.Equal(t, http.MethodGet, api.last().Method)

	res, err := c.TerminateSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, &TerminateResult{ID: "sess-1", Status: "COMPLETED"}, res)
	req := api.last()
	assert.Equal(t, "REQUEST_RELEASE", req.Body["status"])
	assert.Equal(t, "proj-1", req.Body["projectId"])
}

func TestClient_ErrorStatus(t *testing.T) {
	c, api := newTestClient(t)
	api.mu.Lock()
	api.status = http.StatusTooManyRequests
	api.mu.Unlock()

	_, err := c.CreateSession(context.Background(), CreateSessionOptions{})
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrProviderError))
	assert.True(t, types.IsRetryable(err))
	assert.Contains(t, err.Error(), "concurrent session limit")
}

func TestClient_NotFoundIsNotRetryable(t *testing.T) {
	c, _ := newTestClient(t)

	_, err := c.GetSession(context.Background(), "missing")
	require.Error(t, err)
	assert.False(t, types.IsRetryable(err))
	assert.Contains(t, err.Error(), "status=404")
}

func TestClient_TransportError(t *testing.T) {
	cfg := config.BrowserbaseConfig{APIKey: "k", ProjectID: "p", BaseURL: "http://127.0.0.1:1", Timeout: time.Second}
	c, err := NewClient(cfg, nil)
	require.NoError(t, err)

	_, err = c.GetSession(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrProviderError))
}

func TestSessionSource(t *testing.T) {
	c, _ := newTestClient(t)
	src := NewSessionSource(c, CreateSessionOptions{})
	ctx := context.Background()

	id, err := src.Create(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", id)

	u, err := src.ConnectURL(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "wss://connect.test/sess-1", u)

	require.NoError(t, src.Terminate(ctx, id))
}
