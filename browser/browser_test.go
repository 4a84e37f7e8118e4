package browser

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/flowguard/types"
)

func TestProcess_LazyStart(t *testing.T) {
	p := NewProcess(DefaultConfig(), nil)
	assert.False(t, p.Started())
	assert.Equal(t, 0, p.OpenPages())
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
}

func TestProcess_NewPageAfterClose(t *testing.T) {
	p := NewProcess(DefaultConfig(), nil)
	require.NoError(t, p.Close())

	_, err := p.NewPage(context.Background(), types.DefaultViewport())
	assert.ErrorIs(t, err, ErrClosed)
	assert.False(t, p.Started())
}

func TestProcess_DefaultViewport(t *testing.T) {
	p := NewProcess(Config{}, nil)
	assert.Equal(t, types.DefaultViewport(), p.config.Viewport)
}

func TestConnector_EmptyURL(t *testing.T) {
	_, err := NewConnector(nil).Connect(context.Background(), "", types.DefaultViewport())
	assert.Error(t, err)
}

func TestChromePage_CloseIsIdempotent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	released := 0
	pg := newChromePage(ctx, cancel, func() { released++ }, types.DefaultViewport(), zap.NewNop())

	require.NoError(t, pg.Close())
	require.NoError(t, pg.Close())
	assert.Equal(t, 1, released)
	assert.Error(t, ctx.Err())

	err := pg.Click(context.Background(), "#x")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = pg.Screenshot(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

const testPage = `<!doctype html>
<html><body style="height:3000px">
<input id="name" value="prefilled">
<button id="go" onclick="document.body.dataset.clicked='yes'">Go</button>
</body></html>`

// 需要本机安装 Chrome，设置 FLOWGUARD_CHROME_TESTS=1 启用
func TestProcess_RealBrowser(t *testing.T) {
	if os.Getenv("FLOWGUARD_CHROME_TESTS") == "" {
		t.Skip("FLOWGUARD_CHROME_TESTS not set")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(testPage))
	}))
	defer srv.Close()

	p := NewProcess(DefaultConfig(), nil)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pg, err := p.NewPage(ctx, types.Viewport{Width: 800, Height: 600})
	require.NoError(t, err)
	defer pg.Close()
	assert.True(t, p.Started())
	assert.Equal(t, 1, p.OpenPages())

	require.NoError(t, pg.Navigate(ctx, srv.URL, 30*time.Second))
	require.NoError(t, pg.Type(ctx, "#name", "flowguard"))
	require.NoError(t, pg.Click(ctx, "#go"))
	require.NoError(t, pg.Scroll(ctx, 500))

	png, err := pg.Screenshot(ctx)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	shortCtx, shortCancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer shortCancel()
	assert.Error(t, pg.Click(shortCtx, "#missing"))

	require.NoError(t, pg.Close())
	assert.Equal(t, 0, p.OpenPages())
}
