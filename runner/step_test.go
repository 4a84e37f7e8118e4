package runner

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/flowguard/config"
	"github.com/BaSui01/flowguard/testutil"
	"github.com/BaSui01/flowguard/testutil/mocks"
	"github.com/BaSui01/flowguard/types"
)

func testRunnerConfig() config.RunnerConfig {
	cfg := config.DefaultRunnerConfig()
	cfg.NavigationTimeout = time.Second
	cfg.ActionTimeout = time.Second
	return cfg
}

func TestExecuteStep_Navigate(t *testing.T) {
	r := New(testRunnerConfig(), nil)
	page := mocks.NewMockPage()

	res := r.ExecuteStep(testutil.TestContext(t), page, types.Step{Action: types.ActionNavigate, Target: "https://x.test"}, 0, t.TempDir())
	assert.True(t, res.Success)
	assert.Empty(t, res.Error)
	assert.Equal(t, []mocks.PageCall{{Method: "Navigate", Arg: "https://x.test"}}, page.Calls())
}

func TestExecuteStep_MissingTarget(t *testing.T) {
	r := New(testRunnerConfig(), nil)

	for _, action := range []types.Action{types.ActionNavigate, types.ActionClick, types.ActionType} {
		t.Run(string(action), func(t *testing.T) {
			page := mocks.NewMockPage()
			res := r.ExecuteStep(testutil.TestContext(t), page, types.Step{Action: action}, 2, t.TempDir())
			assert.False(t, res.Success)
			assert.Equal(t, 2, res.StepIndex)
			assert.Equal(t, types.ErrorKindStep, res.ErrorKind)
			assert.Contains(t, res.Error, string(types.ErrMissingTarget))
			assert.Empty(t, page.Calls())
		})
	}
}

func TestExecuteStep_UnknownAction(t *testing.T) {
	r := New(testRunnerConfig(), nil)

	for _, action := range []types.Action{"hover", "", "NAVIGATE"} {
		page := mocks.NewMockPage()
		res := r.ExecuteStep(testutil.TestContext(t), page, types.Step{Action: action, Target: "#x"}, 0, t.TempDir())
		assert.False(t, res.Success, "action %q", action)
		assert.Equal(t, types.ErrorKindStep, res.ErrorKind)
		assert.Contains(t, res.Error, string(types.ErrUnknownAction))
		assert.Contains(t, res.Error, fmt.Sprintf("%q", action))
		assert.Empty(t, page.Calls())
	}
}

func TestExecuteStep_TypeDefaultsToEmptyValue(t *testing.T) {
	r := New(testRunnerConfig(), nil)
	page := mocks.NewMockPage()

	res := r.ExecuteStep(testutil.TestContext(t), page, types.Step{Action: types.ActionType, Target: "#q"}, 0, t.TempDir())
	require.True(t, res.Success)
	assert.Equal(t, []mocks.PageCall{{Method: "Type", Arg: "#q", Value: ""}}, page.Calls())
}

func TestExecuteStep_ClickFailure(t *testing.T) {
	r := New(testRunnerConfig(), nil)
	page := mocks.NewMockPage().WithSelectorError("#buy", errors.New("element not found"))

	res := r.ExecuteStep(testutil.TestContext(t), page, types.Step{Action: types.ActionClick, Target: "#buy"}, 1, t.TempDir())
	assert.False(t, res.Success)
	assert.Equal(t, "element not found", res.Error)
	assert.GreaterOrEqual(t, res.DurationMs, int64(0))
}

func TestExecuteStep_StepTimeout(t *testing.T) {
	r := New(testRunnerConfig(), nil)
	page := mocks.NewMockPage().WithDelay(200 * time.Millisecond)

	res := r.ExecuteStep(testutil.TestContext(t), page, types.Step{Action: types.ActionClick, Target: "#slow", TimeoutMs: 10}, 0, t.TempDir())
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, string(types.ErrTimeout))
	assert.Less(t, res.DurationMs, int64(200))
}

func TestExecuteStep_Screenshot(t *testing.T) {
	r := New(testRunnerConfig(), nil)
	dir := filepath.Join(t.TempDir(), "run")
	page := mocks.NewMockPage()

	res := r.ExecuteStep(testutil.TestContext(t), page, types.Step{Action: types.ActionScreenshot}, 3, dir)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, filepath.Join(dir, "step-3.png"), res.ScreenshotRef)
	assert.Equal(t, base64.StdEncoding.EncodeToString(mocks.PNGBytes()), res.ScreenshotBase64)

	data, err := os.ReadFile(res.ScreenshotRef)
	require.NoError(t, err)
	assert.Equal(t, mocks.PNGBytes(), data)
}

func TestExecuteStep_ScreenshotInvalidDir(t *testing.T) {
	r := New(testRunnerConfig(), nil)

	res := r.ExecuteStep(testutil.TestContext(t), mocks.NewMockPage(), types.Step{Action: types.ActionScreenshot}, 0, "")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, string(types.ErrInvalidPath))

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	res = r.ExecuteStep(testutil.TestContext(t), mocks.NewMockPage(), types.Step{Action: types.ActionScreenshot}, 0, file)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "not a directory")
}

func TestExecuteStep_Wait(t *testing.T) {
	r := New(testRunnerConfig(), nil)
	page := mocks.NewMockPage()

	start := time.Now()
	res := r.ExecuteStep(testutil.TestContext(t), page, types.Step{Action: types.ActionWait, TimeoutMs: 30}, 0, t.TempDir())
	assert.True(t, res.Success)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.Empty(t, page.Calls())
}

func TestExecuteStep_WaitHonorsContext(t *testing.T) {
	r := New(testRunnerConfig(), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	res := r.ExecuteStep(ctx, mocks.NewMockPage(), types.Step{Action: types.ActionWait, TimeoutMs: 5000}, 0, t.TempDir())
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, string(types.ErrTimeout))
}

func TestExecuteStep_Scroll(t *testing.T) {
	r := New(testRunnerConfig(), nil)

	tests := []struct {
		name    string
		value   string
		want    string
		success bool
	}{
		{name: "default", value: "", want: "500", success: true},
		{name: "explicit", value: "200", want: "200", success: true},
		{name: "negative", value: "-120", want: "-120", success: true},
		{name: "invalid", value: "far", success: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := mocks.NewMockPage()
			res := r.ExecuteStep(testutil.TestContext(t), page, types.Step{Action: types.ActionScroll, Value: tt.value}, 0, t.TempDir())
			assert.Equal(t, tt.success, res.Success)
			if tt.success {
				assert.Equal(t, []mocks.PageCall{{Method: "Scroll", Arg: tt.want}}, page.Calls())
			} else {
				assert.Contains(t, res.Error, "invalid scroll value")
			}
		})
	}
}

func TestRunDir(t *testing.T) {
	dir, err := runDir("/tmp/out", "checkout / pay", "run-1")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/tmp/out", "checkout___pay-run-1"), dir)

	dir, err = runDir("out", "../../etc", "x")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("out", "______etc-x"), dir)

	_, err = runDir(" ", "flow", "x")
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidPath))
}
