// =============================================================================
// 🧪 测试辅助函数
// =============================================================================
// 提供通用的测试辅助函数和断言
//
// 使用方法:
//
//	ctx := testutil.TestContext(t)
//	testutil.AssertVerdict(t, types.VerdictPass, result)
//	testutil.AssertEventuallyTrue(t, func() bool { return condition }, 5*time.Second)
// =============================================================================
package testutil

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/flowguard/types"
)

// =============================================================================
// 🎯 上下文辅助
// =============================================================================

// TestContext 返回带超时的测试上下文
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// =============================================================================
// 🔍 断言辅助
// =============================================================================

// AssertVerdict 断言运行结果的 Verdict，失败时输出各步骤错误
func AssertVerdict(t *testing.T, expected types.Verdict, result *types.FlowRunResult) {
	t.Helper()
	require.NotNil(t, result)
	if result.Verdict != expected {
		for _, s := range result.Steps {
			t.Logf("step %d %s success=%v kind=%s error=%q", s.StepIndex, s.Action, s.Success, s.ErrorKind, s.Error)
		}
	}
	assert.Equal(t, expected, result.Verdict)
}

// AssertStepActions 断言执行过的步骤动作序列
func AssertStepActions(t *testing.T, expected []types.Action, steps []types.StepResult) {
	t.Helper()
	actual := make([]types.Action, len(steps))
	for i, s := range steps {
		actual[i] = s.Action
	}
	assert.Equal(t, expected, actual)
}

// AssertEventuallyTrue 断言条件最终为真
func AssertEventuallyTrue(t *testing.T, condition func() bool, timeout time.Duration) {
	t.Helper()
	assert.Eventually(t, condition, timeout, 10*time.Millisecond)
}

// =============================================================================
// 🔧 测试数据辅助
// =============================================================================

// MustJSON 将值转换为 JSON 字符串，失败时 panic
func MustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(data)
}

// MustParseJSON 解析 JSON 字符串，失败时 panic
func MustParseJSON[T any](s string) T {
	var v T
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		panic(err)
	}
	return v
}

