// =============================================================================
// 📦 测试数据工厂 - 流程与视觉响应
// =============================================================================
// 提供预定义的流程定义和模型响应文本，用于测试
// =============================================================================
package fixtures

import (
	"fmt"

	"github.com/BaSui01/flowguard/types"
)

// =============================================================================
// 🧭 流程工厂
// =============================================================================

// CheckoutFlow 返回导航后截图断言的结账流程
func CheckoutFlow() types.Flow {
	return types.Flow{
		Name:   "checkout",
		Intent: "User can complete checkout",
		Steps: []types.Step{
			{Action: types.ActionNavigate, Target: "https://x.test"},
			{Action: types.ActionScreenshot, Assertion: "button visible"},
		},
	}
}

// LoginFlow 返回包含全部动作类型的登录流程
func LoginFlow() types.Flow {
	return types.Flow{
		Name:     "login",
		Intent:   "User can sign in with email and password",
		URL:      "https://app.test/login",
		Viewport: &types.Viewport{Width: 1440, Height: 900},
		Steps: []types.Step{
			{Action: types.ActionType, Target: "#email", Value: "user@example.com"},
			{Action: types.ActionType, Target: "#password", Value: "secret"},
			{Action: types.ActionClick, Target: "button[type=submit]"},
			{Action: types.ActionWait, TimeoutMs: 10},
			{Action: types.ActionScroll, Value: "200"},
			{Action: types.ActionScreenshot, Assertion: "dashboard is shown"},
		},
	}
}

// NumberedFlows 返回 n 个只截图的流程
func NumberedFlows(n int) []types.Flow {
	flows := make([]types.Flow, n)
	for i := range flows {
		flows[i] = types.Flow{
			Name:   fmt.Sprintf("flow-%02d", i),
			Intent: "page renders",
			URL:    fmt.Sprintf("https://app.test/%d", i),
			Steps:  []types.Step{{Action: types.ActionScreenshot}},
		}
	}
	return flows
}

// =============================================================================
// 🤖 模型响应文本
// =============================================================================

// PassResponse 模型认为可以完成的响应
func PassResponse(confidence int) string {
	return fmt.Sprintf(`Here is my analysis:
{"canComplete": true, "confidence": %d, "issues": [], "suggestions": [], "reasoning": "The primary action is visible"}`, confidence)
}

// FailResponse 模型认为无法完成的响应
func FailResponse(confidence int, issue string) string {
	return fmt.Sprintf(`{"canComplete": false, "confidence": %d, "issues": [%q], "suggestions": ["Make the action visible"], "reasoning": "Blocked"}`, confidence, issue)
}
