package vision

import (
	"fmt"
	"strings"
)

// PromptVersion 参与缓存键，模板变更时必须递增
const PromptVersion = "v1"

const promptTemplate = `You are a UX testing assistant reviewing a screenshot of a web page.

User intent: %s
%s
Decide whether a user could complete the intent from the state shown in the screenshot.

Respond with a single JSON object and nothing else:
{
  "canComplete": true or false,
  "confidence": number from 0 to 100,
  "issues": ["problems that block or hinder the intent"],
  "suggestions": ["concrete fixes for the issues"],
  "reasoning": "one or two sentences explaining the decision"
}`

// BuildPrompt 构造视觉分析提示词。相同输入总是产生相同输出。
func BuildPrompt(intent, assertion string) string {
	intent = strings.TrimSpace(intent)
	assertion = strings.TrimSpace(assertion)

	var assertLine string
	if assertion != "" {
		assertLine = fmt.Sprintf("Assertion to verify: %s\n", assertion)
	}
	return fmt.Sprintf(promptTemplate, intent, assertLine)
}
