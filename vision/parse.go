package vision

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/BaSui01/flowguard/types"
)

// verdictSchema 模型响应的固定结构。confidence 不在此处限定范围，解析后统一钳制。
const verdictSchema = `{
  "type": "object",
  "required": ["canComplete"],
  "properties": {
    "canComplete": {"type": "boolean"},
    "confidence": {"type": "number"},
    "issues": {"type": "array", "items": {"type": "string"}},
    "suggestions": {"type": "array", "items": {"type": "string"}},
    "reasoning": {"type": "string"}
  }
}`

var (
	errNoText = errors.New("response contains no text block")
	errNoJSON = errors.New("response contains no JSON object")
)

// ShapeError 响应中的 JSON 对象可以解析但结构不符合要求，不应重试
type ShapeError struct {
	Err error
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("invalid response shape: %v", e.Err)
}

func (e *ShapeError) Unwrap() error {
	return e.Err
}

type verdictPayload struct {
	CanComplete bool     `json:"canComplete"`
	Confidence  float64  `json:"confidence"`
	Issues      []string `json:"issues"`
	Suggestions []string `json:"suggestions"`
	Reasoning   string   `json:"reasoning"`
}

var compileVerdictSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	var doc any
	if err := json.Unmarshal([]byte(verdictSchema), &doc); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("verdict.json", doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	return c.Compile("verdict.json")
})

// ParseVerdict 将模型文本解析为 pass/fail 结果。
// 没有 JSON 对象或 JSON 无法解析时返回普通错误（可重试）；
// 结构不匹配时返回 *ShapeError。
func ParseVerdict(text string) (types.AnalysisResult, error) {
	raw := extractJSONObject(text)
	if raw == "" {
		return types.AnalysisResult{}, errNoJSON
	}

	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return types.AnalysisResult{}, fmt.Errorf("malformed JSON: %w", err)
	}

	schema, err := compileVerdictSchema()
	if err != nil {
		return types.AnalysisResult{}, &ShapeError{Err: err}
	}
	if err := schema.Validate(doc); err != nil {
		return types.AnalysisResult{}, &ShapeError{Err: err}
	}

	var p verdictPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return types.AnalysisResult{}, &ShapeError{Err: err}
	}

	if p.CanComplete {
		return types.NewPassResult(p.Confidence, p.Reasoning), nil
	}
	return types.NewFailResult(p.Confidence, p.Reasoning, p.Issues, p.Suggestions), nil
}

// extractJSONObject 返回 s 中第一个括号配平的 JSON 对象子串，字符串字面量中的
// 括号不计数。找不到时返回空串。
func extractJSONObject(s string) string {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		ch := s[i]
		if start < 0 {
			if ch == '{' {
				start = i
				depth = 1
			}
			continue
		}
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
