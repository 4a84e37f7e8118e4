package runner

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/BaSui01/flowguard/types"
)

// ErrNoFlows 表示流程文件中没有任何流程
var ErrNoFlows = errors.New("no flows defined")

// LoadFlows 读取 JSON 流程文件，内容可以是单个流程或流程数组。
// 不做语义校验：未知动作与缺失字段在执行时作为步骤错误报告。
func LoadFlows(path string) ([]types.Flow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read flows: %w", err)
	}
	return DecodeFlows(data)
}

// DecodeFlows 解码 JSON 流程定义
func DecodeFlows(data []byte) ([]types.Flow, error) {
	trimmed := bytes.TrimSpace(data)
	var flows []types.Flow
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var f types.Flow
		if err := json.Unmarshal(trimmed, &f); err != nil {
			return nil, fmt.Errorf("decode flow: %w", err)
		}
		flows = []types.Flow{f}
	} else if err := json.Unmarshal(trimmed, &flows); err != nil {
		return nil, fmt.Errorf("decode flows: %w", err)
	}
	if len(flows) == 0 {
		return nil, ErrNoFlows
	}
	return flows, nil
}
