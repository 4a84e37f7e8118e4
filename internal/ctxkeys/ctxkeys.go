// Package ctxkeys 定义跨包传递的运行上下文键，供日志关联流程运行。
package ctxkeys

import "context"

// contextKey 用于在 context 中存储值的键类型
type contextKey string

const (
	runIDKey    contextKey = "run_id"
	flowNameKey contextKey = "flow_name"
	stepKey     contextKey = "step_index"
)

// WithRunID 设置流程运行 ID
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunID 获取流程运行 ID
func RunID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(runIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithFlowName 设置流程名
func WithFlowName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, flowNameKey, name)
}

// FlowName 获取流程名
func FlowName(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(flowNameKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithStepIndex 设置当前步骤序号
func WithStepIndex(ctx context.Context, index int) context.Context {
	return context.WithValue(ctx, stepKey, index)
}

// StepIndex 获取当前步骤序号
func StepIndex(ctx context.Context) (int, bool) {
	v, ok := ctx.Value(stepKey).(int)
	return v, ok
}
