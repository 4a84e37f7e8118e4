// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

// Package config 提供 FlowGuard 的配置管理功能。
//
// 配置按 默认值 → 兼容环境变量（ANTHROPIC_API_KEY、BROWSERBASE_API_KEY、
// BROWSERBASE_PROJECT_ID、EXECUTION_MODE）→ YAML 文件 → FLOWGUARD_ 前缀
// 环境变量 的顺序叠加，最后执行验证器。
package config
