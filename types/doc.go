// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 FlowGuard 执行核心的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 runner、sessionpool、
vision、storage 等上层模块提供统一的数据契约，避免循环依赖。

# 核心类型

  - Flow / Step        ：调用方提供的不可变流程定义
  - StepResult         ：单步执行结果（只追加，创建后不再修改）
  - FlowRunResult      ：一次流程运行的完整产物，Verdict 由步骤结果推导
  - AnalysisResult     ：视觉分析结果，pass / fail / error 三选一的标签联合
  - VisionCacheKey     ：(截图哈希, 断言, 模型, Prompt 版本) 缓存键
  - VisionCacheEntry   ：视觉判定缓存条目，7 天过期
  - Error / ErrorCode  ：结构化错误体系，含 Retryable 标记

# 主要能力

  - Verdict 推导：DeriveVerdict 区分断言失败与执行错误
  - 分析结果构造：NewPassResult / NewFailResult / NewErrorResult
  - 错误工具链：NewError / WithCause / IsErrorCode / IsRetryable
*/
package types
