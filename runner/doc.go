// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package runner 执行浏览器流程并产出 FlowRunResult。

# 概述

Runner 按顺序执行 Flow 中的步骤，遇到第一个失败步骤立即停止。
步骤失败是数据而不是错误：ExecuteStep 永远返回 StepResult，
不会 panic 也不会返回 error。

# 执行模式

  - local：共享一个惰性启动的本地浏览器进程，每个流程使用独立的
    浏览器上下文，结束时只关闭上下文
  - cloud：从 sessionpool 获取远程会话，连接后执行相同的步骤循环，
    结束时无论成败都归还会话

浏览器或会话准备失败会以索引 0 的合成失败步骤出现，Verdict 为 error。

# 视觉分析

配置了 StepAnalyzer 时，带断言的截图步骤（或使用流程意图）会交给
分析器评分：fail 结果使该步骤以断言失败结束，error 结果以分析错误结束。
运行的 Confidence 为所有已分析截图步骤中的最低值。

# 批量执行

ExecuteFlows 启动固定数量的 worker 从共享队列取流程执行，
结果顺序与输入无关。
*/
package runner
