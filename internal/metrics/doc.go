// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的 FlowGuard 指标采集能力，覆盖
HTTP、流程执行、会话池、视觉模型、缓存与数据库六个维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制，避免手动管理 Registry。所有指标按 namespace 隔离。
Collector 的 Record 方法对 nil 接收者安全，未注入收集器的组件无需判空。

# 主要能力

  - HTTP 指标：请求总数与耗时，状态码归类为 2xx/3xx/4xx/5xx。
  - 流程指标：按 mode/verdict 统计运行次数，运行与步骤耗时。
  - 会话池指标：idle/active Gauge、获取等待耗时、按原因统计销毁次数。
  - 视觉模型指标：请求数、耗时、输入/输出 Token、调用成本。
  - 缓存指标：命中与未命中计数，按 cache_type 分组。
  - 数据库指标：活跃/空闲连接数 Gauge。
*/
package metrics
