// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
包 server 提供 FlowGuard 运维 HTTP 服务：健康检查、就绪检查、
版本信息与 Prometheus 指标。

# 核心类型

  - Manager：封装 net/http.Server 的生命周期，非阻塞启动、
    优雅关闭，Wait 监听 SIGINT/SIGTERM 或上下文结束。
  - Routes：挂载 /health、/ready、/version、/metrics，
    /ready 依次执行注册的存储后端检查。
  - Middleware：Recovery、RequestID、Tracing、Metrics、RequestLogger，
    通过 Chain 组合，DefaultMiddlewares 给出标准顺序。
*/
package server
