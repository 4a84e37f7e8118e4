// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 FlowGuard 命令行入口。

# 概述

cmd/flowguard 加载 YAML 配置与环境变量，按配置装配存储后端、
视觉分析器（含结果缓存）、远程会话池与 Runner，并提供以下子命令：

  - run      执行流程文件中的全部流程，输出判定并以退出码汇总
  - serve    启动运维 HTTP 服务（/health、/ready、/version、/metrics），
    可按固定间隔周期执行流程
  - migrate  SQL 存储后端的版本化迁移
  - bench    视觉判定基准：生成数据集、批量预测、评估指标
  - health   探测运行中的运维服务
  - version  打印构建注入的版本信息

退出码：0 全部通过，1 存在断言失败，2 存在执行错误或命令无法运行。
*/
package main
