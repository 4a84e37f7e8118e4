// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package sessionpool 维护有上限的远程浏览器会话池。

# 概述

会话只会处于 idle 或 active 两个集合之一，所有迁移都在同一把互斥锁内完成，
提供方调用（创建、终止）始终在锁外执行。创建中的会话通过 pending 计数
占用名额，因此 idle + active + pending 永远不超过 MaxSessions。

  - Acquire：优先复用空闲时间未超过 IdleTimeout 的会话（UseCount 最小者优先），
    否则在名额允许时新建，再否则每 PollInterval 轮询一次，直到 AcquireTimeout
  - Release：超过 SessionLifetime 或 UseCount 超过 MaxUseCount 的会话被销毁，
    其余回到空闲集合
  - 后台每 CleanupInterval 清理过期空闲会话；清理只处理加锁时仍在 idle 中的
    会话，与 Acquire 竞争时总是 Acquire 胜出
  - Shutdown：停止清理并销毁所有会话

提供方错误只记录日志，不会破坏池的记账。
*/
package sessionpool
