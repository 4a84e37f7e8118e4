// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package storage 定义 FlowGuard 执行核心依赖的持久化契约，并提供内存实现。

# 概述

执行核心只需要三个操作：

  - GetCachedVisionResult：查找未过期的视觉缓存条目，命中计数在同一原子操作内加一
  - CacheVisionResult：只插入不更新，允许重复，读取时取最新的未过期条目
  - SaveTestResult：保存一次流程运行结果

子包 mongo、redis、sql 分别基于 MongoDB FindOneAndUpdate、Redis Lua 脚本
和 GORM 事务实现同一契约。
*/
package storage
