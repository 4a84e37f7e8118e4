// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 database 提供基于 GORM 的数据库连接池管理，支持健康检查、
连接数指标与事务重试。

# 概述

Open 根据 config.DatabaseConfig 选择 postgres、mysql 或 sqlite 方言，
打开连接并包装为 PoolManager。SQL 存储后端通过 PoolManager 的事务接口
实现视觉缓存命中计数的原子更新。

# 核心类型

  - PoolManager：连接池管理器，持有 GORM DB 实例与底层 sql.DB。
  - PoolConfig：连接池配置，可由 PoolConfigFromDatabase 派生。
  - TransactionFunc：事务回调函数类型。

# 主要能力

  - 健康检查：后台定时 PingContext 探活，并通过 metrics.Collector
    上报打开与空闲连接数。
  - 事务管理：WithTransactionRetry 在死锁、序列化失败或 ErrConflict
    时指数退避重试。
*/
package database
