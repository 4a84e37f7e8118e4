// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 migration 为 SQL 存储后端提供版本化 Schema 迁移，支持 PostgreSQL、
MySQL 与 SQLite，基于 golang-migrate 实现。

# 概述

迁移文件按方言内嵌在 migrations/{postgres,mysql,sqlite} 下，创建
vision_cache_entries 与 test_results 两张表。SQLite 使用纯 Go 的
modernc.org/sqlite 驱动，无需 CGO。

# 核心类型

  - Migrator / DefaultMigrator：Up、Down、DownAll、Steps、Goto、Force、
    Version、Status、Info。长时间运行的操作在 context 取消时
    通过 GracefulStop 在当前迁移结束后停止。
  - CLI：flowguard migrate 子命令的终端输出层，Run 按命令名分发。
  - NewMigratorFromDatabaseConfig：从 config.DatabaseConfig 构造迁移器。
*/
package migration
