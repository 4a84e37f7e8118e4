// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package browserbase 是远程浏览器会话提供方 Browserbase 的 HTTP 客户端。

Client 封装会话的创建、查询与终止，请求使用 X-BB-API-Key 认证。
SessionSource 将 Client 适配为会话池所需的 Create/Terminate 接口。
*/
package browserbase
