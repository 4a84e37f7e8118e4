// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package browser 基于 chromedp 提供流程执行所需的页面抽象。

# 概述

  - Page：导航（等待网络空闲）、点击、输入、截图、滚动
  - Process：本地共享 Chrome 进程，首次使用时启动；每个 NewPage 拥有
    独立的浏览器上下文，Cookie 与存储互不共享
  - Connector：通过 CDP WebSocket 地址连接远程浏览器会话

Page 的所有操作都遵循调用方 ctx 的取消与超时。
*/
package browser
