// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package vision 使用视觉模型对截图进行打分，并缓存计费的模型调用结果。

# 概述

  - BuildPrompt：确定性的提示词模板，要求模型只返回一个 JSON 对象
  - Analyzer：调用 Model，提取第一个文本块中的第一个 JSON 对象，
    经 JSON Schema 校验后映射为 types.AnalysisResult；传输错误和无法解析的
    响应按 1s、2s 指数退避重试，结构不匹配直接返回 Error 结果
  - AnthropicModel：基于 anthropic-sdk-go Messages API 的 Model 实现
  - Cache：以 (截图哈希, 断言, 模型, Prompt 版本) 为键的 7 天缓存
  - CachedAnalyzer：先查缓存，未命中再调用 Analyzer，Error 结果永不缓存

Analyzer 从不返回 error，所有失败都表示为 Status 为 error 的 AnalysisResult。
*/
package vision
