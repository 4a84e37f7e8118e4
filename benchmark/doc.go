// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package benchmark 评估视觉分析器对截图断言的判定准确率。

# 概述

  - Dataset / Example：带人工标注的截图断言数据集，JSON 格式
  - GenerateMockDataset：离线生成五类样例（无障碍、布局、响应式、
    暗黑模式、安全）
  - Predictor：调用视觉分析器为每个样例给出判定
  - Evaluate：计算准确率、精确率、召回率、F1 与混淆矩阵

正类为"断言成立"。缺少判定或判定出错的样例不参与统计。
*/
package benchmark
