// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package testutil 提供 FlowGuard 测试的共享工具和辅助函数。

# 概述

testutil 包为 runner、vision、sessionpool 等包的单元测试提供统一的
辅助能力，避免各包重复实现相似的测试基础设施。

# 核心能力

  - 上下文辅助: TestContext，自动注册 Cleanup
  - 断言工具: AssertVerdict / AssertStepActions / AssertEventuallyTrue
  - 数据工具: MustJSON / MustParseJSON

# 子包

  - testutil/mocks: MockPage、MockBrowser、MockConnector、
    MockSessionProvider、MockAnalyzer、MockVisionModel、MockResultSaver，
    均支持 Builder 模式与错误注入
  - testutil/fixtures: 预置流程定义与模型响应文本

# 使用示例

	page := mocks.NewMockPage().WithSelectorError("#buy", errors.New("not found"))
	r := runner.New(cfg, nil, runner.WithLocalBrowser(mocks.NewMockBrowser(func() *mocks.MockPage { return page })))
	result := r.ExecuteFlow(testutil.TestContext(t), fixtures.CheckoutFlow(), t.TempDir())
	testutil.AssertVerdict(t, types.VerdictPass, result)
*/
package testutil
