package runner

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/flowguard/browser"
	"github.com/BaSui01/flowguard/types"
)

const (
	defaultWait         = time.Second
	defaultScrollPixels = 500
)

// ExecuteStep 在 page 上执行单个步骤。失败以 StepResult 返回，不会 panic。
func (r *Runner) ExecuteStep(ctx context.Context, page browser.Page, step types.Step, index int, screenshotDir string) (result types.StepResult) {
	start := time.Now()
	result = types.StepResult{StepIndex: index, Action: step.Action}

	defer func() {
		if rec := recover(); rec != nil {
			result.Success = false
			result.Error = fmt.Sprintf("step panicked: %v", rec)
			result.ErrorKind = types.ErrorKindStep
		}
		result.DurationMs = time.Since(start).Milliseconds()
		r.collector.RecordStep(string(step.Action), result.Success, time.Since(start))
	}()

	var err error
	if !step.Action.Valid() {
		err = types.NewError(types.ErrUnknownAction, fmt.Sprintf("unknown action %q", step.Action))
	}
	switch step.Action {
	case types.ActionNavigate:
		err = r.navigate(ctx, page, step)
	case types.ActionClick:
		err = r.click(ctx, page, step)
	case types.ActionType:
		err = r.typeText(ctx, page, step)
	case types.ActionScreenshot:
		result.ScreenshotRef, result.ScreenshotBase64, err = r.screenshot(ctx, page, step, index, screenshotDir)
	case types.ActionWait:
		err = wait(ctx, step.Timeout(defaultWait))
	case types.ActionScroll:
		err = r.scroll(ctx, page, step)
	}

	if err != nil {
		result.Success = false
		result.Error = stepErrorMessage(err)
		result.ErrorKind = types.ErrorKindStep
		r.logger.Debug("步骤执行失败",
			zap.Int("step", index),
			zap.String("action", string(step.Action)),
			zap.Error(err))
		return result
	}
	result.Success = true
	return result
}

func (r *Runner) navigate(ctx context.Context, page browser.Page, step types.Step) error {
	if step.Target == "" {
		return types.NewError(types.ErrMissingTarget, "navigate requires a target URL")
	}
	return page.Navigate(ctx, step.Target, step.Timeout(r.cfg.NavigationTimeout))
}

func (r *Runner) click(ctx context.Context, page browser.Page, step types.Step) error {
	if step.Target == "" {
		return types.NewError(types.ErrMissingTarget, "click requires a target selector")
	}
	actx, cancel := context.WithTimeout(ctx, step.Timeout(r.cfg.ActionTimeout))
	defer cancel()
	return page.Click(actx, step.Target)
}

func (r *Runner) typeText(ctx context.Context, page browser.Page, step types.Step) error {
	if step.Target == "" {
		return types.NewError(types.ErrMissingTarget, "type requires a target selector")
	}
	actx, cancel := context.WithTimeout(ctx, step.Timeout(r.cfg.ActionTimeout))
	defer cancel()
	return page.Type(actx, step.Target, step.Value)
}

func (r *Runner) screenshot(ctx context.Context, page browser.Page, step types.Step, index int, dir string) (string, string, error) {
	path, err := screenshotPath(dir, index)
	if err != nil {
		return "", "", err
	}

	actx, cancel := context.WithTimeout(ctx, step.Timeout(r.cfg.ActionTimeout))
	defer cancel()
	data, err := page.Screenshot(actx)
	if err != nil {
		return "", "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", "", fmt.Errorf("write screenshot: %w", err)
	}
	return path, base64.StdEncoding.EncodeToString(data), nil
}

func (r *Runner) scroll(ctx context.Context, page browser.Page, step types.Step) error {
	pixels := defaultScrollPixels
	if v := strings.TrimSpace(step.Value); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid scroll value %q: %w", step.Value, err)
		}
		pixels = n
	}
	actx, cancel := context.WithTimeout(ctx, step.Timeout(r.cfg.ActionTimeout))
	defer cancel()
	return page.Scroll(actx, pixels)
}

// wait 暂停 d，不触碰页面
func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// stepErrorMessage 统一超时错误的描述
func stepErrorMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return types.NewError(types.ErrTimeout, "step timed out").WithCause(err).Error()
	}
	return err.Error()
}
