package runner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BaSui01/flowguard/types"
)

// runDir 返回 outputDir 下本次运行独占的截图目录 <flow>-<runID>
func runDir(outputDir, flowName, runID string) (string, error) {
	if strings.TrimSpace(outputDir) == "" {
		return "", types.NewError(types.ErrInvalidPath, "output directory is required")
	}
	name := sanitizeName(flowName) + "-" + sanitizeName(runID)
	if !filepath.IsLocal(name) {
		return "", types.NewError(types.ErrInvalidPath, fmt.Sprintf("invalid run directory name %q", name))
	}
	return filepath.Join(filepath.Clean(outputDir), name), nil
}

// screenshotPath 校验截图目录并返回 step-<index>.png 的完整路径，必要时创建目录
func screenshotPath(dir string, index int) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", types.NewError(types.ErrInvalidPath, "screenshot directory is required")
	}
	if index < 0 {
		return "", types.NewError(types.ErrInvalidPath, fmt.Sprintf("invalid step index %d", index))
	}
	clean := filepath.Clean(dir)
	if info, err := os.Stat(clean); err == nil && !info.IsDir() {
		return "", types.NewError(types.ErrInvalidPath, fmt.Sprintf("%s is not a directory", clean))
	}
	if err := os.MkdirAll(clean, 0o755); err != nil {
		return "", types.NewError(types.ErrInvalidPath, "failed to create screenshot directory").WithCause(err)
	}
	return filepath.Join(clean, fmt.Sprintf("step-%d.png", index)), nil
}

// sanitizeName 只保留字母、数字、'-' 和 '_'
func sanitizeName(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "flow"
	}
	return b.String()
}
