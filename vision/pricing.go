package vision

import (
	"github.com/BaSui01/flowguard/config"
	"github.com/BaSui01/flowguard/types"
)

// Pricing 每百万 Token 价格（美元）
type Pricing struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// PricingFromConfig 从视觉配置读取价格
func PricingFromConfig(cfg config.VisionConfig) Pricing {
	return Pricing{
		InputPerMTok:  cfg.InputPricePerMTok,
		OutputPerMTok: cfg.OutputPricePerMTok,
	}
}

// Cost 计算一次调用的费用
func (p Pricing) Cost(usage types.TokenUsage) float64 {
	return float64(usage.Input)/1e6*p.InputPerMTok + float64(usage.Output)/1e6*p.OutputPerMTok
}
