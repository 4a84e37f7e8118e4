// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器。所有 Record 方法对 nil 接收者安全，组件可以不注入收集器。
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// 流程指标
	flowRunsTotal   *prometheus.CounterVec
	flowRunDuration *prometheus.HistogramVec
	stepDuration    *prometheus.HistogramVec

	// 会话池指标
	poolSessions          *prometheus.GaugeVec
	poolAcquireWait       *prometheus.HistogramVec
	poolSessionsDestroyed *prometheus.CounterVec

	// 视觉模型指标
	visionRequestsTotal   *prometheus.CounterVec
	visionRequestDuration *prometheus.HistogramVec
	visionTokensUsed      *prometheus.CounterVec
	visionCost            *prometheus.CounterVec

	// 缓存指标
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	// 数据库指标
	dbConnectionsOpen *prometheus.GaugeVec
	dbConnectionsIdle *prometheus.GaugeVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 流程指标
	c.flowRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flow_runs_total",
			Help:      "Total number of flow runs by verdict",
		},
		[]string{"mode", "verdict"},
	)

	c.flowRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flow_run_duration_seconds",
			Help:      "Flow run duration in seconds",
			Buckets:   []float64{1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"mode"},
	)

	c.stepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flow_step_duration_seconds",
			Help:      "Flow step duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"action", "status"},
	)

	// 会话池指标
	c.poolSessions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_sessions",
			Help:      "Number of tracked remote browser sessions",
		},
		[]string{"state"}, // state: idle, active
	)

	c.poolAcquireWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pool_acquire_wait_seconds",
			Help:      "Time spent waiting for a pooled session",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
		[]string{"outcome"},
	)

	c.poolSessionsDestroyed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_sessions_destroyed_total",
			Help:      "Total number of destroyed pooled sessions",
		},
		[]string{"reason"},
	)

	// 视觉模型指标
	c.visionRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vision_requests_total",
			Help:      "Total number of vision model requests",
		},
		[]string{"model", "status"},
	)

	c.visionRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "vision_request_duration_seconds",
			Help:      "Vision analysis duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"model"},
	)

	c.visionTokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vision_tokens_used_total",
			Help:      "Total number of vision model tokens",
		},
		[]string{"model", "type"}, // type: input, output
	)

	c.visionCost = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vision_cost_total",
			Help:      "Total vision model cost in USD",
		},
		[]string{"model"},
	)

	// 缓存指标
	c.cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	c.cacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	// 数据库指标
	c.dbConnectionsOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_open",
			Help:      "Number of open database connections",
		},
		[]string{"database"},
	)

	c.dbConnectionsIdle = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_idle",
			Help:      "Number of idle database connections",
		},
		[]string{"database"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// =============================================================================
// 🧭 流程指标记录
// =============================================================================

// RecordFlowRun 记录一次流程运行
func (c *Collector) RecordFlowRun(mode, verdict string, duration time.Duration) {
	if c == nil {
		return
	}
	c.flowRunsTotal.WithLabelValues(mode, verdict).Inc()
	c.flowRunDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordStep 记录单个步骤
func (c *Collector) RecordStep(action string, success bool, duration time.Duration) {
	if c == nil {
		return
	}
	c.stepDuration.WithLabelValues(action, outcome(success)).Observe(duration.Seconds())
}

// =============================================================================
// 🏊 会话池指标记录
// =============================================================================

// RecordPoolSessions 记录当前会话数
func (c *Collector) RecordPoolSessions(idle, active int) {
	if c == nil {
		return
	}
	c.poolSessions.WithLabelValues("idle").Set(float64(idle))
	c.poolSessions.WithLabelValues("active").Set(float64(active))
}

// RecordPoolAcquire 记录一次获取会话的等待
func (c *Collector) RecordPoolAcquire(success bool, wait time.Duration) {
	if c == nil {
		return
	}
	c.poolAcquireWait.WithLabelValues(outcome(success)).Observe(wait.Seconds())
}

// RecordSessionDestroyed 记录会话销毁原因
func (c *Collector) RecordSessionDestroyed(reason string) {
	if c == nil {
		return
	}
	c.poolSessionsDestroyed.WithLabelValues(reason).Inc()
}

// =============================================================================
// 👁️ 视觉模型指标记录
// =============================================================================

// RecordVisionRequest 记录视觉模型请求
func (c *Collector) RecordVisionRequest(model, status string, duration time.Duration, inputTokens, outputTokens int64, cost float64) {
	if c == nil {
		return
	}
	c.visionRequestsTotal.WithLabelValues(model, status).Inc()
	c.visionRequestDuration.WithLabelValues(model).Observe(duration.Seconds())
	c.visionTokensUsed.WithLabelValues(model, "input").Add(float64(inputTokens))
	c.visionTokensUsed.WithLabelValues(model, "output").Add(float64(outputTokens))
	c.visionCost.WithLabelValues(model).Add(cost)
}

// =============================================================================
// 💾 缓存指标记录
// =============================================================================

// RecordCacheHit 记录缓存命中
func (c *Collector) RecordCacheHit(cacheType string) {
	if c == nil {
		return
	}
	c.cacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss 记录缓存未命中
func (c *Collector) RecordCacheMiss(cacheType string) {
	if c == nil {
		return
	}
	c.cacheMisses.WithLabelValues(cacheType).Inc()
}

// =============================================================================
// 🗄️ 数据库指标记录
// =============================================================================

// RecordDBConnections 记录数据库连接数
func (c *Collector) RecordDBConnections(database string, open, idle int) {
	if c == nil {
		return
	}
	c.dbConnectionsOpen.WithLabelValues(database).Set(float64(open))
	c.dbConnectionsIdle.WithLabelValues(database).Set(float64(idle))
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
