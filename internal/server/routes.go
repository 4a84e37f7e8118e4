package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// CheckFunc 单项就绪检查，返回 nil 表示健康
type CheckFunc func(ctx context.Context) error

// HealthStatus /ready 的响应体
type HealthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// VersionInfo /version 的响应体
type VersionInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
}

// Routes 运维端点集合
type Routes struct {
	mu       sync.RWMutex
	checks   map[string]CheckFunc
	version  VersionInfo
	gatherer prometheus.Gatherer
	timeout  time.Duration
	logger   *zap.Logger
}

// NewRoutes 创建运维端点，gatherer 为 nil 时使用默认注册表
func NewRoutes(version VersionInfo, gatherer prometheus.Gatherer, logger *zap.Logger) *Routes {
	if logger == nil {
		logger = zap.NewNop()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Routes{
		checks:   make(map[string]CheckFunc),
		version:  version,
		gatherer: gatherer,
		timeout:  3 * time.Second,
		logger:   logger.With(zap.String("component", "ops_routes")),
	}
}

// AddCheck 注册就绪检查（如存储后端 Ping）
func (r *Routes) AddCheck(name string, check CheckFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks[name] = check
}

// Handler 返回挂载 /health、/ready、/version、/metrics 的 http.Handler
func (r *Routes) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", r.handleHealth)
	mux.HandleFunc("GET /ready", r.handleReady)
	mux.HandleFunc("GET /version", r.handleVersion)
	mux.Handle("GET /metrics", promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{}))
	return mux
}

func (r *Routes) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthStatus{Status: "ok"})
}

func (r *Routes) handleReady(w http.ResponseWriter, req *http.Request) {
	r.mu.RLock()
	names := make([]string, 0, len(r.checks))
	checks := make(map[string]CheckFunc, len(r.checks))
	for name, check := range r.checks {
		names = append(names, name)
		checks[name] = check
	}
	r.mu.RUnlock()
	sort.Strings(names)

	ctx, cancel := context.WithTimeout(req.Context(), r.timeout)
	defer cancel()

	status := HealthStatus{Status: "ok", Checks: make(map[string]string, len(names))}
	code := http.StatusOK
	for _, name := range names {
		if err := checks[name](ctx); err != nil {
			r.logger.Warn("readiness check failed", zap.String("check", name), zap.Error(err))
			status.Checks[name] = err.Error()
			status.Status = "unavailable"
			code = http.StatusServiceUnavailable
			continue
		}
		status.Checks[name] = "ok"
	}
	writeJSON(w, code, status)
}

func (r *Routes) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, r.version)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
