// =============================================================================
// 📦 FlowGuard 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("flowguard.yaml").
//	    WithEnvPrefix("FLOWGUARD").
//	    Load()
//
// 配置优先级: 默认值 → 兼容环境变量 → YAML 文件 → 前缀环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 FlowGuard 的完整配置结构
type Config struct {
	// Runner 流程执行配置
	Runner RunnerConfig `yaml:"runner" env:"RUNNER"`

	// Pool 远程会话池配置
	Pool PoolConfig `yaml:"pool" env:"POOL"`

	// Vision 视觉模型配置
	Vision VisionConfig `yaml:"vision" env:"VISION"`

	// Cache 视觉结果缓存配置
	Cache CacheConfig `yaml:"cache" env:"CACHE"`

	// Browserbase 远程浏览器提供方配置
	Browserbase BrowserbaseConfig `yaml:"browserbase" env:"BROWSERBASE"`

	// Storage 持久化后端选择
	Storage StorageConfig `yaml:"storage" env:"STORAGE"`

	// Mongo 文档存储配置
	Mongo MongoConfig `yaml:"mongo" env:"MONGO"`

	// Redis 缓存配置
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Database 关系数据库配置
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`

	// Server 运维 HTTP 服务配置
	Server ServerConfig `yaml:"server" env:"SERVER"`
}

// Execution modes
const (
	ModeLocal = "local"
	ModeCloud = "cloud"
)

// Storage backends
const (
	BackendMemory = "memory"
	BackendMongo  = "mongo"
	BackendRedis  = "redis"
	BackendSQL    = "sql"
)

// RunnerConfig 流程执行配置
type RunnerConfig struct {
	// 执行模式: local, cloud
	Mode string `yaml:"mode" env:"MODE"`
	// 截图与结果输出目录
	OutputDir string `yaml:"output_dir" env:"OUTPUT_DIR"`
	// 批量执行并发数
	Concurrency int `yaml:"concurrency" env:"CONCURRENCY"`
	// 导航默认超时
	NavigationTimeout time.Duration `yaml:"navigation_timeout" env:"NAVIGATION_TIMEOUT"`
	// 点击/输入默认超时
	ActionTimeout time.Duration `yaml:"action_timeout" env:"ACTION_TIMEOUT"`
	// 是否无头模式（local）
	Headless bool `yaml:"headless" env:"HEADLESS"`
	// 自定义 Chrome 可执行文件路径（local）
	ChromePath string `yaml:"chrome_path" env:"CHROME_PATH"`
	// 是否对截图步骤执行视觉分析
	AnalyzeScreenshots bool `yaml:"analyze_screenshots" env:"ANALYZE_SCREENSHOTS"`
}

// PoolConfig 会话池配置
type PoolConfig struct {
	// 预热会话数
	MinSessions int `yaml:"min_sessions" env:"MIN_SESSIONS"`
	// 会话总数上限
	MaxSessions int `yaml:"max_sessions" env:"MAX_SESSIONS"`
	// 空闲超时
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
	// 会话最长寿命
	SessionLifetime time.Duration `yaml:"session_lifetime" env:"SESSION_LIFETIME"`
	// 获取会话等待上限
	AcquireTimeout time.Duration `yaml:"acquire_timeout" env:"ACQUIRE_TIMEOUT"`
	// 等待期间的轮询间隔
	PollInterval time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL"`
	// 过期清理间隔
	CleanupInterval time.Duration `yaml:"cleanup_interval" env:"CLEANUP_INTERVAL"`
	// 单会话最大复用次数
	MaxUseCount int `yaml:"max_use_count" env:"MAX_USE_COUNT"`
}

// VisionConfig 视觉模型配置
type VisionConfig struct {
	// API Key（为空时读取 ANTHROPIC_API_KEY）
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 基础 URL（可选）
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 模型名称
	Model string `yaml:"model" env:"MODEL"`
	// Prompt 版本，参与缓存键
	PromptVersion string `yaml:"prompt_version" env:"PROMPT_VERSION"`
	// 单次响应最大 Token
	MaxTokens int `yaml:"max_tokens" env:"MAX_TOKENS"`
	// 单次请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 最大重试次数（不含首次），0 取默认值，负数表示不重试
	MaxRetries int `yaml:"max_retries" env:"MAX_RETRIES"`
	// 首次重试延迟
	InitialDelay time.Duration `yaml:"initial_delay" env:"INITIAL_DELAY"`
	// 每秒请求数上限，0 表示不限流
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"REQUESTS_PER_SECOND"`
	// 限流突发量
	Burst int `yaml:"burst" env:"BURST"`
	// 每百万输入 Token 价格（美元）
	InputPricePerMTok float64 `yaml:"input_price_per_mtok" env:"INPUT_PRICE_PER_MTOK"`
	// 每百万输出 Token 价格（美元）
	OutputPricePerMTok float64 `yaml:"output_price_per_mtok" env:"OUTPUT_PRICE_PER_MTOK"`
}

// CacheConfig 视觉结果缓存配置
type CacheConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
}

// BrowserbaseConfig 远程浏览器提供方配置
type BrowserbaseConfig struct {
	// API Key（为空时读取 BROWSERBASE_API_KEY）
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 项目 ID（为空时读取 BROWSERBASE_PROJECT_ID）
	ProjectID string `yaml:"project_id" env:"PROJECT_ID"`
	// 区域
	Region string `yaml:"region" env:"REGION"`
	// API 基础 URL
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// HTTP 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 远程会话存活时长
	SessionTimeout time.Duration `yaml:"session_timeout" env:"SESSION_TIMEOUT"`
}

// StorageConfig 持久化后端选择
type StorageConfig struct {
	// 后端类型: memory, mongo, redis, sql
	Backend string `yaml:"backend" env:"BACKEND"`
	// 是否保存运行结果
	SaveResults bool `yaml:"save_results" env:"SAVE_RESULTS"`
}

// MongoConfig MongoDB 配置
type MongoConfig struct {
	// 连接 URI
	URI string `yaml:"uri" env:"URI"`
	// 数据库名
	Database string `yaml:"database" env:"DATABASE"`
	// 单次操作超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 连接池大小
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
	// 最小空闲连接
	MinIdleConns int `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
	// 键前缀
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
	// 是否使用 TLS 连接
	TLS bool `yaml:"tls" env:"TLS"`
	// TLS 证书校验使用的服务名，为空时取 Addr 的主机部分
	TLSServerName string `yaml:"tls_server_name" env:"TLS_SERVER_NAME"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 驱动类型: postgres, mysql, sqlite
	Driver string `yaml:"driver" env:"DRIVER"`
	// 主机
	Host string `yaml:"host" env:"HOST"`
	// 端口
	Port int `yaml:"port" env:"PORT"`
	// 用户名
	User string `yaml:"user" env:"USER"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库名
	Name string `yaml:"name" env:"NAME"`
	// SSL 模式
	SSLMode string `yaml:"ssl_mode" env:"SSL_MODE"`
	// 最大连接数
	MaxOpenConns int `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	// 最大空闲连接
	MaxIdleConns int `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	// 连接最大生命周期
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// ServerConfig 运维 HTTP 服务配置（健康检查 + 指标）
type ServerConfig struct {
	// HTTP 端口
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "FLOWGUARD",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → 兼容环境变量 → YAML 文件 → 前缀环境变量
func (l *Loader) Load() (*Config, error) {
	// 1. 从默认值开始
	cfg := DefaultConfig()

	// 2. 兼容环境变量作为默认值的覆盖
	applyLegacyEnv(cfg)

	// 3. 如果指定了配置文件，从文件加载
	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// 4. 从前缀环境变量覆盖
	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// 5. 运行验证器
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// applyLegacyEnv 读取无前缀的兼容环境变量
func applyLegacyEnv(cfg *Config) {
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.Vision.APIKey = v
	}
	if v := os.Getenv("BROWSERBASE_API_KEY"); v != "" {
		cfg.Browserbase.APIKey = v
	}
	if v := os.Getenv("BROWSERBASE_PROJECT_ID"); v != "" {
		cfg.Browserbase.ProjectID = v
	}
	if v := os.Getenv("EXECUTION_MODE"); v != "" {
		cfg.Runner.Mode = strings.ToLower(strings.TrimSpace(v))
	}
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 支持逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	switch c.Runner.Mode {
	case ModeLocal, ModeCloud:
	default:
		errs = append(errs, fmt.Sprintf("unknown execution mode %q", c.Runner.Mode))
	}
	if c.Runner.Concurrency <= 0 {
		errs = append(errs, "runner concurrency must be positive")
	}

	if c.Pool.MaxSessions <= 0 {
		errs = append(errs, "max_sessions must be positive")
	}
	if c.Pool.MinSessions < 0 || c.Pool.MinSessions > c.Pool.MaxSessions {
		errs = append(errs, "min_sessions must be between 0 and max_sessions")
	}
	if c.Pool.AcquireTimeout <= 0 || c.Pool.PollInterval <= 0 || c.Pool.CleanupInterval <= 0 {
		errs = append(errs, "pool timeouts must be positive")
	}

	if c.Runner.Mode == ModeCloud {
		if c.Browserbase.APIKey == "" {
			errs = append(errs, "cloud mode requires a browserbase api key")
		}
		if c.Browserbase.ProjectID == "" {
			errs = append(errs, "cloud mode requires a browserbase project id")
		}
	}

	switch c.Storage.Backend {
	case BackendMemory, BackendMongo, BackendRedis, BackendSQL:
	default:
		errs = append(errs, fmt.Sprintf("unknown storage backend %q", c.Storage.Backend))
	}

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// DSN 返回数据库连接字符串
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	case "sqlite":
		return d.Name
	default:
		return ""
	}
}
