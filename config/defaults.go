// =============================================================================
// 📦 FlowGuard 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Runner:      DefaultRunnerConfig(),
		Pool:        DefaultPoolConfig(),
		Vision:      DefaultVisionConfig(),
		Cache:       DefaultCacheConfig(),
		Browserbase: DefaultBrowserbaseConfig(),
		Storage:     DefaultStorageConfig(),
		Mongo:       DefaultMongoConfig(),
		Redis:       DefaultRedisConfig(),
		Database:    DefaultDatabaseConfig(),
		Log:         DefaultLogConfig(),
		Telemetry:   DefaultTelemetryConfig(),
		Server:      DefaultServerConfig(),
	}
}

// DefaultRunnerConfig 返回默认流程执行配置
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Mode:               ModeLocal,
		OutputDir:          "flowguard-results",
		Concurrency:        3,
		NavigationTimeout:  30 * time.Second,
		ActionTimeout:      30 * time.Second,
		Headless:           true,
		AnalyzeScreenshots: true,
	}
}

// DefaultPoolConfig 返回默认会话池配置
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MinSessions:     1,
		MaxSessions:     5,
		IdleTimeout:     5 * time.Minute,
		SessionLifetime: 30 * time.Minute,
		AcquireTimeout:  60 * time.Second,
		PollInterval:    time.Second,
		CleanupInterval: 30 * time.Second,
		MaxUseCount:     50,
	}
}

// DefaultVisionConfig 返回默认视觉模型配置
func DefaultVisionConfig() VisionConfig {
	return VisionConfig{
		Model:              "claude-3-5-sonnet-20241022",
		PromptVersion:      "v1",
		MaxTokens:          1024,
		Timeout:            60 * time.Second,
		MaxRetries:         2,
		InitialDelay:       time.Second,
		RequestsPerSecond:  0,
		Burst:              1,
		InputPricePerMTok:  3.0,
		OutputPricePerMTok: 15.0,
	}
}

// DefaultCacheConfig 返回默认缓存配置
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{Enabled: true}
}

// DefaultBrowserbaseConfig 返回默认 Browserbase 配置
func DefaultBrowserbaseConfig() BrowserbaseConfig {
	return BrowserbaseConfig{
		Region:         "us-west-2",
		BaseURL:        "https://api.browserbase.com",
		Timeout:        30 * time.Second,
		SessionTimeout: time.Hour,
	}
}

// DefaultStorageConfig 返回默认存储配置
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		Backend:     BackendMemory,
		SaveResults: true,
	}
}

// DefaultMongoConfig 返回默认 MongoDB 配置
func DefaultMongoConfig() MongoConfig {
	return MongoConfig{
		URI:      "mongodb://localhost:27017",
		Database: "flowguard",
		Timeout:  10 * time.Second,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		KeyPrefix:    "flowguard",
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "postgres",
		Host:            "localhost",
		Port:            5432,
		User:            "flowguard",
		Password:        "",
		Name:            "flowguard",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "flowguard",
		SampleRate:   0.1,
	}
}

// DefaultServerConfig 返回默认运维服务配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
	}
}
