// 配置加载器测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Loader 测试 ---

func TestLoader_LoadDefaults(t *testing.T) {
	t.Setenv("EXECUTION_MODE", "")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, ModeLocal, cfg.Runner.Mode)
	assert.Equal(t, 5, cfg.Pool.MaxSessions)
	assert.Equal(t, 60*time.Second, cfg.Pool.AcquireTimeout)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "flowguard.yaml")

	yamlContent := `
runner:
  mode: cloud
  concurrency: 6
  navigation_timeout: 45s

pool:
  min_sessions: 2
  max_sessions: 8
  idle_timeout: 2m

vision:
  model: "claude-test"
  prompt_version: "v2"

browserbase:
  api_key: "bb-yaml"
  project_id: "proj-yaml"

storage:
  backend: redis

log:
  level: "debug"
  format: "console"
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	cfg, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	require.NoError(t, err)

	assert.Equal(t, ModeCloud, cfg.Runner.Mode)
	assert.Equal(t, 6, cfg.Runner.Concurrency)
	assert.Equal(t, 45*time.Second, cfg.Runner.NavigationTimeout)
	assert.Equal(t, 2, cfg.Pool.MinSessions)
	assert.Equal(t, 8, cfg.Pool.MaxSessions)
	assert.Equal(t, 2*time.Minute, cfg.Pool.IdleTimeout)
	assert.Equal(t, "claude-test", cfg.Vision.Model)
	assert.Equal(t, "v2", cfg.Vision.PromptVersion)
	assert.Equal(t, BackendRedis, cfg.Storage.Backend)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)

	// 未出现在 YAML 中的字段保留默认值
	assert.Equal(t, 30*time.Minute, cfg.Pool.SessionLifetime)
	assert.NoError(t, cfg.Validate())
}

func TestLoader_LoadFromEnv(t *testing.T) {
	envVars := map[string]string{
		"FLOWGUARD_RUNNER_MODE":                "cloud",
		"FLOWGUARD_RUNNER_CONCURRENCY":         "4",
		"FLOWGUARD_POOL_MAX_SESSIONS":          "12",
		"FLOWGUARD_POOL_ACQUIRE_TIMEOUT":       "90s",
		"FLOWGUARD_VISION_REQUESTS_PER_SECOND": "2.5",
		"FLOWGUARD_CACHE_ENABLED":              "false",
		"FLOWGUARD_LOG_OUTPUT_PATHS":           "stdout, /tmp/flowguard.log",
	}
	for k, v := range envVars {
		t.Setenv(k, v)
	}

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, ModeCloud, cfg.Runner.Mode)
	assert.Equal(t, 4, cfg.Runner.Concurrency)
	assert.Equal(t, 12, cfg.Pool.MaxSessions)
	assert.Equal(t, 90*time.Second, cfg.Pool.AcquireTimeout)
	assert.Equal(t, 2.5, cfg.Vision.RequestsPerSecond)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, []string{"stdout", "/tmp/flowguard.log"}, cfg.Log.OutputPaths)
}

func TestLoader_LegacyEnvFallbacks(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-legacy")
	t.Setenv("BROWSERBASE_API_KEY", "bb-legacy")
	t.Setenv("BROWSERBASE_PROJECT_ID", "proj-legacy")
	t.Setenv("EXECUTION_MODE", "CLOUD")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "sk-legacy", cfg.Vision.APIKey)
	assert.Equal(t, "bb-legacy", cfg.Browserbase.APIKey)
	assert.Equal(t, "proj-legacy", cfg.Browserbase.ProjectID)
	assert.Equal(t, ModeCloud, cfg.Runner.Mode)
}

func TestLoader_PrefixedEnvBeatsLegacyAndYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "flowguard.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("vision:\n  api_key: sk-yaml\n  model: yaml-model\n"), 0644))

	t.Setenv("ANTHROPIC_API_KEY", "sk-legacy")
	t.Setenv("FLOWGUARD_VISION_API_KEY", "sk-prefixed")

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)

	assert.Equal(t, "sk-prefixed", cfg.Vision.APIKey)
	// YAML 值应该保留（没有被环境变量覆盖）
	assert.Equal(t, "yaml-model", cfg.Vision.Model)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	t.Setenv("MYAPP_SERVER_HTTP_PORT", "6666")
	t.Setenv("MYAPP_VISION_MODEL", "custom-model")

	cfg, err := NewLoader().
		WithEnvPrefix("MYAPP").
		Load()
	require.NoError(t, err)

	assert.Equal(t, 6666, cfg.Server.HTTPPort)
	assert.Equal(t, "custom-model", cfg.Vision.Model)
}

func TestLoader_WithValidator(t *testing.T) {
	t.Setenv("FLOWGUARD_RUNNER_MODE", "hybrid")

	_, err := NewLoader().
		WithValidator((*Config).Validate).
		Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown execution mode")
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	t.Setenv("FLOWGUARD_POOL_IDLE_TIMEOUT", "five minutes")

	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FLOWGUARD_POOL_IDLE_TIMEOUT")
}

func TestLoader_NonExistentFile(t *testing.T) {
	cfg, err := NewLoader().
		WithConfigPath("/non/existent/path/flowguard.yaml").
		Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, 9091, cfg.Server.HTTPPort)
}

func TestLoader_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `
pool:
  max_sessions: [invalid
  this is not valid yaml
`
	require.NoError(t, os.WriteFile(configPath, []byte(invalidYAML), 0644))

	_, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	assert.Error(t, err)
}

// --- Config 方法测试 ---

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "unknown mode",
			modify:  func(c *Config) { c.Runner.Mode = "hybrid" },
			wantErr: true,
		},
		{
			name:    "zero concurrency",
			modify:  func(c *Config) { c.Runner.Concurrency = 0 },
			wantErr: true,
		},
		{
			name:    "min above max",
			modify:  func(c *Config) { c.Pool.MinSessions = 10 },
			wantErr: true,
		},
		{
			name:    "zero max sessions",
			modify:  func(c *Config) { c.Pool.MaxSessions = 0; c.Pool.MinSessions = 0 },
			wantErr: true,
		},
		{
			name:    "cloud without credentials",
			modify:  func(c *Config) { c.Runner.Mode = ModeCloud },
			wantErr: true,
		},
		{
			name: "cloud with credentials",
			modify: func(c *Config) {
				c.Runner.Mode = ModeCloud
				c.Browserbase.APIKey = "bb"
				c.Browserbase.ProjectID = "proj"
			},
			wantErr: false,
		},
		{
			name:    "unknown storage backend",
			modify:  func(c *Config) { c.Storage.Backend = "s3" },
			wantErr: true,
		},
		{
			name:    "invalid HTTP port",
			modify:  func(c *Config) { c.Server.HTTPPort = 70000 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	tests := []struct {
		name     string
		config   DatabaseConfig
		expected string
	}{
		{
			name: "postgres DSN",
			config: DatabaseConfig{
				Driver:   "postgres",
				Host:     "localhost",
				Port:     5432,
				User:     "user",
				Password: "pass",
				Name:     "dbname",
				SSLMode:  "disable",
			},
			expected: "host=localhost port=5432 user=user password=pass dbname=dbname sslmode=disable",
		},
		{
			name: "mysql DSN",
			config: DatabaseConfig{
				Driver:   "mysql",
				Host:     "localhost",
				Port:     3306,
				User:     "user",
				Password: "pass",
				Name:     "dbname",
			},
			expected: "user:pass@tcp(localhost:3306)/dbname?parseTime=true",
		},
		{
			name:     "sqlite DSN",
			config:   DatabaseConfig{Driver: "sqlite", Name: "/path/to/db.sqlite"},
			expected: "/path/to/db.sqlite",
		},
		{
			name:     "unknown driver",
			config:   DatabaseConfig{Driver: "unknown"},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.config.DSN())
		})
	}
}

// --- MustLoad 测试 ---

func TestMustLoad_Success(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "flowguard.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server:\n  http_port: 8081\n"), 0644))

	assert.NotPanics(t, func() {
		cfg := MustLoad(configPath)
		assert.Equal(t, 8081, cfg.Server.HTTPPort)
	})
}

func TestMustLoad_InvalidFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("invalid: [yaml"), 0644))

	assert.Panics(t, func() {
		MustLoad(configPath)
	})
}
