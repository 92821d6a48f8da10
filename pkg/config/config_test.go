package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/docsearch/pkg/observability"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080", HealthPort: "9090"},
		Index:  IndexConfig{Source: SourceFile, Path: "search-index.js"},
		Search: SearchConfig{DefaultLimit: 50, MaxLimit: 1000, MaxSessions: 16},
		Cache:  CacheConfig{Backend: CacheMemory, Size: 128},
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, 10*time.Second, cfg.Server.RequestTimeout)
	assert.Empty(t, cfg.Server.CORSOrigins)
	assert.Zero(t, cfg.Server.RateLimit)
	assert.Equal(t, SourceFile, cfg.Index.Source)
	assert.Equal(t, "search-index.js", cfg.Index.Path)
	assert.Equal(t, 50, cfg.Search.DefaultLimit)
	assert.Equal(t, CacheMemory, cfg.Cache.Backend)
	assert.False(t, cfg.History.Enabled())
	assert.Equal(t, observability.InfoLevel, cfg.Observability.LogLevel)
	assert.True(t, cfg.Observability.MetricsEnabled)
	assert.False(t, cfg.Observability.OTelEnabled)
	assert.Equal(t, 1.0, cfg.Observability.OTelSampleRatio)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("DOCSEARCH_PORT", "8181")
	t.Setenv("DOCSEARCH_RATE_LIMIT", "120")
	t.Setenv("DOCSEARCH_CORS_ORIGINS", "https://a.example.com, ,https://b.example.com")
	t.Setenv("DOCSEARCH_INDEX_SOURCE", "S3")
	t.Setenv("DOCSEARCH_S3_BUCKET", "docs")
	t.Setenv("DOCSEARCH_S3_KEY", "nightly/search-index.js")
	t.Setenv("DOCSEARCH_S3_USE_PATH_STYLE", "1")
	t.Setenv("DOCSEARCH_INDEX_REFRESH", "@every 5m")
	t.Setenv("DOCSEARCH_MAX_LIMIT", "200")
	t.Setenv("DOCSEARCH_SESSION_TTL", "90s")
	t.Setenv("DOCSEARCH_CACHE", "redis")
	t.Setenv("DOCSEARCH_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("DOCSEARCH_HISTORY_DRIVER", "sqlite3")
	t.Setenv("DOCSEARCH_HISTORY_DSN", "file::memory:")
	t.Setenv("DOCSEARCH_LOG_LEVEL", "debug")
	t.Setenv("DOCSEARCH_OTEL_SAMPLE_RATIO", "0.25")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8181", cfg.Server.Port)
	assert.Equal(t, 120, cfg.Server.RateLimit)
	assert.Equal(t, 20, cfg.Server.RateLimitBurst)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.CORSOrigins)
	assert.Equal(t, SourceS3, cfg.Index.Source)
	assert.True(t, cfg.Index.S3UsePathStyle)
	assert.Equal(t, "@every 5m", cfg.Index.RefreshSchedule)
	assert.Equal(t, 200, cfg.Search.MaxLimit)
	assert.Equal(t, 90*time.Second, cfg.Search.SessionTTL)
	assert.Equal(t, CacheRedis, cfg.Cache.Backend)
	assert.True(t, cfg.History.Enabled())
	assert.Equal(t, observability.DebugLevel, cfg.Observability.LogLevel)
	assert.Equal(t, 0.25, cfg.Observability.OTelSampleRatio)
}

func TestLoadConfigMalformedValuesFallBack(t *testing.T) {
	t.Setenv("DOCSEARCH_DEFAULT_LIMIT", "many")
	t.Setenv("DOCSEARCH_CACHE_TTL", "soon")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Search.DefaultLimit)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
}

func TestLoadConfigBadLogLevel(t *testing.T) {
	t.Setenv("DOCSEARCH_LOG_LEVEL", "chatty")
	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DOCSEARCH_LOG_LEVEL")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing port", func(c *Config) { c.Server.Port = "" }, "server port is required"},
		{"same ports", func(c *Config) { c.Server.HealthPort = "8080" }, "must be different"},
		{"negative rate limit", func(c *Config) { c.Server.RateLimit = -1 }, "must not be negative"},
		{"unknown source", func(c *Config) { c.Index.Source = "ftp" }, "invalid index source"},
		{"file without path", func(c *Config) { c.Index.Path = "" }, "index path is required"},
		{"s3 without key", func(c *Config) {
			c.Index.Source = SourceS3
			c.Index.S3Bucket = "docs"
		}, "S3 bucket and key"},
		{"s3 watch", func(c *Config) {
			c.Index = IndexConfig{Source: SourceS3, S3Bucket: "docs", S3Key: "k", Watch: true}
		}, "only supported for file source"},
		{"default above max", func(c *Config) { c.Search.DefaultLimit = 2000 }, "exceeds max limit"},
		{"zero limit", func(c *Config) { c.Search.MaxLimit = 0 }, "must be positive"},
		{"no sessions", func(c *Config) { c.Search.MaxSessions = 0 }, "max sessions"},
		{"no cache", func(c *Config) { c.Cache.Backend = CacheNone }, ""},
		{"redis without url", func(c *Config) { c.Cache.Backend = CacheRedis }, "redis URL is required"},
		{"unknown cache", func(c *Config) { c.Cache.Backend = "memcached" }, "invalid cache backend"},
		{"bad history driver", func(c *Config) {
			c.History = HistoryConfig{Driver: "mysql", DSN: "root@/docs"}
		}, "invalid history driver"},
		{"otel without endpoint", func(c *Config) {
			c.Observability.OTelEnabled = true
			c.Observability.OTelServiceName = "docsearch"
		}, "endpoint is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
