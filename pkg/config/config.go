package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/docsearch/pkg/observability"
)

// Index source kinds.
const (
	SourceFile = "file"
	SourceS3   = "s3"
)

// Cache backends.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Index         IndexConfig
	Search        SearchConfig
	Cache         CacheConfig
	History       HistoryConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
	CORSOrigins     []string

	// RateLimit is the per-client request budget per minute; 0 disables it.
	RateLimit      int
	RateLimitBurst int

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// IndexConfig locates the documentation index and controls reloads.
type IndexConfig struct {
	Source string

	// File source
	Path          string
	Watch         bool
	WatchDebounce time.Duration

	// S3 source
	S3Bucket       string
	S3Key          string
	S3Region       string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool

	// RefreshSchedule is a cron spec for periodic reloads; empty disables it.
	RefreshSchedule string
	ReloadTimeout   time.Duration
}

// SearchConfig tunes the query engine.
type SearchConfig struct {
	DefaultLimit      int
	MaxLimit          int
	ParallelThreshold int
	Workers           int
	WeightsFile       string
	MaxSessions       int
	SessionTTL        time.Duration
}

// CacheConfig selects the result cache.
type CacheConfig struct {
	Backend  string
	Size     int
	TTL      time.Duration
	RedisURL string
}

// HistoryConfig enables query history and suggestions. An empty DSN
// disables them.
type HistoryConfig struct {
	Driver  string
	DSN     string
	Workers int
}

// Enabled reports whether a history database is configured.
func (h HistoryConfig) Enabled() bool {
	return h.DSN != ""
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel observability.LogLevel

	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
	OTelSampleRatio    float64
}

// LoadConfig loads configuration from DOCSEARCH_* environment variables
func LoadConfig() (*Config, error) {
	obs, err := loadObservabilityConfig()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server:        loadServerConfig(),
		Index:         loadIndexConfig(),
		Search:        loadSearchConfig(),
		Cache:         loadCacheConfig(),
		History:       loadHistoryConfig(),
		Observability: obs,
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("DOCSEARCH_HOST", "0.0.0.0"),
		Port:            getEnv("DOCSEARCH_PORT", "8080"),
		ReadTimeout:     getEnvDuration("DOCSEARCH_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("DOCSEARCH_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("DOCSEARCH_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("DOCSEARCH_SHUTDOWN_TIMEOUT", 30*time.Second),
		RequestTimeout:  getEnvDuration("DOCSEARCH_REQUEST_TIMEOUT", 10*time.Second),
		CORSOrigins:     getEnvList("DOCSEARCH_CORS_ORIGINS"),
		RateLimit:       getEnvInt("DOCSEARCH_RATE_LIMIT", 0),
		RateLimitBurst:  getEnvInt("DOCSEARCH_RATE_LIMIT_BURST", 20),
		HealthPort:      getEnv("DOCSEARCH_HEALTH_PORT", "9090"),
	}
}

func loadIndexConfig() IndexConfig {
	return IndexConfig{
		Source:          strings.ToLower(getEnv("DOCSEARCH_INDEX_SOURCE", SourceFile)),
		Path:            getEnv("DOCSEARCH_INDEX_PATH", "search-index.js"),
		Watch:           getEnvBool("DOCSEARCH_INDEX_WATCH", false),
		WatchDebounce:   getEnvDuration("DOCSEARCH_INDEX_WATCH_DEBOUNCE", 500*time.Millisecond),
		S3Bucket:        getEnv("DOCSEARCH_S3_BUCKET", ""),
		S3Key:           getEnv("DOCSEARCH_S3_KEY", ""),
		S3Region:        getEnv("DOCSEARCH_S3_REGION", "us-east-1"),
		S3Endpoint:      getEnv("DOCSEARCH_S3_ENDPOINT", ""),
		S3AccessKey:     getEnv("DOCSEARCH_S3_ACCESS_KEY", ""),
		S3SecretKey:     getEnv("DOCSEARCH_S3_SECRET_KEY", ""),
		S3UsePathStyle:  getEnvBool("DOCSEARCH_S3_USE_PATH_STYLE", false),
		RefreshSchedule: getEnv("DOCSEARCH_INDEX_REFRESH", ""),
		ReloadTimeout:   getEnvDuration("DOCSEARCH_INDEX_RELOAD_TIMEOUT", time.Minute),
	}
}

func loadSearchConfig() SearchConfig {
	return SearchConfig{
		DefaultLimit:      getEnvInt("DOCSEARCH_DEFAULT_LIMIT", 50),
		MaxLimit:          getEnvInt("DOCSEARCH_MAX_LIMIT", 1000),
		ParallelThreshold: getEnvInt("DOCSEARCH_PARALLEL_THRESHOLD", 4096),
		Workers:           getEnvInt("DOCSEARCH_WORKERS", 4),
		WeightsFile:       getEnv("DOCSEARCH_WEIGHTS_FILE", ""),
		MaxSessions:       getEnvInt("DOCSEARCH_MAX_SESSIONS", 1024),
		SessionTTL:        getEnvDuration("DOCSEARCH_SESSION_TTL", 10*time.Minute),
	}
}

func loadCacheConfig() CacheConfig {
	return CacheConfig{
		Backend:  strings.ToLower(getEnv("DOCSEARCH_CACHE", CacheMemory)),
		Size:     getEnvInt("DOCSEARCH_CACHE_SIZE", 2048),
		TTL:      getEnvDuration("DOCSEARCH_CACHE_TTL", 5*time.Minute),
		RedisURL: getEnv("DOCSEARCH_REDIS_URL", ""),
	}
}

func loadHistoryConfig() HistoryConfig {
	return HistoryConfig{
		Driver:  getEnv("DOCSEARCH_HISTORY_DRIVER", "postgres"),
		DSN:     getEnv("DOCSEARCH_HISTORY_DSN", ""),
		Workers: getEnvInt("DOCSEARCH_HISTORY_WORKERS", 2),
	}
}

func loadObservabilityConfig() (ObservabilityConfig, error) {
	level, err := observability.ParseLogLevel(getEnv("DOCSEARCH_LOG_LEVEL", "info"))
	if err != nil {
		return ObservabilityConfig{}, fmt.Errorf("DOCSEARCH_LOG_LEVEL: %w", err)
	}
	return ObservabilityConfig{
		LogLevel:           level,
		MetricsEnabled:     getEnvBool("DOCSEARCH_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("DOCSEARCH_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("DOCSEARCH_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("DOCSEARCH_OTEL_SERVICE_NAME", "docsearch"),
		OTelServiceVersion: getEnv("DOCSEARCH_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("DOCSEARCH_OTEL_INSECURE", true),
		OTelSampleRatio:    getEnvFloat("DOCSEARCH_OTEL_SAMPLE_RATIO", 1),
	}, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}
	if c.Server.RateLimit < 0 || c.Server.RateLimitBurst < 0 {
		return fmt.Errorf("rate limit settings must not be negative")
	}

	switch c.Index.Source {
	case SourceFile:
		if c.Index.Path == "" {
			return fmt.Errorf("index path is required for file source")
		}
	case SourceS3:
		if c.Index.S3Bucket == "" || c.Index.S3Key == "" {
			return fmt.Errorf("S3 bucket and key are required for s3 source")
		}
		if c.Index.Watch {
			return fmt.Errorf("index watch is only supported for file source")
		}
	default:
		return fmt.Errorf("invalid index source: %s (must be file or s3)", c.Index.Source)
	}

	if c.Search.DefaultLimit <= 0 || c.Search.MaxLimit <= 0 {
		return fmt.Errorf("search limits must be positive")
	}
	if c.Search.DefaultLimit > c.Search.MaxLimit {
		return fmt.Errorf("default limit %d exceeds max limit %d", c.Search.DefaultLimit, c.Search.MaxLimit)
	}
	if c.Search.MaxSessions <= 0 {
		return fmt.Errorf("max sessions must be positive")
	}

	switch c.Cache.Backend {
	case CacheNone:
	case CacheMemory:
		if c.Cache.Size <= 0 {
			return fmt.Errorf("cache size must be positive for memory cache")
		}
	case CacheRedis:
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("redis URL is required for redis cache")
		}
	default:
		return fmt.Errorf("invalid cache backend: %s (must be none, memory, or redis)", c.Cache.Backend)
	}

	if c.History.Enabled() {
		switch c.History.Driver {
		case "postgres", "sqlite3":
		default:
			return fmt.Errorf("invalid history driver: %s (must be postgres or sqlite3)", c.History.Driver)
		}
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping blanks.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
