package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/docsearch/pkg/config"
	"github.com/platinummonkey/docsearch/pkg/history"
	"github.com/platinummonkey/docsearch/pkg/httputil"
	"github.com/platinummonkey/docsearch/pkg/index"
	"github.com/platinummonkey/docsearch/pkg/middleware"
	"github.com/platinummonkey/docsearch/pkg/observability"
	"github.com/platinummonkey/docsearch/pkg/rank"
	"github.com/platinummonkey/docsearch/pkg/search"
)

func buildSource(ctx context.Context, cfg config.IndexConfig) (index.Source, error) {
	switch cfg.Source {
	case config.SourceS3:
		src, err := index.NewS3Source(ctx, index.S3Config{
			Bucket:       cfg.S3Bucket,
			Key:          cfg.S3Key,
			Region:       cfg.S3Region,
			Endpoint:     cfg.S3Endpoint,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			UsePathStyle: cfg.S3UsePathStyle,
		})
		if err != nil {
			return nil, err
		}
		return src, nil
	case config.SourceFile:
		return index.FileSource{Path: cfg.Path}, nil
	default:
		return nil, fmt.Errorf("unknown index source %q", cfg.Source)
	}
}

// newIndexLogger builds the logrus logger used by the index reloader.
func newIndexLogger(level observability.LogLevel) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.JSONFormatter{})

	lvl, err := logrus.ParseLevel(level.String())
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}

func loadRanker(weightsFile string) (*rank.Ranker, error) {
	if weightsFile == "" {
		return rank.Default(), nil
	}
	w, err := rank.LoadWeights(weightsFile)
	if err != nil {
		return nil, err
	}
	return rank.NewRanker(w)
}

// buildCache returns the configured result cache, plus the Redis client when
// one was opened. Both are nil when caching is off.
func buildCache(cfg config.CacheConfig, logger *observability.Logger) (search.Cache, *redis.Client, error) {
	switch cfg.Backend {
	case config.CacheMemory:
		return search.NewMemoryCache(cfg.Size, cfg.TTL), nil, nil
	case config.CacheRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid redis URL: %w", err)
		}
		client := redis.NewClient(opts)
		return search.NewRedisCache(client, cfg.TTL, logger.WithField("component", "cache")), client, nil
	default:
		return nil, nil, nil
	}
}

// buildRateLimiter returns nil when rate limiting is off. With a Redis cache
// configured the budget is shared across instances.
func buildRateLimiter(ctx context.Context, cfg config.ServerConfig, redisClient *redis.Client) middleware.Limiter {
	if cfg.RateLimit <= 0 {
		return nil
	}
	rlCfg := &middleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimit,
		WindowDuration:    time.Minute,
		BurstSize:         cfg.RateLimitBurst,
	}
	if redisClient != nil {
		return middleware.NewDistributedRateLimiter(redisClient, rlCfg, "")
	}
	limiter := middleware.NewRateLimiter(rlCfg)
	limiter.StartCleanup(ctx)
	return limiter
}

func storeDB(store *history.Store) *sql.DB {
	if store == nil {
		return nil
	}
	return store.DB()
}

// registerIndexRoutes exposes reload status and a manual reload trigger on
// the admin port.
func registerIndexRoutes(router *mux.Router, holder *index.Holder, timeout time.Duration) {
	router.HandleFunc("/index/status", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteSuccess(w, holder.Status())
	}).Methods("GET")

	router.HandleFunc("/index/reload", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		changed, err := holder.Reload(ctx)
		if err != nil {
			httputil.WriteError(w, http.StatusBadGateway, err.Error())
			return
		}
		httputil.WriteSuccess(w, map[string]interface{}{
			"changed": changed,
			"status":  holder.Status(),
		})
	}).Methods("POST")
}
