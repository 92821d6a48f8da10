package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/docsearch/pkg/async"
	"github.com/platinummonkey/docsearch/pkg/catalog"
	"github.com/platinummonkey/docsearch/pkg/config"
	"github.com/platinummonkey/docsearch/pkg/history"
	"github.com/platinummonkey/docsearch/pkg/httputil"
	"github.com/platinummonkey/docsearch/pkg/index"
	"github.com/platinummonkey/docsearch/pkg/middleware"
	"github.com/platinummonkey/docsearch/pkg/observability"
	"github.com/platinummonkey/docsearch/pkg/search"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	async.SetLogger(logger)

	if err := run(context.Background(), cfg, logger); err != nil {
		logger.WithError(err).Error("docsearch stopped with errors")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *observability.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
		SampleRatio:    cfg.Observability.OTelSampleRatio,
	}, logger)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	observers := []search.Observer{metrics}
	var otelMetrics *observability.OTelMetrics
	if providers != nil {
		if otelMetrics, err = observability.NewOTelMetrics(providers.Meter); err != nil {
			return err
		}
		observers = append(observers, otelMetrics)
	}

	// Index
	source, err := buildSource(ctx, cfg.Index)
	if err != nil {
		return err
	}
	holder := index.NewHolder(source, newIndexLogger(cfg.Observability.LogLevel))
	holder.OnSwap(func(c *catalog.Catalog) {
		stats := c.Stats()
		metrics.SetCatalog(c.Version(), stats.Items, stats.Duplicates, time.Now())
		if otelMetrics != nil {
			otelMetrics.SetCatalog(c.Version(), stats.Items)
		}
	})

	loadCtx, loadCancel := context.WithTimeout(ctx, cfg.Index.ReloadTimeout)
	if _, err := holder.Reload(loadCtx); err != nil {
		// Readiness stays red until a later reload succeeds.
		logger.WithError(err).WithField("source", source.String()).Warn("Initial index load failed")
	}
	loadCancel()

	// Engine
	ranker, err := loadRanker(cfg.Search.WeightsFile)
	if err != nil {
		return err
	}
	cache, redisClient, err := buildCache(cfg.Cache, logger)
	if err != nil {
		return err
	}
	engineOpts := []search.Option{
		search.WithRanker(ranker),
		search.WithObserver(search.Observers(observers...)),
		search.WithLogger(logger),
		search.WithOptions(search.Options{
			DefaultLimit:      cfg.Search.DefaultLimit,
			MaxLimit:          cfg.Search.MaxLimit,
			ParallelThreshold: cfg.Search.ParallelThreshold,
			Workers:           cfg.Search.Workers,
		}),
	}
	if cache != nil {
		engineOpts = append(engineOpts, search.WithCache(cache))
	}
	engine := search.NewEngine(holder, engineOpts...)

	handlerOpts := []search.HandlerOption{
		search.WithSessionObserver(func(active int) {
			metrics.SessionsActive.Set(float64(active))
		}),
	}

	// History
	var (
		store    *history.Store
		recorder *history.Recorder
	)
	if cfg.History.Enabled() {
		store, err = history.Open(ctx, cfg.History.Driver, cfg.History.DSN)
		if err != nil {
			return err
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return err
		}
		registry.MustRegister(collectors.NewDBStatsCollector(store.DB(), "history"))
		recorder = history.NewRecorder(ctx, store, cfg.History.Workers, logger,
			history.WithResultHook(func(err error) { metrics.ObserveHistory(history.Status(err)) }))
		handlerOpts = append(handlerOpts, search.WithRecorder(recorder), search.WithSuggester(store))
		logger.WithField("driver", cfg.History.Driver).Info("Query history enabled")
	}

	handlers := search.NewSearchHandlers(engine, cfg.Search.MaxSessions, cfg.Search.SessionTTL, handlerOpts...)

	// Public API
	router := mux.NewRouter()
	router.Use(observability.HTTPMetricsMiddleware(metrics))
	handlers.RegisterRoutes(router)

	chain := []func(http.Handler) http.Handler{
		httputil.RequestIDMiddleware(logger),
		httputil.LoggingMiddleware,
	}
	if limiter := buildRateLimiter(ctx, cfg.Server, redisClient); limiter != nil {
		chain = append(chain, middleware.RateLimit(limiter))
		logger.WithField("per_minute", cfg.Server.RateLimit).Info("Rate limiting enabled")
	}
	chain = append(chain,
		httputil.RecoveryMiddleware,
		httputil.CORSMiddleware(cfg.Server.CORSOrigins),
		httputil.TimeoutMiddleware(cfg.Server.RequestTimeout),
	)
	apiHandler := httputil.Chain(chain...)(router)

	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      otelhttp.NewHandler(apiHandler, "docsearch"),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health, metrics and index admin
	checker := observability.NewHealthChecker(storeDB(store), redisClient)
	checker.SetVersion(cfg.Observability.OTelServiceVersion)
	checker.AddCheck("catalog", true, holder.Check)

	adminRouter := mux.NewRouter()
	observability.RegisterHealthRoutes(adminRouter, checker)
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(adminRouter, registry)
	}
	registerIndexRoutes(adminRouter, holder, cfg.Index.ReloadTimeout)

	adminServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:           adminRouter,
		ReadHeaderTimeout: 5 * time.Second,
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, server, adminServer)

	// Reload triggers
	if cfg.Index.Watch {
		watchCtx, stopWatch := context.WithCancel(ctx)
		go func() {
			defer observability.RecoverPanic(logger, "index watch")
			if err := holder.Watch(watchCtx, cfg.Index.Path, cfg.Index.WatchDebounce); err != nil {
				logger.WithError(err).Error("Index watch stopped")
			}
		}()
		shutdown.RegisterShutdownFunc("index watch", func(context.Context) error {
			stopWatch()
			return nil
		})
	}
	if cfg.Index.RefreshSchedule != "" {
		scheduler, err := holder.Schedule(cfg.Index.RefreshSchedule, cfg.Index.ReloadTimeout)
		if err != nil {
			return err
		}
		shutdown.RegisterShutdownFunc("index schedule", func(ctx context.Context) error {
			select {
			case <-scheduler.Stop().Done():
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}

	if recorder != nil {
		shutdown.RegisterShutdownFunc("history recorder", func(context.Context) error {
			if err := recorder.Close(cfg.Server.ShutdownTimeout); err != nil {
				return err
			}
			return store.Close()
		})
	}
	if redisClient != nil {
		shutdown.RegisterShutdownFunc("redis", func(context.Context) error {
			return redisClient.Close()
		})
	}
	if providers != nil {
		shutdown.RegisterShutdownFunc("opentelemetry", func(ctx context.Context) error {
			return providers.Shutdown(ctx)
		})
	}

	for _, srv := range []*http.Server{server, adminServer} {
		go func(srv *http.Server) {
			logger.Infof("Listening on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.WithError(err).WithField("addr", srv.Addr).Error("Server failed")
				cancel()
			}
		}(srv)
	}

	return shutdown.WaitForShutdown(ctx)
}
