// Package observability provides structured logging, Prometheus metrics,
// OpenTelemetry setup, health probes and graceful shutdown for docsearch.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("query", q).Info("search served")
//
// Request-scoped logging picks up the request and session IDs stored by the
// HTTP middleware:
//
//	observability.FromContext(r.Context()).Warn("slow query")
//
// # Metrics
//
// Metrics implements the search engine's observer interface, so wiring it is
// a single option:
//
//	metrics := observability.NewMetrics(registry)
//	engine := search.NewEngine(holder, search.WithObserver(metrics))
//	router.Use(observability.HTTPMetricsMiddleware(metrics))
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient)
//	checker.AddCheck("catalog", true, holder.Check)
//	observability.RegisterHealthRoutes(router, checker)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "docsearch",
//	}, logger)
//	defer providers.Shutdown(ctx)
package observability
