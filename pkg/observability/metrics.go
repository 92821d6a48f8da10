package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Search metrics
	QueriesTotal    *prometheus.CounterVec
	QueryDuration   *prometheus.HistogramVec
	QueryResults    *prometheus.HistogramVec
	CacheHitsTotal  prometheus.Counter
	CacheMissTotal  prometheus.Counter
	SessionsActive  prometheus.Gauge
	HistoryRecorded *prometheus.CounterVec

	// Catalog metrics
	CatalogItems      prometheus.Gauge
	CatalogDuplicates prometheus.Gauge
	CatalogSwaps      prometheus.Counter
	CatalogLoadedAt   prometheus.Gauge
	CatalogInfo       *prometheus.GaugeVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docsearch_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docsearch_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docsearch_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 7),
			},
			[]string{"method", "route"},
		),

		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docsearch_queries_total",
				Help: "Total number of search queries by mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		QueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docsearch_query_duration_seconds",
				Help:    "Search query evaluation time in seconds",
				Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"mode"},
		),
		QueryResults: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docsearch_query_results",
				Help:    "Number of results returned per query",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 1000},
			},
			[]string{"mode"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docsearch_cache_hits_total",
				Help: "Total number of result cache hits",
			},
		),
		CacheMissTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docsearch_cache_misses_total",
				Help: "Total number of result cache misses",
			},
		),
		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "docsearch_sessions_active",
				Help: "Number of open search sessions",
			},
		),
		HistoryRecorded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docsearch_history_records_total",
				Help: "Total number of query history writes",
			},
			[]string{"status"},
		),

		CatalogItems: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "docsearch_catalog_items",
				Help: "Number of items in the live catalog",
			},
		),
		CatalogDuplicates: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "docsearch_catalog_duplicates",
				Help: "Number of duplicate records dropped from the live catalog",
			},
		),
		CatalogSwaps: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docsearch_catalog_swaps_total",
				Help: "Total number of catalog replacements",
			},
		),
		CatalogLoadedAt: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "docsearch_catalog_loaded_timestamp_seconds",
				Help: "Unix time the live catalog was loaded",
			},
		),
		CatalogInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "docsearch_catalog_info",
				Help: "Version of the live catalog, always 1",
			},
			[]string{"version"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.QueriesTotal,
		m.QueryDuration,
		m.QueryResults,
		m.CacheHitsTotal,
		m.CacheMissTotal,
		m.SessionsActive,
		m.HistoryRecorded,
		m.CatalogItems,
		m.CatalogDuplicates,
		m.CatalogSwaps,
		m.CatalogLoadedAt,
		m.CatalogInfo,
	)

	return m
}

// ObserveQuery records one evaluated query.
func (m *Metrics) ObserveQuery(mode, outcome string, results int, took time.Duration) {
	m.QueriesTotal.WithLabelValues(mode, outcome).Inc()
	m.QueryDuration.WithLabelValues(mode).Observe(took.Seconds())
	if outcome == "ok" || outcome == "empty" {
		m.QueryResults.WithLabelValues(mode).Observe(float64(results))
	}
}

// ObserveCache records a result cache lookup.
func (m *Metrics) ObserveCache(hit bool) {
	if hit {
		m.CacheHitsTotal.Inc()
		return
	}
	m.CacheMissTotal.Inc()
}

// ObserveHistory counts a query history write by status: ok, dropped or
// error.
func (m *Metrics) ObserveHistory(status string) {
	m.HistoryRecorded.WithLabelValues(status).Inc()
}

// SetCatalog publishes the shape of a newly swapped-in catalog.
func (m *Metrics) SetCatalog(version string, items, duplicates int, loadedAt time.Time) {
	m.CatalogItems.Set(float64(items))
	m.CatalogDuplicates.Set(float64(duplicates))
	m.CatalogLoadedAt.Set(float64(loadedAt.Unix()))
	m.CatalogInfo.Reset()
	m.CatalogInfo.WithLabelValues(version).Set(1)
	m.CatalogSwaps.Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// routeLabel returns the mux route template so that path parameters such as
// session IDs do not explode label cardinality.
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// Use it as router middleware so the matched route is known.
func HTTPMetricsMiddleware(metrics *Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			route := routeLabel(r)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
			metrics.HTTPResponseSize.WithLabelValues(r.Method, route).Observe(float64(rw.bytesWritten))
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(router *mux.Router, gatherer prometheus.Gatherer) {
	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
}
