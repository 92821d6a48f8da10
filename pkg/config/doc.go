// Package config loads docsearch configuration from environment variables.
//
// Every setting has a default; malformed numeric and duration values fall
// back to the default rather than failing. LoadConfig validates the result.
//
// Server settings:
//
//	DOCSEARCH_HOST="0.0.0.0"
//	DOCSEARCH_PORT="8080"
//	DOCSEARCH_HEALTH_PORT="9090"
//	DOCSEARCH_REQUEST_TIMEOUT="10s"
//	DOCSEARCH_CORS_ORIGINS="https://docs.example.com"
//	DOCSEARCH_RATE_LIMIT="600"  # requests per minute per client, 0 disables
//
// Index settings:
//
//	DOCSEARCH_INDEX_SOURCE="file"  # file, s3
//	DOCSEARCH_INDEX_PATH="search-index.js"
//	DOCSEARCH_INDEX_WATCH="true"
//	DOCSEARCH_INDEX_REFRESH="@every 10m"
//	DOCSEARCH_S3_BUCKET="docs"
//	DOCSEARCH_S3_KEY="nightly/search-index.js"
//
// Search settings:
//
//	DOCSEARCH_DEFAULT_LIMIT="50"
//	DOCSEARCH_MAX_LIMIT="1000"
//	DOCSEARCH_WEIGHTS_FILE="weights.yaml"
//	DOCSEARCH_MAX_SESSIONS="1024"
//	DOCSEARCH_SESSION_TTL="10m"
//
// Cache and history:
//
//	DOCSEARCH_CACHE="memory"  # none, memory, redis
//	DOCSEARCH_REDIS_URL="redis://localhost:6379/0"
//	DOCSEARCH_HISTORY_DRIVER="postgres"  # postgres, sqlite3
//	DOCSEARCH_HISTORY_DSN="postgres://localhost/docsearch?sslmode=disable"
//
// Observability:
//
//	DOCSEARCH_LOG_LEVEL="info"  # debug, info, warn, error
//	DOCSEARCH_METRICS_ENABLED="true"
//	DOCSEARCH_OTEL_ENABLED="true"
//	DOCSEARCH_OTEL_ENDPOINT="otel-collector:4317"
//	DOCSEARCH_OTEL_SAMPLE_RATIO="0.1"
package config
