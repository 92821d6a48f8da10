package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var historyTracer = otel.Tracer("docsearch/history")

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

const (
	defaultSuggestions = 5
	maxSuggestions     = 50
)

var schemas = map[string]string{
	DriverPostgres: `
		CREATE TABLE IF NOT EXISTS search_history (
			id BIGSERIAL PRIMARY KEY,
			query TEXT NOT NULL,
			result_count INTEGER NOT NULL DEFAULT 0,
			duration_ms BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_search_history_created_at ON search_history (created_at);
	`,
	DriverSQLite: `
		CREATE TABLE IF NOT EXISTS search_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			query TEXT NOT NULL,
			result_count INTEGER NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_search_history_created_at ON search_history (created_at);
	`,
}

// Entry is one executed query.
type Entry struct {
	Query   string
	Results int
	Took    time.Duration
	At      time.Time
}

// QueryCount is a query and how often it ran.
type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Store persists query history in PostgreSQL or SQLite.
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to the history database and verifies the connection.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	if _, ok := schemas[driver]; !ok {
		return nil, fmt.Errorf("unsupported history driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	if driver == DriverSQLite {
		// Every new connection to ":memory:" is a new database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}

	return &Store{db: db, driver: driver}, nil
}

// NewStore wraps an open database.
func NewStore(db *sql.DB, driver string) *Store {
	return &Store{db: db, driver: driver}
}

// DB returns the underlying database, for health checks.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the history table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	schema, ok := schemas[s.driver]
	if !ok {
		return fmt.Errorf("unsupported history driver %q", s.driver)
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate history schema: %w", err)
	}
	return nil
}

// Record stores e. Blank queries are ignored.
func (s *Store) Record(ctx context.Context, e Entry) error {
	query := strings.TrimSpace(e.Query)
	if query == "" {
		return nil
	}
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO search_history (query, result_count, duration_ms, created_at)
		VALUES ($1, $2, $3, $4)
	`, query, e.Results, e.Took.Milliseconds(), at.UTC())
	if err != nil {
		return fmt.Errorf("failed to record search: %w", err)
	}
	return nil
}

// Suggestions returns past queries starting with prefix, ignoring case, most
// frequent first.
func (s *Store) Suggestions(ctx context.Context, prefix string, limit int) ([]string, error) {
	ctx, span := historyTracer.Start(ctx, "History.Suggestions",
		trace.WithAttributes(
			attribute.String("prefix", prefix),
			attribute.Int("limit", limit),
		),
	)
	defer span.End()

	if limit <= 0 {
		limit = defaultSuggestions
	}
	if limit > maxSuggestions {
		limit = maxSuggestions
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT query
		FROM search_history
		WHERE lower(query) LIKE $1 ESCAPE '\'
		GROUP BY query
		ORDER BY COUNT(*) DESC, MAX(created_at) DESC, query
		LIMIT $2
	`, likePrefix(prefix), limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get suggestions")
		return nil, fmt.Errorf("failed to get suggestions: %w", err)
	}
	defer rows.Close()

	suggestions := make([]string, 0, limit)
	for rows.Next() {
		var suggestion string
		if err := rows.Scan(&suggestion); err != nil {
			return nil, fmt.Errorf("failed to scan suggestion: %w", err)
		}
		suggestions = append(suggestions, suggestion)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read suggestions: %w", err)
	}

	span.SetAttributes(attribute.Int("suggestion_count", len(suggestions)))
	return suggestions, nil
}

// Popular returns the most frequent queries recorded since the given time.
func (s *Store) Popular(ctx context.Context, since time.Time, limit int) ([]QueryCount, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT query, COUNT(*) AS n
		FROM search_history
		WHERE created_at >= $1
		GROUP BY query
		ORDER BY n DESC, query
		LIMIT $2
	`, since.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get popular queries: %w", err)
	}
	defer rows.Close()

	var out []QueryCount
	for rows.Next() {
		var qc QueryCount
		if err := rows.Scan(&qc.Query, &qc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan popular query: %w", err)
		}
		out = append(out, qc)
	}
	return out, rows.Err()
}

// Prune deletes entries recorded before the given time and reports how many
// were removed.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM search_history WHERE created_at < $1`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	return res.RowsAffected()
}

// likePrefix lower-cases prefix, escapes LIKE wildcards and appends "%".
func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(strings.ToLower(prefix)) + "%"
}
