// Package history records executed search queries and serves prefix
// suggestions from them.
//
// Entries are stored in PostgreSQL in production and SQLite for local use.
// Both share the same SQL:
//
//	store, err := history.Open(ctx, history.DriverPostgres, dsn)
//	err = store.Migrate(ctx)
//
//	recorder := history.NewRecorder(ctx, store, 2, logger)
//	defer recorder.Close(5 * time.Second)
//
//	recorder.Record("Context -> Html", 3, 2*time.Millisecond)
//	suggestions, err := store.Suggestions(ctx, "cont", 5)
package history
