package search

import "errors"

var (
	// ErrSuperseded is returned to a session query that a newer query replaced
	// before it could deliver.
	ErrSuperseded = errors.New("query superseded")

	// ErrInvalidQuery is returned when a query filter cannot be parsed.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrNoCatalog is returned when no catalog has been loaded yet.
	ErrNoCatalog = errors.New("no catalog loaded")
)
