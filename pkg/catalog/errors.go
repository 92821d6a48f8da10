package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedIndex is returned by Build when the raw index is missing
	// required data or is internally inconsistent.
	ErrMalformedIndex = errors.New("malformed index")

	// ErrUnresolvedParent is the malformed-index case where a parent
	// reference does not resolve within its namespace.
	ErrUnresolvedParent = errors.New("unresolved parent")

	// ErrNotFound is returned by Lookup when no item has the given identity.
	ErrNotFound = errors.New("item not found")
)

// IndexError describes where a raw index failed validation. It matches
// ErrMalformedIndex with errors.Is, and ErrUnresolvedParent as well when the
// failure was a dangling parent reference.
type IndexError struct {
	Namespace string
	// Item is the position of the offending record in its namespace, or -1.
	Item   int
	Reason string

	unresolvedParent bool
}

func (e *IndexError) Error() string {
	kind := ErrMalformedIndex.Error()
	if e.unresolvedParent {
		kind = ErrUnresolvedParent.Error()
	}
	if e.Item >= 0 {
		return fmt.Sprintf("%s: namespace %q item %d: %s", kind, e.Namespace, e.Item, e.Reason)
	}
	if e.Namespace != "" {
		return fmt.Sprintf("%s: namespace %q: %s", kind, e.Namespace, e.Reason)
	}
	return fmt.Sprintf("%s: %s", kind, e.Reason)
}

func (e *IndexError) Is(target error) bool {
	if target == ErrMalformedIndex {
		return true
	}
	return e.unresolvedParent && target == ErrUnresolvedParent
}

func malformed(ns string, item int, format string, args ...interface{}) error {
	return &IndexError{Namespace: ns, Item: item, Reason: fmt.Sprintf(format, args...)}
}

func unresolved(ns string, item int, format string, args ...interface{}) error {
	return &IndexError{Namespace: ns, Item: item, Reason: fmt.Sprintf(format, args...), unresolvedParent: true}
}
