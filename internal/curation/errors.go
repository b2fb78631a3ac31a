package curation

import "fmt"

// NotFoundError reports a mark against a record absent from the working
// set: either already curated or never ingested.
type NotFoundError struct {
	Record string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no predicted mapping with record %q", e.Record)
}

// ValidationError reports malformed input: an unrecognized outcome, a
// pre-hashed ingest row, or a duplicate content hash at ingest.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// PersistenceError wraps a failed file write or database transaction.
// The working set and pending buffer are untouched when it is returned,
// so the caller may retry.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ConfigurationError reports a controller constructed without required
// collaborators. Raised at construction, never later.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string { return e.Reason }
