package domain

import "errors"

// ErrEntryNotFound is returned by lookups that must fail loudly, such as the HTTP and MCP adapters.
// The hierarchy queries themselves never return it.
var ErrEntryNotFound = errors.New("entry not found")

// ErrMissingID is returned when a record cannot provide a non-empty identifier.
var ErrMissingID = errors.New("record is missing an id")

// ErrSnapshotNotFound is returned when a snapshot name cannot be found in the store.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// ErrCyclicHierarchy is reported when superior references form a loop.
var ErrCyclicHierarchy = errors.New("cyclic superior chain")

// ErrSourceNotFound is returned when the configured source location does not exist.
var ErrSourceNotFound = errors.New("source not found")

// ErrUnsupportedSource is returned when a source location cannot be mapped to an adapter.
var ErrUnsupportedSource = errors.New("unsupported source")

// ErrNotWatchable is returned when the configured source cannot report changes.
var ErrNotWatchable = errors.New("source does not support watching")
