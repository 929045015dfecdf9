package ports

import (
	"context"

	"github.com/aretw0/orgtree/pkg/domain"
)

// EntrySource defines how the engine retrieves position records.
// This allows the storage layer (Loam, files, SQLite, Redis, memory) to be decoupled.
type EntrySource interface {
	// LoadEntries returns every record in the order the backend keeps them.
	// Order matters: it decides root order and the order of subordinates.
	LoadEntries(ctx context.Context) ([]domain.Entry, error)
}

// EntrySink is implemented by sources that can be rewritten in one go.
// It is used by the import flow to copy a chart between backends.
type EntrySink interface {
	// ReplaceEntries atomically replaces the stored records with entries.
	ReplaceEntries(ctx context.Context, entries []domain.Entry) error
}

// Watchable defines an interface for sources that can notify about backend changes.
// This is typically used for hot-reload.
type Watchable interface {
	// Watch returns a channel that receives a short description (usually the changed id)
	// every time the underlying data changes. The channel is closed when ctx is done.
	Watch(ctx context.Context) (<-chan string, error)
}
