package ports

import (
	"context"

	"github.com/aretw0/orgtree/pkg/domain"
)

// SnapshotStore defines the interface for persisting named copies of a chart.
// Snapshots let a service keep the last good chart when the primary source is unavailable.
type SnapshotStore interface {
	// Save persists entries under name, replacing any previous snapshot.
	Save(ctx context.Context, name string, entries []domain.Entry) error

	// Load retrieves the snapshot stored under name.
	// Returns domain.ErrSnapshotNotFound if it does not exist.
	Load(ctx context.Context, name string) ([]domain.Entry, error)

	// Delete removes a snapshot. Deleting a missing snapshot is not an error.
	Delete(ctx context.Context, name string) error

	// List returns the names of the stored snapshots.
	List(ctx context.Context) ([]string, error)
}
