package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/aretw0/orgtree/pkg/domain"
)

// Store implements ports.SnapshotStore in memory.
// Snapshots are cloned on the way in and out, so callers never share entries with the store.
type Store struct {
	mu        sync.RWMutex
	snapshots map[string][]domain.Entry
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{snapshots: make(map[string][]domain.Entry)}
}

func (s *Store) Save(ctx context.Context, name string, entries []domain.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := domain.CloneEntries(entries)

	s.mu.Lock()
	s.snapshots[name] = snapshot
	s.mu.Unlock()
	return nil
}

func (s *Store) Load(ctx context.Context, name string) ([]domain.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	snapshot, ok := s.snapshots[name]
	s.mu.RUnlock()

	if !ok {
		return nil, domain.ErrSnapshotNotFound
	}
	return domain.CloneEntries(snapshot), nil
}

// Delete is a no-op for unknown names.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.snapshots, name)
	s.mu.Unlock()
	return nil
}

// List returns the snapshot names in lexical order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	names := make([]string, 0, len(s.snapshots))
	for name := range s.snapshots {
		names = append(names, name)
	}
	s.mu.RUnlock()

	slices.Sort(names)
	return names, nil
}
