package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/orgtree/pkg/domain"
)

// Source exposes one named snapshot as a ports.EntrySource.
// It also implements ports.EntrySink and ports.Watchable, so several replicas
// can share a chart and reload when any of them imports a new one.
type Source struct {
	store *Store
	name  string
}

// NewSource binds a source to the snapshot called name.
func NewSource(store *Store, name string) *Source {
	return &Source{store: store, name: name}
}

// Name returns the snapshot this source reads.
func (s *Source) Name() string {
	return s.name
}

// LoadEntries loads the bound snapshot.
func (s *Source) LoadEntries(ctx context.Context) ([]domain.Entry, error) {
	entries, err := s.store.Load(ctx, s.name)
	if errors.Is(err, domain.ErrSnapshotNotFound) {
		return nil, fmt.Errorf("%w: redis snapshot %q", domain.ErrSourceNotFound, s.name)
	}
	return entries, err
}

// ReplaceEntries overwrites the bound snapshot.
func (s *Source) ReplaceEntries(ctx context.Context, entries []domain.Entry) error {
	return s.store.Save(ctx, s.name, entries)
}

// Watch implements ports.Watchable, forwarding only events about the bound snapshot.
func (s *Source) Watch(ctx context.Context) (<-chan string, error) {
	events, err := s.store.Subscribe(ctx)
	if err != nil {
		return nil, err
	}

	ch := make(chan string, 1)
	go func() {
		defer close(ch)
		for name := range events {
			if name != s.name {
				continue
			}
			select {
			case ch <- name:
			default:
				// A reload is already pending.
			}
		}
	}()
	return ch, nil
}
