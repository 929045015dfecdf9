package memory

import (
	"context"
	"sync"

	"github.com/aretw0/orgtree/pkg/domain"
)

// Source implements ports.EntrySource, ports.EntrySink and ports.Watchable in memory.
// Safe for concurrent use.
type Source struct {
	mu       sync.RWMutex
	entries  []domain.Entry
	watchers map[chan string]struct{}
}

// NewSource creates a source holding a copy of entries.
func NewSource(entries ...domain.Entry) *Source {
	return &Source{
		entries:  domain.CloneEntries(entries),
		watchers: make(map[chan string]struct{}),
	}
}

// LoadEntries returns a copy of the stored entries.
func (s *Source) LoadEntries(ctx context.Context) ([]domain.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.CloneEntries(s.entries), nil
}

// ReplaceEntries swaps the stored entries and notifies watchers.
func (s *Source) ReplaceEntries(ctx context.Context, entries []domain.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.entries = domain.CloneEntries(entries)
	s.mu.Unlock()

	s.notify("replace")
	return nil
}

// Watch implements ports.Watchable.
func (s *Source) Watch(ctx context.Context) (<-chan string, error) {
	ch := make(chan string, 1)

	s.mu.Lock()
	s.watchers[ch] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.watchers, ch)
		close(ch)
		s.mu.Unlock()
	}()

	return ch, nil
}

func (s *Source) notify(event string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for ch := range s.watchers {
		select {
		case ch <- event:
		default:
			// A reload is already pending for this watcher.
		}
	}
}
