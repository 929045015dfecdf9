package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aretw0/orgtree/pkg/domain"
	"github.com/fsnotify/fsnotify"
)

// Source implements ports.EntrySource over a single JSON or YAML file.
// It also implements ports.EntrySink (rewriting the file atomically) and ports.Watchable.
type Source struct {
	Path    string
	Mapping domain.FieldMapping
	Format  Format
}

// SourceOption configures a Source.
type SourceOption func(*Source)

// WithMapping sets the record keys used for id, label and superior.
func WithMapping(m domain.FieldMapping) SourceOption {
	return func(s *Source) {
		s.Mapping = m
	}
}

// WithFormat overrides the format inferred from the file extension.
func WithFormat(f Format) SourceOption {
	return func(s *Source) {
		s.Format = f
	}
}

// NewSource creates a source reading path.
func NewSource(path string, opts ...SourceOption) *Source {
	s := &Source{
		Path:    path,
		Mapping: domain.DefaultMapping,
		Format:  FormatFor(path),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadEntries reads and decodes the whole file.
func (s *Source) LoadEntries(ctx context.Context) ([]domain.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrSourceNotFound, s.Path)
		}
		return nil, fmt.Errorf("failed to read chart file: %w", err)
	}

	records, err := decodeRecords(data, s.Format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Path, err)
	}

	entries := make([]domain.Entry, 0, len(records))
	for i, rec := range records {
		e, err := domain.DecodeRecord(rec, s.Mapping)
		if err != nil {
			return nil, fmt.Errorf("%s: record %d: %w", s.Path, i, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// ReplaceEntries rewrites the file with entries, keeping the configured mapping and format.
func (s *Source) ReplaceEntries(ctx context.Context, entries []domain.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	records := make([]map[string]any, len(entries))
	for i, e := range entries {
		records[i] = domain.EncodeRecord(e, s.Mapping)
	}

	data, err := encodeRecords(records, s.Format)
	if err != nil {
		return fmt.Errorf("failed to encode chart: %w", err)
	}
	return writeAtomic(s.Path, data)
}

// Watch implements ports.Watchable.
// The parent directory is watched, since editors often replace files instead of writing them in place.
func (s *Source) Watch(ctx context.Context) (<-chan string, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to start file watcher: %w", err)
	}

	target, err := filepath.Abs(s.Path)
	if err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(target), err)
	}

	ch := make(chan string, 1)

	go func() {
		defer close(ch)
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				name, err := filepath.Abs(evt.Name)
				if err != nil || name != target {
					continue
				}
				if !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) && !evt.Has(fsnotify.Rename) {
					continue
				}
				select {
				case ch <- filepath.Base(name):
				default:
					// A reload is already pending.
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return ch, nil
}
