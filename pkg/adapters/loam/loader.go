package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/loam"
	"github.com/aretw0/orgtree/pkg/domain"
)

// Loader adapts a Loam repository to ports.EntrySource.
// Each document is one position; documents are read in path order.
type Loader struct {
	Repo    *loam.TypedRepository[PositionMetadata]
	Mapping domain.FieldMapping
}

// New creates a new Loam adapter over an initialized repository.
func New(repo *loam.TypedRepository[PositionMetadata]) *Loader {
	return &Loader{
		Repo:    repo,
		Mapping: FrontMatterMapping,
	}
}

// Open initializes a read-only Loam repository at path and wraps it.
func Open(path string) (*Loader, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	// Strict mode keeps numbers as json.Number instead of float64.
	// Read-only mode avoids Loam's sandbox copies; the loader never writes.
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}

	return New(loam.NewTypedRepository[PositionMetadata](repo)), nil
}

// LoadEntries lists every document and decodes it into an entry.
// The id defaults to the document path without extension; two documents
// resolving to the same id are an error.
func (l *Loader) LoadEntries(ctx context.Context) ([]domain.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })

	mapping := l.Mapping.WithDefaults()
	seen := make(map[string]string, len(docs))
	entries := make([]domain.Entry, 0, len(docs))

	for _, doc := range docs {
		record := make(map[string]any, len(doc.Data)+1)
		for k, v := range doc.Data {
			record[k] = v
		}

		switch v := record[mapping.ID].(type) {
		case nil:
			record[mapping.ID] = trimExtension(doc.ID)
		case string:
			if strings.TrimSpace(v) == "" {
				v = doc.ID
			}
			record[mapping.ID] = trimExtension(v)
		}

		entry, err := domain.DecodeRecord(record, mapping)
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", doc.ID, err)
		}

		if existingPath, ok := seen[entry.ID]; ok {
			return nil, fmt.Errorf("collision detected: ID '%s' is defined in both '%s' and '%s'", entry.ID, existingPath, doc.ID)
		}
		seen[entry.ID] = doc.ID

		if body := strings.TrimSpace(doc.Content); body != "" {
			if entry.Fields == nil {
				entry.Fields = make(map[string]any)
			}
			if _, exists := entry.Fields[descriptionField]; !exists {
				entry.Fields[descriptionField] = body
			}
		}

		entries = append(entries, entry)
	}
	return entries, nil
}

// trimExtension strips document extensions so "cto.md" and "cto" name the same position.
func trimExtension(id string) string {
	switch ext := strings.ToLower(filepath.Ext(id)); ext {
	case ".md", ".json", ".yaml", ".yml":
		return filepath.ToSlash(id[:len(id)-len(ext)])
	}
	return filepath.ToSlash(id)
}

// Watch implements ports.Watchable.
func (l *Loader) Watch(ctx context.Context) (<-chan string, error) {
	// Recursive doublestar pattern, matched by Loam itself.
	events, err := l.Repo.Watch(ctx, "**/*.{md,json,yaml,yml}")
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan string, 1)

	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				select {
				case ch <- evt.ID:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}
