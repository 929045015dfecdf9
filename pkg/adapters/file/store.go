package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/orgtree/pkg/domain"
)

// Store implements ports.SnapshotStore using the local filesystem.
// It stores each snapshot as a JSON file in a configured directory.
type Store struct {
	BasePath string
}

// NewStore creates a new Store with the given base path.
// If basePath is empty, it defaults to ".orgtree/snapshots".
func NewStore(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".orgtree", "snapshots")
	}
	return &Store{BasePath: basePath}
}

func (s *Store) path(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("snapshot name cannot be empty")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid snapshot name %q", name)
	}
	return filepath.Join(s.BasePath, name+".json"), nil
}

// Save persists the snapshot to a JSON file atomically.
func (s *Store) Save(ctx context.Context, name string, entries []domain.Entry) error {
	dest, err := s.path(name)
	if err != nil {
		return err
	}

	if entries == nil {
		entries = []domain.Entry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	return writeAtomic(dest, data)
}

// Load retrieves the snapshot from its JSON file.
func (s *Store) Load(ctx context.Context, name string) ([]domain.Entry, error) {
	src, err := s.path(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}

	var entries []domain.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return entries, nil
}

// Delete removes the snapshot file.
func (s *Store) Delete(ctx context.Context, name string) error {
	target, err := s.path(name)
	if err != nil {
		return err
	}

	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete snapshot file: %w", err)
	}
	return nil
}

// List returns the stored snapshot names, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	files, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	names := []string{}
	for _, f := range files {
		n := f.Name()
		if f.IsDir() || filepath.Ext(n) != ".json" || strings.HasPrefix(n, "tmp-") {
			continue
		}
		names = append(names, strings.TrimSuffix(n, ".json"))
	}
	sort.Strings(names)
	return names, nil
}
