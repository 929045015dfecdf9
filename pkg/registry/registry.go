package registry

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/orgtree/pkg/domain"
	"github.com/aretw0/orgtree/pkg/ports"
)

// Location is a parsed source or store address.
type Location struct {
	// Raw is the address as given.
	Raw string
	// Scheme selects the factory ("file", "loam", "sqlite", "redis", "memory").
	Scheme string
	// Path is the address without its scheme: a filesystem path, or the full URL for redis.
	Path string
	// Query holds the URL query parameters, if any.
	Query url.Values
	// Mapping names the record keys for sources that decode loose records.
	Mapping domain.FieldMapping
}

// SourceFactory opens an entry source.
type SourceFactory func(ctx context.Context, loc Location) (ports.EntrySource, error)

// StoreFactory opens a snapshot store.
type StoreFactory func(ctx context.Context, loc Location) (ports.SnapshotStore, error)

// Registry maps address schemes to adapter factories.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]SourceFactory
	stores  map[string]StoreFactory
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[string]SourceFactory),
		stores:  make(map[string]StoreFactory),
	}
}

// RegisterSource adds a source factory.
// If a factory with the same scheme exists, it is overwritten.
func (r *Registry) RegisterSource(scheme string, fn SourceFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[strings.ToLower(scheme)] = fn
}

// RegisterStore adds a snapshot store factory.
// If a factory with the same scheme exists, it is overwritten.
func (r *Registry) RegisterStore(scheme string, fn StoreFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores[strings.ToLower(scheme)] = fn
}

// Schemes lists the schemes with a registered source factory, sorted.
func (r *Registry) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.sources))
	for s := range r.sources {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// OpenSource parses addr and calls the matching source factory.
// Returns domain.ErrUnsupportedSource if no factory handles it.
func (r *Registry) OpenSource(ctx context.Context, addr string, mapping domain.FieldMapping) (ports.EntrySource, error) {
	loc, err := Parse(addr)
	if err != nil {
		return nil, err
	}
	loc.Mapping = mapping

	r.mu.RLock()
	fn, ok := r.sources[loc.Scheme]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (scheme %q)", domain.ErrUnsupportedSource, addr, loc.Scheme)
	}
	return fn(ctx, loc)
}

// OpenStore parses addr and calls the matching store factory.
func (r *Registry) OpenStore(ctx context.Context, addr string) (ports.SnapshotStore, error) {
	loc, err := Parse(addr)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	fn, ok := r.stores[loc.Scheme]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no snapshot store for %q", domain.ErrUnsupportedSource, addr)
	}
	return fn(ctx, loc)
}

// Parse splits an address into scheme and path. Addresses without a scheme
// are treated as filesystem paths and the scheme is inferred: directories are
// loam repositories, .json/.yaml/.yml are chart files and .db/.sqlite are SQLite databases.
func Parse(addr string) (Location, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return Location{}, fmt.Errorf("%w: empty address", domain.ErrUnsupportedSource)
	}
	loc := Location{Raw: addr}

	if scheme, rest, ok := splitScheme(addr); ok {
		loc.Scheme = scheme
		if scheme == "redis" || scheme == "rediss" {
			loc.Scheme = "redis"
			u, err := url.Parse(addr)
			if err != nil {
				return Location{}, fmt.Errorf("invalid redis address: %w", err)
			}
			loc.Path = addr
			loc.Query = u.Query()
			return loc, nil
		}
		path, query, _ := strings.Cut(strings.TrimPrefix(rest, "//"), "?")
		values, err := url.ParseQuery(query)
		if err != nil {
			return Location{}, fmt.Errorf("invalid query in %q: %w", addr, err)
		}
		loc.Path = path
		loc.Query = values
		return loc, nil
	}

	loc.Path = addr
	loc.Query = url.Values{}
	loc.Scheme = inferScheme(addr)
	return loc, nil
}

// splitScheme recognizes "scheme:rest". Single letters are Windows drive names, not schemes.
func splitScheme(addr string) (string, string, bool) {
	scheme, rest, ok := strings.Cut(addr, ":")
	if !ok || len(scheme) < 2 {
		return "", "", false
	}
	for _, c := range scheme {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.') {
			return "", "", false
		}
	}
	return strings.ToLower(scheme), rest, true
}

func inferScheme(path string) string {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return "loam"
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return "file"
	case ".db", ".sqlite", ".sqlite3":
		return "sqlite"
	}
	// Missing paths without a known extension are taken as loam directories.
	if filepath.Ext(path) == "" {
		return "loam"
	}
	return ""
}
