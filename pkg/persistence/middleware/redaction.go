package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/orgtree/pkg/domain"
	"github.com/aretw0/orgtree/pkg/ports"
)

// Mask replaces redacted field values.
const Mask = "***"

type redactionMiddleware struct {
	next     ports.SnapshotStore
	patterns []*regexp.Regexp
}

// NewRedactionMiddleware creates a middleware that masks opaque field values
// whose keys match any of the patterns (e.g. "(?i)salary"), including keys of nested maps.
// Ids, labels and superior references are never masked.
func NewRedactionMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.SnapshotStore) ports.SnapshotStore {
		return &redactionMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *redactionMiddleware) Save(ctx context.Context, name string, entries []domain.Entry) error {
	// Work on a deep copy; the caller's entries may back a live hierarchy.
	cloned := domain.CloneEntries(entries)
	for i := range cloned {
		maskMap(cloned[i].Fields, m.patterns)
	}
	return m.next.Save(ctx, name, cloned)
}

func (m *redactionMiddleware) Load(ctx context.Context, name string) ([]domain.Entry, error) {
	return m.next.Load(ctx, name)
}

func (m *redactionMiddleware) Delete(ctx context.Context, name string) error {
	return m.next.Delete(ctx, name)
}

func (m *redactionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func maskMap(m map[string]any, patterns []*regexp.Regexp) {
	for k, v := range m {
		masked := false
		for _, p := range patterns {
			if p.MatchString(k) {
				m[k] = Mask
				masked = true
				break
			}
		}
		if masked {
			continue
		}

		switch sub := v.(type) {
		case map[string]any:
			maskMap(sub, patterns)
		case []any:
			for _, item := range sub {
				if subMap, ok := item.(map[string]any); ok {
					maskMap(subMap, patterns)
				}
			}
		}
	}
}
