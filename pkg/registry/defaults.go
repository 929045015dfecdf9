package registry

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aretw0/orgtree/pkg/adapters/file"
	"github.com/aretw0/orgtree/pkg/adapters/loam"
	"github.com/aretw0/orgtree/pkg/adapters/memory"
	"github.com/aretw0/orgtree/pkg/adapters/redis"
	"github.com/aretw0/orgtree/pkg/adapters/sqlite"
	"github.com/aretw0/orgtree/pkg/domain"
	"github.com/aretw0/orgtree/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// Query parameters understood by the redis factories; they are removed
// before the URL reaches the redis client, which rejects unknown options.
const (
	redisSnapshotParam = "snapshot"
	redisPrefixParam   = "prefix"
	redisTTLParam      = "ttl"
)

// DefaultSnapshot is the snapshot name used by redis sources when the address names none.
const DefaultSnapshot = "main"

// Default returns a registry with every built-in adapter:
//
//	file:chart.json            JSON or YAML chart file
//	loam:./org                 directory of position documents
//	sqlite:org.db              SQLite database
//	redis://host:6379/0?snapshot=main&prefix=orgtree:snapshot:
//	memory:                    empty in-memory source or store
func Default() *Registry {
	r := NewRegistry()

	r.RegisterSource("file", func(ctx context.Context, loc Location) (ports.EntrySource, error) {
		opts := []file.SourceOption{file.WithMapping(loc.Mapping)}
		if f := loc.Query.Get("format"); f != "" {
			opts = append(opts, file.WithFormat(file.Format(strings.ToLower(f))))
		}
		return file.NewSource(loc.Path, opts...), nil
	})
	r.RegisterStore("file", func(ctx context.Context, loc Location) (ports.SnapshotStore, error) {
		return file.NewStore(loc.Path), nil
	})

	r.RegisterSource("loam", func(ctx context.Context, loc Location) (ports.EntrySource, error) {
		path := loc.Path
		if path == "" {
			path = "."
		}
		l, err := loam.Open(path)
		if err != nil {
			return nil, err
		}
		l.Mapping = overlay(loam.FrontMatterMapping, loc.Mapping)
		return l, nil
	})

	r.RegisterSource("sqlite", func(ctx context.Context, loc Location) (ports.EntrySource, error) {
		return sqlite.New(loc.Path)
	})
	r.RegisterStore("sqlite", func(ctx context.Context, loc Location) (ports.SnapshotStore, error) {
		return sqlite.New(loc.Path)
	})

	r.RegisterSource("redis", func(ctx context.Context, loc Location) (ports.EntrySource, error) {
		store, snapshot, err := openRedis(loc)
		if err != nil {
			return nil, err
		}
		return redis.NewSource(store, snapshot), nil
	})
	r.RegisterStore("redis", func(ctx context.Context, loc Location) (ports.SnapshotStore, error) {
		store, _, err := openRedis(loc)
		return store, err
	})

	r.RegisterSource("memory", func(ctx context.Context, loc Location) (ports.EntrySource, error) {
		return memory.NewSource(), nil
	})
	r.RegisterStore("memory", func(ctx context.Context, loc Location) (ports.SnapshotStore, error) {
		return memory.NewStore(), nil
	})

	return r
}

func openRedis(loc Location) (*redis.Store, string, error) {
	q := loc.Query
	snapshot := q.Get(redisSnapshotParam)
	if snapshot == "" {
		snapshot = DefaultSnapshot
	}

	var opts []redis.Option
	if p := q.Get(redisPrefixParam); p != "" {
		opts = append(opts, redis.WithPrefix(p))
	}
	if t := q.Get(redisTTLParam); t != "" {
		ttl, err := time.ParseDuration(t)
		if err != nil {
			return nil, "", fmt.Errorf("invalid redis ttl %q: %w", t, err)
		}
		opts = append(opts, redis.WithTTL(ttl))
	}

	clientURL, err := stripParams(loc.Path, redisSnapshotParam, redisPrefixParam, redisTTLParam)
	if err != nil {
		return nil, "", err
	}
	clientOpts, err := backend.ParseURL(clientURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid redis address: %w", err)
	}

	return redis.NewFromClient(backend.NewClient(clientOpts), opts...), snapshot, nil
}

// overlay replaces the keys of base that m sets explicitly.
func overlay(base, m domain.FieldMapping) domain.FieldMapping {
	if m.ID != "" {
		base.ID = m.ID
	}
	if m.Label != "" {
		base.Label = m.Label
	}
	if m.Superior != "" {
		base.Superior = m.Superior
	}
	return base
}

func stripParams(raw string, names ...string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid redis address: %w", err)
	}
	q := u.Query()
	for _, n := range names {
		q.Del(n)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
