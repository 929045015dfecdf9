package orgtree

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/aretw0/orgtree/internal/validator"
	loamAdapter "github.com/aretw0/orgtree/pkg/adapters/loam"
	"github.com/aretw0/orgtree/pkg/domain"
	"github.com/aretw0/orgtree/pkg/hierarchy"
	"github.com/aretw0/orgtree/pkg/observability"
	"github.com/aretw0/orgtree/pkg/ports"
	"github.com/aretw0/orgtree/pkg/schema"
)

// DefaultSnapshotName is the snapshot written after every successful load.
const DefaultSnapshotName = "main"

// Report lists the malformed parts of a chart.
type Report = validator.Report

// LoadInfo describes the structure currently served by the engine.
type LoadInfo struct {
	LoadedAt     time.Time         `json:"loaded_at"`
	Duration     time.Duration     `json:"duration"`
	Entries      int               `json:"entries"`
	Roots        int               `json:"roots"`
	FromSnapshot bool              `json:"from_snapshot"`
	Checksum     string            `json:"checksum"`
	Diff         *domain.ChartDiff `json:"diff,omitempty"`
}

// Engine is the high-level entry point for the orgtree library.
// It loads a chart from a source, builds the hierarchy and answers queries
// against the last structure built. Safe for concurrent use.
type Engine struct {
	source       ports.EntrySource
	snapshots    ports.SnapshotStore
	snapshotName string
	metrics      *observability.Metrics
	fields       schema.Schema
	logger       *slog.Logger
	Name         string

	reloadMu  sync.Mutex
	mu        sync.RWMutex
	structure *hierarchy.Structure
	entries   []domain.Entry
	info      LoadInfo
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithSource injects a custom EntrySource, bypassing the default Loam initialization.
func WithSource(src ports.EntrySource) Option {
	return func(e *Engine) {
		e.source = src
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics records load counts and durations.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithName sets the chart name used in logs.
func WithName(name string) Option {
	return func(e *Engine) {
		e.Name = name
	}
}

// WithSnapshotStore saves every successfully loaded chart under name and falls
// back to that snapshot when the source fails. An empty name is DefaultSnapshotName.
func WithSnapshotStore(store ports.SnapshotStore, name string) Option {
	return func(e *Engine) {
		e.snapshots = store
		e.snapshotName = name
	}
}

// WithFieldSchema makes Diagnose check the opaque fields of every position.
func WithFieldSchema(s schema.Schema) Option {
	return func(e *Engine) {
		e.fields = s
	}
}

// New initializes an Engine.
// By default, it reads a Loam directory at path.
// If WithSource is provided, path can be empty and Loam is skipped.
// The chart is not read until Load is called.
func New(path string, opts ...Option) (*Engine, error) {
	eng := &Engine{}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.source == nil {
		if path == "" {
			return nil, fmt.Errorf("path is required when no custom source is provided")
		}
		loader, err := loamAdapter.Open(path)
		if err != nil {
			return nil, err
		}
		eng.source = loader
		if eng.Name == "" {
			if abs, err := filepath.Abs(path); err == nil {
				eng.Name = filepath.Base(abs)
			}
		}
	} else if eng.Name == "" && path != "" {
		eng.Name = filepath.Base(path)
	}

	if eng.logger == nil {
		eng.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if eng.Name != "" {
		eng.logger = eng.logger.With("chart", eng.Name)
	}
	if eng.snapshots != nil && eng.snapshotName == "" {
		eng.snapshotName = DefaultSnapshotName
	}

	eng.structure = hierarchy.New(nil)
	return eng, nil
}

// Load reads the source and replaces the served structure.
func (e *Engine) Load(ctx context.Context) error {
	_, err := e.Reload(ctx)
	return err
}

// Reload reads the source, builds a new structure and swaps it in.
// On failure the previous structure keeps being served. The returned diff
// is nil when nothing changed.
func (e *Engine) Reload(ctx context.Context) (*domain.ChartDiff, error) {
	e.reloadMu.Lock()
	defer e.reloadMu.Unlock()

	start := time.Now()
	entries, fromSnapshot, err := e.fetch(ctx)
	if err != nil {
		e.metrics.ObserveReload(time.Since(start), 0, 0, err)
		e.logger.Error("reload failed", "error", err)
		return nil, err
	}

	sum, err := domain.Checksum(entries)
	if err != nil {
		e.metrics.ObserveReload(time.Since(start), 0, 0, err)
		e.logger.Error("reload failed", "error", err)
		return nil, err
	}

	h := hierarchy.New(entries)
	elapsed := time.Since(start)
	roots := len(h.Roots())

	e.mu.Lock()
	diff := domain.Diff(e.entries, entries)
	e.structure = h
	e.entries = entries
	e.info = LoadInfo{
		LoadedAt:     time.Now(),
		Duration:     elapsed,
		Entries:      h.Len(),
		Roots:        roots,
		FromSnapshot: fromSnapshot,
		Checksum:     sum,
		Diff:         diff,
	}
	e.mu.Unlock()

	e.metrics.ObserveReload(elapsed, h.Len(), roots, nil)
	e.logger.Info("chart loaded",
		"entries", h.Len(),
		"roots", roots,
		"from_snapshot", fromSnapshot,
		"duration", elapsed,
	)
	return diff, nil
}

func (e *Engine) fetch(ctx context.Context) ([]domain.Entry, bool, error) {
	entries, err := e.source.LoadEntries(ctx)
	if err == nil {
		if e.snapshots != nil {
			if serr := e.snapshots.Save(ctx, e.snapshotName, entries); serr != nil {
				e.logger.Warn("snapshot save failed", "snapshot", e.snapshotName, "error", serr)
			}
		}
		return entries, false, nil
	}

	if e.snapshots == nil || ctx.Err() != nil {
		return nil, false, fmt.Errorf("failed to load entries: %w", err)
	}
	snap, serr := e.snapshots.Load(ctx, e.snapshotName)
	if serr != nil {
		return nil, false, fmt.Errorf("failed to load entries: %w", errors.Join(err, serr))
	}
	e.logger.Warn("source failed, serving snapshot", "snapshot", e.snapshotName, "error", err)
	return snap, true, nil
}

// Hierarchy returns the structure currently served.
// A structure is never mutated after it is built, so it can be queried without locks.
func (e *Engine) Hierarchy() *hierarchy.Structure {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.structure
}

// Info describes the last successful load.
func (e *Engine) Info() LoadInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.info
}

// Diagnose inspects the raw entries of the last load.
func (e *Engine) Diagnose() *Report {
	e.mu.RLock()
	entries, h := e.entries, e.structure
	e.mu.RUnlock()
	return validator.ValidateStructure(entries, h).CheckFields(h, e.fields)
}

// Source returns the underlying EntrySource used by the engine.
func (e *Engine) Source() ports.EntrySource {
	return e.source
}

// Entry returns the entry with id.
func (e *Engine) Entry(id string) (domain.Entry, bool) {
	return e.Hierarchy().Entry(id)
}

// Roots returns the top-level entries.
func (e *Engine) Roots() []domain.Entry {
	return e.Hierarchy().Roots()
}

// DirectSubordinates returns the entries reporting directly to id.
func (e *Engine) DirectSubordinates(id string) []domain.Entry {
	return e.Hierarchy().DirectSubordinates(id)
}

// AllSubordinates returns every entry below id, depth-first.
func (e *Engine) AllSubordinates(id string) []domain.Entry {
	return e.Hierarchy().AllSubordinates(id)
}

// Superiors returns the chain above id, nearest first, root included.
func (e *Engine) Superiors(id string) []domain.Entry {
	return e.Hierarchy().Superiors(id)
}

// IsSuperior reports whether superiorID is above subordinateID.
func (e *Engine) IsSuperior(superiorID, subordinateID string) bool {
	return e.Hierarchy().IsSuperior(superiorID, subordinateID)
}

// FindByLabel returns the first entry whose label matches, ignoring case.
func (e *Engine) FindByLabel(label string) (domain.Entry, bool) {
	return e.Hierarchy().FindByLabel(label)
}

// Filter returns the entries for which keep is true, in arena order.
func (e *Engine) Filter(keep func(domain.Entry) bool) []domain.Entry {
	return e.Hierarchy().Filter(keep)
}

// Watch returns a channel that signals when the underlying source changes.
// Returns domain.ErrNotWatchable if the source does not support watching.
func (e *Engine) Watch(ctx context.Context) (<-chan string, error) {
	if w, ok := e.source.(ports.Watchable); ok {
		return w.Watch(ctx)
	}
	return nil, domain.ErrNotWatchable
}

// AutoReload rebuilds the structure on every change event until ctx is done.
// onReload, when not nil, is called after each attempt.
func (e *Engine) AutoReload(ctx context.Context, onReload func(*domain.ChartDiff, error)) error {
	events, err := e.Watch(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			e.logger.Debug("source changed", "event", ev)
			diff, err := e.Reload(ctx)
			if onReload != nil {
				onReload(diff, err)
			}
		}
	}
}
