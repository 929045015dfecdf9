package dsl

import (
	"github.com/aretw0/orgtree/pkg/adapters/memory"
	"github.com/aretw0/orgtree/pkg/domain"
	"github.com/aretw0/orgtree/pkg/hierarchy"
)

// Builder manages the chart construction. Entries keep the order in which
// their ids were first added; that order decides root and subordinate order.
type Builder struct {
	order []string
	nodes map[string]*PositionBuilder
}

// New creates a new chart builder.
func New() *Builder {
	return &Builder{
		nodes: make(map[string]*PositionBuilder),
	}
}

// Add creates a new position in the chart.
// If the position already exists, it returns the existing builder.
func (b *Builder) Add(id string) *PositionBuilder {
	if pb, ok := b.nodes[id]; ok {
		return pb
	}
	pb := &PositionBuilder{
		entry:   domain.Entry{ID: id},
		builder: b,
	}
	b.nodes[id] = pb
	b.order = append(b.order, id)
	return pb
}

// Entries returns a copy of the built entries in insertion order.
func (b *Builder) Entries() []domain.Entry {
	out := make([]domain.Entry, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.nodes[id].entry.Clone())
	}
	return out
}

// Source compiles the chart into an in-memory source.
func (b *Builder) Source() *memory.Source {
	return memory.NewSource(b.Entries()...)
}

// Build compiles the chart directly into a hierarchy.
func (b *Builder) Build() *hierarchy.Structure {
	return hierarchy.New(b.Entries())
}
