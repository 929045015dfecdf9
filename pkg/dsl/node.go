package dsl

import "github.com/aretw0/orgtree/pkg/domain"

// PositionBuilder provides a fluent API for configuring a position.
type PositionBuilder struct {
	entry   domain.Entry
	builder *Builder
}

// Label sets the display label (the job title).
func (p *PositionBuilder) Label(label string) *PositionBuilder {
	p.entry.Label = label
	return p
}

// ReportsTo sets the superior. The superior does not need to exist:
// an unknown superior makes the position a root, as with any other source.
func (p *PositionBuilder) ReportsTo(superiorID string) *PositionBuilder {
	p.entry.SuperiorID = superiorID
	return p
}

// Manages adds (or reuses) the given positions as direct subordinates.
func (p *PositionBuilder) Manages(ids ...string) *PositionBuilder {
	for _, id := range ids {
		p.builder.Add(id).ReportsTo(p.entry.ID)
	}
	return p
}

// Field sets an opaque attribute.
func (p *PositionBuilder) Field(key string, value any) *PositionBuilder {
	if p.entry.Fields == nil {
		p.entry.Fields = make(map[string]any)
	}
	p.entry.Fields[key] = value
	return p
}

// Fields merges several opaque attributes.
func (p *PositionBuilder) Fields(fields map[string]any) *PositionBuilder {
	for k, v := range fields {
		p.Field(k, v)
	}
	return p
}

// Add continues the chain with another position of the same builder.
func (p *PositionBuilder) Add(id string) *PositionBuilder {
	return p.builder.Add(id)
}
