package loam

import "github.com/aretw0/orgtree/pkg/domain"

// PositionMetadata is the front matter (or JSON/YAML body) of a position document.
// It is kept as a loose map so that every key outside the mapping survives as an opaque field.
type PositionMetadata = map[string]any

// FrontMatterMapping names the front matter keys read by the loader:
//
//	---
//	id: dev-manager
//	label: Dev Manager
//	superior: cto
//	fields:
//	  area: Engineering
//	---
var FrontMatterMapping = domain.FieldMapping{ID: "id", Label: "label", Superior: "superior"}

// descriptionField receives the document body.
const descriptionField = "description"
