package hierarchy

import (
	"github.com/aretw0/orgtree/pkg/domain"
)

// noSuperior marks a node whose superior reference is empty or dangling.
const noSuperior = -1

// Node wraps an entry inside a Structure.
// Links to the superior and to the subordinates are indexes into the owning
// structure's arena, so nodes never own each other.
type Node struct {
	entry        domain.Entry
	superior     int
	subordinates []int
	owner        *Structure
}

// Entry returns the wrapped entry.
func (n *Node) Entry() domain.Entry {
	return n.entry
}

// ID is a shortcut for Entry().ID.
func (n *Node) ID() string {
	return n.entry.ID
}

// Superior returns the node this one reports to.
// The second value is false for roots.
func (n *Node) Superior() (*Node, bool) {
	if n.superior == noSuperior {
		return nil, false
	}
	return &n.owner.nodes[n.superior], true
}

// Subordinates returns the direct reports in input order.
func (n *Node) Subordinates() []*Node {
	out := make([]*Node, len(n.subordinates))
	for i, idx := range n.subordinates {
		out[i] = &n.owner.nodes[idx]
	}
	return out
}

// IsRoot reports whether the node has no resolvable superior.
func (n *Node) IsRoot() bool {
	return n.superior == noSuperior
}

// Structure is an immutable forest built from a flat list of entries.
// It is safe for concurrent reads once New returns. To reflect new data,
// build a new Structure and swap it.
type Structure struct {
	nodes []Node
	index map[string]int
	roots []int
}

// New builds the forest in two passes.
//
// The first pass indexes every entry by id. A repeated id replaces the
// previous entry but keeps the slot of its first occurrence.
// The second pass links every node to its superior, in slot order. Nodes whose
// superior reference is empty or unknown become roots.
func New(entries []domain.Entry) *Structure {
	s := &Structure{
		nodes: make([]Node, 0, len(entries)),
		index: make(map[string]int, len(entries)),
	}

	for _, e := range entries {
		if idx, ok := s.index[e.ID]; ok {
			s.nodes[idx].entry = e
			continue
		}
		s.index[e.ID] = len(s.nodes)
		s.nodes = append(s.nodes, Node{entry: e, superior: noSuperior})
	}

	for i := range s.nodes {
		n := &s.nodes[i]
		n.owner = s

		if n.entry.SuperiorID != "" {
			if sup, ok := s.index[n.entry.SuperiorID]; ok {
				n.superior = sup
				s.nodes[sup].subordinates = append(s.nodes[sup].subordinates, i)
				continue
			}
		}
		s.roots = append(s.roots, i)
	}

	return s
}

// Len returns the number of distinct ids.
func (s *Structure) Len() int {
	return len(s.nodes)
}

// Entries returns every indexed entry in slot order.
func (s *Structure) Entries() []domain.Entry {
	out := make([]domain.Entry, len(s.nodes))
	for i := range s.nodes {
		out[i] = s.nodes[i].entry
	}
	return out
}

func (s *Structure) lookup(id string) (int, bool) {
	idx, ok := s.index[id]
	return idx, ok
}

func (s *Structure) entriesOf(idxs []int) []domain.Entry {
	out := make([]domain.Entry, len(idxs))
	for i, idx := range idxs {
		out[i] = s.nodes[idx].entry
	}
	return out
}
