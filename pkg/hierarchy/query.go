package hierarchy

import (
	"strings"

	"github.com/aretw0/orgtree/pkg/domain"
)

// Every query is read-only and tolerant: an unknown id yields an empty
// result, false, or a not-found flag, never an error.
//
// Superior chains are not verified to be acyclic when the structure is built.
// Traversals keep a visited set and stop when they come back to a node they
// already walked, so a loop in the input shortens the answer instead of
// hanging the caller. Cycles reports those loops.

// Entry returns the entry stored under id.
func (s *Structure) Entry(id string) (domain.Entry, bool) {
	idx, ok := s.lookup(id)
	if !ok {
		return domain.Entry{}, false
	}
	return s.nodes[idx].entry, true
}

// Node returns the node stored under id.
func (s *Structure) Node(id string) (*Node, bool) {
	idx, ok := s.lookup(id)
	if !ok {
		return nil, false
	}
	return &s.nodes[idx], true
}

// Roots returns the entries without a resolvable superior, in slot order.
func (s *Structure) Roots() []domain.Entry {
	return s.entriesOf(s.roots)
}

// Tree returns the root nodes of the forest.
func (s *Structure) Tree() []*Node {
	out := make([]*Node, len(s.roots))
	for i, idx := range s.roots {
		out[i] = &s.nodes[idx]
	}
	return out
}

// DirectSubordinates returns the immediate reports of id.
func (s *Structure) DirectSubordinates(id string) []domain.Entry {
	idx, ok := s.lookup(id)
	if !ok {
		return []domain.Entry{}
	}
	return s.entriesOf(s.nodes[idx].subordinates)
}

// AllSubordinates returns the whole subtree below id in depth-first pre-order.
// The entry for id itself is not part of the result.
func (s *Structure) AllSubordinates(id string) []domain.Entry {
	idx, ok := s.lookup(id)
	if !ok {
		return []domain.Entry{}
	}

	out := []domain.Entry{}
	visited := map[int]bool{idx: true}
	stack := pushReversed(nil, s.nodes[idx].subordinates)

	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		out = append(out, s.nodes[cur].entry)
		stack = pushReversed(stack, s.nodes[cur].subordinates)
	}

	return out
}

// Superiors returns the chain of command above id, nearest first.
// The chain ends with the root of the tree id belongs to.
func (s *Structure) Superiors(id string) []domain.Entry {
	idx, ok := s.lookup(id)
	if !ok {
		return []domain.Entry{}
	}

	out := []domain.Entry{}
	visited := map[int]bool{idx: true}
	for cur := s.nodes[idx].superior; cur != noSuperior && !visited[cur]; cur = s.nodes[cur].superior {
		visited[cur] = true
		out = append(out, s.nodes[cur].entry)
	}
	return out
}

// IsSuperior reports whether superiorID appears in the chain of command of subordinateID.
// A position is never its own superior.
func (s *Structure) IsSuperior(superiorID, subordinateID string) bool {
	if superiorID == subordinateID {
		return false
	}
	idx, ok := s.lookup(subordinateID)
	if !ok {
		return false
	}

	visited := map[int]bool{idx: true}
	for cur := s.nodes[idx].superior; cur != noSuperior && !visited[cur]; cur = s.nodes[cur].superior {
		if s.nodes[cur].entry.ID == superiorID {
			return true
		}
		visited[cur] = true
	}
	return false
}

// Depth returns the number of superiors above id.
func (s *Structure) Depth(id string) (int, bool) {
	if _, ok := s.lookup(id); !ok {
		return 0, false
	}
	return len(s.Superiors(id)), true
}

// FindByLabel returns the first entry whose label matches, ignoring case and surrounding blanks.
func (s *Structure) FindByLabel(label string) (domain.Entry, bool) {
	want := strings.TrimSpace(label)
	for i := range s.nodes {
		if strings.EqualFold(strings.TrimSpace(s.nodes[i].entry.Label), want) {
			return s.nodes[i].entry, true
		}
	}
	return domain.Entry{}, false
}

// Filter returns the entries accepted by keep, in slot order.
func (s *Structure) Filter(keep func(domain.Entry) bool) []domain.Entry {
	out := []domain.Entry{}
	for i := range s.nodes {
		if keep(s.nodes[i].entry) {
			out = append(out, s.nodes[i].entry)
		}
	}
	return out
}

// Walk visits the forest in depth-first pre-order, root by root.
// depth is 0 for roots. Returning false from fn stops the walk.
func (s *Structure) Walk(fn func(n *Node, depth int) bool) {
	type frame struct {
		idx   int
		depth int
	}

	visited := make(map[int]bool, len(s.nodes))
	for _, root := range s.roots {
		stack := []frame{{idx: root}}
		for len(stack) > 0 {
			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if visited[f.idx] {
				continue
			}
			visited[f.idx] = true
			if !fn(&s.nodes[f.idx], f.depth) {
				return
			}
			subs := s.nodes[f.idx].subordinates
			for i := len(subs) - 1; i >= 0; i-- {
				stack = append(stack, frame{idx: subs[i], depth: f.depth + 1})
			}
		}
	}
}

// Cycles returns every loop formed by superior references.
// Each loop lists its ids walking upward from the first member found in slot order.
// A self-referencing entry is a loop of one.
func (s *Structure) Cycles() [][]string {
	const (
		unseen = iota
		onPath
		done
	)

	state := make([]int, len(s.nodes))
	var cycles [][]string

	for start := range s.nodes {
		if state[start] != unseen {
			continue
		}

		var path []int
		cur := start
		for cur != noSuperior && state[cur] == unseen {
			state[cur] = onPath
			path = append(path, cur)
			cur = s.nodes[cur].superior
		}

		if cur != noSuperior && state[cur] == onPath {
			var loop []string
			inLoop := false
			for _, idx := range path {
				if idx == cur {
					inLoop = true
				}
				if inLoop {
					loop = append(loop, s.nodes[idx].entry.ID)
				}
			}
			cycles = append(cycles, loop)
		}

		for _, idx := range path {
			state[idx] = done
		}
	}

	return cycles
}

// Detached returns the ids that cannot be reached from any root.
// They are the members of superior loops and everything below them.
func (s *Structure) Detached() []string {
	reached := make(map[string]bool, len(s.nodes))
	s.Walk(func(n *Node, _ int) bool {
		reached[n.entry.ID] = true
		return true
	})

	var out []string
	for i := range s.nodes {
		if !reached[s.nodes[i].entry.ID] {
			out = append(out, s.nodes[i].entry.ID)
		}
	}
	return out
}

func pushReversed(stack []int, idxs []int) []int {
	for i := len(idxs) - 1; i >= 0; i-- {
		stack = append(stack, idxs[i])
	}
	return stack
}
