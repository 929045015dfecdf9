package validator

import (
	"fmt"
	"strings"

	"github.com/aretw0/orgtree/pkg/domain"
	"github.com/aretw0/orgtree/pkg/hierarchy"
	"github.com/aretw0/orgtree/pkg/schema"
)

// IssueKind classifies a diagnostic.
type IssueKind string

const (
	// Duplicate: the id appears more than once; the last occurrence wins.
	Duplicate IssueKind = "duplicate"
	// Dangling: the superior reference names an unknown id; the entry became a root.
	Dangling IssueKind = "dangling"
	// SelfReference: the entry names itself as superior.
	SelfReference IssueKind = "self_reference"
	// Cycle: superior references form a loop of two or more entries.
	Cycle IssueKind = "cycle"
	// Detached: the entry hangs below a loop and is unreachable from every root.
	Detached IssueKind = "detached"
	// InvalidField: an opaque field is missing or does not match the field schema.
	InvalidField IssueKind = "invalid_field"
)

// Issue is one finding about a chart.
type Issue struct {
	Kind   IssueKind `json:"kind"`
	ID     string    `json:"id"`
	Detail string    `json:"detail"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s %s: %s", i.Kind, i.ID, i.Detail)
}

// Report summarizes a chart and lists everything that looks malformed.
// None of the issues stop the hierarchy from being built; they explain
// why it may not look as expected.
type Report struct {
	Entries int     `json:"entries"`
	Roots   int     `json:"roots"`
	Issues  []Issue `json:"issues"`
}

// Validate inspects the raw entries (duplicates are only visible before the build)
// and the hierarchy built from them.
func Validate(entries []domain.Entry) *Report {
	return ValidateStructure(entries, hierarchy.New(entries))
}

// ValidateStructure is Validate for callers that already built h from entries.
func ValidateStructure(entries []domain.Entry, h *hierarchy.Structure) *Report {
	r := &Report{
		Entries: h.Len(),
		Roots:   len(h.Roots()),
		Issues:  []Issue{},
	}

	seen := make(map[string]int, len(entries))
	for _, e := range entries {
		seen[e.ID]++
		if seen[e.ID] == 2 {
			r.add(Duplicate, e.ID, "id is defined more than once; the last definition wins")
		}
	}

	for _, e := range h.Entries() {
		switch {
		case e.SuperiorID == "":
		case e.SuperiorID == e.ID:
			r.add(SelfReference, e.ID, "entry reports to itself")
		default:
			if _, ok := h.Entry(e.SuperiorID); !ok {
				r.add(Dangling, e.ID, fmt.Sprintf("superior %q does not exist; treated as a root", e.SuperiorID))
			}
		}
	}

	inLoop := make(map[string]bool)
	for _, loop := range h.Cycles() {
		for _, id := range loop {
			inLoop[id] = true
		}
		if len(loop) == 1 {
			// Already reported as a self reference.
			continue
		}
		r.add(Cycle, loop[0], strings.Join(append(loop, loop[0]), " -> "))
	}

	for _, id := range h.Detached() {
		if !inLoop[id] {
			r.add(Detached, id, "unreachable from every root because an ancestor is part of a loop")
		}
	}

	return r
}

// CheckFields adds an InvalidField issue for every schema violation of the
// structure's entries. A nil schema checks nothing.
func (r *Report) CheckFields(h *hierarchy.Structure, s schema.Schema) *Report {
	if len(s) == 0 {
		return r
	}
	for _, e := range h.Entries() {
		for _, v := range s.Check(e.Fields) {
			r.add(InvalidField, e.ID, v.String())
		}
	}
	return r
}

func (r *Report) add(kind IssueKind, id, detail string) {
	r.Issues = append(r.Issues, Issue{Kind: kind, ID: id, Detail: detail})
}

// Count returns the number of issues of the given kind.
func (r *Report) Count(kind IssueKind) int {
	n := 0
	for _, i := range r.Issues {
		if i.Kind == kind {
			n++
		}
	}
	return n
}

// HasCycles reports whether any entry sits on a loop, including self references.
func (r *Report) HasCycles() bool {
	return r.Count(Cycle) > 0 || r.Count(SelfReference) > 0
}

// Err returns nil for a healthy report. Loops always fail, wrapping
// domain.ErrCyclicHierarchy; with strict set, any issue fails.
func (r *Report) Err(strict bool) error {
	var failing []string
	for _, i := range r.Issues {
		if strict || i.Kind == Cycle || i.Kind == SelfReference {
			failing = append(failing, i.String())
		}
	}
	if len(failing) == 0 {
		return nil
	}

	err := fmt.Errorf("found %d errors:\n- %s", len(failing), strings.Join(failing, "\n- "))
	if r.HasCycles() {
		return fmt.Errorf("%w: %w", domain.ErrCyclicHierarchy, err)
	}
	return err
}
