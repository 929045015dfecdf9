package domain

import (
	"reflect"
)

// ChartDiff describes how a set of entries changed between two loads.
// It is designed to be serialized to JSON and pushed to watchers after a reload.
type ChartDiff struct {
	// Added lists ids present only in the new set, in new-set order.
	Added []string `json:"added,omitempty"`

	// Removed lists ids present only in the old set, in old-set order.
	Removed []string `json:"removed,omitempty"`

	// Moved maps ids whose superior reference changed to their new superior.
	// An empty value means the entry no longer declares a superior.
	Moved map[string]string `json:"moved,omitempty"`

	// Updated lists ids whose label or fields changed.
	Updated []string `json:"updated,omitempty"`

	// Reordered is set when the ids present in both sets appear in a different
	// order. Order decides root and subordinate order, so it is a change too.
	Reordered bool `json:"reordered,omitempty"`
}

// Diff calculates the difference between two entry sets.
// Duplicate ids are resolved last-write-wins, the same way the hierarchy builder does.
// If oldEntries is nil, every new entry is reported as added (initial load).
// It returns nil when nothing changed.
func Diff(oldEntries, newEntries []Entry) *ChartDiff {
	oldIdx, oldOrder := index(oldEntries)
	newIdx, newOrder := index(newEntries)

	diff := &ChartDiff{}

	for _, id := range newOrder {
		cur := newIdx[id]
		prev, existed := oldIdx[id]
		if !existed {
			diff.Added = append(diff.Added, id)
			continue
		}
		if prev.SuperiorID != cur.SuperiorID {
			if diff.Moved == nil {
				diff.Moved = make(map[string]string)
			}
			diff.Moved[id] = cur.SuperiorID
		}
		if prev.Label != cur.Label || !fieldsEqual(prev.Fields, cur.Fields) {
			diff.Updated = append(diff.Updated, id)
		}
	}

	kept := make([]string, 0, len(oldOrder))
	for _, id := range oldOrder {
		if _, ok := newIdx[id]; !ok {
			diff.Removed = append(diff.Removed, id)
			continue
		}
		kept = append(kept, id)
	}

	i := 0
	for _, id := range newOrder {
		if _, ok := oldIdx[id]; !ok {
			continue
		}
		if kept[i] != id {
			diff.Reordered = true
			break
		}
		i++
	}

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

// IsEmpty checks if the diff contains any change.
func (d *ChartDiff) IsEmpty() bool {
	return len(d.Added) == 0 &&
		len(d.Removed) == 0 &&
		len(d.Moved) == 0 &&
		len(d.Updated) == 0 &&
		!d.Reordered
}

func index(entries []Entry) (map[string]Entry, []string) {
	idx := make(map[string]Entry, len(entries))
	order := make([]string, 0, len(entries))
	for _, e := range entries {
		if _, seen := idx[e.ID]; !seen {
			order = append(order, e.ID)
		}
		idx[e.ID] = e
	}
	return idx, order
}

func fieldsEqual(a, b map[string]any) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}
