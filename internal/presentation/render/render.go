// Package render formats hierarchies as plain text and markdown.
package render

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aretw0/orgtree/pkg/domain"
	"github.com/aretw0/orgtree/pkg/hierarchy"
)

// Describe formats an entry as "Label (ID: id)".
func Describe(e domain.Entry) string {
	if e.Label == "" {
		return fmt.Sprintf("(ID: %s)", e.ID)
	}
	return fmt.Sprintf("%s (ID: %s)", e.Label, e.ID)
}

// Tree writes the forest (or the subtree of rootID when not empty) with box-drawing branches.
// Unknown rootIDs write nothing.
func Tree(w io.Writer, h *hierarchy.Structure, rootID string) error {
	var tops []*hierarchy.Node
	if rootID == "" {
		tops = h.Tree()
	} else if n, ok := h.Node(rootID); ok {
		tops = []*hierarchy.Node{n}
	}

	visited := make(map[string]bool)
	var walk func(n *hierarchy.Node, prefix string, last bool, top bool) error
	walk = func(n *hierarchy.Node, prefix string, last bool, top bool) error {
		if visited[n.ID()] {
			return nil
		}
		visited[n.ID()] = true

		line, childPrefix := Describe(n.Entry()), ""
		if !top {
			branch, cont := "├─ ", "│  "
			if last {
				branch, cont = "└─ ", "   "
			}
			line = prefix + branch + line
			childPrefix = prefix + cont
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}

		subs := n.Subordinates()
		for i, s := range subs {
			if err := walk(s, childPrefix, i == len(subs)-1, false); err != nil {
				return err
			}
		}
		return nil
	}

	for _, n := range tops {
		if err := walk(n, "", true, true); err != nil {
			return err
		}
	}
	return nil
}

// Chain describes the chain of command of id, from the top of the hierarchy
// down to the position itself. The second value is false for unknown ids.
func Chain(h *hierarchy.Structure, id string) (string, bool) {
	e, ok := h.Entry(id)
	if !ok {
		return "", false
	}

	sups := h.Superiors(id)
	chain := make([]domain.Entry, 0, len(sups)+1)
	for i := len(sups) - 1; i >= 0; i-- {
		chain = append(chain, sups[i])
	}
	chain = append(chain, e)

	lines := make([]string, len(chain))
	for i, c := range chain {
		arrow := ""
		if i > 0 {
			arrow = "└─ "
		}
		lines[i] = strings.Repeat("  ", i) + arrow + Describe(c)
	}
	return strings.Join(lines, "\n"), true
}

// Markdown renders the forest as a nested bullet list, suitable for glamour.
func Markdown(h *hierarchy.Structure, title string) string {
	var sb strings.Builder
	if title != "" {
		sb.WriteString("# " + title + "\n\n")
	}
	h.Walk(func(n *hierarchy.Node, depth int) bool {
		e := n.Entry()
		label := e.Label
		if label == "" {
			label = e.ID
		}
		sb.WriteString(fmt.Sprintf("%s- **%s** `%s`\n", strings.Repeat("  ", depth), label, e.ID))
		return true
	})
	if h.Len() == 0 {
		sb.WriteString("_No positions._\n")
	}
	return sb.String()
}

// Details renders one position: its superior, direct subordinates and opaque fields.
func Details(h *hierarchy.Structure, id string) (string, bool) {
	e, ok := h.Entry(id)
	if !ok {
		return "", false
	}

	var sb strings.Builder
	sb.WriteString(Describe(e) + "\n")

	sb.WriteString("Superior: ")
	if sup, ok := h.Entry(e.SuperiorID); ok && e.SuperiorID != "" {
		sb.WriteString(Describe(sup) + "\n")
	} else if e.SuperiorID != "" {
		sb.WriteString(fmt.Sprintf("%s (not found, top level)\n", e.SuperiorID))
	} else {
		sb.WriteString("none (top level)\n")
	}

	subs := h.DirectSubordinates(id)
	sb.WriteString(fmt.Sprintf("Direct subordinates: %d\n", len(subs)))
	for _, s := range subs {
		sb.WriteString("  - " + Describe(s) + "\n")
	}

	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString("Fields:\n")
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("  %s: %v\n", k, e.Fields[k]))
		}
	}
	return strings.TrimRight(sb.String(), "\n"), true
}
