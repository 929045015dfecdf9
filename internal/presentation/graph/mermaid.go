package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/orgtree/pkg/hierarchy"
)

// GraphOverlay highlights part of the chart.
type GraphOverlay struct {
	// Highlighted ids, e.g. the chain of command of Focus.
	Highlighted []string
	// Focus is the position the reader asked about.
	Focus string
}

// GenerateMermaid produces a Mermaid flowchart (top-down) of the hierarchy.
// Shapes:
// - Root: ([Stadium])
// - Position without subordinates: [Rectangle]
// - Position with subordinates: [[Subroutine]]
// Edges go from superior to subordinate. Edges inside a superior loop are dotted,
// since those positions are unreachable from any root.
func GenerateMermaid(h *hierarchy.Structure, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	detached := make(map[string]bool)
	for _, id := range h.Detached() {
		detached[id] = true
	}

	for _, e := range h.Entries() {
		node, _ := h.Node(e.ID)
		safeID := sanitizeMermaidID(e.ID)

		opener, closer := "[", "]"
		switch {
		case node.IsRoot():
			opener, closer = "([", "])"
		case len(node.Subordinates()) > 0:
			opener, closer = "[[", "]]"
		}

		label := e.Label
		if label == "" {
			label = e.ID
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, escapeLabel(label), closer))
	}

	for _, e := range h.Entries() {
		node, _ := h.Node(e.ID)
		sup, ok := node.Superior()
		if !ok {
			continue
		}
		arrow := "-->"
		if detached[e.ID] {
			arrow = "-.->"
		}
		sb.WriteString(fmt.Sprintf("    %s %s %s\n", sanitizeMermaidID(sup.ID()), arrow, sanitizeMermaidID(e.ID)))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Black text keeps contrast on light fills in both light and dark themes.
		sb.WriteString("    classDef highlighted fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef focus fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.Highlighted {
			if _, ok := h.Entry(id); !ok || id == overlay.Focus {
				continue
			}
			safeID := sanitizeMermaidID(id)
			if !seen[safeID] {
				seen[safeID] = true
				sb.WriteString(fmt.Sprintf("    class %s highlighted;\n", safeID))
			}
		}

		if _, ok := h.Entry(overlay.Focus); ok {
			sb.WriteString(fmt.Sprintf("    class %s focus;\n", sanitizeMermaidID(overlay.Focus)))
		}
	}

	return sb.String()
}

// sanitizeMermaidID maps an id to a safe Mermaid identifier.
// The prefix keeps numeric ids and keywords such as "end" valid.
// The mapping is injective: '_' doubles and any other byte outside [A-Za-z0-9]
// becomes "_x" plus its two hex digits, so "a.b" and "a-b" stay distinct.
func sanitizeMermaidID(id string) string {
	var sb strings.Builder
	sb.Grow(len(id) + 2)
	sb.WriteString("p_")
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			sb.WriteByte(c)
		case c == '_':
			sb.WriteString("__")
		default:
			fmt.Fprintf(&sb, "_x%02x", c)
		}
	}
	return sb.String()
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}
