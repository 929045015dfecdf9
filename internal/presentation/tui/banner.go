package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the orgtree banner, colored when the terminal supports it.
func PrintBanner(w io.Writer) {
	out := termenv.NewOutput(w)

	lines := []struct {
		text  string
		color string
	}{
		{"                  _                 ", "#818cf8"},
		{"   ___  _ __ __ _| |_ _ __ ___  ___ ", "#a78bfa"},
		{"  / _ \\| '__/ _` | __| '__/ _ \\/ _ \\", "#c084fc"},
		{" | (_) | | | (_| | |_| | |  __/  __/", "#e879f9"},
		{"  \\___/|_|  \\__, |\\__|_|  \\___|\\___|", "#f472b6"},
		{"            |___/                   ", "#fb7185"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w)
}

// Highlight renders s in bold with the accent color.
func Highlight(w io.Writer, s string) string {
	out := termenv.NewOutput(w)
	return out.String(s).Bold().Foreground(out.Color("#a78bfa")).String()
}
