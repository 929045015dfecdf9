package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/orgtree/internal/presentation/render"
	"github.com/aretw0/orgtree/internal/presentation/tui"
	"github.com/aretw0/orgtree/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by the listing commands.
const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatYAML     = "yaml"
	FormatMermaid  = "mermaid"
	FormatMarkdown = "markdown"
)

// ErrUnknownFormat is returned for unsupported --format values.
type ErrUnknownFormat struct {
	Format  string
	Allowed []string
}

func (e ErrUnknownFormat) Error() string {
	return fmt.Sprintf("unknown format %q (expected one of %s)", e.Format, strings.Join(e.Allowed, ", "))
}

func checkFormat(format string, allowed ...string) error {
	for _, a := range allowed {
		if format == a {
			return nil
		}
	}
	return ErrUnknownFormat{Format: format, Allowed: allowed}
}

func (a *App) printEntries(entries []domain.Entry, format string) error {
	if err := checkFormat(format, FormatText, FormatJSON, FormatYAML); err != nil {
		return err
	}
	if entries == nil {
		entries = []domain.Entry{}
	}

	switch format {
	case FormatJSON:
		return writeJSON(a.Out, entries)
	case FormatYAML:
		return writeYAML(a.Out, entries)
	}
	for _, e := range entries {
		fmt.Fprintln(a.Out, render.Describe(e))
	}
	return nil
}

func (a *App) printMarkdown(md string) error {
	if a.Rich {
		out, err := tui.NewRenderer()(md)
		if err == nil {
			md = out
		}
	}
	_, err := io.WriteString(a.Out, md)
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
