package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/orgtree/pkg/analysis"
	"github.com/aretw0/orgtree/pkg/domain"
)

// Stats prints head count, salaries and vacancies per group.
// groupField overrides the configured field; group limits the output to one group.
func (a *App) Stats(ctx context.Context, groupField, group, format string) error {
	if err := checkFormat(format, FormatText, FormatJSON, FormatYAML); err != nil {
		return err
	}
	analyzer, err := a.Opts.Config.Analyzer()
	if err != nil {
		return err
	}
	if groupField != "" {
		analyzer.GroupField = groupField
	}
	eng, err := a.Engine(ctx)
	if err != nil {
		return err
	}

	entries := eng.Hierarchy().Entries()
	var stats []analysis.GroupStats
	if group != "" {
		gs, ok := analyzer.Group(entries, group)
		if !ok {
			return fmt.Errorf("no position in %s %q", analyzer.GroupField, group)
		}
		stats = []analysis.GroupStats{gs}
	} else {
		stats = analyzer.Stats(entries)
	}
	if stats == nil {
		stats = []analysis.GroupStats{}
	}

	switch format {
	case FormatJSON:
		return writeJSON(a.Out, stats)
	case FormatYAML:
		return writeYAML(a.Out, stats)
	}
	for _, gs := range stats {
		name := gs.Group
		if name == "" {
			name = "(no " + analyzer.GroupField + ")"
		}
		fmt.Fprintf(a.Out, "%s: %d positions, %d vacancies, total salary %.2f, average %.2f\n",
			name, gs.Count, gs.TotalVacancies, gs.TotalSalary, gs.AverageSalary)
		fmt.Fprintf(a.Out, "  %s\n", strings.Join(gs.Positions, ", "))
	}
	return nil
}

// Valuation prints the valuation factors of a position and their total.
func (a *App) Valuation(ctx context.Context, id, format string) error {
	if err := checkFormat(format, FormatText, FormatJSON, FormatYAML); err != nil {
		return err
	}
	analyzer, err := a.Opts.Config.Analyzer()
	if err != nil {
		return err
	}
	eng, err := a.Engine(ctx)
	if err != nil {
		return err
	}
	e, ok := eng.Entry(id)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrEntryNotFound, id)
	}

	factors := analyzer.Valuation.Factors(e)
	total, _ := analyzer.Valuation.Total(e)
	switch format {
	case FormatJSON, FormatYAML:
		v := struct {
			ID      string            `json:"id" yaml:"id"`
			Factors []analysis.Factor `json:"factors" yaml:"factors"`
			Total   int               `json:"total" yaml:"total"`
		}{id, factors, total}
		if v.Factors == nil {
			v.Factors = []analysis.Factor{}
		}
		if format == FormatJSON {
			return writeJSON(a.Out, v)
		}
		return writeYAML(a.Out, v)
	}

	if len(factors) == 0 {
		fmt.Fprintf(a.Out, "%s has no valuation factors.\n", describeShort(e))
		return nil
	}
	fmt.Fprintf(a.Out, "Valuation of %s:\n", describeShort(e))
	for _, f := range factors {
		fmt.Fprintf(a.Out, "  %s: %s\n", f.Key, scoreText(f))
	}
	fmt.Fprintf(a.Out, "  Total: %d\n", total)
	return nil
}

// Compare prints the valuation factors of several positions side by side.
func (a *App) Compare(ctx context.Context, ids, factors []string, format string) error {
	if err := checkFormat(format, FormatText, FormatJSON, FormatYAML); err != nil {
		return err
	}
	analyzer, err := a.Opts.Config.Analyzer()
	if err != nil {
		return err
	}
	eng, err := a.Engine(ctx)
	if err != nil {
		return err
	}

	entries := make([]domain.Entry, 0, len(ids))
	for _, id := range ids {
		e, ok := eng.Entry(id)
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrEntryNotFound, id)
		}
		entries = append(entries, e)
	}
	cmp, err := analyzer.Valuation.Compare(entries, factors)
	if err != nil {
		return err
	}

	switch format {
	case FormatJSON:
		return writeJSON(a.Out, cmp)
	case FormatYAML:
		return writeYAML(a.Out, cmp)
	}
	for _, row := range cmp.Factors {
		cells := make([]string, 0, len(entries))
		for _, e := range entries {
			cell := "-"
			if f, ok := row.Scores[e.ID]; ok {
				cell = scoreText(f)
			}
			cells = append(cells, describeShort(e)+" "+cell)
		}
		fmt.Fprintf(a.Out, "%s: %s\n", row.Key, strings.Join(cells, " | "))
	}
	totals := make([]string, 0, len(entries))
	for _, e := range entries {
		totals = append(totals, fmt.Sprintf("%s %d", describeShort(e), cmp.Totals[e.ID]))
	}
	fmt.Fprintf(a.Out, "Total: %s\n", strings.Join(totals, " | "))
	return nil
}

// Factors explains the valuation factors, or only key when it is set.
func (a *App) Factors(key string) error {
	analyzer, err := a.Opts.Config.Analyzer()
	if err != nil {
		return err
	}
	fs := analyzer.Valuation
	keys := fs.Keys
	if key != "" {
		keys = []string{key}
	}
	for _, k := range keys {
		d, ok := fs.Explain(k)
		if !ok {
			return fmt.Errorf("%w: %q (known: %s)", analysis.ErrUnknownFactor, k, strings.Join(fs.Keys, ", "))
		}
		if d == "" {
			d = "no description"
		}
		fmt.Fprintf(a.Out, "%s (%s%s): %s\n", k, fs.Prefix, k, d)
	}
	return nil
}

func describeShort(e domain.Entry) string {
	if e.Label == "" {
		return e.ID
	}
	return fmt.Sprintf("%s (ID: %s)", e.Label, e.ID)
}

func scoreText(f analysis.Factor) string {
	if f.Level == "" {
		return fmt.Sprint(f.Score)
	}
	return fmt.Sprintf("%s (%d)", f.Level, f.Score)
}
