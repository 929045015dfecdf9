package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/orgtree"
	"github.com/aretw0/orgtree/internal/presentation/graph"
	"github.com/aretw0/orgtree/internal/presentation/render"
	"github.com/aretw0/orgtree/pkg/domain"
	"github.com/aretw0/orgtree/pkg/hierarchy"
	"github.com/aretw0/orgtree/pkg/ports"
)

// ErrValidation is returned by Validate when the chart has blocking issues.
var ErrValidation = errors.New("validation failed")

// Roots prints the top-level positions.
func (a *App) Roots(ctx context.Context, format string) error {
	eng, err := a.Engine(ctx)
	if err != nil {
		return err
	}
	return a.printEntries(eng.Roots(), format)
}

// Tree prints the forest, or the subtree below rootID when not empty.
func (a *App) Tree(ctx context.Context, rootID, format string) error {
	if err := checkFormat(format, FormatText, FormatJSON, FormatMermaid, FormatMarkdown); err != nil {
		return err
	}
	eng, err := a.Engine(ctx)
	if err != nil {
		return err
	}
	h := eng.Hierarchy()
	if rootID != "" {
		if _, ok := h.Entry(rootID); !ok {
			return fmt.Errorf("%w: %s", domain.ErrEntryNotFound, rootID)
		}
		h = subtree(h, rootID)
	}

	switch format {
	case FormatMermaid:
		_, err = fmt.Fprint(a.Out, graph.GenerateMermaid(h, nil))
		return err
	case FormatMarkdown:
		return a.printMarkdown(render.Markdown(h, eng.Name))
	case FormatJSON:
		return writeJSON(a.Out, nestedTree(h))
	}
	return render.Tree(a.Out, h, "")
}

// subtree rebuilds the part of h below rootID, with rootID as the only root.
func subtree(h *hierarchy.Structure, rootID string) *hierarchy.Structure {
	root, _ := h.Entry(rootID)
	root.SuperiorID = ""
	return hierarchy.New(append([]domain.Entry{root}, h.AllSubordinates(rootID)...))
}

type treeNode struct {
	domain.Entry
	Subordinates []treeNode `json:"subordinates,omitempty"`
}

func nestedTree(h *hierarchy.Structure) []treeNode {
	var build func(n *hierarchy.Node) treeNode
	build = func(n *hierarchy.Node) treeNode {
		tn := treeNode{Entry: n.Entry()}
		for _, sub := range n.Subordinates() {
			tn.Subordinates = append(tn.Subordinates, build(sub))
		}
		return tn
	}
	out := []treeNode{}
	for _, n := range h.Tree() {
		out = append(out, build(n))
	}
	return out
}

// Show prints a position with its superior, direct subordinates and fields.
func (a *App) Show(ctx context.Context, id string) error {
	eng, err := a.Engine(ctx)
	if err != nil {
		return err
	}
	details, ok := render.Details(eng.Hierarchy(), id)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrEntryNotFound, id)
	}
	_, err = fmt.Fprintln(a.Out, details)
	return err
}

// Subordinates prints the positions below id: direct ones, or all of them.
func (a *App) Subordinates(ctx context.Context, id string, all bool, format string) error {
	eng, err := a.Engine(ctx)
	if err != nil {
		return err
	}
	if all {
		return a.printEntries(eng.AllSubordinates(id), format)
	}
	return a.printEntries(eng.DirectSubordinates(id), format)
}

// Superiors prints the chain above id, nearest first.
func (a *App) Superiors(ctx context.Context, id, format string) error {
	eng, err := a.Engine(ctx)
	if err != nil {
		return err
	}
	return a.printEntries(eng.Superiors(id), format)
}

// Chain prints the chain of command from the top down to id.
func (a *App) Chain(ctx context.Context, id string) error {
	eng, err := a.Engine(ctx)
	if err != nil {
		return err
	}
	chain, ok := render.Chain(eng.Hierarchy(), id)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrEntryNotFound, id)
	}
	fmt.Fprintln(a.Out, "Chain of command:")
	_, err = fmt.Fprintln(a.Out, chain)
	return err
}

// IsSuperior prints and returns whether superior is above subordinate.
func (a *App) IsSuperior(ctx context.Context, superior, subordinate string) (bool, error) {
	eng, err := a.Engine(ctx)
	if err != nil {
		return false, err
	}
	ok := eng.IsSuperior(superior, subordinate)
	if ok {
		fmt.Fprintf(a.Out, "yes: %s is above %s\n", superior, subordinate)
	} else {
		fmt.Fprintf(a.Out, "no: %s is not above %s\n", superior, subordinate)
	}
	return ok, nil
}

// Find prints the first position whose label matches, ignoring case.
func (a *App) Find(ctx context.Context, label, format string) error {
	eng, err := a.Engine(ctx)
	if err != nil {
		return err
	}
	e, ok := eng.FindByLabel(label)
	if !ok {
		return fmt.Errorf("%w: no position labeled %q", domain.ErrEntryNotFound, label)
	}
	return a.printEntries([]domain.Entry{e}, format)
}

// List prints every position matching all key=value filters.
func (a *App) List(ctx context.Context, filters, levels []string, format string) error {
	type filter struct{ key, value string }
	parsed := make([]filter, 0, len(filters))
	for _, f := range filters {
		k, v, ok := domain.ParseFieldFilter(f)
		if !ok {
			return fmt.Errorf("invalid filter %q: expected key=value", f)
		}
		parsed = append(parsed, filter{k, v})
	}
	minLevels := make([]filter, 0, len(levels))
	for _, l := range levels {
		k, v, ok := domain.ParseFieldFilter(l)
		if !ok {
			return fmt.Errorf("invalid level %q: expected factor=level", l)
		}
		minLevels = append(minLevels, filter{k, v})
	}
	analyzer, err := a.Opts.Config.Analyzer()
	if err != nil {
		return err
	}

	eng, err := a.Engine(ctx)
	if err != nil {
		return err
	}
	matched := eng.Filter(func(e domain.Entry) bool {
		for _, f := range parsed {
			if !e.FieldEquals(f.key, f.value) {
				return false
			}
		}
		return true
	})
	for _, l := range minLevels {
		if matched, err = analyzer.Valuation.AtLeast(matched, l.key, l.value); err != nil {
			return err
		}
	}
	return a.printEntries(matched, format)
}

// Validate prints the diagnostics. Cycles always fail; with strict every issue does.
func (a *App) Validate(ctx context.Context, strict bool) error {
	eng, err := a.Engine(ctx)
	if err != nil {
		return err
	}
	report := eng.Diagnose()
	fmt.Fprintf(a.Out, "%d positions, %d top-level\n", report.Entries, report.Roots)
	for _, issue := range report.Issues {
		fmt.Fprintf(a.Out, "- %s\n", issue)
	}
	if err := report.Err(strict); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if len(report.Issues) == 0 {
		fmt.Fprintln(a.Out, "Chart is valid! ✅")
	}
	return nil
}

// Import copies the configured source into the chart at dest.
func (a *App) Import(ctx context.Context, dest string, rejectCycles bool) error {
	cfg := a.Opts.Config
	src, err := a.Registry.OpenSource(ctx, cfg.Source, cfg.Mapping)
	if err != nil {
		return fmt.Errorf("error opening source: %w", err)
	}
	a.track(src)

	dst, err := a.Registry.OpenSource(ctx, dest, domain.FieldMapping{})
	if err != nil {
		return fmt.Errorf("error opening destination: %w", err)
	}
	a.track(dst)
	sink, ok := dst.(ports.EntrySink)
	if !ok {
		return fmt.Errorf("%w: %s cannot be written", domain.ErrUnsupportedSource, dest)
	}

	res, err := orgtree.Import(ctx, src, sink, orgtree.ImportOptions{
		Locker:       a.Locker(),
		LockKey:      "import:" + dest,
		LockTTL:      cfg.Redis.LockTTL,
		RejectCycles: rejectCycles,
		Logger:       a.Logger,
	})
	if err != nil {
		return err
	}
	printSystemMessage(a.Out, "Imported %d positions into %s (%d issues).", res.Entries, dest, len(res.Report.Issues))
	return nil
}

// SnapshotSave loads the chart and stores it under name.
func (a *App) SnapshotSave(ctx context.Context, name string) error {
	store, err := a.SnapshotStore(ctx)
	if err != nil {
		return err
	}
	eng, err := a.Engine(ctx)
	if err != nil {
		return err
	}
	if err := store.Save(ctx, name, eng.Hierarchy().Entries()); err != nil {
		return err
	}
	printSystemMessage(a.Out, "Saved snapshot '%s' (%d positions).", name, eng.Hierarchy().Len())
	return nil
}

// SnapshotList prints the stored snapshot names.
func (a *App) SnapshotList(ctx context.Context) error {
	store, err := a.SnapshotStore(ctx)
	if err != nil {
		return err
	}
	names, err := store.List(ctx)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		printSystemMessage(a.Out, "No snapshots.")
		return nil
	}
	for _, n := range names {
		fmt.Fprintln(a.Out, n)
	}
	return nil
}

// SnapshotDelete removes a stored snapshot.
func (a *App) SnapshotDelete(ctx context.Context, name string) error {
	store, err := a.SnapshotStore(ctx)
	if err != nil {
		return err
	}
	return store.Delete(ctx, name)
}
