package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/orgtree/pkg/domain"
)

// settleDelay lets editors finish writing before the chart is redrawn.
const settleDelay = 100 * time.Millisecond

// Watch prints the tree and redraws it every time the source changes, until ctx is done.
func (a *App) Watch(ctx context.Context, rootID, format string) error {
	eng, err := a.Engine(ctx)
	if err != nil {
		return err
	}
	if err := a.Tree(ctx, rootID, format); err != nil {
		return err
	}
	printSystemMessage(a.Out, "Watching '%s' for changes...", a.Opts.Config.Source)

	err = eng.AutoReload(ctx, func(diff *domain.ChartDiff, err error) {
		if err != nil {
			a.Logger.Error("reload failed", "err", err)
			printSystemMessage(a.Out, "Reload failed, keeping the previous chart.")
			return
		}
		if diff == nil {
			a.Logger.Debug("change without effect on the chart")
			return
		}
		a.redraw(ctx, diff, rootID, format)
	})
	if errors.Is(err, domain.ErrNotWatchable) {
		return fmt.Errorf("%w: %s", err, a.Opts.Config.Source)
	}
	return err
}

func (a *App) redraw(ctx context.Context, diff *domain.ChartDiff, rootID, format string) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(settleDelay):
	}

	fmt.Fprintln(a.Out)
	printSystemMessage(a.Out, "Change detected: %s", summarize(diff))
	if err := a.Tree(ctx, rootID, format); err != nil {
		a.Logger.Error("redraw failed", "err", err)
	}
}

func summarize(diff *domain.ChartDiff) string {
	s := fmt.Sprintf("%d added, %d removed, %d moved, %d updated",
		len(diff.Added), len(diff.Removed), len(diff.Moved), len(diff.Updated))
	if diff.Reordered {
		s += ", reordered"
	}
	return s
}
