package orgtree

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/orgtree/internal/validator"
	"github.com/aretw0/orgtree/pkg/domain"
	"github.com/aretw0/orgtree/pkg/ports"
)

// ImportOptions controls Import.
type ImportOptions struct {
	// Locker, when set, serializes imports sharing LockKey across processes.
	Locker  ports.DistributedLocker
	LockKey string
	LockTTL time.Duration
	// RejectCycles refuses charts whose superior references loop.
	RejectCycles bool
	Logger       *slog.Logger
}

// ImportResult summarizes a finished import.
type ImportResult struct {
	Entries int
	Report  *Report
}

// Import copies every entry from src into dst, replacing what dst held.
func Import(ctx context.Context, src ports.EntrySource, dst ports.EntrySink, opts ImportOptions) (ImportResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	entries, err := src.LoadEntries(ctx)
	if err != nil {
		return ImportResult{}, fmt.Errorf("failed to read source: %w", err)
	}

	report := validator.Validate(entries)
	if opts.RejectCycles && report.HasCycles() {
		return ImportResult{Report: report}, fmt.Errorf("import refused: %w", domain.ErrCyclicHierarchy)
	}

	if opts.Locker != nil {
		key := opts.LockKey
		if key == "" {
			key = "import"
		}
		ttl := opts.LockTTL
		if ttl <= 0 {
			ttl = 30 * time.Second
		}
		unlock, err := opts.Locker.Lock(ctx, key, ttl)
		if err != nil {
			return ImportResult{}, fmt.Errorf("failed to lock %s: %w", key, err)
		}
		defer func() {
			// A fresh context: the caller's may already be canceled.
			if err := unlock(context.Background()); err != nil {
				logger.Warn("failed to release import lock", "key", key, "error", err)
			}
		}()
	}

	if err := dst.ReplaceEntries(ctx, entries); err != nil {
		return ImportResult{}, fmt.Errorf("failed to write destination: %w", err)
	}

	logger.Info("chart imported", "entries", len(entries), "issues", len(report.Issues))
	return ImportResult{Entries: len(entries), Report: report}, nil
}
