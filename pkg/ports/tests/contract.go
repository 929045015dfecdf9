package tests

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aretw0/orgtree/pkg/domain"
	"github.com/aretw0/orgtree/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SampleChart is a small chart with a nested subtree, a second root and opaque fields.
// Adapters seed their backend with it before running the contracts.
func SampleChart() []domain.Entry {
	return []domain.Entry{
		{ID: "1", Label: "CEO", Fields: map[string]any{"area": "Board"}},
		{ID: "2", Label: "CTO", SuperiorID: "1", Fields: map[string]any{"area": "Engineering", "vacancies": 1}},
		{ID: "3", Label: "CFO", SuperiorID: "1"},
		{ID: "4", Label: "Dev Manager", SuperiorID: "2"},
		{ID: "5", Label: "Auditor"},
	}
}

// EntrySourceContractTest is a reusable test suite that verifies if an adapter complies with ports.EntrySource.
// want is the exact sequence the backend was seeded with.
func EntrySourceContractTest(t *testing.T, source ports.EntrySource, want []domain.Entry) {
	t.Helper()
	ctx := context.Background()

	t.Run("LoadEntries_Order", func(t *testing.T) {
		got, err := source.LoadEntries(ctx)
		require.NoError(t, err)
		AssertSameEntries(t, want, got)
	})

	t.Run("LoadEntries_Isolation", func(t *testing.T) {
		first, err := source.LoadEntries(ctx)
		require.NoError(t, err)
		for i := range first {
			first[i].Label = "mutated"
			if first[i].Fields != nil {
				first[i].Fields["mutated"] = true
			}
		}

		second, err := source.LoadEntries(ctx)
		require.NoError(t, err)
		AssertSameEntries(t, want, second)
	})

	t.Run("LoadEntries_Canceled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		// Either the cancellation is honored or the load completes; it must not hang or panic.
		done := make(chan struct{})
		go func() {
			defer close(done)
			_, _ = source.LoadEntries(cctx)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("LoadEntries did not return after cancellation")
		}
	})
}

// EntrySinkContractTest verifies that ReplaceEntries fully replaces what the paired source reads back.
func EntrySinkContractTest(t *testing.T, sink ports.EntrySink, source ports.EntrySource) {
	t.Helper()
	ctx := context.Background()

	t.Run("ReplaceEntries_RoundTrip", func(t *testing.T) {
		chart := SampleChart()
		require.NoError(t, sink.ReplaceEntries(ctx, chart))

		got, err := source.LoadEntries(ctx)
		require.NoError(t, err)
		AssertSameEntries(t, chart, got)
	})

	t.Run("ReplaceEntries_DropsStale", func(t *testing.T) {
		require.NoError(t, sink.ReplaceEntries(ctx, SampleChart()))

		smaller := []domain.Entry{{ID: "9", Label: "Interim"}}
		require.NoError(t, sink.ReplaceEntries(ctx, smaller))

		got, err := source.LoadEntries(ctx)
		require.NoError(t, err)
		AssertSameEntries(t, smaller, got)
	})

	t.Run("ReplaceEntries_Empty", func(t *testing.T) {
		require.NoError(t, sink.ReplaceEntries(ctx, nil))

		got, err := source.LoadEntries(ctx)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

// SnapshotStoreContractTest runs a suite of tests to verify that a SnapshotStore implementation
// adheres to the defined interface contract.
func SnapshotStoreContractTest(t *testing.T, store ports.SnapshotStore) {
	t.Helper()
	ctx := context.Background()
	name := "contract-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		chart := SampleChart()
		require.NoError(t, store.Save(ctx, name, chart), "Save should not return error")

		loaded, err := store.Load(ctx, name)
		require.NoError(t, err, "Load should not return error")
		AssertSameEntries(t, chart, loaded)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+name)
		assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, name, SampleChart()))
		replacement := []domain.Entry{{ID: "x", Label: "Only"}}
		require.NoError(t, store.Save(ctx, name, replacement))

		loaded, err := store.Load(ctx, name)
		require.NoError(t, err)
		AssertSameEntries(t, replacement, loaded)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, name, SampleChart()))

		require.NoError(t, store.Delete(ctx, name), "Delete should not return error")

		_, err := store.Load(ctx, name)
		assert.ErrorIs(t, err, domain.ErrSnapshotNotFound, "Load after Delete should return ErrSnapshotNotFound")

		assert.NoError(t, store.Delete(ctx, name), "Deleting twice is not an error")
	})

	t.Run("List", func(t *testing.T) {
		n1 := name + "-1"
		n2 := name + "-2"
		require.NoError(t, store.Save(ctx, n1, SampleChart()))
		require.NoError(t, store.Save(ctx, n2, SampleChart()))
		defer func() {
			_ = store.Delete(ctx, n1)
			_ = store.Delete(ctx, n2)
		}()

		names, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, names, n1)
		assert.Contains(t, names, n2)
	})
}

// AssertSameEntries compares ids, labels, superior references and order.
// Field values are compared by their printed form, since JSON and YAML
// backends do not preserve numeric types.
func AssertSameEntries(t *testing.T, want, got []domain.Entry) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].ID, got[i].ID, "id at %d", i)
		assert.Equal(t, want[i].Label, got[i].Label, "label of %s", want[i].ID)
		assert.Equal(t, want[i].SuperiorID, got[i].SuperiorID, "superior of %s", want[i].ID)
		assert.Equal(t, printable(want[i].Fields), printable(got[i].Fields), "fields of %s", want[i].ID)
	}
}

func printable(fields map[string]any) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = fmt.Sprint(v)
	}
	return out
}
