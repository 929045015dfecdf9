package orgtree_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/orgtree"
	"github.com/aretw0/orgtree/internal/testutils"
	"github.com/aretw0/orgtree/internal/validator"
	"github.com/aretw0/orgtree/pkg/adapters/memory"
	"github.com/aretw0/orgtree/pkg/domain"
	"github.com/aretw0/orgtree/pkg/observability"
	"github.com/aretw0/orgtree/pkg/schema"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func company() []domain.Entry {
	return []domain.Entry{
		{ID: "1", Label: "CEO"},
		{ID: "2", Label: "CTO", SuperiorID: "1"},
		{ID: "3", Label: "CFO", SuperiorID: "1"},
		{ID: "4", Label: "Dev Manager", SuperiorID: "2"},
		{ID: "5", Label: "QA Manager", SuperiorID: "2"},
		{ID: "6", Label: "Developer 1", SuperiorID: "4"},
		{ID: "7", Label: "Developer 2", SuperiorID: "4"},
		{ID: "8", Label: "Accountant", SuperiorID: "3"},
	}
}

func ids(entries []domain.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

type failingSource struct {
	mu  sync.Mutex
	err error
}

func (f *failingSource) LoadEntries(ctx context.Context) ([]domain.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return company(), nil
}

func (f *failingSource) fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func newEngine(t *testing.T, opts ...orgtree.Option) *orgtree.Engine {
	t.Helper()
	eng, err := orgtree.New("", opts...)
	require.NoError(t, err)
	require.NoError(t, eng.Load(context.Background()))
	return eng
}

func TestEngine_Queries(t *testing.T) {
	eng := newEngine(t, orgtree.WithSource(memory.NewSource(company()...)))

	assert.Equal(t, []string{"1"}, ids(eng.Roots()))
	assert.Equal(t, []string{"4", "5"}, ids(eng.DirectSubordinates("2")))
	assert.Equal(t, []string{"4", "6", "7", "5"}, ids(eng.AllSubordinates("2")))
	assert.Equal(t, []string{"4", "2", "1"}, ids(eng.Superiors("6")))
	assert.True(t, eng.IsSuperior("1", "7"))
	assert.False(t, eng.IsSuperior("3", "7"))
	assert.False(t, eng.IsSuperior("1", "1"))

	e, ok := eng.FindByLabel("dev manager")
	require.True(t, ok)
	assert.Equal(t, "4", e.ID)

	_, ok = eng.Entry("99")
	assert.False(t, ok)
	assert.Empty(t, eng.DirectSubordinates("99"))

	info := eng.Info()
	assert.Equal(t, 8, info.Entries)
	assert.Equal(t, 1, info.Roots)
	assert.False(t, info.FromSnapshot)
	require.NotNil(t, info.Diff)
	assert.Len(t, info.Diff.Added, 8)
}

func TestEngine_EmptyBeforeLoad(t *testing.T) {
	eng, err := orgtree.New("", orgtree.WithSource(memory.NewSource(company()...)))
	require.NoError(t, err)
	assert.Empty(t, eng.Roots())
	assert.Equal(t, 0, eng.Hierarchy().Len())
}

func TestNew_RequiresPathOrSource(t *testing.T) {
	_, err := orgtree.New("")
	assert.Error(t, err)
}

func TestNew_DefaultLoamDirectory(t *testing.T) {
	dir := t.TempDir()
	testutils.WriteFiles(t, dir, map[string]string{
		"ceo.md":      "---\nlabel: CEO\n---\nRuns the company.\n",
		"cto.md":      "---\nlabel: CTO\nsuperior: ceo\n---\n",
		"team/dev.md": "---\nid: dev\nlabel: Developer\nsuperior: cto\n---\n",
	})

	eng, err := orgtree.New(dir)
	require.NoError(t, err)
	require.NoError(t, eng.Load(context.Background()))

	assert.Equal(t, []string{"ceo"}, ids(eng.Roots()))
	assert.Equal(t, []string{"cto", "ceo"}, ids(eng.Superiors("dev")))

	ceo, _ := eng.Entry("ceo")
	assert.Equal(t, "Runs the company.", ceo.Fields["description"])
}

func TestEngine_ReloadReportsDiff(t *testing.T) {
	src := memory.NewSource(company()...)
	eng := newEngine(t, orgtree.WithSource(src))
	ctx := context.Background()

	before := eng.Info().Checksum
	diff, err := eng.Reload(ctx)
	require.NoError(t, err)
	assert.Nil(t, diff)
	assert.Equal(t, before, eng.Info().Checksum)

	next := company()
	next[6].SuperiorID = "5"
	next = append(next[:7], domain.Entry{ID: "9", Label: "Auditor", SuperiorID: "3"})
	require.NoError(t, src.ReplaceEntries(ctx, next))

	diff, err = eng.Reload(ctx)
	require.NoError(t, err)
	require.NotNil(t, diff)
	assert.Equal(t, []string{"9"}, diff.Added)
	assert.Equal(t, []string{"8"}, diff.Removed)
	assert.Equal(t, map[string]string{"7": "5"}, diff.Moved)
	assert.Equal(t, []string{"5", "2", "1"}, ids(eng.Superiors("7")))
	assert.NotEqual(t, before, eng.Info().Checksum)
}

func TestEngine_FailedReloadKeepsStructure(t *testing.T) {
	src := &failingSource{}
	eng := newEngine(t, orgtree.WithSource(src))

	boom := errors.New("backend down")
	src.fail(boom)
	_, err := eng.Reload(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 8, eng.Hierarchy().Len())
}

func TestEngine_ReloadReportsReorder(t *testing.T) {
	src := memory.NewSource(company()...)
	eng := newEngine(t, orgtree.WithSource(src))
	ctx := context.Background()
	before := eng.Info().Checksum

	next := company()
	next[1], next[2] = next[2], next[1]
	require.NoError(t, src.ReplaceEntries(ctx, next))

	diff, err := eng.Reload(ctx)
	require.NoError(t, err)
	require.NotNil(t, diff)
	assert.True(t, diff.Reordered)
	assert.Empty(t, diff.Added)
	assert.Empty(t, diff.Moved)
	assert.NotEqual(t, before, eng.Info().Checksum)
	assert.Equal(t, []string{"3", "2"}, ids(eng.DirectSubordinates("1")))
}

func TestEngine_UnencodableFieldFailsReload(t *testing.T) {
	src := memory.NewSource(company()...)
	eng := newEngine(t, orgtree.WithSource(src))
	ctx := context.Background()
	before := eng.Info().Checksum

	next := company()
	next[0].Fields = map[string]any{"salary": math.NaN()}
	require.NoError(t, src.ReplaceEntries(ctx, next))

	_, err := eng.Reload(ctx)
	require.Error(t, err)
	assert.Equal(t, before, eng.Info().Checksum)
	assert.Equal(t, 8, eng.Hierarchy().Len())
}

func TestEngine_SnapshotFallback(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	src := &failingSource{}

	eng := newEngine(t, orgtree.WithSource(src), orgtree.WithSnapshotStore(store, ""))
	saved, err := store.Load(ctx, orgtree.DefaultSnapshotName)
	require.NoError(t, err)
	assert.Len(t, saved, 8)

	src.fail(errors.New("backend down"))
	cold, err := orgtree.New("", orgtree.WithSource(src), orgtree.WithSnapshotStore(store, ""))
	require.NoError(t, err)
	require.NoError(t, cold.Load(ctx))
	assert.True(t, cold.Info().FromSnapshot)
	assert.Equal(t, ids(eng.Roots()), ids(cold.Roots()))

	empty, err := orgtree.New("", orgtree.WithSource(src), orgtree.WithSnapshotStore(memory.NewStore(), "other"))
	require.NoError(t, err)
	err = empty.Load(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
}

func TestEngine_Diagnose(t *testing.T) {
	entries := append(company(),
		domain.Entry{ID: "9", SuperiorID: "ghost"},
		domain.Entry{ID: "a", SuperiorID: "b"},
		domain.Entry{ID: "b", SuperiorID: "a"},
	)
	eng := newEngine(t, orgtree.WithSource(memory.NewSource(entries...)))

	report := eng.Diagnose()
	assert.Equal(t, 1, report.Count(validator.Dangling))
	assert.True(t, report.HasCycles())
	assert.ErrorIs(t, report.Err(false), domain.ErrCyclicHierarchy)
}

func TestEngine_DiagnoseFieldSchema(t *testing.T) {
	s, err := schema.Parse(map[string]string{"area": "string"})
	require.NoError(t, err)

	entries := []domain.Entry{
		{ID: "1", Label: "CEO", Fields: map[string]any{"area": "Board"}},
		{ID: "2", Label: "CTO", SuperiorID: "1"},
	}
	eng := newEngine(t, orgtree.WithSource(memory.NewSource(entries...)), orgtree.WithFieldSchema(s))

	report := eng.Diagnose()
	require.Equal(t, 1, report.Count(validator.InvalidField))
	assert.Equal(t, "2", report.Issues[0].ID)
	assert.NoError(t, report.Err(false))
}

func TestEngine_Metrics(t *testing.T) {
	m := observability.NewMetrics()
	src := &failingSource{}
	eng := newEngine(t, orgtree.WithSource(src), orgtree.WithMetrics(m))

	src.fail(errors.New("down"))
	_, _ = eng.Reload(context.Background())

	n, err := testutil.GatherAndCount(m.Registry(), "orgtree_reloads_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "one series per result")
}

func TestEngine_Watch(t *testing.T) {
	eng := newEngine(t, orgtree.WithSource(&failingSource{}))
	_, err := eng.Watch(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotWatchable)
	assert.ErrorIs(t, eng.AutoReload(context.Background(), nil), domain.ErrNotWatchable)
}

func TestEngine_AutoReload(t *testing.T) {
	src := memory.NewSource(company()...)
	eng := newEngine(t, orgtree.WithSource(src))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *domain.ChartDiff, 1)
	done := make(chan error, 1)
	go func() {
		done <- eng.AutoReload(ctx, func(d *domain.ChartDiff, err error) {
			if err != nil || d == nil {
				return
			}
			select {
			case reloaded <- d:
			default:
			}
		})
	}()

	// Watch registers asynchronously; retry the change until it is observed.
	next := append(company(), domain.Entry{ID: "9", Label: "Intern", SuperiorID: "6"})
	var diff *domain.ChartDiff
	require.Eventually(t, func() bool {
		if err := src.ReplaceEntries(ctx, next); err != nil {
			return false
		}
		select {
		case diff = <-reloaded:
			return true
		case <-time.After(20 * time.Millisecond):
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{"9"}, diff.Added)
	assert.True(t, eng.IsSuperior("4", "9"))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("AutoReload did not stop")
	}
}

func TestVersion(t *testing.T) {
	assert.NotEmpty(t, orgtree.Version)
}
