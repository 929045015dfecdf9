package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aretw0/orgtree/pkg/domain"
	"github.com/aretw0/orgtree/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRepo creates an in-memory SQLite repository for testing
func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := New(":memory:")
	require.NoError(t, err, "failed to create test repository")
	t.Cleanup(func() {
		repo.Close()
	})
	return repo
}

func TestRepository_Contract(t *testing.T) {
	repo := newTestRepo(t)
	chart := tests.SampleChart()
	require.NoError(t, repo.ReplaceEntries(context.Background(), chart))

	tests.EntrySourceContractTest(t, repo, chart)
	tests.EntrySinkContractTest(t, repo, repo)
	tests.SnapshotStoreContractTest(t, repo)
}

func TestRepository_FileBacked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chart.db")
	ctx := context.Background()

	repo, err := New(path)
	require.NoError(t, err)
	require.NoError(t, repo.ReplaceEntries(ctx, tests.SampleChart()))
	require.NoError(t, repo.Close())

	reopened, err := New(path)
	require.NoError(t, err)
	defer reopened.Close()

	entries, err := reopened.LoadEntries(ctx)
	require.NoError(t, err)
	tests.AssertSameEntries(t, tests.SampleChart(), entries)
}

func TestRepository_PromotedColumns(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	in := []domain.Entry{{
		ID:    "1",
		Label: "Alcalde",
		Fields: map[string]any{
			"code":        "ALC-01",
			"area":        "Alcaldía",
			"vacancies":   2,
			"salary":      60000.5,
			"description": "Head of the council",
			"grade":       "A1",
		},
	}, {
		ID:         "2",
		Label:      "Tesorero",
		SuperiorID: "1",
		// Not a number: stays in the JSON column as written.
		Fields: map[string]any{"salary": "to be defined"},
	}}
	require.NoError(t, repo.ReplaceEntries(ctx, in))

	var code, area string
	var vacancies int64
	require.NoError(t, repo.db.QueryRow(`SELECT code, area, vacancies FROM positions WHERE id = '1'`).Scan(&code, &area, &vacancies))
	assert.Equal(t, "ALC-01", code)
	assert.Equal(t, "Alcaldía", area)
	assert.Equal(t, int64(2), vacancies)

	out, err := repo.LoadEntries(ctx)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, int64(2), out[0].Fields["vacancies"])
	assert.Equal(t, 60000.5, out[0].Fields["salary"])
	assert.Equal(t, "A1", out[0].Fields["grade"])
	assert.Equal(t, "to be defined", out[1].Fields["salary"])
	assert.Equal(t, "1", out[1].SuperiorID)
}

func TestRepository_DuplicateIDsKeepFirstSlot(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.ReplaceEntries(ctx, []domain.Entry{
		{ID: "a", Label: "first"},
		{ID: "b", Label: "B"},
		{ID: "a", Label: "second"},
	}))

	out, err := repo.LoadEntries(ctx)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "second", out[0].Label)
	assert.Equal(t, "b", out[1].ID)
}

func TestRepository_UpsertAndDelete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.ReplaceEntries(ctx, []domain.Entry{{ID: "1", Label: "CEO"}, {ID: "2", Label: "CTO", SuperiorID: "1"}}))
	require.NoError(t, repo.UpsertEntries(ctx, []domain.Entry{{ID: "3", Label: "CFO", SuperiorID: "1"}, {ID: "1", Label: "Chief Executive"}}))

	out, err := repo.LoadEntries(ctx)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, []string{"1", "2", "3"}, []string{out[0].ID, out[1].ID, out[2].ID})
	assert.Equal(t, "Chief Executive", out[0].Label)

	require.NoError(t, repo.DeleteEntry(ctx, "1"))
	assert.ErrorIs(t, repo.DeleteEntry(ctx, "1"), domain.ErrEntryNotFound)

	out, err = repo.LoadEntries(ctx)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "1", out[0].SuperiorID, "dangling references are kept")
}

func TestRepository_RejectsMissingID(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.ReplaceEntries(ctx, []domain.Entry{{ID: "1"}}))

	err := repo.ReplaceEntries(ctx, []domain.Entry{{ID: "2"}, {Label: "ghost"}})
	assert.ErrorIs(t, err, domain.ErrMissingID)

	out, err := repo.LoadEntries(ctx)
	require.NoError(t, err)
	require.Len(t, out, 1, "failed replace is rolled back")
	assert.Equal(t, "1", out[0].ID)
}
