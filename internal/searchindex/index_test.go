package searchindex

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, idx Index) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, Entry{ID: "a", Title: "budget", FileName: "budget.xlsx", Content: "Quarterly budget figures"}))
	require.NoError(t, idx.Upsert(ctx, Entry{ID: "b", Title: "minutes", FileName: "minutes.docx", Content: "Board meeting minutes and reports"}))
	require.NoError(t, idx.Upsert(ctx, Entry{ID: "c", Title: "deck", FileName: "deck.pptx", Content: "Product roadmap"}))
}

func TestMemoryIndexSearch(t *testing.T) {
	idx, err := NewMemory()
	require.NoError(t, err)
	defer idx.Close()
	seed(t, idx)
	ctx := context.Background()

	ids, err := idx.Search(ctx, "budget", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids)

	// stemming matches the singular form
	ids, err = idx.Search(ctx, "report", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids)

	// file names are searchable too
	ids, err = idx.Search(ctx, "deck", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, ids)

	all, err := idx.Search(ctx, "", 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, all)

	limited, err := idx.Search(ctx, "", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	none, err := idx.Search(ctx, "nonexistentterm", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUpsertReplacesAndDelete(t *testing.T) {
	idx, err := NewMemory()
	require.NoError(t, err)
	defer idx.Close()
	ctx := context.Background()
	seed(t, idx)

	require.NoError(t, idx.Upsert(ctx, Entry{ID: "a", Title: "budget", Content: "Annual forecast"}))
	ids, err := idx.Search(ctx, "quarterly", 10)
	require.NoError(t, err)
	assert.Empty(t, ids)
	ids, err = idx.Search(ctx, "forecast", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids)

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)

	require.NoError(t, idx.Delete(ctx, "a"))
	require.NoError(t, idx.Delete(ctx, "missing"))
	n, err = idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)
}

func TestResetOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.bleve")
	idx, err := Open(path)
	require.NoError(t, err)
	ctx := context.Background()
	seed(t, idx)

	require.NoError(t, idx.Reset(ctx))
	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	// reset is idempotent and the index stays usable
	require.NoError(t, idx.Reset(ctx))
	require.NoError(t, idx.Upsert(ctx, Entry{ID: "z", Content: "fresh start"}))
	require.NoError(t, idx.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	ids, err := reopened.Search(ctx, "fresh", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"z"}, ids)
}

func TestClosedIndex(t *testing.T) {
	idx, err := NewMemory()
	require.NoError(t, err)
	require.NoError(t, idx.Close())
	require.NoError(t, idx.Close())
	ctx := context.Background()
	assert.ErrorIs(t, idx.Upsert(ctx, Entry{ID: "a"}), ErrClosed)
	_, err = idx.Search(ctx, "x", 1)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, idx.Reset(ctx), ErrClosed)
}
