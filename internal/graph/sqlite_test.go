package graph

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "graph.db")

	original := testSnapshot(t)
	require.NoError(t, SaveSQLite(ctx, path, original))

	src := SQLiteSource{Path: path}
	loaded, err := src.Load(ctx)
	require.NoError(t, err)

	assert.Equal(t, original.Nodes(), loaded.Nodes())
	assert.Equal(t, original.Edges(), loaded.Edges())
	assert.NotEqual(t, original.Version(), loaded.Version())

	t.Run("save replaces previous graph", func(t *testing.T) {
		snap, _, err := NewBuilder(DefaultBuildOptions()).Build(testFeed())
		require.NoError(t, err)
		require.NoError(t, SaveSQLite(ctx, path, snap))

		reloaded, err := src.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, snap.NodeCount(), reloaded.NodeCount())
		assert.Equal(t, snap.EdgeCount(), reloaded.EdgeCount())
		assert.False(t, reloaded.HasNode("Market"))
	})

	t.Run("store reload from file", func(t *testing.T) {
		store := NewStore(nil)
		_, err := store.Reload(ctx, src)
		require.NoError(t, err)
		assert.True(t, store.IsLoaded())
	})
}

func TestSQLiteMissingFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "typo.db")

	_, err := SQLiteSource{Path: path}.Load(ctx)
	assert.ErrorIs(t, err, os.ErrNotExist)

	// loading must not create the file
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))

	_, err = SQLiteSource{Path: dir}.Load(ctx)
	assert.Error(t, err)

	t.Run("reload keeps the working snapshot", func(t *testing.T) {
		working := testSnapshot(t)
		store := NewStore(working)

		_, err := store.Reload(ctx, SQLiteSource{Path: path})
		assert.Error(t, err)
		assert.Same(t, working, store.Current())
	})
}

func TestSQLiteEmptyDatabase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "empty.db")

	empty, err := NewSnapshot(nil, nil)
	require.NoError(t, err)
	require.NoError(t, SaveSQLite(ctx, path, empty))

	snap, err := SQLiteSource{Path: path}.Load(ctx)
	require.NoError(t, err)
	assert.Zero(t, snap.NodeCount())

	working := testSnapshot(t)
	store := NewStore(working)
	_, err = store.Reload(ctx, SQLiteSource{Path: path})
	assert.ErrorIs(t, err, ErrEmptyGraph)
	assert.Same(t, working, store.Current())
}

func TestSQLiteNotAGraph(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.db")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, err := SQLiteSource{Path: path}.Load(context.Background())
	assert.Error(t, err)
}
