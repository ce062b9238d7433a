package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRunRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "runs"))
	require.NoError(t, store.Init(ctx))

	base := time.Unix(500, 0).UTC()
	require.NoError(t, store.SaveRun(ctx, sampleRun("second", base.Add(time.Second))))
	require.NoError(t, store.SaveRun(ctx, sampleRun("first", base)))

	run, ok, err := store.GetRun(ctx, "first")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(99), run.Best.Experts[0].Seed)

	runs, err := store.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "first", runs[0].ID)
	assert.Equal(t, "second", runs[1].ID)

	require.NoError(t, store.DeleteRun(ctx, "first"))
	_, ok, _ = store.GetRun(ctx, "first")
	assert.False(t, ok, "expected deleted run to be gone")
}

func TestFileStoreRejectsPathIDs(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(t.TempDir())
	require.NoError(t, store.Init(ctx))
	assert.Error(t, store.SaveRun(ctx, sampleRun("../escape", time.Now())))

	_, ok, err := store.GetRun(ctx, "../escape")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileStoreSkipsForeignFilesAndReportsBadRecords(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewFileStore(dir)
	require.NoError(t, store.Init(ctx))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "empty"), 0o755))

	runs, err := store.ListRuns(ctx)
	require.NoError(t, err)
	assert.Empty(t, runs)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "old"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old", runFile), []byte(`{"id":"old","schema_version":0}`), 0o644))
	_, err = store.ListRuns(ctx)
	assert.Error(t, err, "expected version mismatch from old record")
}
