package filehash

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marlonsc/mcb/internal/storage"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	exec, err := storage.NewSQLiteExecutor(storage.SQLiteOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = exec.Close() })
	require.NoError(t, storage.ApplySchema(context.Background(), exec, storage.SQLiteDDL{}))
	return NewRegistry(exec, "org-1")
}

func TestUpsertAndGetHash(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.UpsertHash(ctx, "c", "main.go", "h1"))

	hash, err := r.GetHash(ctx, "c", "main.go")
	require.NoError(t, err)
	assert.Equal(t, "h1", hash)

	files, err := r.GetIndexedFiles(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, []string{"main.go"}, files)
}

func TestHasChanged(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	// Untracked file has changed.
	changed, err := r.HasChanged(ctx, "c", "new.go", "h1")
	require.NoError(t, err)
	assert.True(t, changed)

	require.NoError(t, r.UpsertHash(ctx, "c", "new.go", "h1"))

	changed, err = r.HasChanged(ctx, "c", "new.go", "h1")
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = r.HasChanged(ctx, "c", "new.go", "h2")
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestUpsertTwiceIsIdempotent(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.UpsertHash(ctx, "c", "f.go", "h1"))
	require.NoError(t, r.UpsertHash(ctx, "c", "f.go", "h1"))

	count, err := r.TombstoneCount(ctx, "c")
	require.NoError(t, err)
	assert.Zero(t, count)

	files, err := r.GetIndexedFiles(ctx, "c")
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestTombstoneLifecycle(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.UpsertHash(ctx, "c", "f.go", "h1"))

	changed, err := r.HasChanged(ctx, "c", "f.go", "h1")
	require.NoError(t, err)
	assert.False(t, changed)

	require.NoError(t, r.MarkDeleted(ctx, "c", "f.go"))

	files, err := r.GetIndexedFiles(ctx, "c")
	require.NoError(t, err)
	assert.Empty(t, files, "tombstoned file excluded from indexed files")

	count, err := r.TombstoneCount(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// A tombstoned file reads as changed.
	changed, err = r.HasChanged(ctx, "c", "f.go", "h1")
	require.NoError(t, err)
	assert.True(t, changed)

	deleted, err := r.CleanupTombstonesWithTTL(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	count, err = r.TombstoneCount(ctx, "c")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCleanupRespectsTTL(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.UpsertHash(ctx, "c", "f.go", "h1"))
	require.NoError(t, r.MarkDeleted(ctx, "c", "f.go"))

	// A long TTL keeps the fresh tombstone.
	deleted, err := r.CleanupTombstonesWithTTL(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	count, err := r.TombstoneCount(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestUpsertAfterDeleteClearsTombstone(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.UpsertHash(ctx, "c", "f.go", "h1"))
	require.NoError(t, r.MarkDeleted(ctx, "c", "f.go"))
	require.NoError(t, r.UpsertHash(ctx, "c", "f.go", "h2"))

	count, err := r.TombstoneCount(ctx, "c")
	require.NoError(t, err)
	assert.Zero(t, count)

	hash, err := r.GetHash(ctx, "c", "f.go")
	require.NoError(t, err)
	assert.Equal(t, "h2", hash)
}

func TestClearCollection(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.UpsertHash(ctx, "c", "a.go", "h1"))
	require.NoError(t, r.UpsertHash(ctx, "c", "b.go", "h2"))
	require.NoError(t, r.UpsertHash(ctx, "other", "c.go", "h3"))
	require.NoError(t, r.MarkDeleted(ctx, "c", "b.go"))

	require.NoError(t, r.ClearCollection(ctx, "c"))

	files, err := r.GetIndexedFiles(ctx, "c")
	require.NoError(t, err)
	assert.Empty(t, files)

	count, err := r.TombstoneCount(ctx, "c")
	require.NoError(t, err)
	assert.Zero(t, count)

	// Other collections are untouched.
	files, err = r.GetIndexedFiles(ctx, "other")
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestCollectionsAreIsolatedPerOrg(t *testing.T) {
	exec, err := storage.NewSQLiteExecutor(storage.SQLiteOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = exec.Close() })
	ctx := context.Background()
	require.NoError(t, storage.ApplySchema(ctx, exec, storage.SQLiteDDL{}))

	org1 := NewRegistry(exec, "org-1")
	org2 := NewRegistry(exec, "org-2")

	require.NoError(t, org1.UpsertHash(ctx, "c", "f.go", "h1"))

	hash, err := org2.GetHash(ctx, "c", "f.go")
	require.NoError(t, err)
	assert.Empty(t, hash, "hashes are scoped per organization")
}

func TestComputeHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	hash, err := ComputeHash(path)
	require.NoError(t, err)
	assert.Equal(t, HashBytes([]byte("hello world")), hash)
	assert.Len(t, hash, 64)

	_, err = ComputeHash(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
