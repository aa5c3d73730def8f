package cleaner

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizeCacheComputesAndCaches(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"), make([]byte, 100), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b"), make([]byte, 200), 0o644))

	cache := NewSizeCache(10, time.Minute)

	size, err := cache.DirSize(dir)
	require.NoError(t, err)
	assert.Equal(t, int64(300), size)
	assert.True(t, cache.Contains(dir))
}

func TestSizeCacheInvalidatesAncestors(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(nested, "f"), make([]byte, 64), 0o644))

	cache := NewSizeCache(10, time.Minute)
	for _, dir := range []string{root, filepath.Join(root, "a"), nested} {
		_, err := cache.DirSize(dir)
		require.NoError(t, err)
		require.True(t, cache.Contains(dir))
	}

	cache.Invalidate(filepath.Join(nested, "f"))

	assert.False(t, cache.Contains(nested))
	assert.False(t, cache.Contains(filepath.Join(root, "a")))
	assert.False(t, cache.Contains(root))
}

func TestSizeCacheKeyedByMtime(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(file, make([]byte, 10), 0o644))

	cache := NewSizeCache(10, time.Minute)
	size, err := cache.DirSize(dir)
	require.NoError(t, err)
	assert.Equal(t, int64(10), size)

	// Touch the directory mtime; the stale key must not satisfy the lookup.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "g"), make([]byte, 5), 0o644))
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(dir, future, future))

	size, err = cache.DirSize(dir)
	require.NoError(t, err)
	assert.Equal(t, int64(15), size)
}

func TestMetadataCache(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(file, make([]byte, 42), 0o644))

	cache := NewMetadataCache(0, 0)
	meta, err := cache.Stat(file)
	require.NoError(t, err)
	assert.Equal(t, int64(42), meta.Size)
	assert.False(t, meta.IsDir)

	cache.Forget(file)
	require.NoError(t, os.Remove(file))
	_, err = cache.Stat(file)
	assert.Error(t, err)
}
