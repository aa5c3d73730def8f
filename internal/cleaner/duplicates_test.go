package cleaner

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LuciferMornens/macos-optimizer-beta/internal/types"
)

func never() bool { return false }

func TestDetectDuplicatesByHash(t *testing.T) {
	dir := t.TempDir()
	content := bytes.Repeat([]byte("duplicate-content"), 128*1024) // ~2 MB

	older := filepath.Join(dir, "a", "original.bin")
	newer := filepath.Join(dir, "b", "copy.bin")
	unique := filepath.Join(dir, "c", "unique.bin")

	require.NoError(t, os.MkdirAll(filepath.Dir(older), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Dir(newer), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Dir(unique), 0o755))
	require.NoError(t, os.WriteFile(older, content, 0o644))
	require.NoError(t, os.WriteFile(newer, content, 0o644))
	require.NoError(t, os.WriteFile(unique, bytes.Repeat([]byte("different"), 256*1024), 0o644))

	now := time.Now()
	files := []types.EnhancedFile{
		{CleanableFile: types.CleanableFile{Path: older, Size: int64(len(content)), LastModified: now.Add(-48 * time.Hour), SafetyScore: 80}},
		{CleanableFile: types.CleanableFile{Path: newer, Size: int64(len(content)), LastModified: now.Add(-time.Hour), SafetyScore: 80}},
		{CleanableFile: types.CleanableFile{Path: unique, Size: int64(256 * 1024 * 9), LastModified: now, SafetyScore: 80}},
	}

	groups, recoverable := detectDuplicates(files, never)
	require.Len(t, groups, 1)
	assert.Equal(t, older, groups[0].Original, "older file is preferred as the original")
	assert.Equal(t, []string{newer}, groups[0].Duplicates)
	assert.Equal(t, int64(len(content)), recoverable)
}

func TestDetectDuplicatesSmallFilesUseEquivalenceClass(t *testing.T) {
	now := time.Now()
	stamp := now.Add(-time.Hour)
	files := []types.EnhancedFile{
		{CleanableFile: types.CleanableFile{Path: "/x/a", Size: 512, LastModified: stamp}},
		{CleanableFile: types.CleanableFile{Path: "/x/b", Size: 512, LastModified: stamp}},
		{CleanableFile: types.CleanableFile{Path: "/x/c", Size: 512, LastModified: stamp.Add(time.Minute)}},
	}

	groups, recoverable := detectDuplicates(files, never)
	require.Len(t, groups, 1, "same (size, mtime) pairs group without hashing")
	assert.Equal(t, int64(512), recoverable)
}

func TestDetectDuplicatesCancellation(t *testing.T) {
	files := []types.EnhancedFile{
		{CleanableFile: types.CleanableFile{Path: "/x/a", Size: 1}},
	}
	groups, recoverable := detectDuplicates(files, func() bool { return true })
	assert.Nil(t, groups)
	assert.Zero(t, recoverable)
}
