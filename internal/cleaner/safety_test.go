package cleaner

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LuciferMornens/macos-optimizer-beta/internal/types"
)

func testEngine(t *testing.T, rules []types.CategoryRule) *Engine {
	t.Helper()
	return NewEngine(rules, newOpsRegistry(), nil, NewNullProbes(), Options{})
}

func TestIsProtectedLocation(t *testing.T) {
	tests := []struct {
		path      string
		protected bool
		reason    types.BlockReason
	}{
		{"/System/Library/Caches/x", true, types.BlockedSystemCritical},
		{"/usr/lib/dyld", true, types.BlockedSystemCritical},
		{"/private/var/db/dslocal", true, types.BlockedSystemCritical},
		{"/Users/me/Library/Keychains/login.keychain", true, types.BlockedUserProtected},
		{"/Users/me/.ssh/id_rsa", true, types.BlockedUserProtected},
		{"/Users/me/Library/Caches/app/cache.db", false, ""},
	}
	for _, tt := range tests {
		protected, reason := IsProtectedLocation(tt.path)
		assert.Equal(t, tt.protected, protected, tt.path)
		if tt.protected {
			assert.Equal(t, tt.reason, reason, tt.path)
		}
	}
}

func TestRecommendationBands(t *testing.T) {
	assert.Equal(t, types.SafeToAutoDelete, types.RecommendationForScore(95))
	assert.Equal(t, types.SafeWithUserConfirmation, types.RecommendationForScore(85))
	assert.Equal(t, types.ReviewRecommended, types.RecommendationForScore(70))
	assert.Equal(t, types.CautionAdvised, types.RecommendationForScore(50))
	assert.Equal(t, types.DoNotDelete, types.RecommendationForScore(49))
}

func TestAnalyzeSafetyProtectedShortCircuits(t *testing.T) {
	e := testEngine(t, nil)
	rule := activeRule{CategoryRule: types.CategoryRule{Name: "User Cache", Safe: true}}

	score, _, _, safe := e.analyzeSafety("/System/Library/Caches/x", fileMeta{}, rule, time.Now())
	assert.Equal(t, 0, score)
	assert.False(t, safe)
}

func TestAnalyzeSafetyAgedCacheAutoDeletable(t *testing.T) {
	e := testEngine(t, nil)
	dir := t.TempDir()
	path := filepath.Join(dir, "Caches", "stale.db")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("xxxx"), 0o644))

	now := time.Now()
	meta := fileMeta{
		Size:     4,
		ModTime:  now.Add(-30 * 24 * time.Hour),
		Accessed: now.Add(-30 * 24 * time.Hour),
	}
	rule := activeRule{CategoryRule: types.CategoryRule{Name: "User Cache", Safe: true}}

	score, metrics, _, safe := e.analyzeSafety(path, meta, rule, now)
	assert.GreaterOrEqual(t, score, 95, "aged safe cache must reach auto-delete band")
	assert.True(t, safe)
	assert.Empty(t, metrics.Penalties)
}

func TestAnalyzeSafetyRecentAccessPenalized(t *testing.T) {
	e := testEngine(t, nil)
	dir := t.TempDir()
	path := filepath.Join(dir, "Caches", "hot.db")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("xxxx"), 0o644))

	now := time.Now()
	meta := fileMeta{
		Size:     4,
		ModTime:  now.Add(-30 * 24 * time.Hour),
		Accessed: now.Add(-time.Hour),
	}
	rule := activeRule{CategoryRule: types.CategoryRule{Name: "User Cache", Safe: true}}

	_, metrics, _, _ := e.analyzeSafety(path, meta, rule, now)
	assert.True(t, metrics.RecentlyAccessed)
	assert.Contains(t, metrics.Penalties, "accessed within 24h")
}

func TestAnalyzeSafetyBackupNamePenalty(t *testing.T) {
	e := testEngine(t, nil)
	// Fabricated path outside any cache-like location; the content probe
	// reports unknown for missing files and stays neutral.
	path := "/data/users/me/important-backup.tar"

	now := time.Now()
	meta := fileMeta{
		Size:     4,
		ModTime:  now.Add(-200 * 24 * time.Hour),
		Accessed: now.Add(-200 * 24 * time.Hour),
	}
	rule := activeRule{CategoryRule: types.CategoryRule{Name: "Old Downloads (90d+)", Safe: false}}

	score, metrics, _, safe := e.analyzeSafety(path, meta, rule, now)
	assert.Contains(t, metrics.Penalties, "backup-like name")
	assert.Less(t, score, 70)
	assert.False(t, safe)
}

func TestContentKind(t *testing.T) {
	dir := t.TempDir()

	pdf := filepath.Join(dir, "doc.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF-1.7 ..."), 0o644))
	assert.Equal(t, "pdf", contentKind(pdf))

	zip := filepath.Join(dir, "a.zip")
	require.NoError(t, os.WriteFile(zip, []byte{0x50, 0x4B, 0x03, 0x04, 0, 0}, 0o644))
	assert.Equal(t, "archive", contentKind(zip))

	assert.Equal(t, "unknown", contentKind(filepath.Join(dir, "missing")))
}

func TestSafeToDeleteRequiresSafeRule(t *testing.T) {
	e := testEngine(t, nil)
	dir := t.TempDir()
	path := filepath.Join(dir, "Caches", "x.db")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("xxxx"), 0o644))

	now := time.Now()
	meta := fileMeta{Size: 4, ModTime: now.Add(-30 * 24 * time.Hour), Accessed: now.Add(-48 * time.Hour)}

	unsafeRule := activeRule{CategoryRule: types.CategoryRule{Name: "User Cache", Safe: false}}
	_, _, _, safe := e.analyzeSafety(path, meta, unsafeRule, now)
	assert.False(t, safe, "risky rule must not produce deletable candidates")
}
