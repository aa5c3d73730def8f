package app

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LuciferMornens/macos-optimizer-beta/internal/cleaner"
	"github.com/LuciferMornens/macos-optimizer-beta/internal/events"
	"github.com/LuciferMornens/macos-optimizer-beta/internal/memopt"
	"github.com/LuciferMornens/macos-optimizer-beta/internal/metrics"
	"github.com/LuciferMornens/macos-optimizer-beta/internal/ops"
	"github.com/LuciferMornens/macos-optimizer-beta/internal/store"
	"github.com/LuciferMornens/macos-optimizer-beta/internal/types"
	"github.com/LuciferMornens/macos-optimizer-beta/internal/utils"
)

func fakeHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	orig := utils.UserHomeDir
	utils.UserHomeDir = func() (string, error) { return home, nil }
	t.Cleanup(func() { utils.UserHomeDir = orig })
	return home
}

func stubTrash(t *testing.T) {
	t.Helper()
	origSingle := utils.MoveToTrash
	origBatch := utils.MoveToTrashBatch
	t.Cleanup(func() {
		utils.MoveToTrash = origSingle
		utils.MoveToTrashBatch = origBatch
	})
	utils.MoveToTrash = func(path string) error {
		return os.RemoveAll(path)
	}
	utils.MoveToTrashBatch = func(paths []string) utils.TrashBatchResult {
		result := utils.TrashBatchResult{Failed: make(map[string]error)}
		for _, p := range paths {
			if err := os.Remove(p); err != nil {
				result.Failed[p] = err
			} else {
				result.Succeeded = append(result.Succeeded, p)
			}
		}
		return result
	}
}

func stubOpenHandles(t *testing.T) {
	t.Helper()
	orig := cleaner.OpenHandleCheck
	cleaner.OpenHandleCheck = func(string) bool { return false }
	t.Cleanup(func() { cleaner.OpenHandleCheck = orig })
}

func newTestService(t *testing.T, rules []types.CategoryRule) (*Service, *events.Bus) {
	t.Helper()
	db, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	bus := events.NewBus()
	reg := ops.NewRegistry(bus, nil)
	sampler := metrics.NewSampler()
	engine := cleaner.NewEngine(rules, reg, db, cleaner.NewNullProbes(), cleaner.Options{})
	optimizer := memopt.New(reg, sampler)

	return New(reg, sampler, engine, optimizer, db), bus
}

func writeAgedFile(t *testing.T, path string, size int, age time.Duration) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	stamp := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, stamp, stamp))
}

func TestReportAccessorsRequireScan(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, err := svc.GetCleanableFiles()
	assert.ErrorIs(t, err, ErrScanRequired)
	_, err = svc.GetAutoSelectableFiles()
	assert.ErrorIs(t, err, ErrScanRequired)
	_, err = svc.GetFilesBySafety(50)
	assert.ErrorIs(t, err, ErrScanRequired)
}

func TestScanPrepareCleanRoundTrip(t *testing.T) {
	home := fakeHome(t)
	stubTrash(t)
	stubOpenHandles(t)

	cachesDir := filepath.Join(home, "Library", "Caches", "app1")
	writeAgedFile(t, filepath.Join(cachesDir, "old1.bin"), 1024, 30*24*time.Hour)
	writeAgedFile(t, filepath.Join(cachesDir, "old2.bin"), 2048, 30*24*time.Hour)

	rules := []types.CategoryRule{
		{Name: "UserCaches", Paths: []string{"~/Library/Caches"}, Safe: true, MinAgeDays: 7},
	}
	svc, bus := newTestService(t, rules)

	terminalCount, stopCollect := countTerminals(t, bus)

	report, err := svc.ScanCleanableFilesEnhanced()
	require.NoError(t, err)
	require.Len(t, report.EnhancedFiles, 2)

	var paths []string
	for _, f := range report.EnhancedFiles {
		paths = append(paths, f.Path)
	}

	validation, rpID, err := svc.PrepareDeletionEnhanced(paths)
	require.NoError(t, err)
	assert.Empty(t, validation.Errors)
	assert.Len(t, validation.Accepted, 2)
	assert.NotEmpty(t, rpID)

	result, err := svc.CleanFilesEnhanced(paths, false)
	require.NoError(t, err)

	// Round-trip property: every accepted item ends in deleted or failed.
	assert.Equal(t, len(paths), result.DeletedCount+result.FailedCount)
	assert.Equal(t, 2, result.DeletedCount)
	assert.NotEmpty(t, result.RecoveryPointID)

	// A recovery point id is returned alongside the destructive operation
	// and resolves in the store.
	rp, err := svc.DB.GetRecoveryPoint(result.RecoveryPointID)
	require.NoError(t, err)
	assert.Len(t, rp.Files, 2)

	time.Sleep(20 * time.Millisecond)
	stopCollect()
	assert.Equal(t, 2, terminalCount(), "scan + clean each emit exactly one terminal")
}

func TestCleanRiskyGate(t *testing.T) {
	home := fakeHome(t)
	stubTrash(t)
	stubOpenHandles(t)

	// A risky candidate: unsafe rule keeps safe_to_delete=false.
	stuff := filepath.Join(home, "Downloads")
	writeAgedFile(t, filepath.Join(stuff, "backup-export.bin"), 1024, 120*24*time.Hour)

	rules := []types.CategoryRule{
		{Name: "Old Downloads (90d+)", Paths: []string{"~/Downloads"}, Safe: false, MinAgeDays: 90},
	}
	svc, _ := newTestService(t, rules)

	report, err := svc.ScanCleanableFilesEnhanced()
	require.NoError(t, err)
	require.Len(t, report.EnhancedFiles, 1)
	candidate := report.EnhancedFiles[0]
	require.False(t, candidate.SafeToDelete)

	result, err := svc.CleanFilesEnhanced([]string{candidate.Path}, false)
	require.NoError(t, err)
	assert.Zero(t, result.DeletedCount)
	require.Len(t, result.FailedFiles, 1)
	assert.Equal(t, string(types.BlockedUserProtected), result.FailedFiles[0].Reason)
}

func TestEmptyTrashIdempotent(t *testing.T) {
	home := fakeHome(t)
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".Trash"), 0o755))

	svc, bus := newTestService(t, nil)
	terminalCount, stopCollect := countTerminals(t, bus)

	freed, removed, err := svc.EmptyTrash()
	require.NoError(t, err)
	assert.Zero(t, freed)
	assert.Zero(t, removed)

	time.Sleep(20 * time.Millisecond)
	stopCollect()
	assert.Equal(t, 1, terminalCount())
}

func TestRecordUserFeedback(t *testing.T) {
	svc, _ := newTestService(t, nil)

	require.NoError(t, svc.RecordUserFeedback("/tmp/x", types.FeedbackSelected))
	assert.Error(t, svc.RecordUserFeedback("/tmp/x", types.FeedbackAction("bogus")))

	entries, err := svc.DB.FeedbackFor("/tmp/x")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestGetFilesBySafetyFilters(t *testing.T) {
	home := fakeHome(t)
	stubTrash(t)
	stubOpenHandles(t)

	writeAgedFile(t, filepath.Join(home, "Library", "Caches", "stale.db"), 1024, 30*24*time.Hour)
	writeAgedFile(t, filepath.Join(home, "Downloads", "backup-old.bin"), 1024, 120*24*time.Hour)

	rules := []types.CategoryRule{
		{Name: "UserCaches", Paths: []string{"~/Library/Caches"}, Safe: true},
		{Name: "Old Downloads (90d+)", Paths: []string{"~/Downloads"}, Safe: false, MinAgeDays: 90},
	}
	svc, _ := newTestService(t, rules)

	_, err := svc.ScanCleanableFilesEnhanced()
	require.NoError(t, err)

	high, err := svc.GetFilesBySafety(90)
	require.NoError(t, err)
	all, err := svc.GetCleanableFiles()
	require.NoError(t, err)

	assert.Less(t, len(high), len(all))
	for _, f := range high {
		assert.GreaterOrEqual(t, f.SafetyScore, 90)
	}
}

func TestCancelUnknownOperation(t *testing.T) {
	svc, _ := newTestService(t, nil)
	assert.False(t, svc.CancelOperation("missing"))
	_, ok := svc.GetOperationState("missing")
	assert.False(t, ok)
}

// countTerminals subscribes to the bus and counts operation:complete frames.
func countTerminals(t *testing.T, bus *events.Bus) (func() int, func()) {
	t.Helper()
	ch, unsubscribe := bus.Subscribe()

	var mu sync.Mutex
	count := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range ch {
			if ev.Channel == events.ChannelOperationComplete {
				mu.Lock()
				count++
				mu.Unlock()
			}
		}
	}()

	get := func() int {
		mu.Lock()
		defer mu.Unlock()
		return count
	}
	stop := func() {
		unsubscribe()
		<-done
	}
	return get, stop
}
