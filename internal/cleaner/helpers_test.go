package cleaner

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/LuciferMornens/macos-optimizer-beta/internal/events"
	"github.com/LuciferMornens/macos-optimizer-beta/internal/ops"
	"github.com/LuciferMornens/macos-optimizer-beta/internal/utils"
)

func newOpsRegistry() *ops.Registry {
	return ops.NewRegistry(events.NewBus(), nil)
}

// runningOp registers and acquires an operation ready for worker use.
func runningOp(t *testing.T, reg *ops.Registry, class ops.Class) *ops.Operation {
	t.Helper()
	op := reg.Register(class, true)
	require.NoError(t, reg.Acquire(op))
	reg.EmitStart(op, nil)
	return op
}

// fakeHome redirects the home directory for the duration of a test.
func fakeHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	orig := utils.UserHomeDir
	utils.UserHomeDir = func() (string, error) { return home, nil }
	t.Cleanup(func() { utils.UserHomeDir = orig })
	return home
}

// writeAgedFile creates a file with both mtime and atime set in the past.
func writeAgedFile(t *testing.T, path string, size int, age time.Duration) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	stamp := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, stamp, stamp))
}

// stubTrash replaces the Trash primitives for the duration of a test.
// moveErr, when non-nil, fails every move.
func stubTrash(t *testing.T, moveErr error) *[]string {
	t.Helper()
	var trashed []string

	origSingle := utils.MoveToTrash
	origBatch := utils.MoveToTrashBatch
	t.Cleanup(func() {
		utils.MoveToTrash = origSingle
		utils.MoveToTrashBatch = origBatch
	})

	utils.MoveToTrash = func(path string) error {
		if moveErr != nil {
			return moveErr
		}
		trashed = append(trashed, path)
		return os.Rename(path, path+".trashed")
	}
	utils.MoveToTrashBatch = func(paths []string) utils.TrashBatchResult {
		result := utils.TrashBatchResult{Failed: make(map[string]error)}
		for _, p := range paths {
			if err := utils.MoveToTrash(p); err != nil {
				result.Failed[p] = err
			} else {
				result.Succeeded = append(result.Succeeded, p)
			}
		}
		return result
	}
	return &trashed
}
