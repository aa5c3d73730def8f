package cleaner

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/LuciferMornens/macos-optimizer-beta/internal/logger"
	"github.com/LuciferMornens/macos-optimizer-beta/internal/ops"
	"github.com/LuciferMornens/macos-optimizer-beta/internal/utils"
)

// EmptyTrash removes the contents of the user's Trash under cooperative
// cancellation. Returns freed bytes and the number of removed entries; an
// already-empty Trash returns (0, 0).
func (e *Engine) EmptyTrash(op *ops.Operation) (int64, int, error) {
	trashDir := utils.TrashDir()

	entries, err := os.ReadDir(trashDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("read trash: %w", err)
	}
	if len(entries) == 0 {
		return 0, 0, nil
	}

	var freed int64
	removed := 0

	for i, entry := range entries {
		if i%scanBatchSize == 0 && op.Canceled() {
			return freed, removed, ops.ErrCanceled
		}

		full := filepath.Join(trashDir, entry.Name())
		size, err := utils.GetFileSize(full)
		if err != nil {
			size = 0
		}

		if err := os.RemoveAll(full); err != nil {
			logger.Warn().Str("path", full).Err(err).Msg("failed to remove trash entry")
			continue
		}
		freed += size
		removed++

		e.reg.EmitProgress(op, float64(i+1)/float64(len(entries))*100,
			fmt.Sprintf("removed %d of %d items", removed, len(entries)), "emptying", nil, nil)
	}

	e.sizeCache.Invalidate(trashDir)
	return freed, removed, nil
}

// RestoreFromTrash moves named Trash entries into the restore directory
// under the user's home. Returns the number restored.
func (e *Engine) RestoreFromTrash(fileNames []string) (int, error) {
	trashDir := utils.TrashDir()
	restoreDir := utils.ExpandPath("~/Restored Items")

	if err := os.MkdirAll(restoreDir, 0o755); err != nil {
		return 0, fmt.Errorf("create restore directory: %w", err)
	}

	restored := 0
	for _, name := range fileNames {
		src := filepath.Join(trashDir, filepath.Base(name))
		if _, err := os.Stat(src); err != nil {
			continue
		}
		dst := filepath.Join(restoreDir, filepath.Base(name))
		// Avoid clobbering an earlier restore of the same name.
		if _, err := os.Stat(dst); err == nil {
			dst = dst + ".restored"
		}
		if err := os.Rename(src, dst); err != nil {
			logger.Warn().Str("path", src).Err(err).Msg("restore failed")
			continue
		}
		restored++
	}
	return restored, nil
}
