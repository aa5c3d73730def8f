package cleaner

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/LuciferMornens/macos-optimizer-beta/internal/logger"
	"github.com/LuciferMornens/macos-optimizer-beta/internal/ops"
	"github.com/LuciferMornens/macos-optimizer-beta/internal/types"
	"github.com/LuciferMornens/macos-optimizer-beta/internal/utils"
)

// Clean performs the Trash-first deletion pipeline over a validated request
// set. Inputs are grouped by parent directory; per-item outcomes land in
// deleted_files or failed_files and single failures never abort the run.
func (e *Engine) Clean(op *ops.Operation, paths []string, allowLowSafety bool, recoveryPointID string) (*types.CleaningResult, error) {
	result := &types.CleaningResult{
		DeletedFiles:    make([]string, 0, len(paths)),
		FailedFiles:     make([]types.FailedFile, 0),
		RecoveryPointID: recoveryPointID,
	}

	e.reg.EmitProgress(op, 0, "grouping by directory", "grouping", nil, nil)

	groups := make(map[string][]string)
	for _, path := range paths {
		// The protected gate holds even when the caller allows low safety.
		if protected, reason := IsProtectedLocation(path); protected {
			result.FailedFiles = append(result.FailedFiles, types.FailedFile{
				Path: path, Reason: string(reason),
			})
			continue
		}
		if !allowLowSafety {
			if file, ok := e.safetyFor(path); ok && !file.SafeToDelete {
				result.FailedFiles = append(result.FailedFiles, types.FailedFile{
					Path: path, Reason: string(types.BlockedUserProtected),
				})
				continue
			}
		}
		groups[filepath.Dir(path)] = append(groups[filepath.Dir(path)], path)
	}

	parents := make([]string, 0, len(groups))
	for parent := range groups {
		parents = append(parents, parent)
	}
	sort.Strings(parents)

	var processed, processedBytes int64
	total := int64(len(paths))
	var tracker ops.ThroughputTracker

	for _, parent := range parents {
		if op.Canceled() {
			return result, ops.ErrCanceled
		}
		group := groups[parent]

		// When the selection covers the entire directory and the directory
		// itself is user-owned, move it in one atomic operation.
		if e.coversWholeDir(parent, group) && utils.WithinHome(parent) {
			size, _ := e.sizeCache.DirSize(parent)
			if err := utils.MoveToTrash(parent); err == nil {
				for _, p := range group {
					result.DeletedFiles = append(result.DeletedFiles, p)
					e.metaCache.Forget(p)
				}
				result.TotalFreed += size
				processed += int64(len(group))
				processedBytes += size
				e.sizeCache.Invalidate(parent)
				eta, tput := tracker.Tick(processed, processedBytes, total)
				e.reg.EmitProgress(op, pct(processed, total), "trashed "+parent, "trash_or_delete", eta, tput)
				continue
			}
			logger.Debug().Str("dir", parent).Msg("whole-directory trash failed, falling back to per-item")
		}

		e.cleanGroup(op, group, result, &processed, &processedBytes, total, &tracker)
	}

	e.reg.EmitProgress(op, 95, "verifying", "verify", nil, nil)

	result.DeletedCount = len(result.DeletedFiles)
	result.FailedCount = len(result.FailedFiles)
	return result, nil
}

func pct(done, total int64) float64 {
	if total == 0 {
		return 100
	}
	return float64(done) / float64(total) * 90
}

// cleanGroup trashes one parent-directory group item by item, falling back
// to direct removal only inside the user's home.
func (e *Engine) cleanGroup(op *ops.Operation, group []string, result *types.CleaningResult, processed, processedBytes *int64, total int64, tracker *ops.ThroughputTracker) {
	// Sizes must be read before the entries disappear.
	sizes := make(map[string]int64, len(group))
	for _, path := range group {
		if size, err := utils.GetFileSize(path); err == nil {
			sizes[path] = size
		}
	}

	batch := utils.MoveToTrashBatch(group)

	for _, path := range batch.Succeeded {
		result.DeletedFiles = append(result.DeletedFiles, path)
		result.TotalFreed += sizes[path]
		e.afterDelete(path)
		*processed++
		*processedBytes += sizes[path]
	}

	for path, trashErr := range batch.Failed {
		*processed++
		// Trash can fail across volumes; direct removal is allowed only
		// within the user's home.
		if !utils.WithinHome(path) {
			logger.Warn().Str("path", path).Err(trashErr).Msg("trash failed outside home, not removing directly")
			result.FailedFiles = append(result.FailedFiles, types.FailedFile{
				Path: path, Reason: "trash_failed",
			})
			continue
		}
		if err := os.Remove(path); err != nil {
			result.FailedFiles = append(result.FailedFiles, types.FailedFile{
				Path: path, Reason: "trash_failed: " + trashErr.Error(),
			})
			continue
		}
		result.DeletedFiles = append(result.DeletedFiles, path)
		result.TotalFreed += sizes[path]
		*processedBytes += sizes[path]
		e.afterDelete(path)
	}

	eta, tput := tracker.Tick(*processed, *processedBytes, total)
	e.reg.EmitProgress(op, pct(*processed, total), "deleting files", "trash_or_delete", eta, tput)
}

// afterDelete invalidates the caches owned by the cleaner for the path and
// its ancestors.
func (e *Engine) afterDelete(path string) {
	e.metaCache.Forget(path)
	e.sizeCache.Invalidate(path)
}

// coversWholeDir reports whether selection contains every entry directly
// under dir.
func (e *Engine) coversWholeDir(dir string, selection []string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) == 0 {
		return false
	}
	selected := make(map[string]struct{}, len(selection))
	for _, p := range selection {
		selected[filepath.Clean(p)] = struct{}{}
	}
	for _, entry := range entries {
		if _, ok := selected[filepath.Join(dir, entry.Name())]; !ok {
			return false
		}
	}
	return true
}
