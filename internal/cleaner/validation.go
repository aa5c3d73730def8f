package cleaner

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/google/uuid"

	"github.com/LuciferMornens/macos-optimizer-beta/internal/logger"
	"github.com/LuciferMornens/macos-optimizer-beta/internal/types"
)

// OpenHandleCheck reports whether some process holds the file open. Swapped
// in tests; lsof exits non-zero when nothing matches.
var OpenHandleCheck = func(path string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := exec.CommandContext(ctx, "lsof", "-t", "--", path).Run()
	return err == nil
}

// PrepareDeletion validates a request set and creates a recovery point for
// the accepted entries. The caller surfaces errors and warnings before
// confirmation.
func (e *Engine) PrepareDeletion(paths []string) (types.ValidationResult, string, error) {
	result := types.ValidationResult{}
	var rpFiles []types.RecoveryPointFile

	for _, path := range paths {
		if protected, reason := IsProtectedLocation(path); protected {
			result.Errors = append(result.Errors, types.ValidationIssue{
				Path:    path,
				Message: string(reason),
			})
			continue
		}

		info, err := os.Stat(path)
		if err != nil {
			if os.IsPermission(err) {
				result.Errors = append(result.Errors, types.ValidationIssue{
					Path:    path,
					Message: string(types.BlockedPermissionDenied),
				})
			} else {
				result.Errors = append(result.Errors, types.ValidationIssue{
					Path:    path,
					Message: fmt.Sprintf("stat failed: %v", err),
				})
			}
			continue
		}

		if !info.IsDir() && OpenHandleCheck(path) {
			result.Errors = append(result.Errors, types.ValidationIssue{
				Path:    path,
				Message: string(types.BlockedInUse),
			})
			continue
		}

		category := e.categoryFor(path)
		if category == "" {
			result.Warnings = append(result.Warnings, types.ValidationIssue{
				Path:    path,
				Message: "not part of the last scan; deleting anyway requires explicit confirmation",
			})
		}

		result.Accepted = append(result.Accepted, path)
		rpFiles = append(rpFiles, types.RecoveryPointFile{
			Path:     path,
			Size:     info.Size(),
			Category: category,
			ModTime:  info.ModTime(),
		})
	}

	if len(result.Accepted) == 0 {
		return result, "", nil
	}

	rp := types.RecoveryPoint{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		Files:     rpFiles,
	}
	if e.db != nil {
		if err := e.db.SaveRecoveryPoint(rp); err != nil {
			return result, "", fmt.Errorf("save recovery point: %w", err)
		}
	}
	logger.Info().Str("recovery_point", rp.ID).Int("files", len(rpFiles)).Msg("recovery point created")
	return result, rp.ID, nil
}

// categoryFor looks the path up in the last scan report.
func (e *Engine) categoryFor(path string) string {
	report := e.LastReport()
	if report == nil {
		return ""
	}
	for i := range report.EnhancedFiles {
		if report.EnhancedFiles[i].Path == path {
			return report.EnhancedFiles[i].Category
		}
	}
	return ""
}

// safetyFor returns the scored file from the last report, if present.
func (e *Engine) safetyFor(path string) (types.EnhancedFile, bool) {
	report := e.LastReport()
	if report == nil {
		return types.EnhancedFile{}, false
	}
	for i := range report.EnhancedFiles {
		if report.EnhancedFiles[i].Path == path {
			return report.EnhancedFiles[i], true
		}
	}
	return types.EnhancedFile{}, false
}
