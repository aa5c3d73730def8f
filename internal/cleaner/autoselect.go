package cleaner

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/LuciferMornens/macos-optimizer-beta/internal/types"
)

const (
	autoSelectMinScore    = 95
	autoSelectMaxSize     = 100 * 1024 * 1024
	autoSelectMinAge      = 24 * time.Hour
	autoSelectBackupAbove = 50 * 1024 * 1024
)

// evaluateAutoSelect applies the auto-selection constraints. Every failed
// constraint yields a human-readable reason; the file auto-selects only when
// all constraints hold.
func evaluateAutoSelect(file *types.EnhancedFile, now time.Time) {
	var reasons []string

	switch file.Recommendation {
	case types.SafeToAutoDelete, types.SafeWithUserConfirmation:
	default:
		reasons = append(reasons, fmt.Sprintf("recommendation %s requires review", file.Recommendation))
	}

	if file.SafetyScore < autoSelectMinScore {
		reasons = append(reasons, fmt.Sprintf("safety score %d below %d", file.SafetyScore, autoSelectMinScore))
	}

	if file.Size > autoSelectMaxSize {
		reasons = append(reasons, fmt.Sprintf("size %s exceeds %s",
			humanize.IBytes(uint64(file.Size)), humanize.IBytes(autoSelectMaxSize)))
	}

	if now.Sub(file.LastModified) < autoSelectMinAge {
		reasons = append(reasons, "modified within the last 24h")
	}

	if file.Size > autoSelectBackupAbove && file.MacOSStatus.Backup != types.BackupStatusBackedUp {
		reasons = append(reasons, fmt.Sprintf("%s file without confirmed backup",
			humanize.IBytes(uint64(file.Size))))
	}

	file.AutoSelectScore = file.SafetyScore
	file.AutoSelectWhy = reasons
	file.AutoSelect = len(reasons) == 0
}
