package cleaner

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/LuciferMornens/macos-optimizer-beta/internal/logger"
	"github.com/LuciferMornens/macos-optimizer-beta/internal/types"
)

// Probes answers the optional macOS integration questions used by safety
// scoring. All probes are best-effort: a failing probe reports unknown and
// never reduces confidence.
type Probes interface {
	Status(path string) types.MacOSStatus
}

const probeTimeout = 2 * time.Second

// execProbes shells out to the platform query tools.
type execProbes struct{}

// NewProbes returns the platform probe implementation.
func NewProbes() Probes { return &execProbes{} }

func runProbe(name string, args ...string) (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return "", false
	}
	return string(out), true
}

func (p *execProbes) Status(path string) types.MacOSStatus {
	status := types.MacOSStatus{Backup: types.BackupStatusUnknown}

	// Spotlight: mdls reports the content type and use count metadata.
	if out, ok := runProbe("mdls", "-name", "kMDItemUseCount", path); ok {
		trimmed := strings.TrimSpace(out)
		status.SpotlightImportant = !strings.Contains(trimmed, "(null)") && !strings.HasSuffix(trimmed, "= 0")
	}

	// Time Machine coverage.
	if out, ok := runProbe("tmutil", "isexcluded", path); ok {
		if strings.Contains(out, "[Included]") {
			status.TimeMachineBacked = true
			status.Backup = types.BackupStatusBackedUp
		} else if strings.Contains(out, "[Excluded]") {
			status.Backup = types.BackupStatusNotBacked
		}
	}

	// iCloud sync state: files under the iCloud Drive container
	// (Library/Mobile Documents). Extended attributes are not inspected.
	if strings.Contains(path, "Library/Mobile Documents") {
		status.ICloudSynced = true
	}

	// Launch Services: application bundles register with the database.
	if strings.HasSuffix(path, ".app") || strings.Contains(path, ".app/") {
		status.LaunchServices = true
	}

	// Active XPC service detection varies across macOS versions; unknown
	// must not penalize safety, so only a positive launchctl hit counts.
	if strings.Contains(path, ".xpc") {
		if out, ok := runProbe("launchctl", "list"); ok {
			base := path[strings.LastIndex(path, "/")+1:]
			name := strings.TrimSuffix(base, ".xpc")
			status.ActiveXPCService = name != "" && strings.Contains(out, name)
		} else {
			logger.Debug().Str("path", path).Msg("xpc probe unavailable, treating as unknown")
		}
	}

	return status
}

// nullProbes reports everything unknown. Used off-platform and in tests.
type nullProbes struct{}

// NewNullProbes returns probes that always answer unknown.
func NewNullProbes() Probes { return &nullProbes{} }

func (p *nullProbes) Status(string) types.MacOSStatus {
	return types.MacOSStatus{Backup: types.BackupStatusUnknown}
}
