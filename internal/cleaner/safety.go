package cleaner

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/LuciferMornens/macos-optimizer-beta/internal/types"
	"github.com/LuciferMornens/macos-optimizer-beta/internal/utils"
)

// Protected locations beyond SIP; deleting anything under these is never
// allowed.
var protectedPrefixes = []string{
	"/System",
	"/usr",
	"/bin",
	"/sbin",
	"/private/var/db",
	"/Library/Apple",
}

// User locations that hold primary data rather than regenerable files.
var userProtectedDirs = []string{
	"Documents",
	"Desktop/Important",
	"Pictures",
	".ssh",
	".gnupg",
}

// Name fragments that mark files a cleaner should never touch.
var sensitiveNamePatterns = []string{
	"keychain",
	"wallet",
	"credential",
	"password",
	"secret",
	"private_key",
	"id_rsa",
	"id_ed25519",
}

// IsProtectedLocation reports whether path is a system component or sits in
// a protected location. Such paths are never deletable regardless of user
// selection.
func IsProtectedLocation(path string) (bool, types.BlockReason) {
	resolved := canonical(path)

	if utils.IsSIPProtected(resolved) {
		return true, types.BlockedSystemCritical
	}
	for _, prefix := range protectedPrefixes {
		if resolved == prefix || strings.HasPrefix(resolved, prefix+"/") {
			return true, types.BlockedSystemCritical
		}
	}

	lower := strings.ToLower(resolved)
	for _, pattern := range sensitiveNamePatterns {
		if strings.Contains(lower, pattern) {
			return true, types.BlockedUserProtected
		}
	}

	if home, err := utils.UserHomeDir(); err == nil {
		for _, dir := range userProtectedDirs {
			prefix := filepath.Join(home, dir)
			if resolved == prefix || strings.HasPrefix(resolved, prefix+string(filepath.Separator)) {
				return true, types.BlockedUserProtected
			}
		}
	}

	return false, ""
}

// contentKind sniffs the first bytes of a file for a coarse classification.
// Failures return "unknown" and never affect safety negatively.
func contentKind(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return "unknown"
	}
	defer f.Close()

	buf := make([]byte, 16)
	n, err := f.Read(buf)
	if err != nil || n < 4 {
		return "unknown"
	}
	buf = buf[:n]

	switch {
	case buf[0] == 0xCF && buf[1] == 0xFA && buf[2] == 0xED && buf[3] == 0xFE:
		return "macho"
	case buf[0] == 0xCA && buf[1] == 0xFE && buf[2] == 0xBA && buf[3] == 0xBE:
		return "macho_fat"
	case buf[0] == '%' && buf[1] == 'P' && buf[2] == 'D' && buf[3] == 'F':
		return "pdf"
	case buf[0] == 0x50 && buf[1] == 0x4B:
		return "archive"
	case n >= 15 && string(buf[:15]) == "SQLite format 3":
		return "sqlite"
	case buf[0] == '{' || buf[0] == '[':
		return "text"
	default:
		return "binary"
	}
}

// categoryBaseScore mirrors the product's per-category floor scores.
func categoryBaseScore(category string) int {
	c := strings.ToLower(category)
	switch {
	case c == "trash":
		return 100
	case strings.Contains(c, "cache"):
		return 92
	case strings.Contains(c, "temporary") || strings.Contains(c, "temp"):
		return 90
	case strings.Contains(c, "saved application state"):
		return 88
	case strings.Contains(c, "incomplete downloads"):
		return 88
	case strings.Contains(c, "log") || strings.Contains(c, "crash report"):
		return 78
	case strings.Contains(c, "old downloads") || strings.Contains(c, "installer"):
		return 60
	case strings.Contains(c, "stale") || strings.Contains(c, "mail downloads") ||
		strings.Contains(c, "attachments") || strings.Contains(c, "ios"):
		return 45
	default:
		return 55
	}
}

// analyzeSafety runs the layered checks and produces the 0-100 score, the
// per-layer metrics, and the integration status for one candidate.
func (e *Engine) analyzeSafety(path string, meta fileMeta, rule activeRule, now time.Time) (int, types.SafetyMetrics, types.MacOSStatus, bool) {
	metrics := types.SafetyMetrics{}
	macos := types.MacOSStatus{Backup: types.BackupStatusUnknown}

	// Layer 1: static patterns. Protected paths short-circuit to zero.
	if protected, _ := IsProtectedLocation(path); protected {
		metrics.BaseScore = 0
		metrics.Penalties = append(metrics.Penalties, "protected location")
		macos.SIPProtected = utils.IsSIPProtected(path)
		return 0, metrics, macos, false
	}

	score := categoryBaseScore(rule.Name)
	metrics.BaseScore = score

	// Layer 2: usage heuristics.
	age := now.Sub(meta.ModTime)
	metrics.AgeDays = int(age.Hours() / 24)
	if now.Sub(meta.Accessed) < 24*time.Hour {
		metrics.RecentlyAccessed = true
		score -= 15
		metrics.Penalties = append(metrics.Penalties, "accessed within 24h")
	}
	if metrics.AgeDays > 120 && score >= 70 {
		score += 5
	}

	// Layer 3: content cues.
	metrics.ContentKind = contentKind(path)
	if metrics.ContentKind == "macho" || metrics.ContentKind == "macho_fat" {
		score -= 20
		metrics.Penalties = append(metrics.Penalties, "executable binary")
	}

	// Layer 4: system integration. Probe failures leave the fields unknown
	// and never penalize.
	macos = e.probes.Status(path)
	if macos.SpotlightImportant {
		score -= 10
		metrics.Penalties = append(metrics.Penalties, "spotlight important")
	}
	if macos.ICloudSynced {
		score -= 10
		metrics.Penalties = append(metrics.Penalties, "icloud synced")
	}
	if macos.LaunchServices {
		score -= 15
		metrics.Penalties = append(metrics.Penalties, "registered app")
	}
	if macos.ActiveXPCService {
		score -= 20
		metrics.Penalties = append(metrics.Penalties, "active xpc service")
	}
	if macos.TimeMachineBacked {
		macos.Backup = types.BackupStatusBackedUp
	}

	// Layer 5: name and size adjustments.
	lower := strings.ToLower(path)
	if strings.Contains(lower, "backup") || strings.Contains(lower, "archive") || strings.Contains(lower, "export") {
		score -= 25
		metrics.Penalties = append(metrics.Penalties, "backup-like name")
	}
	// Cache-like locations float up to the cache floor, but an explicit
	// strike against the file always wins.
	if len(metrics.Penalties) == 0 &&
		(strings.Contains(lower, ".cache") || strings.Contains(lower, "cache/") || strings.Contains(lower, "/tmp/")) {
		if score < 92 {
			score = 92
		}
	}
	if meta.Size > 500*1024*1024 && score > 70 {
		score -= 5
	}

	// A safe-category file that aged past a week with no strikes against it
	// has demonstrably fallen out of use.
	if rule.Safe && len(metrics.Penalties) == 0 && metrics.AgeDays >= 7 {
		score += 5
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	safeToDelete := rule.Safe && score >= 70
	return score, metrics, macos, safeToDelete
}
