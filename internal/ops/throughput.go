package ops

import (
	"time"

	"github.com/LuciferMornens/macos-optimizer-beta/internal/events"
)

// ThroughputTracker computes rolling per-tick rates and an ETA from
// (files, bytes) progress counters. All math uses the monotonic clock.
type ThroughputTracker struct {
	lastTick  time.Time
	lastFiles int64
	lastBytes int64
}

// Tick records cumulative progress and returns (eta_ms, throughput). Both are
// nil on the first tick; eta_ms is also nil when no files completed since the
// previous tick.
func (t *ThroughputTracker) Tick(filesDone, bytesDone, totalFiles int64) (*int64, *events.Throughput) {
	now := time.Now()
	if t.lastTick.IsZero() {
		t.lastTick = now
		t.lastFiles = filesDone
		t.lastBytes = bytesDone
		return nil, nil
	}

	dt := now.Sub(t.lastTick).Seconds()
	if dt < 0.001 {
		dt = 0.001
	}
	df := float64(filesDone - t.lastFiles)
	db := float64(bytesDone - t.lastBytes)

	t.lastTick = now
	t.lastFiles = filesDone
	t.lastBytes = bytesDone

	filesPerSec := df / dt
	mbPerSec := db / 1048576.0 / dt

	tput := &events.Throughput{FilesPerSec: &filesPerSec, MBPerSec: &mbPerSec}

	if filesPerSec <= 0 {
		return nil, tput
	}
	remaining := float64(totalFiles - filesDone)
	if remaining < 0 {
		remaining = 0
	}
	eta := int64(remaining / filesPerSec * 1000.0)
	return &eta, tput
}
