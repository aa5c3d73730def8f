package memopt

import "github.com/LuciferMornens/macos-optimizer-beta/internal/metrics"

// StatsProvider supplies memory samples to the optimizer. The telemetry
// sampler satisfies it; tests inject fakes.
type StatsProvider interface {
	MemoryStats() (metrics.MemoryStats, error)
}
