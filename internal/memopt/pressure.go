package memopt

import (
	"runtime"
	"time"

	"github.com/LuciferMornens/macos-optimizer-beta/internal/logger"
	"github.com/LuciferMornens/macos-optimizer-beta/internal/ops"
)

const (
	baseChunkBytes = 50 * 1024 * 1024
	maxRounds      = 10
	roundYield     = 100 * time.Millisecond
)

// chunkSizeFor scales the allocation chunk down as pressure rises.
func chunkSizeFor(pressure float64) int {
	switch {
	case pressure > 90:
		return baseChunkBytes / 4
	case pressure > 75:
		return baseChunkBytes / 2
	default:
		return baseChunkBytes
	}
}

// clearInactivePages runs the adaptive pressure loop: allocate one chunk,
// yield, release, re-sample. Returns freed bytes and the rounds executed.
func (o *Optimizer) clearInactivePages(op *ops.Operation) (uint64, int) {
	before, err := o.stats.MemoryStats()
	if err != nil {
		logger.Warn().Err(err).Msg("pressure loop: no memory stats, skipping")
		return 0, 0
	}

	var prevAvailable = before.Available
	var freedTotal uint64
	rounds := 0

	for rounds < maxRounds {
		if op.Canceled() {
			break
		}

		sample, err := o.stats.MemoryStats()
		if err != nil {
			break
		}

		// Exit: enough headroom already.
		if sample.Total > 0 && sample.Available >= sample.Total/10 {
			break
		}

		chunkSize := chunkSizeFor(sample.PressurePercent)

		chunk := o.pool.Get(chunkSize)
		// Touch each page so the allocation is real, then release.
		for i := 0; i < len(chunk); i += 4096 {
			chunk[i] = 1
		}
		runtime.Gosched()
		o.pool.Put(chunk)

		time.Sleep(roundYield)
		rounds++

		after, err := o.stats.MemoryStats()
		if err != nil {
			break
		}
		var freedThisRound uint64
		if after.Available > prevAvailable {
			freedThisRound = after.Available - prevAvailable
		}
		freedTotal += freedThisRound
		prevAvailable = after.Available

		// Exit: diminishing returns.
		if freedThisRound < uint64(chunkSize)/10 {
			break
		}
	}

	logger.Debug().Int("rounds", rounds).Uint64("freed", freedTotal).Msg("pressure loop finished")
	return freedTotal, rounds
}
