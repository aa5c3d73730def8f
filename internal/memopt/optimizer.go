// Package memopt coordinates the memory reclamation pipelines: parallel
// non-privileged steps, an adaptive pressure loop, and an admin-elevated
// deep clean supervised through the operation registry.
package memopt

import (
	"fmt"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/LuciferMornens/macos-optimizer-beta/internal/logger"
	"github.com/LuciferMornens/macos-optimizer-beta/internal/metrics"
	"github.com/LuciferMornens/macos-optimizer-beta/internal/ops"
	"github.com/LuciferMornens/macos-optimizer-beta/internal/types"
)

// Optimizer owns the reclamation pipelines and the shared allocation pool.
type Optimizer struct {
	reg   *ops.Registry
	stats StatsProvider
	pool  *Pool
}

func New(reg *ops.Registry, stats StatsProvider) *Optimizer {
	return &Optimizer{reg: reg, stats: stats, pool: NewPool()}
}

// Optimize runs the non-admin pipeline. Independent steps run concurrently;
// each is individually cancellable and partial success is reported.
func (o *Optimizer) Optimize(op *ops.Operation) (*types.MemoryOptimizationResult, error) {
	before, err := o.stats.MemoryStats()
	if err != nil {
		return nil, fmt.Errorf("memory stats unavailable: %w", err)
	}

	var (
		mu        sync.Mutex
		performed []string
	)
	record := func(step string) {
		mu.Lock()
		performed = append(performed, step)
		mu.Unlock()
	}

	type step struct {
		name string
		run  func() bool
	}

	// The pressure loop is the heavy step; the rest are light nudges that
	// can run alongside it.
	steps := []step{
		{"cleared inactive pages", func() bool {
			freed, rounds := o.clearInactivePages(op)
			return rounds > 0 || freed > 0
		}},
		{"optimized file caches", func() bool {
			return optimizeFileCaches() == nil
		}},
		{"cleared app caches", func() bool {
			n, err := clearAppCaches()
			return err == nil && n > 0
		}},
		{"triggered memory compression", func() bool {
			o.compressionHint()
			return true
		}},
		{"cleared network caches", func() bool {
			return clearNetworkCaches() == nil
		}},
		{"nudged app gc", func() bool {
			n, _ := triggerAppGC()
			return n > 0
		}},
		{"cleared temporary allocations", func() bool {
			o.clearTempAllocations()
			return true
		}},
	}

	var wg sync.WaitGroup
	done := 0
	total := len(steps)
	var progressMu sync.Mutex

	for _, st := range steps {
		if op.Canceled() {
			break
		}
		wg.Add(1)
		go func(st step) {
			defer wg.Done()
			if op.Canceled() {
				return
			}
			if st.run() {
				record(st.name)
			}
			progressMu.Lock()
			done++
			progress := float64(done) / float64(total) * 100
			progressMu.Unlock()
			o.reg.EmitProgress(op, progress, st.name, "optimizing", nil, nil)
		}(st)
	}
	wg.Wait()

	if swapNote := o.optimizeSwap(); swapNote != "" {
		record(swapNote)
	}

	if op.Canceled() {
		return nil, ops.ErrCanceled
	}

	after, err := o.stats.MemoryStats()
	if err != nil {
		after = before
	}

	result := buildResult("safe", before, after, performed)
	logger.Info().Uint64("freed", result.FreedMemory).Int("steps", len(performed)).Msg("memory optimization complete")
	return result, nil
}

func buildResult(kind string, before, after metrics.MemoryStats, performed []string) *types.MemoryOptimizationResult {
	var freed uint64
	if before.Used > after.Used {
		freed = before.Used - after.Used
	}
	message := fmt.Sprintf("freed %s", humanize.IBytes(freed))
	if freed == 0 {
		message = "memory already optimal"
	}
	return &types.MemoryOptimizationResult{
		OptimizationType:       kind,
		MemoryBefore:           before.Used,
		MemoryAfter:            after.Used,
		FreedMemory:            freed,
		OptimizationsPerformed: performed,
		Message:                message,
	}
}
