package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/LuciferMornens/macos-optimizer-beta/internal/logger"
)

const (
	cpuPeriod    = time.Second
	uptimePeriod = time.Second
	memoryPeriod = 5 * time.Second
	diskPeriod   = 30 * time.Second

	// A source that hangs past this deadline produces an error envelope
	// instead of blocking its ticker.
	sourceDeadline = 2 * time.Second
)

// Sampler runs the staged-cadence collectors in the background and holds the
// latest composite snapshot. Each source ticks independently so a slow
// source never delays another.
type Sampler struct {
	mu       sync.RWMutex
	snapshot MetricsSnapshot

	cpuState *cpuSamplerState

	readyOnce sync.Once
	ready     chan struct{}

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSampler() *Sampler {
	return &Sampler{
		cpuState: newCPUSamplerState(),
		ready:    make(chan struct{}),
	}
}

// Start launches the collector goroutines. Stop or ctx cancellation ends
// them.
func (s *Sampler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	// Prime every source once so the first snapshot is complete.
	s.collectCPU()
	s.collectMemory()
	s.collectDisks()
	s.collectUptime()
	s.readyOnce.Do(func() { close(s.ready) })

	s.runTicker(ctx, cpuPeriod, s.collectCPU)
	s.runTicker(ctx, memoryPeriod, s.collectMemory)
	s.runTicker(ctx, diskPeriod, s.collectDisks)
	s.runTicker(ctx, uptimePeriod, s.collectUptime)
}

// Stop cancels the collectors and waits for them to exit.
func (s *Sampler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Ready blocks until the first full collection pass finished.
func (s *Sampler) Ready() <-chan struct{} { return s.ready }

// Snapshot returns the latest composite snapshot with ages derived from a
// single wall-clock read.
func (s *Sampler) Snapshot() MetricsSnapshot {
	s.mu.RLock()
	snap := s.snapshot
	s.mu.RUnlock()

	now := time.Now()
	snap.Memory = snap.Memory.withAge(now)
	snap.Cpu = snap.Cpu.withAge(now)
	snap.Disks = snap.Disks.withAge(now)
	snap.Uptime = snap.Uptime.withAge(now)
	return snap
}

// MemoryStats returns the freshest memory sample, collecting synchronously
// when the background sample is missing or errored.
func (s *Sampler) MemoryStats() (MemoryStats, error) {
	snap := s.Snapshot()
	if snap.Memory.Value != nil {
		return *snap.Memory.Value, nil
	}
	return collectMemoryStats()
}

func (s *Sampler) runTicker(ctx context.Context, period time.Duration, collect func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				collect()
			}
		}
	}()
}

// collectWithDeadline runs fn with the per-source deadline and envelopes the
// result.
func collectWithDeadline[T any](source string, fn func() (T, error)) Envelope[T] {
	start := time.Now()

	type outcome struct {
		value T
		err   error
	}
	ch := make(chan outcome, 1)
	go func() {
		v, err := fn()
		ch <- outcome{v, err}
	}()

	select {
	case out := <-ch:
		latency := time.Since(start)
		collected := time.Now()
		if out.err != nil {
			logger.Warn().Str("source", source).Err(out.err).Msg("telemetry source failed")
			return Errored[T](out.err, collected, latency)
		}
		return Fresh(out.value, collected, latency)
	case <-time.After(sourceDeadline):
		logger.Warn().Str("source", source).Msg("telemetry source deadline exceeded")
		return Errored[T](fmt.Errorf("%s: collection deadline exceeded", source), time.Now(), sourceDeadline)
	}
}

func (s *Sampler) collectCPU() {
	env := collectWithDeadline("cpu", func() (CpuStats, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.cpuState.collect()
	})
	s.mu.Lock()
	s.snapshot.Cpu = env
	s.mu.Unlock()
}

func (s *Sampler) collectMemory() {
	env := collectWithDeadline("memory", collectMemoryStats)
	s.mu.Lock()
	s.snapshot.Memory = env
	s.mu.Unlock()
}

func (s *Sampler) collectDisks() {
	env := collectWithDeadline("disks", collectDiskStats)
	s.mu.Lock()
	s.snapshot.Disks = env
	s.mu.Unlock()
}

func (s *Sampler) collectUptime() {
	env := collectWithDeadline("uptime", collectUptimeStats)
	s.mu.Lock()
	s.snapshot.Uptime = env
	s.mu.Unlock()
}
