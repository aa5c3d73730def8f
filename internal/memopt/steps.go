package memopt

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/LuciferMornens/macos-optimizer-beta/internal/utils"
)

const stepTimeout = 30 * time.Second

// runCommand executes a short maintenance command. Swapped in tests.
var runCommand = func(name string, args ...string) error {
	ctx, cancel := context.WithTimeout(context.Background(), stepTimeout)
	defer cancel()
	return exec.CommandContext(ctx, name, args...).Run()
}

// removePath deletes a cache path best-effort. Swapped in tests.
var removePath = func(path string) error {
	return runCommand("rm", "-rf", utils.ExpandPath(path))
}

// syncFileSystem flushes dirty pages so clean caches can drop.
func syncFileSystem() error {
	if err := runCommand("sync"); err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	return nil
}

// optimizeFileCaches runs two sync passes so the kernel can drop clean file
// caches; it removes no cache files itself.
func optimizeFileCaches() error {
	if err := syncFileSystem(); err != nil {
		return err
	}
	return syncFileSystem()
}

// appCachePaths are browser and tool caches that rebuild on demand.
var appCachePaths = []string{
	"~/Library/Caches/com.apple.Safari/Cache.db",
	"~/Library/Caches/Google/Chrome/Default/Cache",
	"~/Library/Caches/com.apple.dt.Xcode/Cache",
}

// clearAppCaches removes well-known per-app caches, returning how many were
// cleared.
func clearAppCaches() (int, error) {
	cleared := 0
	for _, path := range appCachePaths {
		if err := removePath(path); err == nil {
			cleared++
		}
	}
	if cleared == 0 {
		return 0, fmt.Errorf("no app caches cleared")
	}
	return cleared, nil
}

// networkCachePaths hold resolvable network state.
var networkCachePaths = []string{
	"~/Library/Caches/com.apple.networkserviceproxy",
	"~/Library/Caches/com.apple.cfnetwork",
}

// clearNetworkCaches removes network-layer caches.
func clearNetworkCaches() error {
	for _, path := range networkCachePaths {
		_ = removePath(path)
	}
	return nil
}

// gcTargetApps receive a continue signal as a GC nudge.
var gcTargetApps = []string{"Safari", "Chrome", "Firefox", "Mail", "Xcode"}

// triggerAppGC nudges common apps to revisit their memory, returning how
// many were signaled.
func triggerAppGC() (int, error) {
	triggered := 0
	for _, app := range gcTargetApps {
		if err := runCommand("killall", "-CONT", app); err == nil {
			triggered++
		}
	}
	return triggered, nil
}

// clearTempAllocations cycles a few small allocations through the pool to
// encourage the allocator to return pages.
func (o *Optimizer) clearTempAllocations() {
	const tempChunk = 10 * 1024 * 1024
	for i := 0; i < 5; i++ {
		chunk := o.pool.Get(tempChunk)
		for j := 0; j < len(chunk); j += 4096 {
			chunk[j] = 1
		}
		time.Sleep(50 * time.Millisecond)
		o.pool.Put(chunk)
	}
}

// compressionHint creates short-lived pressure so the compressor kicks in.
func (o *Optimizer) compressionHint() {
	const hintSize = 20 * 1024 * 1024
	chunk := o.pool.Get(hintSize)
	for i := 0; i < len(chunk); i += 4096 {
		chunk[i] = 1
	}
	time.Sleep(100 * time.Millisecond)
	o.pool.Put(chunk)
}

// optimizeSwap reports on swap usage.
func (o *Optimizer) optimizeSwap() string {
	stats, err := o.stats.MemoryStats()
	if err != nil {
		return ""
	}
	if stats.SwapUsed == 0 {
		return "no swap in use"
	}
	return fmt.Sprintf("swap in use: %d MB", stats.SwapUsed/(1024*1024))
}
