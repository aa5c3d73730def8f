package metrics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// Critical system processes that must never be killed.
var criticalProcesses = []string{
	"kernel_task",
	"launchd",
	"systemd",
	"init",
	"WindowServer",
	"loginwindow",
	"Finder",
	"Dock",
	"SystemUIServer",
	"coreaudiod",
	"mds",
	"mds_stores",
	"mdworker",
}

// IsCriticalProcess reports whether name matches a protected system process.
func IsCriticalProcess(name string) bool {
	for _, critical := range criticalProcesses {
		if strings.Contains(name, critical) {
			return true
		}
	}
	return false
}

// Processes enumerates running processes sorted by memory usage descending.
func Processes() ([]ProcessInfo, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, fmt.Errorf("enumerate processes: %w", err)
	}

	infos := make([]ProcessInfo, 0, len(procs))
	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			continue
		}
		var rss uint64
		if memInfo, err := p.MemoryInfo(); err == nil && memInfo != nil {
			rss = memInfo.RSS
		}
		cpuPct, _ := p.CPUPercent()
		infos = append(infos, ProcessInfo{
			PID:         p.Pid,
			Name:        name,
			CPUUsage:    cpuPct,
			MemoryUsage: rss,
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].MemoryUsage > infos[j].MemoryUsage
	})
	return infos, nil
}

// KillProcess terminates the process with the given pid. Critical system
// processes are refused.
func KillProcess(pid int32) error {
	p, err := process.NewProcess(pid)
	if err != nil {
		return fmt.Errorf("process %d: %w", pid, err)
	}
	name, err := p.Name()
	if err == nil && IsCriticalProcess(name) {
		return fmt.Errorf("refusing to kill critical system process %q", name)
	}
	if err := p.Terminate(); err != nil {
		return p.Kill()
	}
	return nil
}
