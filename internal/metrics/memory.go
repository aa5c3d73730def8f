package metrics

import (
	"bufio"
	"bytes"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/mem"
)

// collectMemoryStats reads host memory via the sysinfo facade, with a
// vm_stat fallback when that fails. host_statistics64 backs the facade on
// macOS.
func collectMemoryStats() (MemoryStats, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return memoryStatsFromVMStat()
	}

	stats := MemoryStats{
		Total:     vm.Total,
		Used:      vm.Used,
		Available: vm.Available,
		Free:      vm.Free,
		Active:    vm.Active,
		Inactive:  vm.Inactive,
		Wired:     vm.Wired,
	}

	if swap, err := mem.SwapMemory(); err == nil {
		stats.SwapTotal = swap.Total
		stats.SwapUsed = swap.Used
	}

	// The facade does not expose the compressor; fill it in from vm_stat
	// when available.
	if fromVM, err := memoryStatsFromVMStat(); err == nil {
		stats.Compressed = fromVM.Compressed
	}

	stats.PressurePercent = pressurePercent(stats)
	stats.PressureState = PressureStateFor(stats.PressurePercent)
	return stats, nil
}

func pressurePercent(s MemoryStats) float64 {
	if s.Total == 0 {
		return 0
	}
	p := float64(s.Total-s.Available) / float64(s.Total) * 100
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	return p
}

// vmStatRunner is swapped in tests.
var vmStatRunner = func() ([]byte, error) {
	return exec.Command("vm_stat").Output()
}

// memoryStatsFromVMStat parses `vm_stat` output into MemoryStats. Page
// counts convert via the page size announced in the header.
func memoryStatsFromVMStat() (MemoryStats, error) {
	out, err := vmStatRunner()
	if err != nil {
		return MemoryStats{}, fmt.Errorf("vm_stat: %w", err)
	}
	return parseVMStat(out)
}

func parseVMStat(out []byte) (MemoryStats, error) {
	pageSize := uint64(4096)
	pages := make(map[string]uint64)

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(line, "page size of") {
			fields := strings.Fields(line)
			for i, f := range fields {
				if f == "of" && i+1 < len(fields) {
					if n, err := strconv.ParseUint(fields[i+1], 10, 64); err == nil {
						pageSize = n
					}
				}
			}
			continue
		}
		idx := strings.LastIndex(line, ":")
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		val := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(line[idx+1:]), "."))
		n, err := strconv.ParseUint(val, 10, 64)
		if err != nil {
			continue
		}
		pages[key] = n
	}

	if len(pages) == 0 {
		return MemoryStats{}, fmt.Errorf("vm_stat: no parsable counters")
	}

	free := pages["Pages free"] * pageSize
	active := pages["Pages active"] * pageSize
	inactive := pages["Pages inactive"] * pageSize
	wired := pages["Pages wired down"] * pageSize
	compressed := pages["Pages occupied by compressor"] * pageSize
	speculative := pages["Pages speculative"] * pageSize

	total := free + active + inactive + wired + compressed + speculative
	available := free + inactive
	used := total - available

	stats := MemoryStats{
		Total:      total,
		Used:       used,
		Available:  available,
		Free:       free,
		Active:     active,
		Inactive:   inactive,
		Wired:      wired,
		Compressed: compressed,
	}
	stats.PressurePercent = pressurePercent(stats)
	stats.PressureState = PressureStateFor(stats.PressurePercent)
	return stats, nil
}
