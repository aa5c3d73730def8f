// Package metrics is the background telemetry sampler: staged-cadence
// producers of CPU/memory/disk/uptime snapshots with per-sample freshness
// and error state.
package metrics

import "time"

// PressureState is the tri-state memory pressure classification.
type PressureState string

const (
	PressureNormal   PressureState = "normal"
	PressureWarning  PressureState = "warning"
	PressureCritical PressureState = "critical"
)

// PressureStateFor maps a pressure percentage to its state.
func PressureStateFor(pressure float64) PressureState {
	switch {
	case pressure >= 90:
		return PressureCritical
	case pressure >= 75:
		return PressureWarning
	default:
		return PressureNormal
	}
}

// MemoryStats is a point-in-time memory sample. Byte fields unless percent.
type MemoryStats struct {
	Total           uint64        `json:"total"`
	Used            uint64        `json:"used"`
	Available       uint64        `json:"available"`
	Free            uint64        `json:"free"`
	Active          uint64        `json:"active"`
	Inactive        uint64        `json:"inactive"`
	Wired           uint64        `json:"wired"`
	Compressed      uint64        `json:"compressed"`
	SwapTotal       uint64        `json:"swap_total"`
	SwapUsed        uint64        `json:"swap_used"`
	PressurePercent float64       `json:"pressure_percent"`
	PressureState   PressureState `json:"pressure_state"`
}

// CpuStats is a smoothed CPU usage sample.
type CpuStats struct {
	TotalUsage   float64   `json:"total_usage"`
	PerCoreUsage []float64 `json:"per_core_usage"`
	CoreCount    int       `json:"core_count"`
}

// DiskStats describes one mounted volume.
type DiskStats struct {
	Name       string `json:"name"`
	Mount      string `json:"mount"`
	TotalSpace uint64 `json:"total_space"`
	UsedSpace  uint64 `json:"used_space"`
	FreeSpace  uint64 `json:"free_space"`
	FileSystem string `json:"file_system"`
	IsSystem   bool   `json:"is_system"`
}

// UptimeStats reports boot time and derived uptime.
type UptimeStats struct {
	UptimeSeconds   uint64 `json:"uptime_seconds"`
	BootTimeSeconds uint64 `json:"boot_time_seconds"`
}

// MetricsSnapshot is the composite snapshot the GUI polls.
type MetricsSnapshot struct {
	Memory Envelope[MemoryStats] `json:"memory"`
	Cpu    Envelope[CpuStats]    `json:"cpu"`
	Disks  Envelope[[]DiskStats] `json:"disks"`
	Uptime Envelope[UptimeStats] `json:"uptime"`
}

// ProcessInfo is one row of the Processes view.
type ProcessInfo struct {
	PID         int32   `json:"pid"`
	Name        string  `json:"name"`
	CPUUsage    float64 `json:"cpu_usage"`
	MemoryUsage uint64  `json:"memory_usage"`
}

// SystemInfo is the static host description.
type SystemInfo struct {
	OSName    string    `json:"os_name"`
	OSVersion string    `json:"os_version"`
	Hostname  string    `json:"hostname"`
	Uptime    uint64    `json:"uptime"`
	BootTime  time.Time `json:"boot_time"`
}
