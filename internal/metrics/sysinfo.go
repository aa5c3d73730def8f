package metrics

import (
	"time"

	"github.com/shirou/gopsutil/v3/host"
)

// CollectSystemInfo returns the static host description.
func CollectSystemInfo() (SystemInfo, error) {
	info, err := host.Info()
	if err != nil {
		return SystemInfo{}, err
	}

	boot := info.BootTime
	if fromSysctl, err := bootTimeSysctl(); err == nil {
		boot = fromSysctl
	}

	return SystemInfo{
		OSName:    info.Platform,
		OSVersion: info.PlatformVersion,
		Hostname:  info.Hostname,
		Uptime:    info.Uptime,
		BootTime:  time.Unix(int64(boot), 0),
	}, nil
}
