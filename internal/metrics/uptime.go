package metrics

import (
	"time"

	"github.com/shirou/gopsutil/v3/host"
)

func collectUptimeStats() (UptimeStats, error) {
	boot, err := bootTimeSysctl()
	if err != nil {
		// Fall back to the sysinfo facade.
		boot, err = host.BootTime()
		if err != nil {
			return UptimeStats{}, err
		}
	}

	now := uint64(time.Now().Unix())
	var uptime uint64
	if now > boot {
		uptime = now - boot
	}
	return UptimeStats{
		UptimeSeconds:   uptime,
		BootTimeSeconds: boot,
	}, nil
}
