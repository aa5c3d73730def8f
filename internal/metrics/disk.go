package metrics

import (
	"strings"

	"github.com/shirou/gopsutil/v3/disk"
)

func collectDiskStats() ([]DiskStats, error) {
	partitions, err := disk.Partitions(false)
	if err != nil {
		return nil, err
	}

	disks := make([]DiskStats, 0, len(partitions))
	for _, part := range partitions {
		usage, err := disk.Usage(part.Mountpoint)
		if err != nil {
			continue
		}
		disks = append(disks, DiskStats{
			Name:       part.Device,
			Mount:      part.Mountpoint,
			TotalSpace: usage.Total,
			UsedSpace:  usage.Used,
			FreeSpace:  usage.Free,
			FileSystem: part.Fstype,
			IsSystem:   isSystemMount(part.Mountpoint),
		})
	}
	return disks, nil
}

func isSystemMount(mount string) bool {
	return mount == "/" || strings.HasPrefix(mount, "/System/Volumes/")
}
