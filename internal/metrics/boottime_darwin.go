//go:build darwin

package metrics

import "golang.org/x/sys/unix"

// bootTimeSysctl reads kern.boottime directly from the kernel.
func bootTimeSysctl() (uint64, error) {
	tv, err := unix.SysctlTimeval("kern.boottime")
	if err != nil {
		return 0, err
	}
	return uint64(tv.Sec), nil
}
