//go:build !darwin

package metrics

import "errors"

func bootTimeSysctl() (uint64, error) {
	return 0, errors.New("kern.boottime unavailable on this platform")
}
