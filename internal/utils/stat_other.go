//go:build !darwin

package utils

import (
	"syscall"
	"time"
)

func birthTime(_ *syscall.Stat_t) time.Time {
	return time.Time{}
}

func accessTime(st *syscall.Stat_t) time.Time {
	return time.Unix(st.Atim.Sec, st.Atim.Nsec)
}
