//go:build darwin

package utils

import (
	"syscall"
	"time"
)

func birthTime(st *syscall.Stat_t) time.Time {
	return time.Unix(st.Birthtimespec.Sec, st.Birthtimespec.Nsec)
}

func accessTime(st *syscall.Stat_t) time.Time {
	return time.Unix(st.Atimespec.Sec, st.Atimespec.Nsec)
}
