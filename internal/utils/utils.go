// Package utils provides filesystem helpers shared by the cleaner and the
// memory optimizer.
package utils

import (
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// UserHomeDir resolves the user's home directory. It is a variable to allow
// redirecting in tests.
var UserHomeDir = os.UserHomeDir

// ExpandPath expands a leading ~/ to the user's home directory.
func ExpandPath(path string) string {
	if path == "~" {
		if home, err := UserHomeDir(); err == nil {
			return home
		}
		return path
	}
	if strings.HasPrefix(path, "~/") {
		home, err := UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// PathExists reports whether the (possibly ~-prefixed) path exists.
func PathExists(path string) bool {
	_, err := os.Stat(ExpandPath(path))
	return err == nil
}

// WithinHome reports whether path sits inside the user's home directory.
func WithinHome(path string) bool {
	home, err := UserHomeDir()
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(home, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// TrashDir returns the user's Trash directory.
func TrashDir() string {
	return ExpandPath("~/.Trash")
}

// GetDirSizeWithCount walks path iteratively and returns total byte size and
// file count. Unreadable entries are skipped.
func GetDirSizeWithCount(path string) (int64, int64, error) {
	var size, count int64
	stack := []string{path}
	for len(stack) > 0 {
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			full := filepath.Join(dir, entry.Name())
			if entry.IsDir() {
				stack = append(stack, full)
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			size += info.Size()
			count++
		}
	}
	return size, count, nil
}

// GetFileSize returns the size of a file, or the recursive size of a
// directory.
func GetFileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		size, _, err := GetDirSizeWithCount(path)
		return size, err
	}
	return info.Size(), nil
}

// CreationTime returns the birth time of path where the platform records one,
// falling back to the modification time.
func CreationTime(info os.FileInfo) time.Time {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		if t := birthTime(st); !t.IsZero() {
			return t
		}
	}
	return info.ModTime()
}

// AccessTime returns the last access time recorded for the entry, falling
// back to the modification time.
func AccessTime(info os.FileInfo) time.Time {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		if t := accessTime(st); !t.IsZero() {
			return t
		}
	}
	return info.ModTime()
}
