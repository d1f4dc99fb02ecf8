// Package fsutil provides the filesystem and memory capacity checks
// run before allocating a cube that can exceed the machine's RAM.
package fsutil

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// FreeSpace returns the bytes available to an unprivileged writer on
// the filesystem containing path. path need not exist; its deepest
// existing ancestor is consulted.
func FreeSpace(path string) (int64, error) {
	dir := path
	for {
		if _, err := os.Stat(dir); err == nil {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	var st syscall.Statfs_t
	if err := syscall.Statfs(dir, &st); err != nil {
		return 0, err
	}
	return int64(st.Bavail) * int64(st.Bsize), nil
}

// AvailableMemory returns available memory in MB
func AvailableMemory() (int64, error) {
	// Try to read /proc/meminfo for more accurate available memory
	content, err := os.ReadFile("/proc/meminfo")
	if err == nil {
		lines := strings.Split(string(content), "\n")
		for _, line := range lines {
			if strings.HasPrefix(line, "MemAvailable:") {
				fields := strings.Fields(line)
				if len(fields) >= 2 {
					if kb, err := strconv.ParseInt(fields[1], 10, 64); err == nil {
						return kb / 1024, nil // Convert KB to MB
					}
				}
			}
		}
	}

	// Fallback to sysinfo if /proc/meminfo parsing fails
	var info syscall.Sysinfo_t
	if err := syscall.Sysinfo(&info); err != nil {
		return 0, err
	}
	return int64(info.Freeram) * int64(info.Unit) / (1024 * 1024), nil
}
