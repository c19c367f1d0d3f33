//go:build linux

package sysinfo

import "syscall"

// TotalSystemRAM returns the total physical RAM in bytes on Linux.
func TotalSystemRAM() (uint64, error) {
	var info syscall.Sysinfo_t
	if err := syscall.Sysinfo(&info); err != nil {
		return 0, err
	}
	unit := uint64(info.Unit)
	if unit == 0 {
		unit = 1 // pre-2.3.23 kernels report sizes directly in bytes
	}
	return info.Totalram * unit, nil
}
