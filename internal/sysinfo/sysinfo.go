// Package sysinfo detects host resources (RAM, CPU cores) used to size
// the disk-I/O and CPU pools and the default memory-cache budget.
package sysinfo

import "runtime"

// Cores returns the number of logical CPUs available to the process.
func Cores() int {
	return runtime.NumCPU()
}

// DefaultDiskIOPermits returns the conservative disk-I/O pool size:
// min(cores*4, 64), per the executor's resource-scheduling design.
func DefaultDiskIOPermits() int64 {
	n := int64(Cores() * 4)
	if n > 64 {
		return 64
	}
	if n < 1 {
		return 1
	}
	return n
}

// DefaultCPUPermits returns a modest over-subscription of CPU permits
// (1.25x cores rounded up, and never fewer than cores+2) so cores stay busy during brief I/O waits within a stage.
func DefaultCPUPermits() int {
	cores := Cores()
	total := int(float64(cores)*1.25 + 0.999)
	if total < cores+2 {
		total = cores + 2
	}
	return total
}
