package cache

import (
	"runtime"

	"github.com/sirupsen/logrus"

	"github.com/xearthlayer/xearthlayer/internal/sysinfo"
)

// DefaultMemoryFraction is the fraction of total RAM the memory tier may
// use before the operator must size it down explicitly.
const DefaultMemoryFraction = 0.25

// ComputeMemoryBudget returns the maximum bytes the in-memory tier should
// hold: fraction of total system RAM, less current Go heap usage and a
// fixed headroom for the pipeline's own buffers. Returns 0 if RAM
// detection fails or the computed budget is unreasonably small, in which
// case the caller should fall back to a fixed configured value.
func ComputeMemoryBudget(fraction float64) int64 {
	totalRAM, err := sysinfo.TotalSystemRAM()
	if err != nil {
		logrus.WithError(err).Warn("cache: cannot detect system RAM; falling back to configured budget")
		return 0
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	const headroom = 512 * 1024 * 1024
	overhead := m.Sys + headroom

	budget := int64(float64(totalRAM)*fraction) - int64(overhead)
	const minimum = 64 * 1024 * 1024
	if budget < minimum {
		logrus.WithField("computed_mb", budget/(1024*1024)).Warn("cache: computed memory budget too small; falling back to configured budget")
		return 0
	}
	return budget
}
