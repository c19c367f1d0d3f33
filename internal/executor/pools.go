package executor

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/xearthlayer/xearthlayer/internal/sysinfo"
)

// Pools bundles the three resource pools pipeline stages acquire permits
// from: network (concurrent chunk fetches), diskIO (concurrent disk
// reads/writes), and cpu (the tri-pool CPULimiter for decode/encode).
type Pools struct {
	Network *semaphore.Weighted
	DiskIO  *semaphore.Weighted
	CPU     *CPULimiter

	networkTotal int64
	diskIOTotal  int64
	networkUsed  atomic.Int64
	diskIOUsed   atomic.Int64
}

// NewPools builds the default pool set: network sized from config,
// diskIO conservatively capped at sysinfo.DefaultDiskIOPermits, cpu from
// NewDefaultCPULimiter.
func NewPools(networkPermits int64) *Pools {
	if networkPermits < 1 {
		networkPermits = 8
	}
	diskIOPermits := sysinfo.DefaultDiskIOPermits()
	return &Pools{
		Network:      semaphore.NewWeighted(networkPermits),
		DiskIO:       semaphore.NewWeighted(diskIOPermits),
		CPU:          NewDefaultCPULimiter("pipeline-cpu"),
		networkTotal: networkPermits,
		diskIOTotal:  diskIOPermits,
	}
}

// AcquireNetwork blocks until a network permit is available.
func (p *Pools) AcquireNetwork(ctx context.Context) error {
	if err := p.Network.Acquire(ctx, 1); err != nil {
		return err
	}
	p.networkUsed.Add(1)
	return nil
}

// ReleaseNetwork returns a network permit.
func (p *Pools) ReleaseNetwork() {
	p.Network.Release(1)
	p.networkUsed.Add(-1)
}

// AcquireDiskIO blocks until a disk-I/O permit is available.
func (p *Pools) AcquireDiskIO(ctx context.Context) error {
	if err := p.DiskIO.Acquire(ctx, 1); err != nil {
		return err
	}
	p.diskIOUsed.Add(1)
	return nil
}

// ReleaseDiskIO returns a disk-I/O permit.
func (p *Pools) ReleaseDiskIO() {
	p.DiskIO.Release(1)
	p.diskIOUsed.Add(-1)
}

// MaxUtilization returns the highest in-use/total fraction across the
// network, disk-I/O, and CPU pools, for the prefetch circuit breaker's
// saturation check.
func (p *Pools) MaxUtilization() float64 {
	max := ratio(p.networkUsed.Load(), p.networkTotal)
	if r := ratio(p.diskIOUsed.Load(), p.diskIOTotal); r > max {
		max = r
	}
	if total := p.CPU.TotalPermits(); total > 0 {
		inFlight := p.CPU.HighInFlight() + p.CPU.LowInFlight()
		if r := ratio(inFlight, total); r > max {
			max = r
		}
	}
	return max
}

func ratio(used, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(used) / float64(total)
}
