// Package executor schedules CPU-, network-, and disk-bound pipeline work
// across bounded resource pools, coalescing duplicate in-flight requests
// for the same tile.
package executor

import (
	"context"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/xearthlayer/xearthlayer/internal/sysinfo"
)

// Priority selects which CPU pool a caller may draw from first.
type Priority int

const (
	// High is for on-demand work the filesystem façade is blocked on.
	High Priority = iota
	// Low is for background prefetch work.
	Low
)

const (
	// DefaultPriorityReservePercent is the share of CPU permits reserved
	// exclusively for on-demand work.
	DefaultPriorityReservePercent = 40
	// DefaultPrefetchReservePercent is the share reserved exclusively for
	// prefetch work.
	DefaultPrefetchReservePercent = 20

	minPriorityReserve = 2
	minPrefetchReserve = 2
)

// CPUPermit is held for the duration of one CPU-bound pipeline stage.
// Release must be called exactly once.
type CPUPermit struct {
	pool     *semaphore.Weighted
	inFlight *atomic.Int64
}

// Release returns the permit to its pool.
func (p *CPUPermit) Release() {
	p.pool.Release(1)
	p.inFlight.Add(-1)
}

// CPULimiter is a tri-pool priority scheduler for CPU-bound pipeline
// stages (decode, encode): a priority reserve only High work may draw
// from, a prefetch reserve only Low work may draw from, and a shared pool
// either may draw from. High priority never starves (it always has its
// reserve plus the shared pool); Low priority never starves forever (it
// has its own reserve).
type CPULimiter struct {
	label string

	priority *semaphore.Weighted
	shared   *semaphore.Weighted
	prefetch *semaphore.Weighted

	priorityPermits int64
	sharedPermits   int64
	prefetchPermits int64

	highInFlight atomic.Int64
	lowInFlight  atomic.Int64
}

// NewCPULimiter builds a limiter with totalPermits split across the three
// pools by the given percentages; the remainder goes to the shared pool.
// Reserve pools are never smaller than their respective minimums, and if
// the two reserves alone would consume the whole budget they're scaled
// down proportionally so the shared pool always keeps at least 1 permit.
func NewCPULimiter(totalPermits int64, priorityReservePercent, prefetchReservePercent int, label string) *CPULimiter {
	if totalPermits < 1 {
		totalPermits = 1
	}

	priorityPermits := maxInt64(totalPermits*int64(priorityReservePercent)/100, minPriorityReserve)
	prefetchPermits := maxInt64(totalPermits*int64(prefetchReservePercent)/100, minPrefetchReserve)

	reserved := priorityPermits + prefetchPermits
	var sharedPermits int64
	if reserved >= totalPermits {
		scale := float64(totalPermits-1) / float64(reserved)
		priorityPermits = maxInt64(int64(float64(priorityPermits)*scale), 1)
		prefetchPermits = maxInt64(int64(float64(prefetchPermits)*scale), 1)
		sharedPermits = maxInt64(totalPermits-priorityPermits-prefetchPermits, 1)
	} else {
		sharedPermits = totalPermits - reserved
	}

	logrus.WithFields(logrus.Fields{
		"label": label, "total": totalPermits,
		"priority": priorityPermits, "shared": sharedPermits, "prefetch": prefetchPermits,
	}).Info("executor: created CPU limiter")

	return &CPULimiter{
		label:           label,
		priority:        semaphore.NewWeighted(priorityPermits),
		shared:          semaphore.NewWeighted(sharedPermits),
		prefetch:        semaphore.NewWeighted(prefetchPermits),
		priorityPermits: priorityPermits,
		sharedPermits:   sharedPermits,
		prefetchPermits: prefetchPermits,
	}
}

// NewDefaultCPULimiter sizes a limiter from sysinfo.DefaultCPUPermits with
// the standard 40/40/20 split.
func NewDefaultCPULimiter(label string) *CPULimiter {
	return NewCPULimiter(int64(sysinfo.DefaultCPUPermits()), DefaultPriorityReservePercent, DefaultPrefetchReservePercent, label)
}

// Acquire blocks until a permit is available for priority, following the
// try-reserve -> try-shared -> wait-on-reserve order described on
// CPULimiter. ctx cancellation only takes effect during the final wait.
func (l *CPULimiter) Acquire(ctx context.Context, priority Priority) (*CPUPermit, error) {
	if priority == High {
		return l.acquireFor(ctx, l.priority, &l.highInFlight)
	}
	return l.acquireFor(ctx, l.prefetch, &l.lowInFlight)
}

func (l *CPULimiter) acquireFor(ctx context.Context, reserve *semaphore.Weighted, inFlight *atomic.Int64) (*CPUPermit, error) {
	if reserve.TryAcquire(1) {
		inFlight.Add(1)
		return &CPUPermit{pool: reserve, inFlight: inFlight}, nil
	}
	if l.shared.TryAcquire(1) {
		inFlight.Add(1)
		return &CPUPermit{pool: l.shared, inFlight: inFlight}, nil
	}
	if err := reserve.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	inFlight.Add(1)
	return &CPUPermit{pool: reserve, inFlight: inFlight}, nil
}

// TotalPermits returns the sum of all three pools.
func (l *CPULimiter) TotalPermits() int64 {
	return l.priorityPermits + l.sharedPermits + l.prefetchPermits
}

// HighInFlight returns the number of high-priority CPU operations currently running.
func (l *CPULimiter) HighInFlight() int64 { return l.highInFlight.Load() }

// LowInFlight returns the number of low-priority CPU operations currently running.
func (l *CPULimiter) LowInFlight() int64 { return l.lowInFlight.Load() }

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
