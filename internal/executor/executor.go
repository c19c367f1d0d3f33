package executor

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/xearthlayer/xearthlayer/internal/coord"
)

// Job is the unit of work the filesystem façade and the prefetcher both
// submit: synthesise the artifact for one tile at a given priority.
type Job func(ctx context.Context, pools *Pools, priority Priority) (interface{}, error)

// JobFactory builds the Job for one specific tile. Callers that submit a
// batch of distinct tiles (the prefetcher, a prewarm sweep) use a factory
// rather than a single Job so each submission still synthesises its own
// tile — Job itself carries no tile identity, only Submit's tile argument
// does, and that argument is used for dedup only.
type JobFactory func(tile coord.TileCoord) Job

// Executor coalesces concurrent requests for the same tile into a single
// in-flight pipeline run and gates all pipeline stages behind Pools.
//
// Coalescing uses singleflight keyed by tile coordinate: a second caller
// for a tile already in flight attaches to the first call's result rather
// than starting a duplicate pipeline run, matching the "exactly one build
// in flight per key" invariant. A caller whose own context is cancelled
// returns early without affecting other attached callers or the
// in-flight run itself — only when every attached caller has gone does
// the run's own context (bound to the first caller that scheduled it)
// eventually expire on its own stage timeouts.
type Executor struct {
	pools *Pools
	group singleflight.Group
}

// New returns an Executor wired to the given pools.
func New(pools *Pools) *Executor {
	return &Executor{pools: pools}
}

// Submit runs job for tile, deduplicating concurrent submissions for the
// same tile. Returns early if ctx is cancelled even if the underlying
// job continues running for other callers.
func (e *Executor) Submit(ctx context.Context, tile coord.TileCoord, priority Priority, job Job) (interface{}, error) {
	key := tile.String()
	resultCh := e.group.DoChan(key, func() (interface{}, error) {
		return job(ctx, e.pools, priority)
	})

	select {
	case res := <-resultCh:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Utilization returns (capacity-available)/capacity for the CPU limiter's
// combined pools, a single figure for dashboards/logging.
func (e *Executor) Utilization() float64 {
	total := e.pools.CPU.TotalPermits()
	if total == 0 {
		return 0
	}
	inFlight := e.pools.CPU.HighInFlight() + e.pools.CPU.LowInFlight()
	return float64(inFlight) / float64(total)
}
