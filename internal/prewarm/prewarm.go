// Package prewarm drives the batch "generate every tile for this airport
// now" operation invoked from the CLI or a future GUI: unlike the adaptive
// prefetcher, which trickles Low-priority work in behind live telemetry,
// a prewarm run is an explicit, cancellable, bounded-concurrency sweep
// over a known tile list.
package prewarm

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/xearthlayer/xearthlayer/internal/cache"
	"github.com/xearthlayer/xearthlayer/internal/coord"
	"github.com/xearthlayer/xearthlayer/internal/executor"
)

// MaxConcurrent caps in-flight tile requests during a prewarm run, kept
// below the FUSE-facing executor's own concurrency so on-demand reads
// are never starved by a prewarm sweep.
const MaxConcurrent = 128

// Status is the authoritative snapshot of one prewarm run's progress.
// Coordinator goroutines mutate the fields under Handle's mutex; callers
// only ever see a copied value via Handle.Status.
type Status struct {
	ICAO        string
	Total       int
	Completed   int
	Failed      int
	CacheHits   int
	DiskHits    int
	IsComplete  bool
	WasCanceled bool
}

// InFlight returns the number of tiles submitted but not yet resolved.
func (s Status) InFlight() int {
	done := s.Completed + s.Failed + s.CacheHits + s.DiskHits
	if done > s.Total {
		return 0
	}
	return s.Total - done
}

// ProgressFraction returns progress in [0, 1]. An empty run is always
// complete.
func (s Status) ProgressFraction() float64 {
	if s.Total == 0 {
		return 1
	}
	return float64(s.Completed+s.CacheHits+s.DiskHits) / float64(s.Total)
}

// Handle is a cheap-to-share reference to a running (or finished) prewarm
// operation: a TUI/CLI polls Status and may Cancel cooperatively.
type Handle struct {
	mu     sync.Mutex
	status Status
	cancel context.CancelFunc
}

// Status returns a snapshot of the current progress.
func (h *Handle) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// Cancel requests cancellation. In-flight tile jobs may still complete;
// only tiles not yet submitted are skipped.
func (h *Handle) Cancel() {
	h.cancel()
}

func (h *Handle) update(fn func(*Status)) {
	h.mu.Lock()
	fn(&h.status)
	h.mu.Unlock()
}

// keyFunc builds the cache.Key for a tile under the run's provider and
// format, so callers supply the mapping rather than prewarm depending on
// config/dds types directly.
type keyFunc func(coord.TileCoord) cache.Key

// Start launches a prewarm run over tiles and returns a Handle
// immediately; the run itself proceeds on background goroutines bounded
// by MaxConcurrent. newJob builds the same synthesis entry point the
// FUSE façade uses (pipeline.Run wrapped as an executor.Job) for each
// tile, submitted at executor.Low priority so prewarm never competes
// with live reads.
func Start(ctx context.Context, icao string, tiles []coord.TileCoord, exec *executor.Executor, newKey keyFunc, mem *cache.MemoryCache, diskExists func(coord.TileCoord) bool, newJob executor.JobFactory) *Handle {
	runCtx, cancel := context.WithCancel(ctx)
	h := &Handle{
		status: Status{ICAO: icao, Total: len(tiles)},
		cancel: cancel,
	}

	if len(tiles) == 0 {
		h.update(func(s *Status) { s.IsComplete = true })
		logrus.WithField("icao", icao).Info("prewarm started with no tiles")
		return h
	}

	go h.run(runCtx, tiles, exec, newKey, mem, diskExists, newJob)
	return h
}

func (h *Handle) run(ctx context.Context, tiles []coord.TileCoord, exec *executor.Executor, newKey keyFunc, mem *cache.MemoryCache, diskExists func(coord.TileCoord) bool, newJob executor.JobFactory) {
	toGenerate := make([]coord.TileCoord, 0, len(tiles))
	cacheHits := 0
	for _, tile := range tiles {
		if mem.Has(newKey(tile).String()) {
			cacheHits++
			continue
		}
		toGenerate = append(toGenerate, tile)
	}
	if cacheHits > 0 {
		h.update(func(s *Status) { s.CacheHits = cacheHits })
	}

	beforeDisk := len(toGenerate)
	filtered := toGenerate[:0]
	for _, tile := range toGenerate {
		if diskExists(tile) {
			continue
		}
		filtered = append(filtered, tile)
	}
	toGenerate = filtered
	diskHits := beforeDisk - len(toGenerate)
	if diskHits > 0 {
		h.update(func(s *Status) { s.DiskHits = diskHits })
	}

	logrus.WithFields(logrus.Fields{
		"total":        len(tiles),
		"cache_hits":   cacheHits,
		"disk_hits":    diskHits,
		"to_generate":  len(toGenerate),
	}).Info("prewarm filter complete")

	if len(toGenerate) == 0 {
		h.update(func(s *Status) { s.IsComplete = true })
		return
	}

	if ctx.Err() != nil {
		h.markCanceled(len(toGenerate))
		return
	}

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(MaxConcurrent)

	for _, tile := range toGenerate {
		tile := tile
		group.Go(func() error {
			if gctx.Err() != nil {
				h.update(func(s *Status) { s.WasCanceled = true })
				return gctx.Err()
			}
			if _, err := exec.Submit(gctx, tile, executor.Low, newJob(tile)); err != nil {
				h.update(func(s *Status) { s.Failed++ })
				return nil
			}
			h.update(func(s *Status) { s.Completed++ })
			return nil
		})
	}
	_ = group.Wait()

	if ctx.Err() != nil {
		h.update(func(s *Status) {
			s.WasCanceled = true
			s.IsComplete = true
		})
		return
	}
	h.update(func(s *Status) { s.IsComplete = true })
}

func (h *Handle) markCanceled(remaining int) {
	h.update(func(s *Status) {
		s.Failed += remaining
		s.WasCanceled = true
		s.IsComplete = true
	})
}
