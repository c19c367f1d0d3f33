package prewarm

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xearthlayer/xearthlayer/internal/cache"
	"github.com/xearthlayer/xearthlayer/internal/coord"
	"github.com/xearthlayer/xearthlayer/internal/dds"
	"github.com/xearthlayer/xearthlayer/internal/executor"
)

func testKeyFunc(tile coord.TileCoord) cache.Key {
	return cache.Key{ProviderID: "test", Format: dds.BC1, Tile: tile}
}

func waitComplete(t *testing.T, h *Handle) Status {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s := h.Status()
		if s.IsComplete {
			return s
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("prewarm run did not complete in time")
	return Status{}
}

func TestStartWithNoTilesCompletesImmediately(t *testing.T) {
	pools := executor.NewPools(4)
	exec := executor.New(pools)
	mem := cache.NewMemoryCache(1 << 20)

	h := Start(context.Background(), "KSFO", nil, exec, testKeyFunc, mem, func(coord.TileCoord) bool { return false }, nil)
	s := h.Status()
	assert.True(t, s.IsComplete)
	assert.Equal(t, 0, s.Total)
	assert.Equal(t, 1.0, s.ProgressFraction())
}

func TestStartFiltersMemoryCacheHits(t *testing.T) {
	pools := executor.NewPools(4)
	exec := executor.New(pools)
	mem := cache.NewMemoryCache(1 << 20)

	tile := coord.TileCoord{Row: 10, Col: 10, Zoom: 14}
	mem.Put(testKeyFunc(tile).String(), []byte("cached"))

	var jobRuns atomic.Int64
	job := func(ctx context.Context, pools *executor.Pools, priority executor.Priority) (interface{}, error) {
		jobRuns.Add(1)
		return nil, nil
	}

	h := Start(context.Background(), "KSFO", []coord.TileCoord{tile}, exec, testKeyFunc, mem, func(coord.TileCoord) bool { return false }, job)
	s := waitComplete(t, h)

	assert.Equal(t, 1, s.CacheHits)
	assert.Equal(t, 0, s.Completed)
	assert.EqualValues(t, 0, jobRuns.Load())
}

func TestStartFiltersDiskHits(t *testing.T) {
	pools := executor.NewPools(4)
	exec := executor.New(pools)
	mem := cache.NewMemoryCache(1 << 20)

	tile := coord.TileCoord{Row: 11, Col: 11, Zoom: 14}
	h := Start(context.Background(), "KSFO", []coord.TileCoord{tile}, exec, testKeyFunc, mem, func(coord.TileCoord) bool { return true }, nil)
	s := waitComplete(t, h)

	assert.Equal(t, 1, s.DiskHits)
	assert.Equal(t, 0, s.Completed)
}

func TestStartSubmitsUncachedTiles(t *testing.T) {
	pools := executor.NewPools(4)
	exec := executor.New(pools)
	mem := cache.NewMemoryCache(1 << 20)

	tiles := []coord.TileCoord{
		{Row: 1, Col: 1, Zoom: 14},
		{Row: 2, Col: 2, Zoom: 14},
		{Row: 3, Col: 3, Zoom: 14},
	}

	var jobRuns atomic.Int64
	job := func(ctx context.Context, pools *executor.Pools, priority executor.Priority) (interface{}, error) {
		jobRuns.Add(1)
		return "artifact", nil
	}

	h := Start(context.Background(), "KSFO", tiles, exec, testKeyFunc, mem, func(coord.TileCoord) bool { return false }, job)
	s := waitComplete(t, h)

	assert.Equal(t, 3, s.Completed)
	assert.EqualValues(t, 3, jobRuns.Load())
	assert.Equal(t, 1.0, s.ProgressFraction())
}

func TestStartCountsJobFailures(t *testing.T) {
	pools := executor.NewPools(4)
	exec := executor.New(pools)
	mem := cache.NewMemoryCache(1 << 20)

	tile := coord.TileCoord{Row: 20, Col: 20, Zoom: 14}
	job := func(ctx context.Context, pools *executor.Pools, priority executor.Priority) (interface{}, error) {
		return nil, context.Canceled
	}

	h := Start(context.Background(), "KSFO", []coord.TileCoord{tile}, exec, testKeyFunc, mem, func(coord.TileCoord) bool { return false }, job)
	s := waitComplete(t, h)

	assert.Equal(t, 1, s.Failed)
}

func TestCancelStopsBeforeAllTilesRun(t *testing.T) {
	pools := executor.NewPools(4)
	exec := executor.New(pools)
	mem := cache.NewMemoryCache(1 << 20)

	tiles := make([]coord.TileCoord, 50)
	for i := range tiles {
		tiles[i] = coord.TileCoord{Row: uint32(i + 1), Col: uint32(i + 1), Zoom: 14}
	}

	block := make(chan struct{})
	job := func(ctx context.Context, pools *executor.Pools, priority executor.Priority) (interface{}, error) {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil, ctx.Err()
	}

	h := Start(context.Background(), "KSFO", tiles, exec, testKeyFunc, mem, func(coord.TileCoord) bool { return false }, job)
	time.Sleep(20 * time.Millisecond)
	h.Cancel()
	close(block)

	s := waitComplete(t, h)
	assert.True(t, s.WasCanceled)
	require.LessOrEqual(t, s.Completed, 50)
}
