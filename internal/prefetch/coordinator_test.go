package prefetch

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/xearthlayer/xearthlayer/internal/coord"
	"github.com/xearthlayer/xearthlayer/internal/executor"
)

func TestCoordinatorDisabledProducesEmptyPlan(t *testing.T) {
	cfg := DefaultCoordinatorConfig()
	cfg.Enabled = false
	c := NewCoordinator(cfg, executor.NewPools(4))

	plan := c.Update(time.Now(), 47.0, 8.0, 0, 120)
	assert.True(t, plan.IsEmpty())
}

func TestCoordinatorGroundPhaseUsesGroundStrategy(t *testing.T) {
	cfg := DefaultCoordinatorConfig()
	cfg.MinCycleInterval = 0
	c := NewCoordinator(cfg, executor.NewPools(4))
	c.SetCalibration(PerformanceCalibration{BaselineTilesPerSec: 20, Mode: Opportunistic})

	plan := c.Update(time.Now(), 47.0, 8.0, 0, 5) // taxi speed
	assert.Equal(t, "ground", plan.Strategy)
	assert.NotEmpty(t, plan.Tiles)
}

func TestCoordinatorCruiseRequiresStableTrack(t *testing.T) {
	cfg := DefaultCoordinatorConfig()
	cfg.MinCycleInterval = 0
	c := NewCoordinator(cfg, executor.NewPools(4))
	c.SetCalibration(PerformanceCalibration{BaselineTilesPerSec: 20, Mode: Opportunistic})

	now := time.Now()
	// Push phase into Cruise and feed a track that hasn't stabilized yet.
	c.phase.Update(200, now)
	c.phase.Update(200, now.Add(PhaseHysteresis+time.Millisecond))

	plan := c.Update(now.Add(PhaseHysteresis+2*time.Millisecond), 47.0, 8.0, 90, 200)
	assert.True(t, plan.IsEmpty(), "cruise plan must be empty until track is stable")
}

func TestCoordinatorRespectsMinCycleInterval(t *testing.T) {
	cfg := DefaultCoordinatorConfig()
	cfg.MinCycleInterval = time.Minute
	c := NewCoordinator(cfg, executor.NewPools(4))
	c.SetCalibration(PerformanceCalibration{BaselineTilesPerSec: 20, Mode: Opportunistic})

	now := time.Now()
	first := c.Update(now, 47.0, 8.0, 0, 5)
	assert.NotEmpty(t, first.Tiles)

	second := c.Update(now.Add(time.Second), 47.0, 8.0, 0, 5)
	assert.True(t, second.IsEmpty(), "second cycle inside min interval must be empty")
}

func TestCoordinatorExecuteSubmitsEveryTile(t *testing.T) {
	pools := executor.NewPools(4)
	c := NewCoordinator(DefaultCoordinatorConfig(), pools)
	exec := executor.New(pools)

	plan := Plan{
		Strategy: "ground",
		Tiles: []coord.TileCoord{
			{Row: 100, Col: 200, Zoom: 14},
			{Row: 101, Col: 200, Zoom: 14},
		},
	}

	var jobRuns atomic.Int64
	newJob := func(tile coord.TileCoord) executor.Job {
		return func(ctx context.Context, pools *executor.Pools, priority executor.Priority) (interface{}, error) {
			jobRuns.Add(1)
			return nil, nil
		}
	}

	submitted := c.Execute(context.Background(), exec, plan, newJob)
	assert.Equal(t, 2, submitted)
	assert.EqualValues(t, 2, jobRuns.Load())
}
