package prefetch

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/xearthlayer/xearthlayer/internal/coord"
	"github.com/xearthlayer/xearthlayer/internal/executor"
)

// MinCycleInterval is the shortest time between two prefetch cycles,
// regardless of how often telemetry updates arrive.
const MinCycleInterval = 2 * time.Second

// Status summarizes the coordinator's current state for logging and any
// future UI/dashboard reporting.
type Status struct {
	Enabled           bool
	Mode              StrategyMode
	Phase             Phase
	TurnState         TurnState
	StableTrack       float64
	HasStableTrack    bool
	Throttled         bool
	ActiveStrategy    string
	LastPrefetchCount int
}

// CoordinatorConfig tunes the adaptive prefetcher end to end.
type CoordinatorConfig struct {
	Enabled           bool
	MaxTilesPerCycle  int
	GroundLeadTiles   int
	CruiseLeadTiles   int
	CruiseBandWidth   int
	MinCycleInterval  time.Duration
	Breaker           BreakerConfig
}

// DefaultCoordinatorConfig returns production tunables grounded in
// spec section 4.8: lead distance of 2 DSF tiles, band width of 1 tile
// either side, 50 tiles per cycle.
func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		Enabled:          true,
		MaxTilesPerCycle: 50,
		GroundLeadTiles:  1,
		CruiseLeadTiles:  2,
		CruiseBandWidth:  1,
		MinCycleInterval: MinCycleInterval,
		Breaker:          DefaultBreakerConfig(),
	}
}

// Coordinator is the top-level adaptive prefetcher: it watches aircraft
// telemetry, classifies flight phase and track stability, picks the
// matching strategy (ground ring or cruise band), and submits the
// resulting tiles to the executor at Low priority so on-demand FUSE reads
// are never starved.
type Coordinator struct {
	config CoordinatorConfig

	phase  *PhaseDetector
	turn   *TurnDetector
	ground *GroundStrategy
	cruise *CruiseStrategy

	calibration   PerformanceCalibration
	hasCalibrated bool
	sampler       *Sampler
	rolling       *RollingRecalibrator
	breaker       *Breaker

	cachedTiles map[coord.TileCoord]struct{}

	lastCycle    time.Time
	hasLastCycle bool

	status Status
}

// NewCoordinator wires a Coordinator to pools (for the circuit breaker)
// using config.
func NewCoordinator(config CoordinatorConfig, pools *executor.Pools) *Coordinator {
	return &Coordinator{
		config:      config,
		phase:       NewPhaseDetector(),
		turn:        NewTurnDetector(),
		ground:      NewGroundStrategy(config.MaxTilesPerCycle),
		cruise:      NewCruiseStrategy(config.CruiseLeadTiles, config.CruiseBandWidth, config.MaxTilesPerCycle),
		rolling:     NewRollingRecalibrator(),
		breaker:     NewBreaker(config.Breaker, pools),
		cachedTiles: make(map[coord.TileCoord]struct{}),
	}
}

// SetTurnDetector overrides the coordinator's turn detector, e.g. with one
// built from config-supplied thresholds via TurnDetectorFromToml.
func (c *Coordinator) SetTurnDetector(turn *TurnDetector) {
	c.turn = turn
}

// SetCalibration installs a baseline performance calibration, such as one
// produced by Sampler.Finish. Until it is called the coordinator runs in
// Opportunistic mode and the rolling recalibrator is not consulted.
func (c *Coordinator) SetCalibration(cal PerformanceCalibration) {
	c.calibration = cal
	c.hasCalibrated = true
}

// RecordCompletion notes one tile-prefetch completion at time now, feeding
// the rolling recalibrator.
func (c *Coordinator) RecordCompletion(now time.Time) {
	c.rolling.RecordSample(now)
	if c.hasCalibrated {
		if mode, changed := c.rolling.CheckRecalibration(c.calibration, now); changed {
			logrus.WithFields(logrus.Fields{"mode": mode.String()}).Info("prefetch recalibrated")
			c.calibration.Mode = mode
		}
	}
}

// MarkCached records tiles already present in cache so future plans skip
// them.
func (c *Coordinator) MarkCached(tiles ...coord.TileCoord) {
	for _, t := range tiles {
		c.cachedTiles[t] = struct{}{}
	}
}

// ClearCacheTracking forgets all previously marked-cached tiles.
func (c *Coordinator) ClearCacheTracking() {
	c.cachedTiles = make(map[coord.TileCoord]struct{})
}

// effectiveMode resolves the strategy mode from calibration, defaulting to
// Opportunistic before any calibration has completed.
func (c *Coordinator) effectiveMode() StrategyMode {
	if !c.hasCalibrated {
		return Opportunistic
	}
	return c.rolling.CurrentMode(c.calibration)
}

// Update feeds one telemetry sample and returns the plan to execute this
// cycle, or an empty plan if prefetching is not currently appropriate
// (disabled, mode Disabled, min-cycle-interval not elapsed, circuit
// breaker open, or cruise track not yet stable).
func (c *Coordinator) Update(now time.Time, lat, lon, track, groundSpeedKt float64) Plan {
	if !c.config.Enabled {
		c.status.Enabled = false
		return EmptyPlan("disabled")
	}
	c.status.Enabled = true

	mode := c.effectiveMode()
	c.status.Mode = mode
	if mode == Disabled {
		return EmptyPlan("disabled")
	}

	if c.hasLastCycle && now.Sub(c.lastCycle) < c.config.MinCycleInterval {
		return EmptyPlan("cycle-too-soon")
	}

	phase := c.phase.Update(groundSpeedKt, now)
	c.status.Phase = phase

	c.turn.Update(track, now)
	c.status.TurnState = c.turn.State()
	if track, ok := c.turn.StableTrack(); ok {
		c.status.StableTrack = track
		c.status.HasStableTrack = true
	} else {
		c.status.HasStableTrack = false
	}

	if c.breaker.ShouldThrottle(now) {
		c.status.Throttled = true
		return EmptyPlan("throttled")
	}
	c.status.Throttled = false

	cached := c.cachedSlice()

	var tiles []coord.TileCoord
	var strategy string
	switch phase {
	case Ground:
		strategy = "ground"
		tiles = c.ground.Plan(lat, lon, cached)
	case Cruise:
		if !c.turn.IsStable() {
			logrus.WithField("turn_state", c.turn.State().String()).Debug("skipping cruise prefetch, track not stable")
			return EmptyPlan("turning")
		}
		strategy = "cruise"
		tiles = c.cruise.Plan(lat, lon, track, cached)
	}

	c.status.ActiveStrategy = strategy
	c.lastCycle = now
	c.hasLastCycle = true

	if len(tiles) == 0 {
		c.status.LastPrefetchCount = 0
		return EmptyPlan(strategy)
	}

	plan := Plan{
		Tiles:               tiles,
		EstimatedCompletion: c.calibration.EstimateBatchTime(len(tiles)),
		Strategy:            strategy,
	}
	c.status.LastPrefetchCount = len(tiles)
	return plan
}

func (c *Coordinator) cachedSlice() []coord.TileCoord {
	out := make([]coord.TileCoord, 0, len(c.cachedTiles))
	for t := range c.cachedTiles {
		out = append(out, t)
	}
	return out
}

// Status returns a snapshot of the coordinator's current state.
func (c *Coordinator) Status() Status {
	return c.status
}

// Execute submits every tile in plan to exec at Low priority, building
// each tile's Job from newJob, bounded by ctx. Submissions run
// concurrently but Execute returns only once every tile has been
// attempted or ctx is cancelled. Failures are logged and do not stop
// other tiles in the batch — a prefetch miss is never fatal to the
// cycle.
func (c *Coordinator) Execute(ctx context.Context, exec *executor.Executor, plan Plan, newJob executor.JobFactory) int {
	if len(plan.Tiles) == 0 {
		return 0
	}

	group, gctx := errgroup.WithContext(ctx)
	submitted := 0
	for _, tile := range plan.Tiles {
		tile := tile
		submitted++
		group.Go(func() error {
			if _, err := exec.Submit(gctx, tile, executor.Low, newJob(tile)); err != nil {
				logrus.WithError(err).WithField("tile", tile.String()).Debug("prefetch tile failed")
			}
			return nil
		})
	}
	_ = group.Wait()

	logrus.WithFields(logrus.Fields{
		"tiles":         submitted,
		"strategy":      plan.Strategy,
		"estimated_sec": plan.EstimatedCompletion.Seconds(),
	}).Info("prefetch batch submitted")

	return submitted
}
