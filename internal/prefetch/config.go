package prefetch

import (
	"time"

	"github.com/xearthlayer/xearthlayer/internal/config"
)

// CoordinatorConfigFromToml translates the xearthlayer.toml prefetch
// section into a CoordinatorConfig. It changes no package constants: the
// phase-detector settings, the recalibration interval and the
// degradation/recovery thresholds are not applied, and the turn-detector
// settings are applied separately through TurnDetectorFromToml.
func CoordinatorConfigFromToml(c config.PrefetchConfig) CoordinatorConfig {
	return CoordinatorConfig{
		Enabled:          c.Enabled,
		MaxTilesPerCycle: c.MaxTilesPerCycle,
		GroundLeadTiles:  c.GroundLeadTiles,
		CruiseLeadTiles:  c.CruiseLeadTiles,
		CruiseBandWidth:  c.CruiseBandWidth,
		MinCycleInterval: durationFromSeconds(c.MinCycleIntervalSeconds),
		Breaker: BreakerConfig{
			OpenDuration:     time.Duration(c.BreakerOpenMillis) * time.Millisecond,
			HalfOpenDuration: time.Duration(c.BreakerHalfOpenMillis) * time.Millisecond,
		},
	}
}

// TurnDetectorFromToml builds a TurnDetector using the config's
// turn-stability tunables instead of the compiled-in defaults.
func TurnDetectorFromToml(c config.PrefetchConfig) *TurnDetector {
	return NewTurnDetectorWithParams(c.TurnStabilityThresholdDeg, c.TurnThresholdDeg, durationFromSeconds(c.TurnStabilitySeconds))
}

func durationFromSeconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
