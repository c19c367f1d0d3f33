// Package prefetch implements the adaptive prefetcher: it consumes the
// aircraft telemetry broadcast, classifies flight phase and track
// stability, computes a ring (ground) or band (cruise) of candidate
// tiles, re-orders them by DSF boundary urgency, and submits low-priority
// jobs to the executor while a resource-saturation circuit breaker keeps
// it from competing with on-demand reads.
package prefetch

import "time"

// Phase classifies flight phase from ground speed with hysteresis, so a
// single noisy sample near the threshold doesn't flap the prefetch
// strategy back and forth.
type Phase int

const (
	// Ground covers taxi and parking: the ring strategy applies.
	Ground Phase = iota
	// Cruise covers airborne flight: the band strategy applies.
	Cruise
)

func (p Phase) String() string {
	if p == Cruise {
		return "cruise"
	}
	return "ground"
}

const (
	// PhaseSpeedThresholdKt is the ground-speed boundary between Ground and Cruise.
	PhaseSpeedThresholdKt = 40.0
	// PhaseHysteresis is how long speed must stay past the threshold before
	// the phase actually flips.
	PhaseHysteresis = 2 * time.Second
)

// PhaseDetector classifies Ground/Cruise from ground speed. Like
// TurnDetector, it is safe only under a single caller's serial calls
// (spec's "interior mutability, caller-serial contract" guidance) — it
// holds no internal lock.
type PhaseDetector struct {
	phase          Phase
	pendingPhase   Phase
	pendingSince   time.Time
	hasPending     bool
}

// NewPhaseDetector starts in Ground until the first update proves otherwise.
func NewPhaseDetector() *PhaseDetector {
	return &PhaseDetector{phase: Ground}
}

// Update feeds a new ground-speed sample at time now and returns the
// current (possibly just-changed) phase.
func (d *PhaseDetector) Update(speedKt float64, now time.Time) Phase {
	candidate := Ground
	if speedKt > PhaseSpeedThresholdKt {
		candidate = Cruise
	}

	if candidate == d.phase {
		d.hasPending = false
		return d.phase
	}

	if !d.hasPending || d.pendingPhase != candidate {
		d.pendingPhase = candidate
		d.pendingSince = now
		d.hasPending = true
		return d.phase
	}

	if now.Sub(d.pendingSince) >= PhaseHysteresis {
		d.phase = candidate
		d.hasPending = false
	}
	return d.phase
}

// Phase returns the last computed phase without taking a new sample.
func (d *PhaseDetector) Phase() Phase { return d.phase }
