package prefetch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPhaseDetectorStartsGround(t *testing.T) {
	d := NewPhaseDetector()
	assert.Equal(t, Ground, d.Phase())
}

func TestPhaseDetectorSwitchesToCruiseAfterHysteresis(t *testing.T) {
	d := NewPhaseDetector()
	now := time.Now()

	phase := d.Update(120, now)
	assert.Equal(t, Ground, phase, "must not flip immediately")

	phase = d.Update(120, now.Add(PhaseHysteresis+time.Millisecond))
	assert.Equal(t, Cruise, phase)
}

func TestPhaseDetectorIgnoresTransientSpeedDrop(t *testing.T) {
	d := NewPhaseDetector()
	now := time.Now()
	d.Update(120, now)
	d.Update(120, now.Add(PhaseHysteresis+time.Millisecond))
	assert.Equal(t, Cruise, d.Phase())

	// A brief dip below threshold, shorter than the hysteresis window,
	// must not flip the phase back.
	phase := d.Update(10, now.Add(PhaseHysteresis+2*time.Millisecond))
	assert.Equal(t, Cruise, phase)
}

func TestPhaseDetectorReturnsToGroundAfterSustainedSlowdown(t *testing.T) {
	d := NewPhaseDetector()
	now := time.Now()
	d.Update(120, now)
	d.Update(120, now.Add(PhaseHysteresis+time.Millisecond))
	assert.Equal(t, Cruise, d.Phase())

	base := now.Add(PhaseHysteresis + 2*time.Millisecond)
	d.Update(5, base)
	phase := d.Update(5, base.Add(PhaseHysteresis+time.Millisecond))
	assert.Equal(t, Ground, phase)
}
