package prefetch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestModeForThroughput(t *testing.T) {
	assert.Equal(t, Aggressive, ModeForThroughput(31))
	assert.Equal(t, Opportunistic, ModeForThroughput(15))
	assert.Equal(t, Disabled, ModeForThroughput(2))
}

func TestStrategyModeUpgradeDowngradeClamp(t *testing.T) {
	assert.Equal(t, Aggressive, Aggressive.Upgrade())
	assert.Equal(t, Disabled, Disabled.Downgrade())
	assert.Equal(t, Aggressive, Opportunistic.Upgrade())
	assert.Equal(t, Disabled, Opportunistic.Downgrade())
}

func TestPerformanceCalibrationIsDegradedRecovered(t *testing.T) {
	c := PerformanceCalibration{BaselineTilesPerSec: 20}
	assert.True(t, c.IsDegraded(10, 0.7))
	assert.False(t, c.IsDegraded(15, 0.7))
	assert.True(t, c.IsRecovered(19, 0.9))
	assert.False(t, c.IsRecovered(17, 0.9))
}

func TestSamplerFinishComputesThroughput(t *testing.T) {
	start := time.Now()
	s := NewSampler(start)
	for i := 0; i < 10; i++ {
		s.Record(100 * time.Millisecond)
	}

	cal := s.Finish(start.Add(1 * time.Second))
	assert.InDelta(t, 10.0, cal.BaselineTilesPerSec, 0.01)
	assert.EqualValues(t, 100, cal.AvgGenMs)
	assert.Equal(t, 10, cal.SampleCount)
	assert.Equal(t, Opportunistic, cal.Mode)
}

func TestSamplerFinishWithNoSamples(t *testing.T) {
	start := time.Now()
	s := NewSampler(start)
	cal := s.Finish(start.Add(time.Second))
	assert.Equal(t, Disabled, cal.Mode)
	assert.Zero(t, cal.SampleCount)
}
