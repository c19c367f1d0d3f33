package prefetch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTurnDetectorStabilizesAfterDuration(t *testing.T) {
	d := NewTurnDetectorWithParams(5, 15, 50*time.Millisecond)
	now := time.Now()

	d.Update(90, now)
	assert.Equal(t, Initializing, d.State())

	d.Update(90, now.Add(60*time.Millisecond))
	assert.Equal(t, Stable, d.State())
	track, ok := d.StableTrack()
	assert.True(t, ok)
	assert.Equal(t, 90.0, track)
}

func TestTurnDetectorDetectsTurnFromStable(t *testing.T) {
	d := NewTurnDetectorWithParams(5, 15, 50*time.Millisecond)
	now := time.Now()
	d.Update(90, now)
	d.Update(90, now.Add(60*time.Millisecond))
	assert.True(t, d.IsStable())

	d.Update(120, now.Add(70*time.Millisecond))
	assert.Equal(t, Turning, d.State())
	_, ok := d.StableTrack()
	assert.False(t, ok)
}

func TestTurnDetectorSmallDriftStaysStable(t *testing.T) {
	d := NewTurnDetectorWithParams(5, 15, 50*time.Millisecond)
	now := time.Now()
	d.Update(90, now)
	d.Update(90, now.Add(60*time.Millisecond))
	require := assert.New(t)
	require.True(d.IsStable())

	d.Update(93, now.Add(70*time.Millisecond))
	require.Equal(Stable, d.State())
}

func TestTurnDetectorResetReturnsToInitializing(t *testing.T) {
	d := NewTurnDetectorWithParams(5, 15, 50*time.Millisecond)
	now := time.Now()
	d.Update(90, now)
	d.Update(90, now.Add(60*time.Millisecond))
	assert.True(t, d.IsStable())

	d.Reset()
	assert.Equal(t, Initializing, d.State())
	assert.False(t, d.IsStable())
}

func TestTrackDifferenceHandlesWraparound(t *testing.T) {
	assert.InDelta(t, 20.0, trackDifference(350, 10), 0.001)
	assert.InDelta(t, 20.0, trackDifference(10, 350), 0.001)
	assert.InDelta(t, 0.0, trackDifference(0, 360), 0.001)
}

func TestNormalizeTrack(t *testing.T) {
	assert.Equal(t, 10.0, normalizeTrack(370))
	assert.Equal(t, 350.0, normalizeTrack(-10))
	assert.Equal(t, 0.0, normalizeTrack(360))
}
