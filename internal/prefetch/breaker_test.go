package prefetch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xearthlayer/xearthlayer/internal/executor"
)

func TestBreakerStaysClosedUnderLowLoad(t *testing.T) {
	pools := executor.NewPools(4)
	b := NewBreaker(DefaultBreakerConfig(), pools)

	assert.False(t, b.ShouldThrottle(time.Now()))
	assert.Equal(t, CircuitClosed, b.State())
}

func TestBreakerOpensAfterSustainedSaturation(t *testing.T) {
	pools := executor.NewPools(2)
	require.NoError(t, pools.AcquireNetwork(context.Background()))
	require.NoError(t, pools.AcquireNetwork(context.Background()))

	b := NewBreaker(BreakerConfig{OpenDuration: 100 * time.Millisecond, HalfOpenDuration: 50 * time.Millisecond}, pools)
	now := time.Now()

	assert.False(t, b.ShouldThrottle(now), "still closed on first high-load tick, before open_duration elapses")
	assert.Equal(t, CircuitClosed, b.State())

	assert.True(t, b.ShouldThrottle(now.Add(150*time.Millisecond)))
	assert.Equal(t, CircuitOpen, b.State())
}

func TestBreakerHalfOpenRecovers(t *testing.T) {
	pools := executor.NewPools(2)
	require.NoError(t, pools.AcquireNetwork(context.Background()))
	require.NoError(t, pools.AcquireNetwork(context.Background()))

	b := NewBreaker(BreakerConfig{OpenDuration: 10 * time.Millisecond, HalfOpenDuration: 50 * time.Millisecond}, pools)
	now := time.Now()
	b.ShouldThrottle(now)
	b.ShouldThrottle(now.Add(20 * time.Millisecond))
	require.Equal(t, CircuitOpen, b.State())

	pools.ReleaseNetwork()
	pools.ReleaseNetwork()

	assert.True(t, b.ShouldThrottle(now.Add(30*time.Millisecond)), "half-open still counts as throttled")
	assert.Equal(t, CircuitHalfOpen, b.State())

	assert.False(t, b.ShouldThrottle(now.Add(90*time.Millisecond)))
	assert.Equal(t, CircuitClosed, b.State())
}

func TestBreakerHalfOpenReopensOnSpike(t *testing.T) {
	pools := executor.NewPools(2)
	require.NoError(t, pools.AcquireNetwork(context.Background()))
	require.NoError(t, pools.AcquireNetwork(context.Background()))

	b := NewBreaker(BreakerConfig{OpenDuration: 10 * time.Millisecond, HalfOpenDuration: 50 * time.Millisecond}, pools)
	now := time.Now()
	b.ShouldThrottle(now)
	b.ShouldThrottle(now.Add(20 * time.Millisecond))
	require.Equal(t, CircuitOpen, b.State())

	pools.ReleaseNetwork()
	pools.ReleaseNetwork()
	b.ShouldThrottle(now.Add(30 * time.Millisecond))
	require.Equal(t, CircuitHalfOpen, b.State())

	require.NoError(t, pools.AcquireNetwork(context.Background()))
	require.NoError(t, pools.AcquireNetwork(context.Background()))
	assert.True(t, b.ShouldThrottle(now.Add(40*time.Millisecond)))
	assert.Equal(t, CircuitOpen, b.State())
}
