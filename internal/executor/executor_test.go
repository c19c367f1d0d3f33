package executor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xearthlayer/xearthlayer/internal/coord"
)

func TestCPULimiterSplitsPools(t *testing.T) {
	l := NewCPULimiter(20, 40, 20, "test")
	assert.EqualValues(t, 8, l.priorityPermits)
	assert.EqualValues(t, 4, l.prefetchPermits)
	assert.EqualValues(t, 8, l.sharedPermits)
}

func TestCPULimiterMinimumReserves(t *testing.T) {
	l := NewCPULimiter(10, 5, 5, "test")
	assert.GreaterOrEqual(t, l.priorityPermits, int64(minPriorityReserve))
	assert.GreaterOrEqual(t, l.prefetchPermits, int64(minPrefetchReserve))
}

func TestCPULimiterSharedNeverZero(t *testing.T) {
	l := NewCPULimiter(5, 50, 50, "test")
	assert.GreaterOrEqual(t, l.sharedPermits, int64(1))
}

func TestCPULimiterHighPriorityAlwaysSucceeds(t *testing.T) {
	l := NewCPULimiter(12, 40, 20, "test")
	ctx := context.Background()

	highCapacity := l.priorityPermits + l.sharedPermits
	var permits []*CPUPermit
	for i := int64(0); i < highCapacity; i++ {
		p, err := l.Acquire(ctx, High)
		require.NoError(t, err)
		permits = append(permits, p)
	}
	assert.EqualValues(t, highCapacity, l.HighInFlight())

	for _, p := range permits {
		p.Release()
	}
	assert.EqualValues(t, 0, l.HighInFlight())
}

func TestCPULimiterLowPriorityHasGuaranteedCapacity(t *testing.T) {
	l := NewCPULimiter(12, 40, 20, "test")
	ctx := context.Background()

	// Drain the shared pool with high-priority work.
	var highPermits []*CPUPermit
	for i := int64(0); i < l.sharedPermits; i++ {
		l.shared.TryAcquire(1)
	}
	_ = highPermits

	done := make(chan struct{})
	go func() {
		p, err := l.Acquire(ctx, Low)
		require.NoError(t, err)
		p.Release()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("low priority acquire should not block forever: prefetch reserve is exclusive")
	}
}

func TestExecutorCoalescesDuplicateSubmissions(t *testing.T) {
	e := New(NewPools(4))
	tile := coord.TileCoord{Row: 1, Col: 1, Zoom: 14}

	var calls atomic.Int64
	job := func(ctx context.Context, pools *Pools, priority Priority) (interface{}, error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return "artifact", nil
	}

	results := make(chan interface{}, 5)
	for i := 0; i < 5; i++ {
		go func() {
			v, err := e.Submit(context.Background(), tile, High, job)
			require.NoError(t, err)
			results <- v
		}()
	}

	for i := 0; i < 5; i++ {
		assert.Equal(t, "artifact", <-results)
	}
	assert.EqualValues(t, 1, calls.Load())
}

func TestExecutorSubmitRespectsCancellation(t *testing.T) {
	e := New(NewPools(4))
	tile := coord.TileCoord{Row: 2, Col: 2, Zoom: 14}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	job := func(ctx context.Context, pools *Pools, priority Priority) (interface{}, error) {
		time.Sleep(50 * time.Millisecond)
		return "late", nil
	}

	_, err := e.Submit(ctx, tile, High, job)
	assert.ErrorIs(t, err, context.Canceled)
}
