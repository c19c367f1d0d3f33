package prefetch

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/xearthlayer/xearthlayer/internal/executor"
)

// ResourceSaturationThreshold is the resource-pool utilization fraction
// that counts as high load.
const ResourceSaturationThreshold = 0.9

// CircuitState is the circuit breaker's position.
type CircuitState int

const (
	// CircuitClosed: prefetch active, normal operation.
	CircuitClosed CircuitState = iota
	// CircuitOpen: prefetch blocked, high load detected.
	CircuitOpen
	// CircuitHalfOpen: testing whether it is safe to resume prefetch.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// DisplayStatus renders the state the way an end-user TUI should show it,
// avoiding circuit-breaker jargon.
func (s CircuitState) DisplayStatus() string {
	switch s {
	case CircuitOpen:
		return "Paused"
	case CircuitHalfOpen:
		return "Resuming..."
	default:
		return "Active"
	}
}

// BreakerConfig tunes the circuit breaker's timing.
type BreakerConfig struct {
	// OpenDuration is how long sustained saturation must last before the
	// circuit trips open.
	OpenDuration time.Duration
	// HalfOpenDuration is how long utilization must stay low in the
	// half-open state before the circuit closes.
	HalfOpenDuration time.Duration
}

// DefaultBreakerConfig returns the standard 500ms/2s timing.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		OpenDuration:     500 * time.Millisecond,
		HalfOpenDuration: 2 * time.Second,
	}
}

// Breaker pauses prefetch submission when the executor's resource pools
// are saturated, so prefetch never competes with on-demand FUSE reads for
// bandwidth.
//
// The trip decision is driven exclusively by resource pool utilization,
// never by FUSE request rate: the breaker does not read request rate at
// all, since cheap cache-hit reads would otherwise inflate a rate counter
// and cause the breaker to trip for no real load reason.
type Breaker struct {
	config BreakerConfig
	pools  *executor.Pools

	mu            sync.Mutex
	state         CircuitState
	highLoadStart time.Time
	hasHighLoad   bool
	halfOpenStart time.Time
	hasHalfOpen   bool
}

// NewBreaker builds a Breaker watching pools, starting Closed.
func NewBreaker(config BreakerConfig, pools *executor.Pools) *Breaker {
	return &Breaker{config: config, pools: pools, state: CircuitClosed}
}

// ShouldThrottle updates the circuit state from current pool utilization
// and reports whether prefetch should be paused this cycle (state Open or
// HalfOpen).
func (b *Breaker) ShouldThrottle(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	utilization := b.pools.MaxUtilization()
	isHighLoad := utilization > ResourceSaturationThreshold

	logrus.WithFields(logrus.Fields{
		"resource_utilization": utilization,
		"is_high_load":         isHighLoad,
		"state":                b.state.String(),
	}).Debug("circuit breaker check")

	switch b.state {
	case CircuitClosed:
		if isHighLoad {
			if !b.hasHighLoad {
				b.highLoadStart = now
				b.hasHighLoad = true
				logrus.WithField("utilization", utilization).Info("circuit breaker: resource saturation detected")
			}
			if now.Sub(b.highLoadStart) >= b.config.OpenDuration {
				b.state = CircuitOpen
				b.hasHighLoad = false
				logrus.WithField("utilization", utilization).Info("circuit breaker opened, prefetch paused")
			}
		} else {
			b.hasHighLoad = false
		}

	case CircuitOpen:
		if !isHighLoad {
			b.state = CircuitHalfOpen
			b.halfOpenStart = now
			b.hasHalfOpen = true
			logrus.WithField("utilization", utilization).Info("circuit breaker: load dropped, half-open")
		}

	case CircuitHalfOpen:
		if isHighLoad {
			b.state = CircuitOpen
			b.hasHalfOpen = false
			logrus.WithField("utilization", utilization).Info("circuit breaker: load spike in half-open, re-opening")
		} else if b.hasHalfOpen && now.Sub(b.halfOpenStart) >= b.config.HalfOpenDuration {
			b.state = CircuitClosed
			b.hasHalfOpen = false
			logrus.Info("circuit breaker closed, prefetch resumed")
		}
	}

	return isOpenState(b.state)
}

func isOpenState(s CircuitState) bool {
	return s == CircuitOpen || s == CircuitHalfOpen
}

// State returns the breaker's current state.
func (b *Breaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
