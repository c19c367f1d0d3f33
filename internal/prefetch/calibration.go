package prefetch

import (
	"math"
	"time"
)

// StrategyMode is how aggressively the prefetcher submits tiles, derived
// from measured tile-generation throughput.
type StrategyMode int

const (
	// Disabled: throughput too low to prefetch without competing with
	// on-demand reads.
	Disabled StrategyMode = iota
	// Opportunistic: prefetch at a reduced rate.
	Opportunistic
	// Aggressive: prefetch at full rate.
	Aggressive
)

func (m StrategyMode) String() string {
	switch m {
	case Aggressive:
		return "aggressive"
	case Opportunistic:
		return "opportunistic"
	default:
		return "disabled"
	}
}

// Upgrade returns the next-more-aggressive mode, or m unchanged if already
// at the top.
func (m StrategyMode) Upgrade() StrategyMode {
	if m < Aggressive {
		return m + 1
	}
	return m
}

// Downgrade returns the next-less-aggressive mode, or m unchanged if
// already at the bottom.
func (m StrategyMode) Downgrade() StrategyMode {
	if m > Disabled {
		return m - 1
	}
	return m
}

const (
	// AggressiveThroughputThreshold: tiles/sec at or above this recommends Aggressive.
	AggressiveThroughputThreshold = 30.0
	// OpportunisticThroughputThreshold: tiles/sec at or above this recommends Opportunistic.
	OpportunisticThroughputThreshold = 10.0
)

// PerformanceCalibration summarizes measured tile-generation performance,
// produced once at startup and optionally revised by a RollingRecalibrator.
type PerformanceCalibration struct {
	BaselineTilesPerSec float64
	AvgGenMs            int64
	StddevMs            int64
	Confidence          float64
	Mode                StrategyMode
	SampleCount         int
}

// ModeForThroughput classifies a throughput measurement (tiles/sec) into
// a StrategyMode per the fixed thresholds.
func ModeForThroughput(tilesPerSec float64) StrategyMode {
	switch {
	case tilesPerSec >= AggressiveThroughputThreshold:
		return Aggressive
	case tilesPerSec >= OpportunisticThroughputThreshold:
		return Opportunistic
	default:
		return Disabled
	}
}

// EstimateBatchTime estimates wall-clock time to complete tileCount tiles
// at the calibration's baseline throughput.
func (c PerformanceCalibration) EstimateBatchTime(tileCount int) time.Duration {
	if c.BaselineTilesPerSec <= 0 {
		return 0
	}
	secs := float64(tileCount) / c.BaselineTilesPerSec
	return time.Duration(secs * float64(time.Second))
}

// IsDegraded reports whether currentThroughput has fallen below
// threshold (a fraction, e.g. 0.7) of the baseline.
func (c PerformanceCalibration) IsDegraded(currentThroughput, threshold float64) bool {
	if c.BaselineTilesPerSec <= 0 {
		return false
	}
	return currentThroughput < c.BaselineTilesPerSec*threshold
}

// IsRecovered reports whether currentThroughput has reached or risen above
// threshold (a fraction, e.g. 0.9) of the baseline.
func (c PerformanceCalibration) IsRecovered(currentThroughput, threshold float64) bool {
	if c.BaselineTilesPerSec <= 0 {
		return false
	}
	return currentThroughput >= c.BaselineTilesPerSec*threshold
}

// Sampler accumulates tile-generation durations during the initial
// calibration window and produces a PerformanceCalibration from them.
type Sampler struct {
	start    time.Time
	samples  []time.Duration
}

// NewSampler begins a calibration window starting now.
func NewSampler(now time.Time) *Sampler {
	return &Sampler{start: now}
}

// Record adds one tile-generation duration sample.
func (s *Sampler) Record(d time.Duration) {
	s.samples = append(s.samples, d)
}

// Finish computes a PerformanceCalibration from the samples collected
// since the sampler began, as of now.
func (s *Sampler) Finish(now time.Time) PerformanceCalibration {
	elapsed := now.Sub(s.start).Seconds()
	n := len(s.samples)
	if n == 0 || elapsed <= 0 {
		return PerformanceCalibration{Mode: Disabled}
	}

	throughput := float64(n) / elapsed

	var totalMs int64
	for _, d := range s.samples {
		totalMs += d.Milliseconds()
	}
	avgMs := totalMs / int64(n)

	var sumSq float64
	for _, d := range s.samples {
		diff := float64(d.Milliseconds() - avgMs)
		sumSq += diff * diff
	}
	stddevMs := int64(math.Sqrt(sumSq / float64(n)))

	confidence := float64(n) / 100.0
	if confidence > 1 {
		confidence = 1
	}

	return PerformanceCalibration{
		BaselineTilesPerSec: throughput,
		AvgGenMs:            avgMs,
		StddevMs:            stddevMs,
		Confidence:          confidence,
		Mode:                ModeForThroughput(throughput),
		SampleCount:         n,
	}
}
