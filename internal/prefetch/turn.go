package prefetch

import "time"

// TurnState is the turn detector's state machine position.
type TurnState int

const (
	// Initializing is the state before the first stable track is found.
	Initializing TurnState = iota
	// Stable means prefetching is safe: track has held within
	// StabilityThresholdDeg of its reference for StabilityDuration.
	Stable
	// Turning means the band/ring computed from the last stable track is
	// stale and prefetching based on it should pause.
	Turning
)

func (s TurnState) String() string {
	switch s {
	case Stable:
		return "stable"
	case Turning:
		return "turning"
	default:
		return "initializing"
	}
}

const (
	// StabilityThresholdDeg: track must stay within this many degrees of
	// its reference to be considered settled.
	StabilityThresholdDeg = 5.0
	// TurnThresholdDeg: a track change beyond this from the last stable
	// track is a turn.
	TurnThresholdDeg = 15.0
	// StabilityDuration: how long track must stay settled before the
	// detector reports Stable.
	StabilityDuration = 10 * time.Second
)

// TurnDetector classifies ground track as Stable or Turning. It is a pure
// state machine with no internal locking: callers must serialize their
// own calls to Update, matching spec's "interior mutability for
// detectors" guidance (thread-safety is the caller's responsibility, not
// this type's).
type TurnDetector struct {
	stabilityThreshold float64
	turnThreshold      float64
	stabilityDuration  time.Duration

	state            TurnState
	lastStableTrack  float64
	hasStableTrack   bool
	referenceTrack   float64
	hasReference     bool
	stabilityStart   time.Time
	hasStabilityTime bool
}

// NewTurnDetector builds a detector with the standard thresholds.
func NewTurnDetector() *TurnDetector {
	return &TurnDetector{
		stabilityThreshold: StabilityThresholdDeg,
		turnThreshold:      TurnThresholdDeg,
		stabilityDuration:  StabilityDuration,
		state:              Initializing,
	}
}

// NewTurnDetectorWithParams builds a detector with explicit thresholds,
// for tests that need faster stabilization than the production defaults.
func NewTurnDetectorWithParams(stabilityThreshold, turnThreshold float64, stabilityDuration time.Duration) *TurnDetector {
	return &TurnDetector{
		stabilityThreshold: stabilityThreshold,
		turnThreshold:      turnThreshold,
		stabilityDuration:  stabilityDuration,
		state:              Initializing,
	}
}

// Update feeds a new track sample (degrees, 0-360) at time now.
func (d *TurnDetector) Update(track float64, now time.Time) {
	track = normalizeTrack(track)

	switch d.state {
	case Initializing:
		if !d.hasReference {
			d.referenceTrack = track
			d.hasReference = true
			d.stabilityStart = now
			d.hasStabilityTime = true
			return
		}
		if trackDifference(track, d.referenceTrack) <= d.stabilityThreshold {
			if d.hasStabilityTime && now.Sub(d.stabilityStart) >= d.stabilityDuration {
				d.state = Stable
				d.lastStableTrack = track
				d.hasStableTrack = true
			}
		} else {
			d.referenceTrack = track
			d.stabilityStart = now
			d.hasStabilityTime = true
		}

	case Stable:
		if trackDifference(track, d.lastStableTrack) > d.turnThreshold {
			d.state = Turning
			d.referenceTrack = track
			d.hasReference = true
			d.hasStabilityTime = false
		} else {
			d.lastStableTrack = track
		}

	case Turning:
		if !d.hasReference {
			d.referenceTrack = track
			d.hasReference = true
		}
		if trackDifference(track, d.referenceTrack) <= d.stabilityThreshold {
			if !d.hasStabilityTime {
				d.stabilityStart = now
				d.hasStabilityTime = true
			}
			if now.Sub(d.stabilityStart) >= d.stabilityDuration {
				d.state = Stable
				d.lastStableTrack = track
				d.hasStableTrack = true
			}
		} else {
			d.referenceTrack = track
			d.hasStabilityTime = false
		}
	}
}

// IsStable reports whether prefetching may safely use the current track.
func (d *TurnDetector) IsStable() bool { return d.state == Stable }

// State returns the detector's current state.
func (d *TurnDetector) State() TurnState { return d.state }

// StableTrack returns the current stable track and true, or (0, false) if
// not currently Stable.
func (d *TurnDetector) StableTrack() (float64, bool) {
	if d.state == Stable {
		return d.lastStableTrack, true
	}
	return 0, false
}

// Reset returns the detector to Initializing, e.g. after a teleport.
func (d *TurnDetector) Reset() {
	*d = TurnDetector{
		stabilityThreshold: d.stabilityThreshold,
		turnThreshold:      d.turnThreshold,
		stabilityDuration:  d.stabilityDuration,
		state:              Initializing,
	}
}

func normalizeTrack(track float64) float64 {
	t := track
	for t < 0 {
		t += 360
	}
	for t >= 360 {
		t -= 360
	}
	return t
}

// trackDifference returns the absolute angular difference between two
// normalized tracks, accounting for 360-degree wraparound (350 to 10 is
// 20 degrees, not 340).
func trackDifference(a, b float64) float64 {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	if diff > 180 {
		diff = 360 - diff
	}
	return diff
}
