package aircraft

import (
	"math"
	"time"
)

const (
	// maxHistorySamples retains 30 seconds of history at the default 1Hz
	// sample rate.
	maxHistorySamples = 30
	// sampleInterval rate-limits recorded samples to 1Hz.
	sampleInterval = time.Second
	// minTrackDistanceDeg is the minimum oldest-to-newest displacement
	// (in degrees) for a derived track to be considered reliable;
	// smaller movements are too noisy to bearing-calculate.
	minTrackDistanceDeg = 0.001
)

type positionSample struct {
	lat, lon float64
	at       time.Time
}

// FlightPath keeps a short rolling history of aircraft positions and
// derives ground track from it when no source supplies a track
// directly (e.g. a manual seed or a position-only telemetry feed).
type FlightPath struct {
	samples        []positionSample
	lastSampleTime time.Time
}

// NewFlightPath returns an empty history.
func NewFlightPath() *FlightPath {
	return &FlightPath{}
}

// Record appends a position sample at now, respecting the 1Hz rate
// limit. Returns true if the sample was recorded.
func (f *FlightPath) Record(lat, lon float64, now time.Time) bool {
	if !f.lastSampleTime.IsZero() && now.Sub(f.lastSampleTime) < sampleInterval {
		return false
	}
	f.samples = append(f.samples, positionSample{lat: lat, lon: lon, at: now})
	f.lastSampleTime = now
	if len(f.samples) > maxHistorySamples {
		f.samples = f.samples[len(f.samples)-maxHistorySamples:]
	}
	return true
}

// Track derives ground track as the bearing from the oldest to the
// newest retained sample. Returns (0, false) if there are fewer than
// two samples or the displacement is too small to bearing reliably.
func (f *FlightPath) Track() (float64, bool) {
	if len(f.samples) < 2 {
		return 0, false
	}
	oldest, newest := f.samples[0], f.samples[len(f.samples)-1]
	dlat := newest.lat - oldest.lat
	dlon := newest.lon - oldest.lon
	if math.Hypot(dlat, dlon) < minTrackDistanceDeg {
		return 0, false
	}
	bearing := math.Atan2(dlon, dlat) * 180 / math.Pi
	if bearing < 0 {
		bearing += 360
	}
	return bearing, true
}

// SampleCount returns the number of samples currently retained.
func (f *FlightPath) SampleCount() int {
	return len(f.samples)
}

// Clear discards all history.
func (f *FlightPath) Clear() {
	f.samples = nil
	f.lastSampleTime = time.Time{}
}
