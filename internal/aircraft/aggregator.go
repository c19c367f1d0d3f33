package aircraft

import (
	"sync"
	"sync/atomic"
	"time"
)

// Aggregator holds the best available aircraft position across UDP
// telemetry, FUSE-access-pattern inference, and a manual seed, and fans
// out every change to subscribers. Subscribers are independent buffered
// channels; a slow subscriber drops updates and counts the lag rather
// than blocking the producer — the standard Go "channel of channels"
// broadcast idiom, since no pub/sub library is needed for an in-process
// fan-out this small.
type Aggregator struct {
	mu         sync.Mutex
	states     [3]State // indexed by SourceKind
	flightPath *FlightPath

	subMu     sync.Mutex
	nextSubID int
	subs      map[int]chan State

	requestWindow []time.Time // timestamps of recent façade reads, for inference freshness
}

// NewAggregator returns an aggregator with no state yet recorded.
func NewAggregator() *Aggregator {
	return &Aggregator{
		flightPath: NewFlightPath(),
		subs:       make(map[int]chan State),
	}
}

// UpdateUDP records a fresh XGPS2 telemetry sample.
func (a *Aggregator) UpdateUDP(t Telemetry, now time.Time) {
	a.flightPath.Record(t.Latitude, t.Longitude, now)
	a.set(State{
		Latitude: t.Latitude, Longitude: t.Longitude, Altitude: t.Altitude,
		Track: t.Track, HasTrack: true, Speed: t.Speed,
		Source: SourceUDP, UpdatedAt: now,
	})
}

// UpdateManual seeds a position (e.g. the aircraft's starting airport)
// with no track or speed information. Valid until any higher-priority
// source supersedes it.
func (a *Aggregator) UpdateManual(lat, lon float64, now time.Time) {
	a.set(State{Latitude: lat, Longitude: lon, Source: SourceManual, UpdatedAt: now})
}

// UpdateInference records a position inferred from FUSE access
// patterns. RecordFacadeRequest should be called once per texture read
// observed by the façade so inferenceFresh can enforce the "≥10 requests
// within 30s" freshness rule independently of this call.
func (a *Aggregator) UpdateInference(lat, lon float64, now time.Time) {
	if !a.inferenceFresh(now) {
		return
	}
	track, hasTrack := a.flightPath.Track()
	a.set(State{
		Latitude: lat, Longitude: lon, Track: track, HasTrack: hasTrack,
		Source: SourceInference, UpdatedAt: now,
	})
}

// RecordFacadeRequest records one texture read timestamp, feeding the
// inference source's freshness requirement.
func (a *Aggregator) RecordFacadeRequest(now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requestWindow = append(a.requestWindow, now)
	cutoff := now.Add(-inferenceWindow)
	i := 0
	for ; i < len(a.requestWindow); i++ {
		if a.requestWindow[i].After(cutoff) {
			break
		}
	}
	a.requestWindow = a.requestWindow[i:]
}

func (a *Aggregator) inferenceFresh(now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	cutoff := now.Add(-inferenceWindow)
	count := 0
	for _, t := range a.requestWindow {
		if t.After(cutoff) {
			count++
		}
	}
	return count >= inferenceMinRequests
}

func (a *Aggregator) set(s State) {
	a.mu.Lock()
	a.states[s.Source] = s
	a.mu.Unlock()
	a.broadcast(a.Current())
}

// Current returns the highest-priority currently-fresh state (UDP >
// inference > manual), or the zero State if none is fresh.
func (a *Aggregator) Current() State {
	now := time.Now()
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range a.states {
		if s.IsFresh(now) {
			return s
		}
	}
	return State{}
}

// Subscribe returns a buffered channel that receives every state change
// and an unsubscribe function. The channel is closed by unsubscribe.
func (a *Aggregator) Subscribe(bufferSize int) (<-chan State, func()) {
	a.subMu.Lock()
	defer a.subMu.Unlock()
	id := a.nextSubID
	a.nextSubID++
	ch := make(chan State, bufferSize)
	a.subs[id] = ch
	return ch, func() {
		a.subMu.Lock()
		defer a.subMu.Unlock()
		if existing, ok := a.subs[id]; ok {
			delete(a.subs, id)
			close(existing)
		}
	}
}

// lagDrops counts updates dropped because a subscriber's channel was full.
var lagDrops uint64

// LagDrops returns the total number of broadcast updates dropped across
// every subscriber because its buffer was full, for diagnostics.
func LagDrops() uint64 {
	return atomic.LoadUint64(&lagDrops)
}

func (a *Aggregator) broadcast(s State) {
	a.subMu.Lock()
	defer a.subMu.Unlock()
	for _, ch := range a.subs {
		select {
		case ch <- s:
		default:
			atomic.AddUint64(&lagDrops, 1)
		}
	}
}
