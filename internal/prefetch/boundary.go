package prefetch

import (
	"math"
	"sort"

	"github.com/xearthlayer/xearthlayer/internal/coord"
)

const (
	// axisVelocityThreshold is the minimum |sin| or |cos| of the track
	// angle for that axis to be considered "active" (roughly 8-9 degrees
	// off a cardinal heading).
	axisVelocityThreshold = 0.15
	// behindPenalty is added to the rank of any tile behind the aircraft
	// on an active axis, so it always sorts after every tile ahead.
	behindPenalty = 100.0
	// sameCellRank is the rank given to a tile in the aircraft's own DSF
	// cell: slightly deprioritized relative to the next cell ahead (rank
	// 0) since the current cell is presumably already loaded.
	sameCellRank = 0.5
)

// PrioritizeByBoundary re-orders tiles in place so that tiles nearest the
// next DSF boundary crossing along the velocity vector come first —
// X-Plane triggers scenery loads at boundary crossings, so those tiles
// are the most urgent. Ties are broken by Euclidean distance from
// position. If track has no active axis component (near-zero movement
// both ways), falls back to pure distance sorting.
func PrioritizeByBoundary(lat, lon, track float64, tiles []coord.TileCoord) {
	if len(tiles) == 0 {
		return
	}

	trackRad := track * math.Pi / 180
	vLon := math.Sin(trackRad)
	vLat := math.Cos(trackRad)

	lonActive := math.Abs(vLon) >= axisVelocityThreshold
	latActive := math.Abs(vLat) >= axisVelocityThreshold

	dist := func(t coord.TileCoord) float64 {
		tLat, tLon := t.ToLatLon()
		dLat, dLon := tLat-lat, tLon-lon
		return math.Sqrt(dLat*dLat + dLon*dLon)
	}

	if !lonActive && !latActive {
		sort.Slice(tiles, func(i, j int) bool { return dist(tiles[i]) < dist(tiles[j]) })
		return
	}

	rank := func(t coord.TileCoord) float64 {
		tLat, tLon := t.ToLatLon()
		min := math.MaxFloat64
		if latActive {
			if r := axisRank(lat, tLat, vLat); r < min {
				min = r
			}
		}
		if lonActive {
			if r := axisRank(lon, tLon, vLon); r < min {
				min = r
			}
		}
		return min
	}

	sort.Slice(tiles, func(i, j int) bool {
		ri, rj := rank(tiles[i]), rank(tiles[j])
		if ri != rj {
			return ri < rj
		}
		return dist(tiles[i]) < dist(tiles[j])
	})
}

// axisRank scores tilePos on one axis relative to aircraftPos and the
// signed velocity component: 0 for the next DSF cell ahead, sameCellRank
// for the current cell, N for N cells further ahead, behindPenalty+N for
// cells behind.
func axisRank(aircraftPos, tilePos, velocity float64) float64 {
	aircraftDSF := int64(math.Floor(aircraftPos))
	tileDSF := int64(math.Floor(tilePos))

	if velocity > 0 {
		switch {
		case tileDSF > aircraftDSF:
			return float64(tileDSF - aircraftDSF - 1)
		case tileDSF == aircraftDSF:
			return sameCellRank
		default:
			return behindPenalty + float64(aircraftDSF-tileDSF)
		}
	}
	switch {
	case tileDSF < aircraftDSF:
		return float64(aircraftDSF - tileDSF - 1)
	case tileDSF == aircraftDSF:
		return sameCellRank
	default:
		return behindPenalty + float64(tileDSF-aircraftDSF)
	}
}
