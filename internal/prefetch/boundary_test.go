package prefetch

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xearthlayer/xearthlayer/internal/coord"
)

func tileAt(t *testing.T, lat, lon float64, zoom uint8) coord.TileCoord {
	t.Helper()
	tc, err := coord.ToTileCoord(lat, lon, zoom)
	assert.NoError(t, err)
	return tc
}

func TestAxisRankAheadIsLowest(t *testing.T) {
	ahead := axisRank(47.0, 48.5, 1.0)
	current := axisRank(47.0, 47.5, 1.0)
	behind := axisRank(47.0, 46.5, 1.0)

	assert.Less(t, ahead, current)
	assert.Less(t, current, behind)
	assert.GreaterOrEqual(t, behind, behindPenalty)
}

func TestPrioritizeByBoundaryOrdersAheadTilesFirst(t *testing.T) {
	tiles := []coord.TileCoord{
		tileAt(t, 45.5, 8.5, 14), // behind (south of 47)
		tileAt(t, 48.5, 8.5, 14), // ahead (north of 47)
		tileAt(t, 47.5, 8.5, 14), // current cell
	}

	PrioritizeByBoundary(47.0, 8.5, 0, tiles) // due north

	aheadLat, _ := tiles[0].ToLatLon()
	assert.Greater(t, aheadLat, 47.0, "closest-ahead tile should sort first")
}

func TestPrioritizeByBoundaryEmptySliceDoesNotPanic(t *testing.T) {
	// Every track has at least one active axis (|sin| and |cos| cannot
	// both fall below axisVelocityThreshold), so the pure-distance
	// fallback cannot be reached from a track; this only checks that a
	// zero-tile slice is accepted.
	var tiles []coord.TileCoord
	assert.NotPanics(t, func() {
		PrioritizeByBoundary(47.0, 8.5, 90, tiles)
	})
}
