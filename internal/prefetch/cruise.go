package prefetch

import (
	"github.com/xearthlayer/xearthlayer/internal/coord"
)

// cruiseFallbackZoom is the zoom level used to synthesize DDS coverage for
// a cruise-band DSF tile, matching GroundStrategy's fallback zoom.
const cruiseFallbackZoom = 14

// CruiseStrategy prefetches DSF-aligned bands of tiles ahead of the
// aircraft's track: a single band perpendicular to a cardinal heading, or
// two overlapping bands (latitude and longitude) for a diagonal heading.
// It only produces a plan while the turn detector reports Stable — a band
// computed from a track that is still swinging would point the wrong way
// by the time it finishes loading.
type CruiseStrategy struct {
	Bands    BandCalculator
	MaxTiles int
}

// NewCruiseStrategy builds a CruiseStrategy with the given lead distance
// (DSF tiles ahead), band half-width (DSF tiles either side), and
// per-cycle tile budget.
func NewCruiseStrategy(leadDistance, bandWidth, maxTiles int) *CruiseStrategy {
	return &CruiseStrategy{
		Bands:    BandCalculator{LeadDistance: leadDistance, BandWidth: bandWidth},
		MaxTiles: maxTiles,
	}
}

// Plan returns the prioritized, budget-truncated list of DDS tiles to
// prefetch ahead of (lat, lon) on heading track, excluding tiles already
// cached. Tiles are ordered by DSF-boundary urgency, since X-Plane
// triggers scenery loads at boundary crossings.
func (c *CruiseStrategy) Plan(lat, lon, track float64, cached []coord.TileCoord) []coord.TileCoord {
	dsfTiles := c.Bands.CalculateBands(lat, lon, track)
	if len(dsfTiles) == 0 {
		return nil
	}

	cachedSet := make(map[coord.TileCoord]struct{}, len(cached))
	for _, t := range cached {
		cachedSet[t] = struct{}{}
	}

	seen := make(map[coord.TileCoord]struct{})
	var all []coord.TileCoord
	for _, dsf := range dsfTiles {
		for _, t := range c.ddsTilesInDSF(dsf) {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			if _, cached := cachedSet[t]; cached {
				continue
			}
			all = append(all, t)
		}
	}

	PrioritizeByBoundary(lat, lon, track, all)

	if c.MaxTiles > 0 && len(all) > c.MaxTiles {
		all = all[:c.MaxTiles]
	}
	return all
}

func (c *CruiseStrategy) ddsTilesInDSF(dsf DSFTile) []coord.TileCoord {
	latMin := float64(dsf.Lat)
	lonMin := float64(dsf.Lon)

	var tiles []coord.TileCoord
	for latStep := 0; latStep < 4; latStep++ {
		for lonStep := 0; lonStep < 4; lonStep++ {
			lat := latMin + (float64(latStep)+0.5)*0.25
			lon := lonMin + (float64(lonStep)+0.5)*0.25
			if tc, err := coord.ToTileCoord(lat, lon, cruiseFallbackZoom); err == nil {
				tiles = append(tiles, tc)
			}
		}
	}
	return tiles
}
