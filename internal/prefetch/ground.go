package prefetch

import (
	"math"
	"sort"

	"github.com/xearthlayer/xearthlayer/internal/coord"
)

// RingWidthDeg is the width of the ground prefetch ring, in DSF tiles.
const RingWidthDeg = 1

// DefaultLoadedLatExtent and DefaultLoadedLonExtent are used to estimate
// X-Plane's loaded scenery area when no cached tiles are available yet to
// derive it from.
const (
	DefaultLoadedLatExtent = 3
	DefaultLoadedLonExtent = 4
)

// groundFallbackZoom is the zoom level used to synthesize a coverage grid
// for a DSF tile when no scenery-index lookup is available.
const groundFallbackZoom = 14

// LoadedAreaBounds is the bounding box, in DSF tiles, of the scenery area
// X-Plane has already loaded around the aircraft.
type LoadedAreaBounds struct {
	LatMin, LatMax int
	LonMin, LonMax int
}

// DefaultLoadedAreaBounds estimates bounds centered on (lat, lon) using the
// standard extent estimates, for use before any tiles have been cached.
func DefaultLoadedAreaBounds(lat, lon float64) LoadedAreaBounds {
	centerLat := int(math.Floor(lat))
	centerLon := int(math.Floor(lon))
	halfLat := (DefaultLoadedLatExtent - 1) / 2
	halfLon := (DefaultLoadedLonExtent - 1) / 2

	latMin := centerLat - halfLat
	lonMin := centerLon - halfLon
	return LoadedAreaBounds{
		LatMin: latMin,
		LatMax: latMin + DefaultLoadedLatExtent - 1,
		LonMin: lonMin,
		LonMax: lonMin + DefaultLoadedLonExtent - 1,
	}
}

// LoadedAreaBoundsFromTiles derives bounds from the bounding box of already
// cached DDS tiles, converted to their containing DSF cells. Returns false
// if tiles is empty.
func LoadedAreaBoundsFromTiles(tiles []coord.TileCoord) (LoadedAreaBounds, bool) {
	if len(tiles) == 0 {
		return LoadedAreaBounds{}, false
	}
	latMin, lonMin := tiles[0].DSFRegion()
	latMax, lonMax := latMin, lonMin
	for _, t := range tiles[1:] {
		la, lo := t.DSFRegion()
		if la < latMin {
			latMin = la
		}
		if la > latMax {
			latMax = la
		}
		if lo < lonMin {
			lonMin = lo
		}
		if lo > lonMax {
			lonMax = lo
		}
	}
	return LoadedAreaBounds{LatMin: latMin, LatMax: latMax, LonMin: lonMin, LonMax: lonMax}, true
}

// Width returns the bounds' longitude extent in DSF tiles.
func (b LoadedAreaBounds) Width() int { return b.LonMax - b.LonMin + 1 }

// Height returns the bounds' latitude extent in DSF tiles.
func (b LoadedAreaBounds) Height() int { return b.LatMax - b.LatMin + 1 }

// Contains reports whether dsf lies inside the bounds.
func (b LoadedAreaBounds) Contains(dsf DSFTile) bool {
	return dsf.Lat >= b.LatMin && dsf.Lat <= b.LatMax && dsf.Lon >= b.LonMin && dsf.Lon <= b.LonMax
}

// SceneryLookup resolves a DSF tile to the DDS artifact tiles already
// indexed as covering it, letting GroundStrategy prefer real scenery
// package coverage over a synthesized grid. No type in this repository
// implements it and nothing sets GroundStrategy.SceneryIndex, so the
// synthesized grid is what is used; nil is a valid "no index available"
// zero value.
type SceneryLookup interface {
	TilesNear(lat, lon float64, radiusNM float64) []coord.TileCoord
}

// GroundStrategy prefetches a 1-DSF-tile-wide ring around the perimeter of
// X-Plane's loaded scenery area: ground operations (taxi, parking, pattern
// work) rarely leave that area, so the ring is what the aircraft is most
// likely to cross into next.
type GroundStrategy struct {
	SceneryIndex  SceneryLookup
	MaxTiles      int
	LoadedBounds  *LoadedAreaBounds
}

// NewGroundStrategy builds a GroundStrategy with the given per-cycle tile
// budget and no explicit bounds or scenery index (bounds are derived from
// cached tiles or the default estimate).
func NewGroundStrategy(maxTiles int) *GroundStrategy {
	return &GroundStrategy{MaxTiles: maxTiles}
}

// CalculateRing computes the ring of DSF tiles around the loaded area,
// sorted by distance from position, along with the bounds used.
func (g *GroundStrategy) CalculateRing(lat, lon float64, cached []coord.TileCoord) ([]DSFTile, LoadedAreaBounds) {
	var bounds LoadedAreaBounds
	switch {
	case g.LoadedBounds != nil:
		bounds = *g.LoadedBounds
	default:
		if derived, ok := LoadedAreaBoundsFromTiles(cached); ok {
			bounds = derived
		} else {
			bounds = DefaultLoadedAreaBounds(lat, lon)
		}
	}

	var ring []DSFTile
	northLat := bounds.LatMax + RingWidthDeg
	southLat := bounds.LatMin - RingWidthDeg
	for lo := bounds.LonMin - RingWidthDeg; lo <= bounds.LonMax+RingWidthDeg; lo++ {
		ring = append(ring, DSFTile{Lat: northLat, Lon: lo})
		ring = append(ring, DSFTile{Lat: southLat, Lon: lo})
	}
	eastLon := bounds.LonMax + RingWidthDeg
	westLon := bounds.LonMin - RingWidthDeg
	for la := bounds.LatMin; la <= bounds.LatMax; la++ {
		ring = append(ring, DSFTile{Lat: la, Lon: eastLon})
		ring = append(ring, DSFTile{Lat: la, Lon: westLon})
	}

	ring = dedupDSF(sortedDSF(ring))
	sortByDistance(ring, lat, lon)
	return ring, bounds
}

// Plan returns the prioritized, budget-truncated list of DDS tiles to
// prefetch for the ring around (lat, lon), excluding tiles already cached.
func (g *GroundStrategy) Plan(lat, lon float64, cached []coord.TileCoord) []coord.TileCoord {
	ring, _ := g.CalculateRing(lat, lon, cached)
	if len(ring) == 0 {
		return nil
	}

	cachedSet := make(map[coord.TileCoord]struct{}, len(cached))
	for _, t := range cached {
		cachedSet[t] = struct{}{}
	}

	seen := make(map[coord.TileCoord]struct{})
	var all []coord.TileCoord
	for _, dsf := range ring {
		for _, t := range g.ddsTilesInDSF(dsf) {
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

	sort.Slice(all, func(i, j int) bool {
		latI, lonI := all[i].ToLatLon()
		latJ, lonJ := all[j].ToLatLon()
		di := (latI-lat)*(latI-lat) + (lonI-lon)*(lonI-lon)
		dj := (latJ-lat)*(latJ-lat) + (lonJ-lon)*(lonJ-lon)
		return di < dj
	})

	if g.MaxTiles > 0 && len(all) > g.MaxTiles {
		all = all[:g.MaxTiles]
	}
	return all
}

// ddsTilesInDSF resolves dsf to DDS artifact tiles, preferring a scenery
// index lookup and falling back to a synthesized 4x4 coverage grid at
// groundFallbackZoom so ground prefetch still works without installed
// scenery packages.
func (g *GroundStrategy) ddsTilesInDSF(dsf DSFTile) []coord.TileCoord {
	if g.SceneryIndex != nil {
		centerLat, centerLon := dsf.Center()
		if tiles := g.SceneryIndex.TilesNear(centerLat, centerLon, 45.0); len(tiles) > 0 {
			return tiles
		}
	}
	return g.generateGridForDSF(dsf)
}

func (g *GroundStrategy) generateGridForDSF(dsf DSFTile) []coord.TileCoord {
	latMin := float64(dsf.Lat)
	lonMin := float64(dsf.Lon)

	var tiles []coord.TileCoord
	for latStep := 0; latStep < 4; latStep++ {
		for lonStep := 0; lonStep < 4; lonStep++ {
			lat := latMin + (float64(latStep)+0.5)*0.25
			lon := lonMin + (float64(lonStep)+0.5)*0.25
			if tc, err := coord.ToTileCoord(lat, lon, groundFallbackZoom); err == nil {
				tiles = append(tiles, tc)
			}
		}
	}
	return tiles
}

func sortedDSF(tiles []DSFTile) []DSFTile {
	sort.Slice(tiles, func(i, j int) bool {
		if tiles[i].Lat != tiles[j].Lat {
			return tiles[i].Lat < tiles[j].Lat
		}
		return tiles[i].Lon < tiles[j].Lon
	})
	return tiles
}
