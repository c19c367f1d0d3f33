// Package cache implements the two-tier artifact cache: an in-memory
// weighted LRU in front of a disk-backed chunk/artifact tree with a
// background garbage collector.
package cache

import (
	"fmt"

	"github.com/xearthlayer/xearthlayer/internal/coord"
	"github.com/xearthlayer/xearthlayer/internal/dds"
)

// Key identifies one cached artifact. Distinct providers never collide
// even at the same tile coordinate.
type Key struct {
	ProviderID string
	Format     dds.Format
	Tile       coord.TileCoord
}

// String renders the key for use as a map/LRU key. Distinct providers or
// formats at the same tile coordinate never collide.
func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%d/%d/%d", k.ProviderID, k.Format, k.Tile.Zoom, k.Tile.Row, k.Tile.Col)
}
