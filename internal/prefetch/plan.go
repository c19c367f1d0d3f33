package prefetch

import (
	"time"

	"github.com/xearthlayer/xearthlayer/internal/coord"
)

// PlanMetadata carries the reasoning behind a Plan, for logging and future
// UI/dashboard reporting.
type PlanMetadata struct {
	BoundsSource  string
	DSFTileCount  int
	Bounds        *LoadedAreaBounds
	TrackQuadrant string
}

// Plan is the result of a prefetch calculation: the tiles to submit, in
// priority order, plus bookkeeping about how the list was produced.
type Plan struct {
	Tiles               []coord.TileCoord
	EstimatedCompletion time.Duration
	Strategy            string
	SkippedCached       int
	TotalConsidered     int
	Metadata            *PlanMetadata
}

// EmptyPlan returns a plan with no tiles, e.g. because no strategy is
// currently applicable.
func EmptyPlan(strategy string) Plan {
	return Plan{Strategy: strategy}
}

// IsEmpty reports whether the plan has no tiles to prefetch.
func (p Plan) IsEmpty() bool { return len(p.Tiles) == 0 }
