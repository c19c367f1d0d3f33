// Package collab names the narrow interfaces through which the core
// synthesis pipeline could one day be wired to collaborators that are
// explicitly out of scope here: a package installer, an archive
// publisher, a terminal dashboard, and X-Plane installation discovery.
// None of these are implemented; the point of the package is that the
// core never needs to change to accept a real implementation later.
package collab

import "context"

// Installer fetches and unpacks third-party scenery packages into a
// scenery root. Out of scope: spec.md names package installation a
// non-goal.
type Installer interface {
	Install(ctx context.Context, packageRef, destRoot string) error
}

// Publisher builds and uploads a distributable archive of a cache's
// contents. Out of scope: archive publishing is a non-goal.
type Publisher interface {
	Publish(ctx context.Context, cacheRoot, destination string) error
}

// Dashboard renders live operator-facing statistics (cache hit rate,
// pool utilization, prefetch state). Out of scope: the terminal
// dashboard's rendering is a non-goal; only the stats structures that
// would feed it are in scope.
type Dashboard interface {
	Render(ctx context.Context, stats Stats) error
}

// Stats is the minimal set of figures a Dashboard implementation would
// need, drawn from executor/cache/prefetch state. Nothing in this
// repository assembles one yet.
type Stats struct {
	CacheHitRate      float64
	PoolUtilization   float64
	PrefetchQueueSize int
}

// InstallDiscovery locates an X-Plane installation on the host so a
// future installer could target its Custom Scenery folder. Out of
// scope: installation discovery is a non-goal.
type InstallDiscovery interface {
	FindInstallations(ctx context.Context) ([]string, error)
}
