// Package ortho discovers on-disk scenery package directories ("ortho
// sources") and merges them into a single virtual-path namespace, the way
// an overlay filesystem merges multiple lower directories.
package ortho

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// dsfFilenamePattern matches "[+-]DD[+-]DDD.dsf", e.g. "+33-119.dsf".
var dsfFilenamePattern = regexp.MustCompile(`^([+-]\d{2})([+-]\d{3})\.dsf$`)

// Region is the 1x1 degree DSF cell a source owns resources for.
type Region struct {
	Lat int
	Lon int
}

// Source is one on-disk scenery package: a name, a root path, and the set
// of DSF regions it owns. Ownership follows the DSF — a source that ships
// the DSF for a region is authoritative for every resource in that
// region. A region is either owned outright or not at all.
type Source struct {
	Name    string
	Root    string
	Regions map[Region]struct{}
}

// ScanSources enumerates immediate subdirectories of root, alphabetically
// by name (this order becomes priority order: first source wins on
// collision). A directory missing "Earth nav data/" is excluded. A
// directory that fails to scan is logged and skipped; the rest of the
// scan proceeds.
func ScanSources(root string) ([]*Source, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("ortho: reading %s: %w", root, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	sources := make([]*Source, 0, len(names))
	for _, name := range names {
		path := filepath.Join(root, name)
		src, err := scanSource(name, path)
		if err != nil {
			logrus.WithError(err).WithField("source", name).Warn("ortho: skipping source")
			continue
		}
		sources = append(sources, src)
	}
	return sources, nil
}

// scanSource validates a single candidate directory and extracts its DSF
// regions. A source without "Earth nav data/" is invalid.
func scanSource(name, path string) (*Source, error) {
	navDir := filepath.Join(path, "Earth nav data")
	info, err := os.Stat(navDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("missing Earth nav data directory")
	}

	regions := make(map[Region]struct{})
	if err := collectDSFRegions(navDir, regions); err != nil {
		return nil, fmt.Errorf("scanning Earth nav data: %w", err)
	}
	if len(regions) == 0 {
		return nil, fmt.Errorf("no DSF files found under Earth nav data")
	}

	return &Source{Name: name, Root: path, Regions: regions}, nil
}

func collectDSFRegions(dir string, regions map[Region]struct{}) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		p := filepath.Join(dir, e.Name())
		if e.IsDir() {
			// A subdirectory that fails to scan doesn't invalidate siblings.
			if err := collectDSFRegions(p, regions); err != nil {
				logrus.WithError(err).WithField("dir", p).Warn("ortho: skipping subdirectory")
			}
			continue
		}
		if region, ok := parseDSFRegion(e.Name()); ok {
			regions[region] = struct{}{}
		}
	}
	return nil
}

// parseDSFRegion extracts the region a DSF filename such as "+33-119.dsf"
// names: lat cell 33, lon cell -119.
func parseDSFRegion(name string) (Region, bool) {
	m := dsfFilenamePattern.FindStringSubmatch(name)
	if m == nil {
		return Region{}, false
	}
	lat, err1 := strconv.Atoi(m[1])
	lon, err2 := strconv.Atoi(m[2])
	if err1 != nil || err2 != nil {
		return Region{}, false
	}
	return Region{Lat: lat, Lon: lon}, true
}
