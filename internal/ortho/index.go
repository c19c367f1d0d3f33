package ortho

import (
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/xearthlayer/xearthlayer/internal/coord"
)

// FileEntry records which source provided a resolved virtual path.
type FileEntry struct {
	SourceName string
	RealPath   string
}

// DirEntry is one entry in a virtual directory listing.
type DirEntry struct {
	Name    string
	IsDir   bool
	Size    int64
	ModTime time.Time
}

// UnionIndex is the merged read-only view over an ordered list of
// Sources: a virtual relative path resolves to exactly one real file (the
// earliest source that provides it), a virtual directory resolves to the
// merged listing of every source that contributes entries to it, and a
// DSF region resolves to the ordered list of sources that own it.
type UnionIndex struct {
	sourceNames []string
	files       map[string]FileEntry
	directories map[string][]DirEntry
	regionOwner map[Region][]*Source
}

// BuildIndex merges sources in the given order (earlier entries take
// priority on path collision). Sources are walked under "Earth nav data/",
// "terrain/" and "textures/", the trees XEarthLayer resources live in.
func BuildIndex(sources []*Source) *UnionIndex {
	idx := &UnionIndex{
		files:       make(map[string]FileEntry),
		directories: make(map[string][]DirEntry),
		regionOwner: make(map[Region][]*Source),
	}
	for _, src := range sources {
		idx.sourceNames = append(idx.sourceNames, src.Name)
		for region := range src.Regions {
			idx.regionOwner[region] = append(idx.regionOwner[region], src)
		}
		for _, sub := range []string{"Earth nav data", "terrain", "textures"} {
			if err := idx.addTree(src, sub); err != nil {
				logrus.WithError(err).WithFields(logrus.Fields{
					"source": src.Name, "subtree": sub,
				}).Warn("ortho: error walking source subtree")
			}
		}
	}
	return idx
}

// addTree walks {src.Root}/{subdir}, recording every file under the
// virtual path "{subdir}/{relative path}" (first source wins on
// collision) and merging directory listings at every level so readdir
// sees the union of every source's entries, like an overlay filesystem.
func (idx *UnionIndex) addTree(src *Source, subdir string) error {
	root := filepath.Join(src.Root, subdir)
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil
	}
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(src.Root, path)
		if relErr != nil {
			return nil
		}
		virtual := filepath.ToSlash(rel)
		parent := filepath.ToSlash(filepath.Dir(virtual))
		if parent == "." {
			parent = ""
		}

		fileInfo, statErr := d.Info()
		var size int64
		var mtime time.Time
		if statErr == nil {
			size = fileInfo.Size()
			mtime = fileInfo.ModTime()
		}

		if !dirListContains(idx.directories[parent], d.Name()) {
			idx.directories[parent] = append(idx.directories[parent], DirEntry{
				Name: d.Name(), IsDir: d.IsDir(), Size: size, ModTime: mtime,
			})
		}

		if d.IsDir() {
			if _, ok := idx.directories[virtual]; !ok {
				idx.directories[virtual] = nil
			}
			return nil
		}

		if _, exists := idx.files[virtual]; !exists {
			idx.files[virtual] = FileEntry{SourceName: src.Name, RealPath: path}
		}
		return nil
	})
}

func dirListContains(entries []DirEntry, name string) bool {
	for _, e := range entries {
		if e.Name == name {
			return true
		}
	}
	return false
}

// IsDirectory reports whether virtualPath names a directory contributed
// by any source ("" is the root).
func (idx *UnionIndex) IsDirectory(virtualPath string) bool {
	_, ok := idx.directories[filepath.ToSlash(virtualPath)]
	return ok
}

// ListDirectory returns the merged entries of virtualPath across every
// source that contributes to it, or nil if no source has that directory.
func (idx *UnionIndex) ListDirectory(virtualPath string) []DirEntry {
	return idx.directories[filepath.ToSlash(virtualPath)]
}

// Resolve maps a virtual relative path (e.g. "textures/4096_2048_BI16.dds")
// to the real file that backs it, if any source provides it.
func (idx *UnionIndex) Resolve(virtualPath string) (FileEntry, bool) {
	entry, ok := idx.files[filepath.ToSlash(virtualPath)]
	return entry, ok
}

// DDSExists reports whether some source has already materialised the
// given tile's artifact on disk, e.g. a hand-placed airport patch or a
// previously saved artifact.
func (idx *UnionIndex) DDSExists(tile coord.TileCoord, mapType string) bool {
	_, ok := idx.Resolve("textures/" + coord.FilenameFor(tile, mapType))
	return ok
}

// SourcesForRegion returns the sources that own the given DSF region, in
// deterministic insertion (priority) order. Returns nil if no source
// owns the region.
func (idx *UnionIndex) SourcesForRegion(lat, lon int) []*Source {
	return idx.regionOwner[Region{Lat: lat, Lon: lon}]
}

// SourceNames returns the names of every source folded into the index,
// in priority order.
func (idx *UnionIndex) SourceNames() []string {
	return idx.sourceNames
}

// FileCount returns the number of distinct virtual paths resolved.
func (idx *UnionIndex) FileCount() int {
	return len(idx.files)
}

// IsEmpty reports whether the index has no sources.
func (idx *UnionIndex) IsEmpty() bool {
	return len(idx.sourceNames) == 0
}
