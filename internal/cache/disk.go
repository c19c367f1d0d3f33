package cache

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xearthlayer/xearthlayer/internal/coord"
)

// DiskCache is the on-disk half of the two-tier cache: a chunk tree
// holding fetched provider JPEGs and an artifact tree holding synthesised
// DDS textures, both rooted at the same directory.
//
//	{root}/chunks/{provider}/{zoom}/{row}/{col}/{cr}_{cc}.jpg
//	{root}/tiles/{provider}/{zoom}/{row}/{col}.dds
type DiskCache struct {
	root string
}

// NewDiskCache returns a DiskCache rooted at dir. The directory is created
// lazily by the first write.
func NewDiskCache(dir string) *DiskCache {
	return &DiskCache{root: dir}
}

// ChunkPath returns the path a provider sub-tile is stored at.
func (d *DiskCache) ChunkPath(provider string, tile coord.TileCoord, chunkRow, chunkCol uint8) string {
	return filepath.Join(d.root, "chunks", provider, fmt.Sprint(tile.Zoom), fmt.Sprint(tile.Row), fmt.Sprint(tile.Col),
		fmt.Sprintf("%d_%d.jpg", chunkRow, chunkCol))
}

// ArtifactPath returns the path a synthesised DDS artifact is stored at.
func (d *DiskCache) ArtifactPath(key Key) string {
	return filepath.Join(d.root, "tiles", key.ProviderID, fmt.Sprint(key.Tile.Zoom), fmt.Sprint(key.Tile.Row),
		fmt.Sprintf("%d.dds", key.Tile.Col))
}

// ReadChunk reads a cached provider sub-tile, returning ok=false on any
// miss (including a genuine I/O error — callers treat disk-cache errors
// as cache misses, not fatal faults).
func (d *DiskCache) ReadChunk(provider string, tile coord.TileCoord, chunkRow, chunkCol uint8) ([]byte, bool) {
	data, err := os.ReadFile(d.ChunkPath(provider, tile, chunkRow, chunkCol))
	if err != nil {
		return nil, false
	}
	return data, true
}

// WriteChunk persists a fetched provider sub-tile, creating any missing
// parent directories.
func (d *DiskCache) WriteChunk(provider string, tile coord.TileCoord, chunkRow, chunkCol uint8, data []byte) error {
	return writeFileAtomic(d.ChunkPath(provider, tile, chunkRow, chunkCol), data)
}

// ReadArtifact reads a cached DDS artifact, returning ok=false on any miss.
func (d *DiskCache) ReadArtifact(key Key) ([]byte, bool) {
	data, err := os.ReadFile(d.ArtifactPath(key))
	if err != nil {
		return nil, false
	}
	return data, true
}

// WriteArtifact persists a synthesised DDS artifact, creating any missing
// parent directories.
func (d *DiskCache) WriteArtifact(key Key, data []byte) error {
	return writeFileAtomic(d.ArtifactPath(key), data)
}

// HasArtifact reports whether key's artifact exists on disk, without
// reading its contents.
func (d *DiskCache) HasArtifact(key Key) bool {
	_, err := os.Stat(d.ArtifactPath(key))
	return err == nil
}

// writeFileAtomic writes data to a temp file alongside path then renames
// it into place, so a reader never observes a partially written file.
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cache: mkdir for %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("cache: create temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("cache: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cache: close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("cache: rename into %s: %w", path, err)
	}
	return nil
}
