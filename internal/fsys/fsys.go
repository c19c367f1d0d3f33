// Package fsys mounts XEarthLayer's read-only POSIX tree: the union
// index's real files served verbatim, and DDS textures under "textures/"
// synthesised on demand through the pipeline when a requested filename
// matches the grammar but isn't already materialised.
package fsys

import (
	"context"
	"os"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/sirupsen/logrus"

	"github.com/xearthlayer/xearthlayer/internal/cache"
	"github.com/xearthlayer/xearthlayer/internal/config"
	"github.com/xearthlayer/xearthlayer/internal/coord"
	"github.com/xearthlayer/xearthlayer/internal/dds"
	"github.com/xearthlayer/xearthlayer/internal/executor"
	"github.com/xearthlayer/xearthlayer/internal/ortho"
	"github.com/xearthlayer/xearthlayer/internal/pipeline"
)

// topLevelDirs are the fixed entries every scenery source is walked
// under and which the façade exposes at its root.
var topLevelDirs = []string{"Earth nav data", "terrain", "textures"}

// Deps bundles everything the façade needs beyond the mount point
// itself: the merged view of on-disk scenery sources, the provider
// registry, and the synthesis machinery for textures absent from it.
type Deps struct {
	Index    *ortho.UnionIndex
	Config   *config.Config
	Cache    *cache.Cache
	Pools    *executor.Pools
	Executor *executor.Executor

	// ReadCount is incremented once per Read call on a synthesised
	// texture; reads of union-resolved files are not counted. The façade
	// never resets it.
	ReadCount *uint64
}

// Mount starts a FUSE server rooted at mountPoint and returns once the
// initial mount handshake completes. Call Unmount (via the returned
// server) to tear it down.
func Mount(mountPoint string, deps Deps) (*fuse.Server, error) {
	root := &rootNode{deps: deps}
	opts := &fs.Options{
		MountOptions: fuse.MountOptions{
			FsName:  "xearthlayer",
			Name:    "xearthlayer",
			Options: []string{"ro"},
		},
		EntryTimeout: durationPtr(time.Second),
		AttrTimeout:  durationPtr(time.Second),
	}
	server, err := fs.Mount(mountPoint, root, opts)
	if err != nil {
		return nil, err
	}
	return server, nil
}

func durationPtr(d time.Duration) *time.Duration { return &d }

// rootNode is the mount point. Its only children are the fixed
// top-level directories; everything else is resolved lazily.
type rootNode struct {
	fs.Inode
	deps Deps
}

var _ fs.NodeLookuper = (*rootNode)(nil)
var _ fs.NodeReaddirer = (*rootNode)(nil)
var _ fs.NodeGetattrer = (*rootNode)(nil)

func (r *rootNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = syscall.S_IFDIR | 0o555
	return 0
}

func (r *rootNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	entries := make([]fuse.DirEntry, 0, len(topLevelDirs))
	for _, name := range topLevelDirs {
		entries = append(entries, fuse.DirEntry{Name: name, Mode: syscall.S_IFDIR})
	}
	return fs.NewListDirStream(entries), 0
}

func (r *rootNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	for _, top := range topLevelDirs {
		if name != top {
			continue
		}
		out.Mode = syscall.S_IFDIR | 0o555
		if name == "textures" {
			child := &texturesNode{deps: r.deps, virtualPath: name}
			return r.NewInode(ctx, child, fs.StableAttr{Mode: syscall.S_IFDIR}), 0
		}
		child := &unionNode{idx: r.deps.Index, virtualPath: name}
		return r.NewInode(ctx, child, fs.StableAttr{Mode: syscall.S_IFDIR}), 0
	}
	return nil, syscall.ENOENT
}

// unionNode is a directory or file resolved entirely through the union
// index: "Earth nav data/" and "terrain/" and any already-materialised
// file under "textures/".
type unionNode struct {
	fs.Inode
	idx         *ortho.UnionIndex
	virtualPath string
}

var _ fs.NodeLookuper = (*unionNode)(nil)
var _ fs.NodeReaddirer = (*unionNode)(nil)
var _ fs.NodeGetattrer = (*unionNode)(nil)

func (n *unionNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = syscall.S_IFDIR | 0o555
	return 0
}

func (n *unionNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	listing := n.idx.ListDirectory(n.virtualPath)
	entries := make([]fuse.DirEntry, 0, len(listing))
	for _, e := range listing {
		mode := uint32(syscall.S_IFREG)
		if e.IsDir {
			mode = syscall.S_IFDIR
		}
		entries = append(entries, fuse.DirEntry{Name: e.Name, Mode: mode})
	}
	return fs.NewListDirStream(entries), 0
}

func (n *unionNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	childVirtual := n.virtualPath + "/" + name

	if n.idx.IsDirectory(childVirtual) {
		out.Mode = syscall.S_IFDIR | 0o555
		child := &unionNode{idx: n.idx, virtualPath: childVirtual}
		return n.NewInode(ctx, child, fs.StableAttr{Mode: syscall.S_IFDIR}), 0
	}

	entry, ok := n.idx.Resolve(childVirtual)
	if !ok {
		return nil, syscall.ENOENT
	}
	out.Mode = syscall.S_IFREG | 0o444
	child := &realFileNode{realPath: entry.RealPath}
	return n.NewInode(ctx, child, fs.StableAttr{Mode: syscall.S_IFREG}), 0
}

// texturesNode is the "textures" directory: union-resolved files are
// served verbatim, and any other name matching the DDS filename grammar
// for a configured provider is synthesised on demand.
type texturesNode struct {
	fs.Inode
	deps        Deps
	virtualPath string
}

var _ fs.NodeLookuper = (*texturesNode)(nil)
var _ fs.NodeReaddirer = (*texturesNode)(nil)
var _ fs.NodeGetattrer = (*texturesNode)(nil)

func (n *texturesNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = syscall.S_IFDIR | 0o555
	return 0
}

func (n *texturesNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	listing := n.deps.Index.ListDirectory(n.virtualPath)
	entries := make([]fuse.DirEntry, 0, len(listing))
	for _, e := range listing {
		mode := uint32(syscall.S_IFREG)
		if e.IsDir {
			mode = syscall.S_IFDIR
		}
		entries = append(entries, fuse.DirEntry{Name: e.Name, Mode: mode})
	}
	return fs.NewListDirStream(entries), 0
}

func (n *texturesNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	childVirtual := n.virtualPath + "/" + name

	if entry, ok := n.deps.Index.Resolve(childVirtual); ok {
		out.Mode = syscall.S_IFREG | 0o444
		child := &realFileNode{realPath: entry.RealPath}
		return n.NewInode(ctx, child, fs.StableAttr{Mode: syscall.S_IFREG}), 0
	}

	filename, err := coord.ParseFilename(name)
	if err != nil {
		return nil, syscall.ENOENT
	}
	provider, ok := n.deps.Config.ProviderByID(filename.MapType)
	if !ok {
		return nil, syscall.ENOENT
	}

	format := dds.BC1
	if provider.Format == "BC3" {
		format = dds.BC3
	}
	mipCount := provider.MipCount
	if mipCount <= 0 {
		mipCount = dds.StandardMipCount
	}

	out.Mode = syscall.S_IFREG | 0o444
	child := &syntheticTextureNode{
		deps:     n.deps,
		tile:     filename.TileCoord(),
		provider: provider,
		format:   format,
		mipCount: mipCount,
	}
	return n.NewInode(ctx, child, fs.StableAttr{Mode: syscall.S_IFREG}), 0
}

// syntheticTextureNode represents a DDS texture that may not yet exist
// on disk. Getattr reports the artifact's expected size regardless of
// synthesis state so readers size their buffers correctly; Read
// triggers synthesis (coalesced through the executor) on first access.
type syntheticTextureNode struct {
	fs.Inode
	deps     Deps
	tile     coord.TileCoord
	provider config.Provider
	format   dds.Format
	mipCount int
}

var _ fs.NodeGetattrer = (*syntheticTextureNode)(nil)
var _ fs.NodeOpener = (*syntheticTextureNode)(nil)
var _ fs.NodeReader = (*syntheticTextureNode)(nil)

func (n *syntheticTextureNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = syscall.S_IFREG | 0o444
	out.Size = uint64(dds.ExpectedSize(n.format, coord.ArtifactPixels, coord.ArtifactPixels, n.mipCount))
	out.Mtime = 0
	out.Atime = 0
	out.Ctime = 0
	return 0
}

func (n *syntheticTextureNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	return nil, fuse.FOPEN_DIRECT_IO, 0
}

// Read synthesises (or fetches from cache) the full artifact through the
// executor, then serves the requested byte range. Concurrent reads of
// the same tile coalesce in the executor rather than triggering
// redundant pipeline runs.
func (n *syntheticTextureNode) Read(ctx context.Context, f fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	if n.deps.ReadCount != nil {
		atomic.AddUint64(n.deps.ReadCount, 1)
	}

	key := cache.Key{ProviderID: n.provider.ID, Format: n.format, Tile: n.tile}
	cfg := pipeline.Config{
		Source:      pipeline.URLTemplateSource{Template: n.provider.URLTemplate},
		Format:      n.format,
		MapType:     n.provider.ID,
		MipCount:    n.mipCount,
		FetchConfig: pipeline.DefaultFetchConfig(),
	}

	result, err := n.deps.Executor.Submit(ctx, n.tile, executor.High, func(ctx context.Context, pools *executor.Pools, priority executor.Priority) (interface{}, error) {
		return pipeline.Run(ctx, pools, n.deps.Cache, key, cfg, priority), nil
	})
	if err != nil {
		logrus.WithError(err).WithField("tile", n.tile.String()).Warn("fsys: synthesis request cancelled or failed")
		return nil, syscall.EIO
	}

	artifact, ok := result.([]byte)
	if !ok {
		return nil, syscall.EIO
	}

	end := off + int64(len(dest))
	if off >= int64(len(artifact)) {
		return fuse.ReadResultData(nil), 0
	}
	if end > int64(len(artifact)) {
		end = int64(len(artifact))
	}
	return fuse.ReadResultData(artifact[off:end]), 0
}

// realFileNode is a leaf backed by an actual file on disk, served via
// pread so the façade never holds a whole scenery file in memory.
type realFileNode struct {
	fs.Inode
	realPath string
}

var _ fs.NodeGetattrer = (*realFileNode)(nil)
var _ fs.NodeOpener = (*realFileNode)(nil)
var _ fs.NodeReader = (*realFileNode)(nil)

func (n *realFileNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	info, err := os.Stat(n.realPath)
	if err != nil {
		return syscall.ENOENT
	}
	out.Mode = syscall.S_IFREG | 0o444
	out.Size = uint64(info.Size())
	out.Mtime = uint64(info.ModTime().Unix())
	return 0
}

func (n *realFileNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	return nil, fuse.FOPEN_DIRECT_IO, 0
}

func (n *realFileNode) Read(ctx context.Context, f fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	file, err := os.Open(n.realPath)
	if err != nil {
		return nil, syscall.EIO
	}
	defer file.Close()

	count, err := file.ReadAt(dest, off)
	if err != nil && count == 0 {
		return nil, syscall.EIO
	}
	return fuse.ReadResultData(dest[:count]), 0
}
