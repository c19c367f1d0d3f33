package cache

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Cache owns both tiers and the background disk GC daemon. The GC is
// started and stopped exclusively through this type's own Start/Shutdown
// so a caller can never wire the disk tier without also wiring its
// collector — a known historical failure mode this ownership rule
// closes off.
type Cache struct {
	Memory *MemoryCache
	Disk   *DiskCache

	gcInterval  time.Duration
	diskBudget  int64
	stopCh      chan struct{}
	wg          sync.WaitGroup
	startOnce   sync.Once
	stopOnce    sync.Once
}

// New returns a Cache wrapping the given tiers. gcInterval and diskBudget
// configure the background collector; Start must be called before the
// GC daemon runs.
func New(mem *MemoryCache, disk *DiskCache, gcInterval time.Duration, diskBudget int64) *Cache {
	return &Cache{
		Memory:     mem,
		Disk:       disk,
		gcInterval: gcInterval,
		diskBudget: diskBudget,
		stopCh:     make(chan struct{}),
	}
}

// Start launches the background GC goroutine. Safe to call once; later
// calls are no-ops.
func (c *Cache) Start() {
	c.startOnce.Do(func() {
		c.wg.Add(1)
		go c.gcLoop()
	})
}

// Shutdown stops the GC goroutine and waits for it to exit. Safe to call
// multiple times or without a prior Start.
func (c *Cache) Shutdown() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
	c.wg.Wait()
}

func (c *Cache) gcLoop() {
	defer c.wg.Done()
	if c.gcInterval <= 0 {
		return
	}
	ticker := time.NewTicker(c.gcInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			if err := c.runGC(); err != nil {
				logrus.WithError(err).Warn("cache: GC pass failed")
			}
		}
	}
}

type diskFile struct {
	path  string
	size  int64
	mtime time.Time
}

// runGC walks the disk tier, sums sizes, and removes the oldest files (by
// mtime) until the tree is back under diskBudget. A single pass; the
// caller (gcLoop) re-runs it every gcInterval.
func (c *Cache) runGC() error {
	if c.diskBudget <= 0 || c.Disk == nil {
		return nil
	}

	var files []diskFile
	var total int64
	err := filepath.WalkDir(c.Disk.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		files = append(files, diskFile{path: path, size: info.Size(), mtime: info.ModTime()})
		total += info.Size()
		return nil
	})
	if err != nil {
		return err
	}

	if total <= c.diskBudget {
		return nil
	}

	sort.Slice(files, func(i, j int) bool { return files[i].mtime.Before(files[j].mtime) })

	for _, f := range files {
		if total <= c.diskBudget {
			break
		}
		if rmErr := os.Remove(f.path); rmErr != nil {
			logrus.WithError(rmErr).WithField("path", f.path).Warn("cache: GC failed to remove file")
			continue
		}
		total -= f.size
	}
	return nil
}
