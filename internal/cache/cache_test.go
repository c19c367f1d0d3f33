package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xearthlayer/xearthlayer/internal/coord"
	"github.com/xearthlayer/xearthlayer/internal/dds"
)

func TestMemoryCacheEvictsLRU(t *testing.T) {
	mc := NewMemoryCache(10)
	mc.Put("a", make([]byte, 4))
	mc.Put("b", make([]byte, 4))
	// Touch "a" so "b" becomes least recently used.
	_, _ = mc.Get("a")
	mc.Put("c", make([]byte, 4)) // total would be 12 > 10, evicts "b"

	_, ok := mc.Get("b")
	assert.False(t, ok)
	_, ok = mc.Get("a")
	assert.True(t, ok)
	_, ok = mc.Get("c")
	assert.True(t, ok)
}

func TestMemoryCacheStatsMonotonic(t *testing.T) {
	mc := NewMemoryCache(1024)
	mc.Put("k", []byte("hello"))
	_, _ = mc.Get("k")
	_, _ = mc.Get("missing")

	stats := mc.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, 1, stats.EntryCount)
	assert.EqualValues(t, 5, stats.CurrentWeight)
}

func TestMemoryCacheNeverExceedsBoundAfterEviction(t *testing.T) {
	mc := NewMemoryCache(100)
	for i := 0; i < 50; i++ {
		mc.Put(fmt.Sprintf("key-%d", i), make([]byte, 10))
	}
	assert.LessOrEqual(t, mc.Stats().CurrentWeight, int64(100))
}

func TestMemoryCachePutOversizedEntryEvictsAllButKeepsIt(t *testing.T) {
	mc := NewMemoryCache(10)
	mc.Put("a", make([]byte, 4))
	mc.Put("b", make([]byte, 4))
	mc.Put("huge", make([]byte, 40)) // alone exceeds the 10-byte budget

	_, ok := mc.Get("a")
	assert.False(t, ok)
	_, ok = mc.Get("b")
	assert.False(t, ok)
	data, ok := mc.Get("huge")
	require.True(t, ok)
	assert.Len(t, data, 40)
	assert.EqualValues(t, 40, mc.Stats().CurrentWeight)
}

func TestDiskCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	dc := NewDiskCache(dir)
	key := Key{ProviderID: "bing", Format: dds.BC1, Tile: coord.TileCoord{Row: 5, Col: 7, Zoom: 14}}

	_, ok := dc.ReadArtifact(key)
	assert.False(t, ok)

	require.NoError(t, dc.WriteArtifact(key, []byte("dds-bytes")))
	data, ok := dc.ReadArtifact(key)
	require.True(t, ok)
	assert.Equal(t, "dds-bytes", string(data))
}

func TestDiskCacheChunkPathLayout(t *testing.T) {
	dc := NewDiskCache("/cacheroot")
	tile := coord.TileCoord{Row: 3, Col: 9, Zoom: 15}
	got := dc.ChunkPath("bing", tile, 2, 11)
	want := filepath.Join("/cacheroot", "chunks", "bing", "15", "3", "9", "2_11.jpg")
	assert.Equal(t, want, got)
}

func TestCacheGCRemovesOldestUntilUnderBudget(t *testing.T) {
	dir := t.TempDir()
	dc := NewDiskCache(dir)
	c := New(NewMemoryCache(0), dc, time.Hour, 15)

	write := func(name string, size int, age time.Duration) {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
		mtime := time.Now().Add(-age)
		require.NoError(t, os.Chtimes(path, mtime, mtime))
	}
	write("old.dds", 10, 2*time.Hour)
	write("newer.dds", 10, time.Hour)

	require.NoError(t, c.runGC())

	_, errOld := os.Stat(filepath.Join(dir, "old.dds"))
	assert.True(t, os.IsNotExist(errOld))
	_, errNew := os.Stat(filepath.Join(dir, "newer.dds"))
	assert.NoError(t, errNew)
}

func TestCacheStartShutdownIdempotent(t *testing.T) {
	dir := t.TempDir()
	c := New(NewMemoryCache(0), NewDiskCache(dir), time.Millisecond, 0)
	c.Start()
	c.Start()
	time.Sleep(5 * time.Millisecond)
	c.Shutdown()
	c.Shutdown()
}
