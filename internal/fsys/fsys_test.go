package fsys

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xearthlayer/xearthlayer/internal/cache"
	"github.com/xearthlayer/xearthlayer/internal/config"
	"github.com/xearthlayer/xearthlayer/internal/coord"
	"github.com/xearthlayer/xearthlayer/internal/dds"
	"github.com/xearthlayer/xearthlayer/internal/executor"
	"github.com/xearthlayer/xearthlayer/internal/ortho"
)

func mountTestFS(t *testing.T, deps Deps) string {
	t.Helper()
	mountPoint := t.TempDir()
	server, err := Mount(mountPoint, deps)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = server.Unmount()
	})
	go server.Serve()
	require.NoError(t, server.WaitMount())
	return mountPoint
}

func TestFacadeServesUnionResolvedFile(t *testing.T) {
	sceneryRoot := t.TempDir()
	dsfDir := filepath.Join(sceneryRoot, "A_First", "Earth nav data", "+30-120")
	require.NoError(t, os.MkdirAll(dsfDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dsfDir, "+33-119.dsf"), []byte("dsf contents"), 0o644))

	sources, err := ortho.ScanSources(sceneryRoot)
	require.NoError(t, err)
	idx := ortho.BuildIndex(sources)

	deps := Deps{
		Index:  idx,
		Config: config.Default(),
	}
	mountPoint := mountTestFS(t, deps)

	data, err := os.ReadFile(filepath.Join(mountPoint, "Earth nav data", "+30-120", "+33-119.dsf"))
	require.NoError(t, err)
	assert.Equal(t, "dsf contents", string(data))

	entries, err := os.ReadDir(mountPoint)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Contains(t, names, "Earth nav data")
	assert.Contains(t, names, "terrain")
	assert.Contains(t, names, "textures")
}

func TestFacadeSynthesizesMissingTexture(t *testing.T) {
	jpegBytes := solidJPEGForTest(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(jpegBytes)
	}))
	t.Cleanup(srv.Close)

	cacheDir := t.TempDir()
	c := cache.New(cache.NewMemoryCache(64*1024*1024), cache.NewDiskCache(cacheDir), 0, 0)
	pools := executor.NewPools(8)
	ex := executor.New(pools)

	cfg := config.Default()
	cfg.Providers = []config.Provider{{ID: "BI", URLTemplate: srv.URL + "/{z}/{x}/{y}.jpg", Format: "BC1"}}

	idx := ortho.BuildIndex(nil)
	readCount := uint64(0)

	deps := Deps{
		Index:     idx,
		Config:    cfg,
		Cache:     c,
		Pools:     pools,
		Executor:  ex,
		ReadCount: &readCount,
	}
	mountPoint := mountTestFS(t, deps)

	tile := coord.TileCoord{Row: 100, Col: 200, Zoom: 14}
	name := coord.FilenameFor(tile, "BI")

	info, err := os.Stat(filepath.Join(mountPoint, "textures", name))
	require.NoError(t, err)
	assert.Equal(t, int64(dds.ExpectedSize(dds.BC1, coord.ArtifactPixels, coord.ArtifactPixels, dds.StandardMipCount)), info.Size())

	data, err := os.ReadFile(filepath.Join(mountPoint, "textures", name))
	require.NoError(t, err)
	w, h, _, format, ok := dds.ParseHeader(data)
	require.True(t, ok)
	assert.Equal(t, coord.ArtifactPixels, w)
	assert.Equal(t, coord.ArtifactPixels, h)
	assert.Equal(t, dds.BC1, format)

	assert.Equal(t, uint64(1), readCount)
}

func TestFacadeUnknownTextureNameIsNotFound(t *testing.T) {
	idx := ortho.BuildIndex(nil)
	deps := Deps{Index: idx, Config: config.Default()}
	mountPoint := mountTestFS(t, deps)

	_, err := os.Stat(filepath.Join(mountPoint, "textures", "not_a_valid_name.dds"))
	assert.True(t, os.IsNotExist(err))
}

func solidJPEGForTest(t *testing.T) []byte {
	t.Helper()
	size := coord.ChunkPixels
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 40, G: 80, B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}
