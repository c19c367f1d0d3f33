package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xearthlayer/xearthlayer/internal/cache"
	"github.com/xearthlayer/xearthlayer/internal/coord"
	"github.com/xearthlayer/xearthlayer/internal/dds"
	"github.com/xearthlayer/xearthlayer/internal/executor"
)

func solidJPEG(t *testing.T, size int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func TestRunSynthesizesAndCachesArtifact(t *testing.T) {
	jpegBytes := solidJPEG(t, coord.ChunkPixels, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(jpegBytes)
	}))
	defer srv.Close()

	dir := t.TempDir()
	c := cache.New(cache.NewMemoryCache(64*1024*1024), cache.NewDiskCache(dir), 0, 0)
	pools := executor.NewPools(8)

	key := cache.Key{ProviderID: "BI", Format: dds.BC1, Tile: coord.TileCoord{Row: 100, Col: 200, Zoom: 14}}
	cfg := Config{
		Source:      URLTemplateSource{Template: srv.URL + "/{z}/{x}/{y}.jpg"},
		Format:      dds.BC1,
		MapType:     "BI",
		MipCount:    2,
		FetchConfig: DefaultFetchConfig(),
	}

	artifact := Run(context.Background(), pools, c, key, cfg, executor.High)
	require.NotEmpty(t, artifact)

	w, h, mips, format, ok := dds.ParseHeader(artifact)
	require.True(t, ok)
	assert.Equal(t, coord.ArtifactPixels, w)
	assert.Equal(t, coord.ArtifactPixels, h)
	assert.Equal(t, 2, mips)
	assert.Equal(t, dds.BC1, format)

	// Second run should hit the memory cache and return the same bytes
	// without any further network traffic.
	srv.Close()
	again := Run(context.Background(), pools, c, key, cfg, executor.High)
	assert.Equal(t, artifact, again)
}

func TestRunSubstitutesPlaceholderOnFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	dir := t.TempDir()
	c := cache.New(cache.NewMemoryCache(64*1024*1024), cache.NewDiskCache(dir), 0, 0)
	pools := executor.NewPools(8)

	key := cache.Key{ProviderID: "BI", Format: dds.BC1, Tile: coord.TileCoord{Row: 1, Col: 1, Zoom: 14}}
	cfg := Config{
		Source:      URLTemplateSource{Template: srv.URL + "/{z}/{x}/{y}.jpg"},
		Format:      dds.BC1,
		MapType:     "BI",
		FetchConfig: FetchConfig{Client: http.DefaultClient, MaxAttempts: 1},
	}

	artifact := Run(context.Background(), pools, c, key, cfg, executor.High)
	assert.Equal(t, dds.Placeholder(), artifact)
}
